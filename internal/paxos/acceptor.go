package paxos

import (
	"time"

	"github.com/senutpal/council/internal/logging"
	"github.com/senutpal/council/internal/storage"
)

// AcceptorMachine votes on proposals. It promises monotonically: once it
// has promised proposal N it rejects every prepare at or below N, and it
// accepts only proposals at or above its promise.
type AcceptorMachine struct {
	id     string
	delay  time.Duration
	net    Network
	store  storage.Store
	quit   func()
	winner string
}

func NewAcceptor(id string, delayMillis int, net Network, store storage.Store, quit func()) *AcceptorMachine {
	return &AcceptorMachine{
		id:    id,
		delay: time.Duration(delayMillis) * time.Millisecond,
		net:   net,
		store: store,
		quit:  quit,
	}
}

func (a *AcceptorMachine) Handle(msg Message) {
	time.Sleep(a.delay)

	switch msg.Type {
	case Prepare:
		a.handlePrepare(msg)
	case AcceptRequest:
		a.handleAcceptRequest(msg)
	case Learn:
		a.handleLearn(msg)
	}
}

func (a *AcceptorMachine) handlePrepare(msg Message) {
	promised, err := a.store.LoadPromised()
	if err != nil {
		logging.Error(a.id, "load promised state: "+err.Error())
		return
	}

	if msg.Proposal > promised {
		if err := a.store.SavePromised(msg.Proposal); err != nil {
			logging.Error(a.id, "save promised state: "+err.Error())
			return
		}
		accepted, value, err := a.store.LoadAccepted()
		if err != nil {
			logging.Error(a.id, "load accepted state: "+err.Error())
			return
		}
		// The promise reports what we accepted before, if anything. The
		// proposer does not use it: it always proposes its own id.
		a.net.Send(Message{Type: Promise, Value: value, Proposal: accepted, From: a.id}, msg.From)
	} else {
		a.net.Send(Message{Type: Reject, Proposal: promised, From: a.id}, msg.From)
	}
}

func (a *AcceptorMachine) handleAcceptRequest(msg Message) {
	promised, err := a.store.LoadPromised()
	if err != nil {
		logging.Error(a.id, "load promised state: "+err.Error())
		return
	}

	// Equality is allowed: the proposer we promised at exactly N is
	// entitled to have its accept request honored at N. A lower number
	// is dropped without a reply.
	if msg.Proposal >= promised {
		if err := a.store.SaveAccepted(msg.Proposal, msg.Value); err != nil {
			logging.Error(a.id, "save accepted state: "+err.Error())
			return
		}
		a.net.Send(Message{Type: Accepted, Value: msg.Value, Proposal: msg.Proposal, From: a.id}, msg.From)
	}
}

func (a *AcceptorMachine) handleLearn(msg Message) {
	a.winner = msg.From
	logging.Info(a.id, "Learned election winner: "+msg.From)
	a.quit()
}

func (a *AcceptorMachine) Winner() (string, bool) {
	return a.winner, a.winner != ""
}
