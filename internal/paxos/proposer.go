package paxos

import (
	"fmt"
	"time"

	"github.com/senutpal/council/internal/logging"
)

const defaultBackoff = 1000 * time.Millisecond

// ProposerMachine nominates its own id as the value to be chosen and
// drives PREPARE -> quorum of PROMISE -> ACCEPT_REQUEST -> quorum of
// ACCEPTED -> LEARN. A silent proposer (responsive == false) sends its
// first PREPARE and then ignores everything except the final LEARN.
type ProposerMachine struct {
	id         string
	delay      time.Duration
	net        Network
	quit       func()
	responsive bool

	proposalNumber   int
	numRejections    int
	promisedSet      map[string]bool
	acceptedSet      map[string]bool
	receivedPromises bool
	winner           string

	backoff time.Duration
}

func NewProposer(id string, delayMillis int, silent bool, net Network, quit func()) *ProposerMachine {
	p := &ProposerMachine{
		id:          id,
		net:         net,
		quit:        quit,
		responsive:  !silent,
		promisedSet: make(map[string]bool),
		acceptedSet: make(map[string]bool),
		backoff:     defaultBackoff,
	}
	if !silent {
		p.delay = time.Duration(delayMillis) * time.Millisecond
	}
	return p
}

// quorum is half the peer list, rounded down, counted over the entire
// membership. The configuration pre-flight guarantees enough acceptors
// exist to clear it.
func (p *ProposerMachine) quorum() int {
	return p.net.Peers() / 2
}

// Begin starts the first round. The dispatch worker calls it once,
// shortly after the member comes up.
func (p *ProposerMachine) Begin() {
	p.initiateProposal()
}

func (p *ProposerMachine) initiateProposal() {
	logging.Info(p.id, fmt.Sprintf("*** Initiating proposal for %s. Sending Broadcast ***", p.id))
	p.proposalNumber++

	p.promisedSet = make(map[string]bool)
	p.acceptedSet = make(map[string]bool)
	p.receivedPromises = false
	p.numRejections = 0

	p.net.SendAll(Message{Type: Prepare, Value: p.id, Proposal: p.proposalNumber, From: p.id})
}

func (p *ProposerMachine) Handle(msg Message) {
	if !p.responsive {
		// A silent proposer still has to learn the outcome, or it would
		// hold the completion barrier forever.
		if msg.Type == Learn {
			p.handleLearn(msg)
		}
		return
	}

	time.Sleep(p.delay)

	switch msg.Type {
	case Promise:
		p.handlePromise(msg)
	case Reject:
		p.handleReject(msg)
	case Accepted:
		p.handleAccepted(msg)
	case Learn:
		p.handleLearn(msg)
	}
}

func (p *ProposerMachine) handlePromise(msg Message) {
	p.promisedSet[msg.From] = true

	// One accept-request broadcast per round; late promises are absorbed.
	if p.receivedPromises {
		return
	}
	if len(p.promisedSet) >= p.quorum() {
		p.receivedPromises = true
		logging.Info(p.id, "*** Majority of Promises Received. Sending Accept Requests ***")
		p.net.SendAll(Message{Type: AcceptRequest, Value: p.id, Proposal: p.proposalNumber, From: p.id})
	}
}

func (p *ProposerMachine) handleReject(msg Message) {
	p.numRejections++

	// Jump past the rejecting acceptor's promise so the next round is
	// strictly higher than anything it has seen from us.
	if msg.Proposal+1 > p.proposalNumber {
		p.proposalNumber = msg.Proposal + 1
	}

	if p.numRejections >= p.quorum() {
		p.numRejections = 0
		logging.Info(p.id, fmt.Sprintf("Backoff for %dms", p.backoff/time.Millisecond))
		time.Sleep(p.backoff)
		p.initiateProposal()
	}
}

func (p *ProposerMachine) handleAccepted(msg Message) {
	p.acceptedSet[msg.From] = true

	if len(p.acceptedSet) >= p.quorum() {
		// Clearing the set keeps a late ACCEPTED from re-crossing the
		// threshold and re-broadcasting LEARN before shutdown lands.
		p.acceptedSet = make(map[string]bool)
		p.winner = p.id
		logging.Info(p.id, fmt.Sprintf("*** Consensus Achieved. %s has been elected. ***", p.id))

		p.net.Broadcast(Message{Type: Learn, Value: p.id, Proposal: p.proposalNumber, From: p.id})
		p.quit()
	}
}

func (p *ProposerMachine) handleLearn(msg Message) {
	p.winner = msg.From
	logging.Info(p.id, "Learned election winner: "+msg.From)
	p.quit()
}

func (p *ProposerMachine) Winner() (string, bool) {
	return p.winner, p.winner != ""
}
