package paxos

import (
	"time"

	"github.com/senutpal/council/internal/logging"
)

// LearnerMachine is a non-voting observer. Proposers address PREPARE and
// ACCEPT_REQUEST traffic to acceptors only, so the learner's entire
// protocol is waiting for the LEARN fan-out.
type LearnerMachine struct {
	id     string
	delay  time.Duration
	quit   func()
	winner string
}

func NewLearner(id string, delayMillis int, quit func()) *LearnerMachine {
	return &LearnerMachine{
		id:    id,
		delay: time.Duration(delayMillis) * time.Millisecond,
		quit:  quit,
	}
}

func (l *LearnerMachine) Handle(msg Message) {
	time.Sleep(l.delay)

	if msg.Type != Learn {
		return
	}
	l.winner = msg.From
	logging.Info(l.id, "Learned election winner: "+msg.From)
	l.quit()
}

func (l *LearnerMachine) Winner() (string, bool) {
	return l.winner, l.winner != ""
}
