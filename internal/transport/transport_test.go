package transport

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/senutpal/council/internal/paxos"
)

func listeningPeer(t *testing.T, id string, port int, acceptor bool) (*Transport, Peer) {
	t.Helper()
	peer := Peer{ID: id, Addr: "127.0.0.1", Port: port, Acceptor: acceptor}
	tr := New(peer, id, false, new(atomic.Bool), 16)
	if err := tr.Listen(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tr.Close() })
	return tr, peer
}

func expectMessage(t *testing.T, tr *Transport) paxos.Message {
	t.Helper()
	select {
	case msg := <-tr.Inbound():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no message arrived")
		return paxos.Message{}
	}
}

func expectSilence(t *testing.T, tr *Transport) {
	t.Helper()
	select {
	case msg := <-tr.Inbound():
		t.Fatalf("unexpected delivery: %+v", msg)
	case <-time.After(150 * time.Millisecond):
	}
}

func TestSendDeliversOneMessage(t *testing.T) {
	sender := New(Peer{ID: "M1", Addr: "127.0.0.1", Port: 28431}, "M1", false, new(atomic.Bool), 16)
	receiver, peer := listeningPeer(t, "M2", 28432, true)

	want := paxos.Message{Type: paxos.Prepare, Value: "M1", Proposal: 1, From: "M1"}
	sender.Send(want, peer)

	if got := expectMessage(t, receiver); got != want {
		t.Errorf("received %+v, want %+v", got, want)
	}
}

func TestProposerSendReachesOnlyAcceptors(t *testing.T) {
	sender := New(Peer{ID: "M1", Addr: "127.0.0.1", Port: 28441}, "M1", true, new(atomic.Bool), 16)
	receiver, peer := listeningPeer(t, "M2", 28442, false) // another proposer

	sender.Send(paxos.Message{Type: paxos.Prepare, Proposal: 1, From: "M1"}, peer)
	expectSilence(t, receiver)
}

func TestSendToSelfIsNoOp(t *testing.T) {
	tr, self := listeningPeer(t, "M1", 28451, true)

	tr.Send(paxos.Message{Type: paxos.Prepare, Proposal: 1, From: "M1"}, self)
	expectSilence(t, tr)
}

func TestCompletionFlagSilencesSends(t *testing.T) {
	done := new(atomic.Bool)
	sender := New(Peer{ID: "M1", Addr: "127.0.0.1", Port: 28461}, "M1", false, done, 16)
	receiver, peer := listeningPeer(t, "M2", 28462, true)

	done.Store(true)
	sender.Send(paxos.Message{Type: paxos.Prepare, Proposal: 1, From: "M1"}, peer)
	expectSilence(t, receiver)

	// The LEARN fan-out is exempt: members that already shut down set the
	// shared flag, and the rest of the council must still hear the
	// outcome.
	want := paxos.Message{Type: paxos.Learn, Value: "M1", Proposal: 2, From: "M1"}
	sender.Broadcast(want, peer)
	if got := expectMessage(t, receiver); got != want {
		t.Errorf("broadcast after completion delivered %+v, want %+v", got, want)
	}
}

func TestBroadcastSkipsSenderButNotRoles(t *testing.T) {
	sender := New(Peer{ID: "M1", Addr: "127.0.0.1", Port: 28471}, "M1", true, new(atomic.Bool), 16)
	receiver, peer := listeningPeer(t, "M2", 28472, false) // non-acceptor

	// Self-exclusion is keyed on the message's sender id.
	sender.Broadcast(paxos.Message{Type: paxos.Learn, From: "M2"}, peer)
	expectSilence(t, receiver)

	// LEARN fan-out ignores the acceptor restriction; every role hears
	// the outcome.
	want := paxos.Message{Type: paxos.Learn, Value: "M1", Proposal: 3, From: "M1"}
	sender.Broadcast(want, peer)
	if got := expectMessage(t, receiver); got != want {
		t.Errorf("received %+v, want %+v", got, want)
	}
}

func TestSendToDeadPeerIsSwallowed(t *testing.T) {
	sender := New(Peer{ID: "M1", Addr: "127.0.0.1", Port: 28481}, "M1", false, new(atomic.Bool), 16)
	dead := Peer{ID: "M2", Addr: "127.0.0.1", Port: 28482, Acceptor: true}

	// Nothing is listening; the failure is logged and dropped.
	sender.Send(paxos.Message{Type: paxos.Prepare, Proposal: 1, From: "M1"}, dead)
}

func TestCloseIsIdempotent(t *testing.T) {
	tr, _ := listeningPeer(t, "M1", 28491, true)

	if err := tr.Close(); err != nil {
		t.Fatal(err)
	}
	if err := tr.Close(); err != nil {
		t.Errorf("second Close errored: %v", err)
	}
}
