// Package transport moves messages between council members over
// loopback TCP. Every send opens a fresh connection carrying exactly one
// message; inbound connections feed the member's bounded FIFO queue.
// Failures are logged and swallowed: the protocol layer treats a lost
// message like any other message loss and recovers by retrying.
package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/senutpal/council/internal/logging"
	"github.com/senutpal/council/internal/paxos"
)

const (
	dialTimeout = 2 * time.Second
	closeGrace  = 5 * time.Second
)

// Peer is a lightweight handle on another council member: enough to dial
// it and to know whether it votes. Members hold handles, never each
// other.
type Peer struct {
	ID       string
	Addr     string
	Port     int
	Acceptor bool
}

func (p Peer) HostPort() string {
	return net.JoinHostPort(p.Addr, strconv.Itoa(p.Port))
}

// Transport is one member's endpoint. The completion flag is shared by
// every member of an election; once any member sets it, all further
// Send calls everywhere become no-ops. Broadcast ignores the flag.
type Transport struct {
	self      Peer
	component string
	// acceptorsOnly restricts outbound Send to voting peers. Set for
	// proposers, whose protocol traffic is addressed to acceptors alone.
	acceptorsOnly bool
	done          *atomic.Bool

	queue     chan paxos.Message
	ln        net.Listener
	stop      chan struct{}
	handlers  sync.WaitGroup
	closeOnce sync.Once
}

func New(self Peer, component string, acceptorsOnly bool, done *atomic.Bool, queueSize int) *Transport {
	return &Transport{
		self:          self,
		component:     component,
		acceptorsOnly: acceptorsOnly,
		done:          done,
		queue:         make(chan paxos.Message, queueSize),
		stop:          make(chan struct{}),
	}
}

// Inbound is the member's receive queue. The dispatch worker is its only
// consumer.
func (t *Transport) Inbound() <-chan paxos.Message {
	return t.queue
}

// Listen opens the member's TCP listener and starts the accept loop.
func (t *Transport) Listen() error {
	ln, err := net.Listen("tcp", t.self.HostPort())
	if err != nil {
		return fmt.Errorf("listen on port %d: %w", t.self.Port, err)
	}
	t.ln = ln
	logging.Info(t.component, fmt.Sprintf("Listening on port %d", t.self.Port))
	go t.acceptLoop()
	return nil
}

func (t *Transport) acceptLoop() {
	for {
		conn, err := t.ln.Accept()
		if err != nil {
			// A closed listener is the shutdown signal, not a failure.
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Error(t.component, "accept: "+err.Error())
			return
		}
		t.handlers.Add(1)
		go t.handleConn(conn)
	}
}

func (t *Transport) handleConn(conn net.Conn) {
	defer t.handlers.Done()
	defer conn.Close()

	msg, err := readMessage(conn)
	if err != nil {
		logging.Error(t.component, "Failed to process incoming message: "+err.Error())
		return
	}
	select {
	case t.queue <- msg:
	case <-t.stop:
		// Member shut down; the queue has no consumer left.
	}
}

// Send delivers one message to one peer. No-op when the target is not an
// acceptor and this endpoint belongs to a proposer, when the target is
// this member itself, or after the election has completed.
func (t *Transport) Send(msg paxos.Message, peer Peer) {
	if t.acceptorsOnly && !peer.Acceptor {
		return
	}
	if peer.ID == t.self.ID {
		return
	}
	if t.done.Load() {
		return
	}
	t.write(msg, peer)
}

// Broadcast delivers one message to one peer unless the peer is the
// message's own sender. Used for the LEARN fan-out, which must reach
// every role, so there is no acceptor filter here -- and no completion
// check: early receivers of a LEARN shut down and set the shared flag
// while the fan-out is still in flight, and the remaining members must
// still hear the outcome.
func (t *Transport) Broadcast(msg paxos.Message, peer Peer) {
	if msg.From == peer.ID {
		return
	}
	t.write(msg, peer)
}

func (t *Transport) write(msg paxos.Message, peer Peer) {
	conn, err := net.DialTimeout("tcp", peer.HostPort(), dialTimeout)
	if err != nil {
		logging.Error(t.self.ID, fmt.Sprintf("Failed to send message to %s: %v", peer.ID, err))
		return
	}
	defer conn.Close()

	if err := writeMessage(conn, msg); err != nil {
		logging.Error(t.self.ID, fmt.Sprintf("Failed to send message to %s: %v", peer.ID, err))
		return
	}
	if msg.Type == paxos.Promise || msg.Type == paxos.Accepted {
		logging.Info(t.self.ID, fmt.Sprintf("Sent %s to %s", msg.Type, peer.ID))
	}
}

// Close shuts the listener and waits, with a bounded grace period, for
// in-flight connection handlers to drain. Idempotent.
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stop)
		if t.ln != nil {
			err = t.ln.Close()
		}
		drained := make(chan struct{})
		go func() {
			t.handlers.Wait()
			close(drained)
		}()
		select {
		case <-drained:
		case <-time.After(closeGrace):
			logging.Error(t.component, "connection handlers did not drain in time")
		}
	})
	return err
}
