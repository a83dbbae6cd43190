// Package node ties one council member together: its transport endpoint,
// its peer registry, its role state machine, and the dispatch worker
// that feeds the machine one message at a time.
package node

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/senutpal/council/internal/config"
	"github.com/senutpal/council/internal/paxos"
	"github.com/senutpal/council/internal/storage"
	"github.com/senutpal/council/internal/transport"
)

const (
	queueSize = 64
	// startupDelay gives every listener time to come up before the first
	// PREPARE goes out.
	startupDelay = 100 * time.Millisecond
)

// beginner is a machine that initiates activity on its own, rather than
// only reacting to inbound messages. The proposer is the only one.
type beginner interface {
	Begin()
}

// Member is one council member. All state-machine access happens on the
// dispatch goroutine, so the machine itself needs no locking.
type Member struct {
	id      string
	role    config.Role
	peers   []transport.Peer
	tr      *transport.Transport
	machine paxos.Machine
	store   storage.Store

	stop    chan struct{}
	once    sync.Once
	barrier *sync.WaitGroup
	done    *atomic.Bool
}

// New builds a member from its descriptor. done and barrier are shared
// across the whole election: done silences every transport's Send (not
// Broadcast) once set, and
// barrier is decremented exactly once per member shutdown.
func New(cfg config.Member, done *atomic.Bool, barrier *sync.WaitGroup) *Member {
	self := transport.Peer{
		ID:       cfg.ID,
		Addr:     "127.0.0.1",
		Port:     cfg.Port,
		Acceptor: cfg.Role == config.Acceptor,
	}
	m := &Member{
		id:      cfg.ID,
		role:    cfg.Role,
		stop:    make(chan struct{}),
		barrier: barrier,
		done:    done,
	}
	component := cfg.Role.String() + " " + cfg.ID
	m.tr = transport.New(self, component, cfg.Role == config.Proposer, done, queueSize)

	switch cfg.Role {
	case config.Proposer:
		m.machine = paxos.NewProposer(cfg.ID, cfg.ResponseDelay, cfg.Silent(), m, m.Shutdown)
	case config.Acceptor:
		m.store = storage.NewMemory()
		m.machine = paxos.NewAcceptor(cfg.ID, cfg.ResponseDelay, m, m.store, m.Shutdown)
	case config.Learner:
		m.machine = paxos.NewLearner(cfg.ID, cfg.ResponseDelay, m.Shutdown)
	}
	return m
}

// AddPeers installs the peer registry. Must be called before Start; the
// registry may include this member itself, which the transport will
// never dial.
func (m *Member) AddPeers(peers []transport.Peer) {
	m.peers = append(m.peers, peers...)
}

// Start opens the listener and begins consuming the inbound queue.
func (m *Member) Start() error {
	if err := m.tr.Listen(); err != nil {
		return err
	}
	go m.dispatch()
	return nil
}

// dispatch is the member's single consumer goroutine. Everything the
// state machine does, including its sleeps and any re-initiation after
// back-off, runs here.
func (m *Member) dispatch() {
	if b, ok := m.machine.(beginner); ok {
		time.Sleep(startupDelay)
		select {
		case <-m.stop:
			return
		default:
		}
		b.Begin()
	}
	for {
		select {
		case <-m.stop:
			return
		case msg := <-m.tr.Inbound():
			m.machine.Handle(msg)
		}
	}
}

// Shutdown terminates the member: it marks the election completed,
// stops the dispatch worker, closes the listener, and releases this
// member's slot on the completion barrier. Idempotent.
func (m *Member) Shutdown() {
	m.once.Do(func() {
		m.done.Store(true)
		close(m.stop)
		m.tr.Close()
		if m.store != nil {
			m.store.Close()
		}
		m.barrier.Done()
	})
}

func (m *Member) ID() string        { return m.id }
func (m *Member) Role() config.Role { return m.role }

// Winner reports the election outcome this member has recorded, if any.
func (m *Member) Winner() (string, bool) {
	return m.machine.Winner()
}

// Send, SendAll, Broadcast, and Peers implement paxos.Network for the
// member's state machine.

func (m *Member) Send(msg paxos.Message, to string) {
	peer, ok := m.findPeer(to)
	if !ok {
		// Unknown sender id; drop the reply like any lost message.
		return
	}
	m.tr.Send(msg, peer)
}

func (m *Member) SendAll(msg paxos.Message) {
	for _, peer := range m.peers {
		m.tr.Send(msg, peer)
	}
}

func (m *Member) Broadcast(msg paxos.Message) {
	for _, peer := range m.peers {
		m.tr.Broadcast(msg, peer)
	}
}

func (m *Member) Peers() int {
	return len(m.peers)
}

func (m *Member) findPeer(id string) (transport.Peer, bool) {
	for _, peer := range m.peers {
		if peer.ID == id {
			return peer, true
		}
	}
	return transport.Peer{}, false
}
