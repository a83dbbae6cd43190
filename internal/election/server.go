// Package election orchestrates one consensus round: it builds the
// council from a membership list, wires every member's peer registry,
// runs all members concurrently, and waits for the round to finish.
package election

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/senutpal/council/internal/config"
	"github.com/senutpal/council/internal/logging"
	"github.com/senutpal/council/internal/node"
	"github.com/senutpal/council/internal/transport"
)

// Server owns one election. The completion flag and barrier live here,
// not in package state, so multiple elections can coexist in one
// process.
type Server struct {
	members []*node.Member
	barrier sync.WaitGroup
	done    atomic.Bool
}

// NewServer builds every member, then hands each of them the full peer
// list. Peers must be wired after all members exist: the membership is
// mutually referential.
func NewServer(cfgs []config.Member) *Server {
	s := &Server{}

	peers := make([]transport.Peer, 0, len(cfgs))
	for _, cfg := range cfgs {
		peers = append(peers, transport.Peer{
			ID:       cfg.ID,
			Addr:     "127.0.0.1",
			Port:     cfg.Port,
			Acceptor: cfg.Role == config.Acceptor,
		})
	}

	for _, cfg := range cfgs {
		member := node.New(cfg, &s.done, &s.barrier)
		member.AddPeers(peers)
		s.members = append(s.members, member)
	}
	return s
}

// Run starts every member and blocks until all of them have shut down,
// which happens once a winner's LEARN broadcast has reached the whole
// council.
func (s *Server) Run() error {
	s.barrier.Add(len(s.members))

	for i, member := range s.members {
		if err := member.Start(); err != nil {
			// Release the slots of the members that will never run, then
			// tear down the ones already started.
			for range s.members[i:] {
				s.barrier.Done()
			}
			for _, started := range s.members[:i] {
				started.Shutdown()
			}
			return fmt.Errorf("start member %s: %w", member.ID(), err)
		}
	}

	s.barrier.Wait()
	logging.Info("MAIN", "*** ELECTION COMPLETE ***")
	return nil
}

// Members exposes the council, mainly so tests can inspect outcomes.
func (s *Server) Members() []*node.Member {
	return s.members
}

// Winner returns the winner recorded by the first member (in config
// order) that recorded one, or false if no member recorded an outcome.
// It does not check that the other members recorded the same id.
func (s *Server) Winner() (string, bool) {
	for _, member := range s.members {
		if w, ok := member.Winner(); ok {
			return w, true
		}
	}
	return "", false
}
