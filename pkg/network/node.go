// Package network runs a masaar node: it owns the identity, builds outgoing
// messages, routes incoming ones and drives resends of reliable DATA.
// Transport is left to the caller through callbacks.
package network

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/masaar/masaar-node/pkg/metrics"
	"github.com/masaar/masaar-node/pkg/node"
	"github.com/masaar/masaar-node/pkg/protocol"
	"github.com/masaar/masaar-node/pkg/reliability"
	"github.com/masaar/masaar-node/pkg/routing"
)

// DefaultRetryInterval is how often RunRetryLoop scans for due resends
const DefaultRetryInterval = time.Second

// Options configures a Node
type Options struct {
	Tracker       reliability.TrackerConfig
	DedupEntries  int
	RetryInterval time.Duration
	Metrics       *metrics.Metrics // Optional
}

// Node composes the message core with the reliability layer
type Node struct {
	identity  *node.Identity
	builder   *protocol.Builder
	router    *routing.Router
	sequencer *reliability.Sequencer
	tracker   *reliability.Tracker
	deduper   *reliability.Deduper
	metrics   *metrics.Metrics

	retryInterval time.Duration
	startedAt     time.Time

	statsMu     sync.Mutex
	sent        uint64
	received    uint64
	delivered   uint64
	dropped     uint64
	replies     uint64
	resent      uint64
	dropReasons map[routing.Reason]uint64

	// Callbacks
	OnDeliver func(payload string, msg protocol.Message)
	OnDrop    func(outcome routing.Outcome, msg protocol.ParsedMessage)
	OnReply   func(dst, wire string)        // ACK to hand back to the sender
	OnResend  func(entry reliability.Entry) // entry.Wire must be sent again
	OnFailed  func(entry reliability.Entry) // Reliable send abandoned
}

// NewNode creates a node. An empty id keeps the default identity until
// SetID is called.
func NewNode(id string, opts Options) (*Node, error) {
	deduper, err := reliability.NewDeduper(opts.DedupEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create node: %w", err)
	}

	if opts.RetryInterval <= 0 {
		opts.RetryInterval = DefaultRetryInterval
	}

	identity := &node.Identity{}
	if id != "" {
		identity.Set(id)
	}

	n := &Node{
		identity:      identity,
		builder:       protocol.NewBuilder(identity),
		router:        routing.NewRouter(),
		sequencer:     reliability.NewSequencer(),
		tracker:       reliability.NewTracker(opts.Tracker),
		deduper:       deduper,
		metrics:       opts.Metrics,
		retryInterval: opts.RetryInterval,
		startedAt:     time.Now(),
		dropReasons:   make(map[routing.Reason]uint64),
	}

	n.router.AttachIdentity(identity)
	n.router.AttachAckTracker(n.tracker)
	n.router.AttachDuplicateFilter(n.deduper)

	n.tracker.OnAcked = n.handleAcked
	n.tracker.OnFailed = n.handleFailed

	return n, nil
}

// SetID replaces the node identifier used by every later build
func (n *Node) SetID(id string) {
	n.identity.Set(id)
	log.Printf("🪪 Node ID set to %s", n.identity.ID())
}

// ID returns the current node identifier
func (n *Node) ID() string {
	return n.identity.ID()
}

// Identity returns the node's identity state
func (n *Node) Identity() *node.Identity {
	return n.identity
}

// Tracker returns the in-flight send tracker
func (n *Node) Tracker() *reliability.Tracker {
	return n.tracker
}

// Router returns the node's router with reliability state attached
func (n *Node) Router() *routing.Router {
	return n.router
}

func (n *Node) handleAcked(e reliability.Entry) {
	log.Printf("✓ ACK for seq %d to %s after %d attempt(s)", e.Seq, e.Dst, e.Attempts)
	n.metrics.RecordAcked()
	n.metrics.SetPending(n.tracker.Len())
}

func (n *Node) handleFailed(e reliability.Entry) {
	log.Printf("❌ Giving up on seq %d to %s after %d attempt(s): %s", e.Seq, e.Dst, e.Attempts, e.LastReason)
	n.metrics.RecordFailed()
	n.metrics.SetPending(n.tracker.Len())

	if n.OnFailed != nil {
		n.OnFailed(e)
	}
}

// Stats returns node statistics
func (n *Node) Stats() map[string]interface{} {
	n.statsMu.Lock()
	reasons := make(map[string]uint64, len(n.dropReasons))
	for r, c := range n.dropReasons {
		reasons[string(r)] = c
	}
	stats := map[string]interface{}{
		"node_id":      n.ID(),
		"uptime":       time.Since(n.startedAt).Round(time.Second).String(),
		"sent":         n.sent,
		"received":     n.received,
		"delivered":    n.delivered,
		"dropped":      n.dropped,
		"replies":      n.replies,
		"resent":       n.resent,
		"drop_reasons": reasons,
	}
	n.statsMu.Unlock()

	stats["pending"] = n.tracker.Len()
	stats["dedup_entries"] = n.deduper.Len()
	stats["last_seq"] = n.sequencer.Last()

	return stats
}
