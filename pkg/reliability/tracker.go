// Package reliability adds sequencing, acknowledgement tracking and
// duplicate suppression on top of the message codec.
package reliability

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/masaar/masaar-node/pkg/crypto"
)

var (
	ErrUnknownSequence  = errors.New("sequence not in flight")
	ErrSequenceInFlight = errors.New("sequence already in flight")
	ErrUnsequenced      = errors.New("sequence 0 cannot be tracked")
	ErrNotDue           = errors.New("sequence is awaiting acknowledgement")
)

// ReasonTimeout is recorded when no ACK arrives within the ack timeout
const ReasonTimeout = "TIMEOUT"

// Tracker defaults
const (
	DefaultAckTimeout  = 10 * time.Second
	DefaultBaseDelay   = 2 * time.Second
	DefaultMaxDelay    = time.Minute
	DefaultMaxAttempts = 5
)

// State of a tracked send
type State uint8

const (
	StatePending State = iota // Sent, waiting for ACK
	StateNacked               // Rejected or timed out, waiting for resend
	StateAcked                // Retired after ACK
	StateFailed               // Retired after MaxAttempts sends
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateNacked:
		return "NACKED"
	case StateAcked:
		return "ACKED"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Entry is a snapshot of one tracked send
type Entry struct {
	Dst         string
	Seq         uint64
	Wire        string
	Fingerprint string
	State       State
	Attempts    int // Sends so far, including the first
	SentAt      time.Time
	NextAttempt time.Time // Zero while pending
	LastReason  string
}

// TrackerConfig holds retry policy
type TrackerConfig struct {
	AckTimeout  time.Duration
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

// DefaultTrackerConfig returns the default retry policy
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		AckTimeout:  DefaultAckTimeout,
		BaseDelay:   DefaultBaseDelay,
		MaxDelay:    DefaultMaxDelay,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Tracker follows every reliable send from first transmission until it is
// acknowledged or gives up.
type Tracker struct {
	mu      sync.Mutex
	cfg     TrackerConfig
	entries map[uint64]*Entry
	now     func() time.Time

	// Callbacks, invoked without the lock held
	OnAcked  func(Entry)
	OnFailed func(Entry)
}

// NewTracker creates a tracker. Zero config fields take the defaults.
func NewTracker(cfg TrackerConfig) *Tracker {
	def := DefaultTrackerConfig()
	if cfg.AckTimeout <= 0 {
		cfg.AckTimeout = def.AckTimeout
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = def.MaxDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		cfg.MaxDelay = cfg.BaseDelay
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}

	return &Tracker{
		cfg:     cfg,
		entries: make(map[uint64]*Entry),
		now:     time.Now,
	}
}

// SetClock replaces the time source
func (t *Tracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// Config returns the effective retry policy
func (t *Tracker) Config() TrackerConfig {
	return t.cfg
}

// Track records a first send of seq to dst
func (t *Tracker) Track(dst string, seq uint64, wire string) error {
	if seq == 0 {
		return ErrUnsequenced
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[seq]; exists {
		return ErrSequenceInFlight
	}

	t.entries[seq] = &Entry{
		Dst:         dst,
		Seq:         seq,
		Wire:        wire,
		Fingerprint: crypto.Fingerprint(wire),
		State:       StatePending,
		Attempts:    1,
		SentAt:      t.now(),
	}
	return nil
}

// Ack retires seq as delivered
func (t *Tracker) Ack(seq uint64) error {
	t.mu.Lock()
	e, ok := t.entries[seq]
	if !ok {
		t.mu.Unlock()
		return ErrUnknownSequence
	}
	delete(t.entries, seq)
	e.State = StateAcked
	e.NextAttempt = time.Time{}
	snapshot := *e
	t.mu.Unlock()

	if t.OnAcked != nil {
		t.OnAcked(snapshot)
	}
	return nil
}

// Nack schedules a resend of seq after backoff. When seq has already been
// sent MaxAttempts times it is retired as failed instead; that is not an
// error.
func (t *Tracker) Nack(seq uint64, reason string) error {
	t.mu.Lock()
	e, ok := t.entries[seq]
	if !ok {
		t.mu.Unlock()
		return ErrUnknownSequence
	}
	failed, snapshot := t.reject(e, reason, t.now())
	t.mu.Unlock()

	if failed {
		t.fail(snapshot)
	}
	return nil
}

// reject moves e to Nacked or retires it. Caller holds the lock.
func (t *Tracker) reject(e *Entry, reason string, now time.Time) (bool, Entry) {
	e.LastReason = reason

	if e.Attempts >= t.cfg.MaxAttempts {
		delete(t.entries, e.Seq)
		e.State = StateFailed
		e.NextAttempt = time.Time{}
		return true, *e
	}

	e.State = StateNacked
	e.NextAttempt = now.Add(t.Backoff(e.Attempts))
	return false, *e
}

func (t *Tracker) fail(e Entry) {
	if t.OnFailed != nil {
		t.OnFailed(e)
	}
}

// Backoff returns the delay before the resend that follows the given
// number of sends: BaseDelay doubling per send, capped at MaxDelay.
func (t *Tracker) Backoff(attempts int) time.Duration {
	delay := t.cfg.BaseDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= t.cfg.MaxDelay {
			return t.cfg.MaxDelay
		}
	}
	if delay > t.cfg.MaxDelay {
		delay = t.cfg.MaxDelay
	}
	return delay
}

// Due returns the entries ready to be resent at now, oldest seq first.
// A pending entry past the ack timeout counts as NACKed with TIMEOUT and
// becomes due at once, unless that exhausts its attempts.
func (t *Tracker) Due(now time.Time) []Entry {
	var due, failed []Entry

	t.mu.Lock()
	for _, e := range t.entries {
		if e.State == StatePending && !now.Before(e.SentAt.Add(t.cfg.AckTimeout)) {
			if gaveUp, snapshot := t.reject(e, ReasonTimeout, now); gaveUp {
				failed = append(failed, snapshot)
				continue
			}
			e.NextAttempt = now
		}

		if e.State == StateNacked && !now.Before(e.NextAttempt) {
			due = append(due, *e)
		}
	}
	t.mu.Unlock()

	sortBySeq(failed)
	for _, e := range failed {
		t.fail(e)
	}

	sortBySeq(due)
	return due
}

// MarkResent returns a due entry to Pending after it was sent again
func (t *Tracker) MarkResent(seq uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[seq]
	if !ok {
		return ErrUnknownSequence
	}
	if e.State != StateNacked {
		return ErrNotDue
	}

	e.State = StatePending
	e.Attempts++
	e.SentAt = t.now()
	e.NextAttempt = time.Time{}
	return nil
}

// Get returns a snapshot of seq if it is in flight
func (t *Tracker) Get(seq uint64) (Entry, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[seq]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Pending returns a snapshot of every in-flight entry, oldest seq first
func (t *Tracker) Pending() []Entry {
	t.mu.Lock()
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, *e)
	}
	t.mu.Unlock()

	sortBySeq(out)
	return out
}

// Len returns the number of in-flight entries
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func sortBySeq(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Seq < entries[j].Seq
	})
}
