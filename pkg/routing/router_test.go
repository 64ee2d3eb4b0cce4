package routing

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masaar/masaar-node/pkg/node"
	"github.com/masaar/masaar-node/pkg/protocol"
)

type fakeTracker struct {
	inFlight map[uint64]bool
	acked    []uint64
	nacked   map[uint64]string
}

func newFakeTracker(seqs ...uint64) *fakeTracker {
	ft := &fakeTracker{inFlight: make(map[uint64]bool), nacked: make(map[uint64]string)}
	for _, s := range seqs {
		ft.inFlight[s] = true
	}
	return ft
}

var errNotInFlight = errors.New("not in flight")

func (f *fakeTracker) Ack(seq uint64) error {
	if !f.inFlight[seq] {
		return errNotInFlight
	}
	delete(f.inFlight, seq)
	f.acked = append(f.acked, seq)
	return nil
}

func (f *fakeTracker) Nack(seq uint64, reason string) error {
	if !f.inFlight[seq] {
		return errNotInFlight
	}
	f.nacked[seq] = reason
	return nil
}

type fakeFilter map[string]bool

func (f fakeFilter) Seen(src string, seq uint64) bool {
	key := fmt.Sprintf("%s/%d", src, seq)
	if f[key] {
		return true
	}
	f[key] = true
	return false
}

func testBuilder(id string) *protocol.Builder {
	return protocol.NewBuilder(node.NewIdentity(id))
}

func TestHandleIncoming(t *testing.T) {
	b := testBuilder("N1")

	tests := []struct {
		name string
		wire string
		want Outcome
	}{
		{"empty", "", Drop(ReasonInvalid)},
		{"garbage", "not json at all", Drop(ReasonInvalid)},
		{"missing type", `{"src":"N1","payload":"hi"}`, Drop(ReasonInvalid)},
		{"hello", b.Hello(), Drop(ReasonHelloTop)},
		{"data", b.Message("hi there", "N2"), Deliver("hi there")},
		{"sequenced data", b.Data("hi there", "N2", 4), Deliver("hi there")},
		{"empty payload", b.Message("", "N2"), Deliver("")},
		{"hello in payload", b.Message(`{"type":"HELLO","src":"N7","version":"1.0"}`, "N2"), Drop(ReasonHelloInPayload)},
		{"hello marker inside text", b.Message(`fwd: "type":"HELLO" seen`, "N2"), Drop(ReasonHelloInPayload)},
		{"ack", b.Ack("N2", 5), Drop(ReasonUnknownType)},
		{"nack", b.Nack("N2", 5, "busy"), Drop(ReasonUnknownType)},
		{"unrecognized tag", `{"type":"PING","src":"N1"}`, Drop(ReasonUnknownType)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HandleIncoming(tt.wire))
			assert.Equal(t, tt.want, NewRouter().HandleIncoming(tt.wire))
		})
	}
}

func TestHandleIncomingDeterministic(t *testing.T) {
	wire := testBuilder("N1").Message("same", "N2")

	first := HandleIncoming(wire)
	for i := 0; i < 10; i++ {
		require.Equal(t, first, HandleIncoming(wire))
	}
}

func TestDecideInvalidIgnoresOtherFields(t *testing.T) {
	msg := protocol.ParsedMessage{
		Message: protocol.Message{Type: protocol.MsgTypeData, Payload: "leak"},
		Valid:   false,
	}

	assert.Equal(t, Drop(ReasonInvalid), NewRouter().Decide(msg))
}

func TestRouterWithAckTracker(t *testing.T) {
	b := testBuilder("N2")
	tracker := newFakeTracker(5, 6)

	r := NewRouter()
	r.AttachAckTracker(tracker)

	assert.Equal(t, Drop(ReasonAcked), r.HandleIncoming(b.Ack("N1", 5)))
	assert.Equal(t, []uint64{5}, tracker.acked)

	assert.Equal(t, Drop(ReasonAckUnmatched), r.HandleIncoming(b.Ack("N1", 5)))
	assert.Equal(t, Drop(ReasonAckUnmatched), r.HandleIncoming(b.Ack("N1", 99)))

	assert.Equal(t, Drop(ReasonNacked), r.HandleIncoming(b.Nack("N1", 6, "busy")))
	assert.Equal(t, "busy", tracker.nacked[6])

	assert.Equal(t, Drop(ReasonNackUnmatched), r.HandleIncoming(b.Nack("N1", 42, "busy")))

	// DATA routing is unaffected
	assert.Equal(t, Deliver("x"), r.HandleIncoming(b.Message("x", "N1")))
}

func TestRouterWithIdentity(t *testing.T) {
	tracker := newFakeTracker(1, 2)

	r := NewRouter()
	r.AttachAckTracker(tracker)
	r.AttachIdentity(node.NewIdentity("A"))

	// an acknowledgement for another node's seq 1 leaves ours in flight
	stray := testBuilder("C")
	assert.Equal(t, Drop(ReasonNotForMe), r.HandleIncoming(stray.Ack("X", 1)))
	assert.Equal(t, Drop(ReasonNotForMe), r.HandleIncoming(stray.Nack("X", 2, "busy")))
	assert.Empty(t, tracker.acked)
	assert.Empty(t, tracker.nacked)

	peer := testBuilder("B")
	assert.Equal(t, Drop(ReasonAcked), r.HandleIncoming(peer.Ack("A", 1)))
	assert.Equal(t, Drop(ReasonNacked), r.HandleIncoming(peer.Nack("A", 2, "busy")))
	assert.Equal(t, []uint64{1}, tracker.acked)

	// identity alone does not enable acknowledgement handling
	bare := NewRouter()
	bare.AttachIdentity(node.NewIdentity("A"))
	assert.Equal(t, Drop(ReasonUnknownType), bare.HandleIncoming(peer.Ack("A", 1)))
}

func TestRouterWithDuplicateFilter(t *testing.T) {
	b := testBuilder("N1")

	r := NewRouter()
	r.AttachDuplicateFilter(fakeFilter{})

	wire := b.Data("once", "N2", 3)
	assert.Equal(t, Deliver("once"), r.HandleIncoming(wire))
	assert.Equal(t, Drop(ReasonDuplicate), r.HandleIncoming(wire))

	// unsequenced messages are never duplicates
	legacy := b.Message("again", "N2")
	assert.Equal(t, Deliver("again"), r.HandleIncoming(legacy))
	assert.Equal(t, Deliver("again"), r.HandleIncoming(legacy))

	// HELLO guard wins over duplicate tracking
	hello := b.Data(protocol.HelloMarker, "N2", 4)
	assert.Equal(t, Drop(ReasonHelloInPayload), r.HandleIncoming(hello))
	assert.Equal(t, Deliver("later"), r.HandleIncoming(b.Data("later", "N2", 4)))
}

func TestPayloadLooksLikeHello(t *testing.T) {
	assert.True(t, PayloadLooksLikeHello(`{"type":"HELLO"}`))
	assert.False(t, PayloadLooksLikeHello(`HELLO`))
	assert.False(t, PayloadLooksLikeHello(`{"type": "HELLO"}`))
	assert.False(t, PayloadLooksLikeHello(""))
}
