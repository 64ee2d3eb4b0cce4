// Package routing decides what happens to incoming mesh messages.
//
// Decisions are pure functions of the decoded message and whatever
// reliability state is attached to the Router. The package never logs;
// callers record outcomes.
package routing

import (
	"strings"

	"github.com/masaar/masaar-node/pkg/protocol"
)

// AckTracker consumes acknowledgements for sends still in flight. Both
// methods return an error when seq is not in flight.
type AckTracker interface {
	Ack(seq uint64) error
	Nack(seq uint64, reason string) error
}

// DuplicateFilter records sequenced messages and reports repeats
type DuplicateFilter interface {
	Seen(src string, seq uint64) bool
}

// Router is the routing decision engine. The zero value routes without
// reliability state: ACK and NACK drop as UNKNOWN_TYPE.
type Router struct {
	acks AckTracker
	dups DuplicateFilter
	self protocol.IdentitySource
}

// NewRouter creates a router with no reliability state attached
func NewRouter() *Router {
	return &Router{}
}

// AttachAckTracker makes the router consume ACK and NACK messages
func (r *Router) AttachAckTracker(t AckTracker) {
	r.acks = t
}

// AttachDuplicateFilter makes the router drop repeated sequenced DATA
func (r *Router) AttachDuplicateFilter(f DuplicateFilter) {
	r.dups = f
}

// AttachIdentity makes the router consume only ACK and NACK messages
// whose dst is the local node. Others drop as NOT_FOR_ME.
func (r *Router) AttachIdentity(self protocol.IdentitySource) {
	r.self = self
}

// HandleIncoming decodes wire and decides its outcome
func (r *Router) HandleIncoming(wire string) Outcome {
	return r.Decide(protocol.ParseMessage(wire))
}

// Decide returns the outcome for an already decoded message
func (r *Router) Decide(msg protocol.ParsedMessage) Outcome {
	if !msg.Valid {
		return Drop(ReasonInvalid)
	}

	switch msg.Type {
	case protocol.MsgTypeHello:
		return Drop(ReasonHelloTop)

	case protocol.MsgTypeData:
		return r.decideData(msg)

	case protocol.MsgTypeAck:
		if r == nil || r.acks == nil {
			return Drop(ReasonUnknownType)
		}
		if !r.addressedToSelf(msg) {
			return Drop(ReasonNotForMe)
		}
		if err := r.acks.Ack(msg.Seq); err != nil {
			return Drop(ReasonAckUnmatched)
		}
		return Drop(ReasonAcked)

	case protocol.MsgTypeNack:
		if r == nil || r.acks == nil {
			return Drop(ReasonUnknownType)
		}
		if !r.addressedToSelf(msg) {
			return Drop(ReasonNotForMe)
		}
		if err := r.acks.Nack(msg.Seq, msg.Reason); err != nil {
			return Drop(ReasonNackUnmatched)
		}
		return Drop(ReasonNacked)

	default:
		return Drop(ReasonUnknownType)
	}
}

// addressedToSelf reports whether an acknowledgement targets this node.
// Without an attached identity every acknowledgement is accepted.
func (r *Router) addressedToSelf(msg protocol.ParsedMessage) bool {
	if r.self == nil {
		return true
	}
	return msg.Dst == r.self.ID()
}

func (r *Router) decideData(msg protocol.ParsedMessage) Outcome {
	// A wrapped HELLO from a stale or foreign node never reaches the app
	if PayloadLooksLikeHello(msg.Payload) {
		return Drop(ReasonHelloInPayload)
	}

	if r != nil && r.dups != nil && msg.Sequenced() && r.dups.Seen(msg.Src, msg.Seq) {
		return Drop(ReasonDuplicate)
	}

	// Single hop: dst is not consulted yet
	return Deliver(msg.Payload)
}

// PayloadLooksLikeHello reports whether payload embeds a HELLO record
func PayloadLooksLikeHello(payload string) bool {
	return strings.Contains(payload, protocol.HelloMarker)
}

// HandleIncoming routes wire with no reliability state attached
func HandleIncoming(wire string) Outcome {
	return (&Router{}).HandleIncoming(wire)
}
