package routing

import (
	"errors"
	"strings"

	"github.com/masaar/masaar-node/pkg/protocol"
)

var (
	ErrMalformedOutcome = errors.New("malformed routing outcome")
)

// Action is what the transport layer should do with a message
type Action uint8

// Actions
const (
	ActionDeliver Action = iota + 1 // Hand payload to the application
	ActionDrop                      // Discard, see Reason
	ActionForward                   // Relay onwards (reserved for multi-hop)
)

// String returns the bridge prefix of the action
func (a Action) String() string {
	switch a {
	case ActionDeliver:
		return "DELIVER"
	case ActionDrop:
		return "DROP"
	case ActionForward:
		return "FORWARD"
	default:
		return "NONE"
	}
}

// Reason explains a drop
type Reason string

// Drop reasons
const (
	ReasonInvalid        Reason = "INVALID"
	ReasonHelloTop       Reason = "HELLO_TOP"
	ReasonHelloInPayload Reason = "HELLO_IN_PAYLOAD"
	ReasonUnknownType    Reason = "UNKNOWN_TYPE"
	ReasonDuplicate      Reason = "DUPLICATE"
	ReasonAcked          Reason = "ACKED"
	ReasonAckUnmatched   Reason = "ACK_UNMATCHED"
	ReasonNacked         Reason = "NACKED"
	ReasonNackUnmatched  Reason = "NACK_UNMATCHED"
	ReasonNotForMe       Reason = "NOT_FOR_ME"
)

// Outcome is the routing decision for one incoming message
type Outcome struct {
	Action  Action
	Payload string           // Set for ActionDeliver
	Reason  Reason           // Set for ActionDrop
	Message protocol.Message // Set for ActionForward
}

// Deliver hands payload to the local application
func Deliver(payload string) Outcome {
	return Outcome{Action: ActionDeliver, Payload: payload}
}

// Drop discards the message for reason
func Drop(reason Reason) Outcome {
	return Outcome{Action: ActionDrop, Reason: reason}
}

// Forward relays msg towards msg.Dst. Not produced by the single-hop router.
func Forward(msg protocol.Message) Outcome {
	return Outcome{Action: ActionForward, Message: msg}
}

// Delivered reports whether the outcome is a delivery
func (o Outcome) Delivered() bool {
	return o.Action == ActionDeliver
}

// Dropped reports whether the outcome is a drop
func (o Outcome) Dropped() bool {
	return o.Action == ActionDrop
}

// String renders the outcome in bridge form: DELIVER:<payload>,
// DROP:<reason> or FORWARD:<dst>
func (o Outcome) String() string {
	switch o.Action {
	case ActionDeliver:
		return "DELIVER:" + o.Payload
	case ActionDrop:
		return "DROP:" + string(o.Reason)
	case ActionForward:
		return "FORWARD:" + o.Message.Dst
	default:
		return "NONE"
	}
}

// ParseOutcome parses the bridge form produced by Outcome.String. A
// forwarded outcome only carries the destination.
func ParseOutcome(s string) (Outcome, error) {
	prefix, rest, ok := strings.Cut(s, ":")
	if !ok {
		return Outcome{}, ErrMalformedOutcome
	}

	switch prefix {
	case "DELIVER":
		return Deliver(rest), nil
	case "DROP":
		if rest == "" {
			return Outcome{}, ErrMalformedOutcome
		}
		return Drop(Reason(rest)), nil
	case "FORWARD":
		return Forward(protocol.Message{Dst: rest}), nil
	default:
		return Outcome{}, ErrMalformedOutcome
	}
}
