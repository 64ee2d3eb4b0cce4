package network

import (
	"log"

	"github.com/masaar/masaar-node/pkg/crypto"
	"github.com/masaar/masaar-node/pkg/protocol"
	"github.com/masaar/masaar-node/pkg/routing"
)

// Receipt is the full result of receiving one wire text
type Receipt struct {
	Outcome routing.Outcome
	Message protocol.ParsedMessage
	Reply   string // ACK built for the sender, empty if none
}

// Receive decodes and routes wire, firing OnDeliver or OnDrop
func (n *Node) Receive(wire string) routing.Outcome {
	return n.Process(wire).Outcome
}

// Process is Receive returning the decoded message and any reply
func (n *Node) Process(wire string) Receipt {
	msg := protocol.ParseMessage(wire)
	outcome := n.router.Decide(msg)

	receipt := Receipt{Outcome: outcome, Message: msg}
	n.recordReceived(outcome)

	fp := crypto.Short(crypto.Fingerprint(wire))

	switch outcome.Action {
	case routing.ActionDeliver:
		log.Printf("📨 DATA %s delivered from %s (seq: %d)", fp, msg.Src, msg.Seq)
		receipt.Reply = n.reply(msg)
		if n.OnDeliver != nil {
			n.OnDeliver(outcome.Payload, msg.Message)
		}

	case routing.ActionDrop:
		switch outcome.Reason {
		case routing.ReasonDuplicate:
			// The sender missed our ACK; acknowledge again
			log.Printf("⚠️  Duplicate DATA %s from %s (seq: %d) - discarding", fp, msg.Src, msg.Seq)
			receipt.Reply = n.reply(msg)
		case routing.ReasonAcked, routing.ReasonNacked:
			log.Printf("✓ %s received for seq %d", msg.Tag, msg.Seq)
		case routing.ReasonNackUnmatched, routing.ReasonAckUnmatched:
			log.Printf("⚠️  %s for unknown seq %d", msg.Tag, msg.Seq)
		case routing.ReasonNotForMe:
			log.Printf("⚠️  %s for %s ignored (seq: %d)", msg.Tag, msg.Dst, msg.Seq)
		default:
			log.Printf("🗑️  Dropped %s: %s", fp, outcome.Reason)
		}
		if n.OnDrop != nil {
			n.OnDrop(outcome, msg)
		}
	}

	if outcome.Reason == routing.ReasonAcked || outcome.Reason == routing.ReasonNacked {
		n.metrics.SetPending(n.tracker.Len())
	}

	return receipt
}

// reply builds the ACK for sequenced DATA and hands it to OnReply.
// Legacy seq 0 DATA is not acknowledged.
func (n *Node) reply(msg protocol.ParsedMessage) string {
	if !msg.Sequenced() || msg.Src == "" {
		return ""
	}

	wire := n.Ack(msg.Src, msg.Seq)

	n.statsMu.Lock()
	n.replies++
	n.statsMu.Unlock()

	log.Printf("✓ ACK sent to %s (seq: %d)", msg.Src, msg.Seq)

	if n.OnReply != nil {
		n.OnReply(msg.Src, wire)
	}
	return wire
}

func (n *Node) recordReceived(outcome routing.Outcome) {
	n.statsMu.Lock()
	n.received++
	switch outcome.Action {
	case routing.ActionDeliver:
		n.delivered++
	case routing.ActionDrop:
		n.dropped++
		n.dropReasons[outcome.Reason]++
	}
	n.statsMu.Unlock()

	n.metrics.RecordRouted(outcome.Action.String(), string(outcome.Reason))
}
