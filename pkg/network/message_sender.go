package network

import (
	"fmt"
	"log"

	"github.com/masaar/masaar-node/pkg/crypto"
	"github.com/masaar/masaar-node/pkg/protocol"
)

// Hello builds a presence announcement
func (n *Node) Hello() string {
	wire := n.builder.Hello()
	n.recordSent(protocol.MsgTypeHello)
	return wire
}

// Send builds a legacy unsequenced DATA message. It is never retried.
func (n *Node) Send(payload, dst string) string {
	wire := n.builder.Message(payload, dst)
	n.recordSent(protocol.MsgTypeData)
	return wire
}

// SendSeq builds DATA with a caller chosen seq without tracking it
func (n *Node) SendSeq(payload, dst string, seq uint64) string {
	wire := n.builder.Data(payload, dst, seq)
	n.recordSent(protocol.MsgTypeData)
	return wire
}

// SendReliable builds sequenced DATA and tracks it until dst acknowledges
// it or it runs out of attempts
func (n *Node) SendReliable(payload, dst string) (string, uint64, error) {
	seq := n.sequencer.Next()
	wire := n.builder.Data(payload, dst, seq)

	if err := n.tracker.Track(dst, seq, wire); err != nil {
		return "", 0, fmt.Errorf("failed to track seq %d: %w", seq, err)
	}

	n.recordSent(protocol.MsgTypeData)
	n.metrics.SetPending(n.tracker.Len())

	log.Printf("📤 Reliable DATA %s to %s (seq: %d)", crypto.Short(crypto.Fingerprint(wire)), dst, seq)
	return wire, seq, nil
}

// Ack builds an acknowledgement of seq for dst
func (n *Node) Ack(dst string, seq uint64) string {
	wire := n.builder.Ack(dst, seq)
	n.recordSent(protocol.MsgTypeAck)
	return wire
}

// Nack builds a rejection of seq for dst
func (n *Node) Nack(dst string, seq uint64, reason string) string {
	wire := n.builder.Nack(dst, seq, reason)
	n.recordSent(protocol.MsgTypeNack)
	return wire
}

func (n *Node) recordSent(t protocol.MessageType) {
	n.statsMu.Lock()
	n.sent++
	n.statsMu.Unlock()

	n.metrics.RecordBuilt(t.String())
}
