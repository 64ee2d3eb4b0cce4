// Package protocol implements the masaar mesh message codec.
//
// The protocol package defines the message kinds exchanged between
// offline mesh nodes, the builders that encode them and the tolerant
// decoder that turns arbitrary incoming text back into a message.
//
// # Message Types
//
//   - HELLO: presence/discovery announcement, control plane only
//   - DATA: application payload for single-hop delivery
//   - ACK: acknowledges a sequence number
//   - NACK: rejects a sequence number with a reason
//
// Any other tag decodes to MsgTypeUnknown. Unknown tags are not decode
// errors; routing decides what to do with them.
//
// # Wire Format
//
// Every message is a flat single-line record of "key":value pairs:
//
//	HELLO  {"type":"HELLO","src":"N1","version":"1.0"}
//	DATA   {"type":"DATA","src":"N1","dst":"N2","payload":"hi","seq":0}
//	ACK    {"type":"ACK","dst":"N1","seq":5}
//	NACK   {"type":"NACK","dst":"N1","seq":5,"reason":"busy"}
//
// String values are quoted, integers are bare decimal digits. Field order
// is fixed per type. Quotes, backslashes and control bytes in string values
// are escaped, so a payload holding them does not corrupt the fields that
// follow it. All other bytes are copied as is, invalid UTF-8 included, and
// decode back unchanged. For payloads without escaped characters the output
// matches unescaped legacy builders byte for byte.
//
// Legacy text with a bare backslash is read as an escape: a legacy payload
// C:\new decodes with a newline after the colon.
//
// # Decoding
//
// ParseMessage never fails. Each key is located independently:
//   - a missing or unterminated string field decodes to ""
//   - a missing seq, or one with no leading digits, decodes to 0
//   - digits stop at the first non-digit; values beyond uint64 decode to 0
//   - only an empty or missing type tag makes the result invalid
//
// ParsedMessage.Fields records which keys were actually present so callers
// can tell a defaulted field from an explicit zero.
//
// # Usage Example
//
//	ident := node.NewIdentity("N1")
//	b := protocol.NewBuilder(ident)
//
//	wire := b.Data("hi there", "N2", 7)
//
//	msg := protocol.ParseMessage(wire)
//	if msg.Is(protocol.MsgTypeData) {
//	    fmt.Println(msg.Payload, msg.Seq)
//	}
//
// # Identity
//
// Builders read the node identifier through IdentitySource on every call;
// the decoder never consults it. A nil source stamps "unknown".
package protocol
