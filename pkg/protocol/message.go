package protocol

// Message is the logical content of a wire record. Fields that the wire
// text did not carry hold their zero value.
type Message struct {
	Type    MessageType
	Src     string // Sender node ID (absent on ACK/NACK)
	Dst     string // Recipient node ID (absent on HELLO)
	Payload string // Application payload (DATA)
	Seq     uint64 // Per-sender sequence number, 0 when unsequenced
	Reason  string // Rejection reason (NACK)
	Version string // Protocol version (HELLO)
}

// ParsedMessage is the decoder output
type ParsedMessage struct {
	Message

	Tag    string   // Raw type tag as found on the wire
	Fields FieldSet // Keys that were present and parsable
	Valid  bool     // True iff a non-empty type tag was extracted
}

// Is reports whether the message is valid and of type t
func (p ParsedMessage) Is(t MessageType) bool {
	return p.Valid && p.Type == t
}

// Sequenced reports whether the message carries a non-zero sequence number
func (m Message) Sequenced() bool {
	return m.Seq > 0
}
