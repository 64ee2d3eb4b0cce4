package protocol

// Protocol constants
const (
	// ProtocolVersion is advertised in HELLO messages
	ProtocolVersion = "1.0"

	// HelloMarker is the HELLO type tag as it appears inside wire text
	HelloMarker = `"type":"HELLO"`
)

// Wire type tags
const (
	TagHello = "HELLO"
	TagData  = "DATA"
	TagAck   = "ACK"
	TagNack  = "NACK"
)

// Field keys
const (
	KeyType    = "type"
	KeySrc     = "src"
	KeyDst     = "dst"
	KeyPayload = "payload"
	KeySeq     = "seq"
	KeyReason  = "reason"
	KeyVersion = "version"
)

// MessageType identifies the kind of a message
type MessageType uint8

// Message types
const (
	MsgTypeUnknown MessageType = iota // Present but unrecognized tag
	MsgTypeHello                      // Presence/discovery, control plane only
	MsgTypeData                       // Application payload
	MsgTypeAck                        // Sequence acknowledged
	MsgTypeNack                       // Sequence rejected
)

// String returns the wire tag of the type
func (t MessageType) String() string {
	switch t {
	case MsgTypeHello:
		return TagHello
	case MsgTypeData:
		return TagData
	case MsgTypeAck:
		return TagAck
	case MsgTypeNack:
		return TagNack
	default:
		return "UNKNOWN"
	}
}

// ParseMessageType maps a wire tag to its type. Unrecognized tags map to
// MsgTypeUnknown.
func ParseMessageType(tag string) MessageType {
	switch tag {
	case TagHello:
		return MsgTypeHello
	case TagData:
		return MsgTypeData
	case TagAck:
		return MsgTypeAck
	case TagNack:
		return MsgTypeNack
	default:
		return MsgTypeUnknown
	}
}

// FieldSet records which keys were found while decoding
type FieldSet uint8

// Field flags
const (
	FieldType FieldSet = 1 << iota
	FieldSrc
	FieldDst
	FieldPayload
	FieldSeq
	FieldReason
	FieldVersion
)

// Has reports whether every flag in field is set
func (f FieldSet) Has(field FieldSet) bool {
	return f&field == field
}
