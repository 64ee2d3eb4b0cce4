package protocol

import (
	"errors"
	"strconv"

	"github.com/masaar/masaar-node/pkg/node"
)

var (
	ErrUnknownType = errors.New("cannot encode message of unknown type")
)

// IdentitySource supplies the src stamped on built messages
type IdentitySource interface {
	ID() string
}

// Builder encodes outgoing messages on behalf of a node
type Builder struct {
	node IdentitySource
}

// NewBuilder creates a builder stamping messages with the identity of n
func NewBuilder(n IdentitySource) *Builder {
	return &Builder{node: n}
}

func (b *Builder) src() string {
	if b == nil || b.node == nil {
		return node.DefaultNodeID
	}
	return b.node.ID()
}

// Hello builds a HELLO announcing this node
func (b *Builder) Hello() string {
	return mustEncode(Message{Type: MsgTypeHello, Src: b.src(), Version: ProtocolVersion})
}

// Message builds an unsequenced DATA message (seq 0)
func (b *Builder) Message(payload, dst string) string {
	return b.Data(payload, dst, 0)
}

// Data builds a DATA message carrying seq
func (b *Builder) Data(payload, dst string, seq uint64) string {
	return mustEncode(Message{Type: MsgTypeData, Src: b.src(), Dst: dst, Payload: payload, Seq: seq})
}

// Ack builds an ACK for sequence seq sent by dst
func (b *Builder) Ack(dst string, seq uint64) string {
	return mustEncode(Message{Type: MsgTypeAck, Dst: dst, Seq: seq})
}

// Nack builds a NACK rejecting sequence seq sent by dst
func (b *Builder) Nack(dst string, seq uint64, reason string) string {
	return mustEncode(Message{Type: MsgTypeNack, Dst: dst, Seq: seq, Reason: reason})
}

// Encode encodes m with the field set of its type. Src is taken from m,
// not from a node identity.
func Encode(m Message) (string, error) {
	var w wireWriter

	switch m.Type {
	case MsgTypeHello:
		version := m.Version
		if version == "" {
			version = ProtocolVersion
		}
		w.str(KeyType, TagHello)
		w.str(KeySrc, m.Src)
		w.str(KeyVersion, version)
	case MsgTypeData:
		w.str(KeyType, TagData)
		w.str(KeySrc, m.Src)
		w.str(KeyDst, m.Dst)
		w.str(KeyPayload, m.Payload)
		w.uint(KeySeq, m.Seq)
	case MsgTypeAck:
		w.str(KeyType, TagAck)
		w.str(KeyDst, m.Dst)
		w.uint(KeySeq, m.Seq)
	case MsgTypeNack:
		w.str(KeyType, TagNack)
		w.str(KeyDst, m.Dst)
		w.uint(KeySeq, m.Seq)
		w.str(KeyReason, m.Reason)
	default:
		return "", ErrUnknownType
	}

	return w.String(), nil
}

// mustEncode encodes a message whose type is known to be encodable
func mustEncode(m Message) string {
	wire, _ := Encode(m)
	return wire
}

// wireWriter renders "key":value pairs in call order
type wireWriter struct {
	buf []byte
}

func (w *wireWriter) key(k string) {
	if len(w.buf) == 0 {
		w.buf = append(w.buf, '{')
	} else {
		w.buf = append(w.buf, ',')
	}
	w.buf = append(w.buf, '"')
	w.buf = append(w.buf, k...)
	w.buf = append(w.buf, '"', ':')
}

func (w *wireWriter) str(k, v string) {
	w.key(k)
	w.buf = appendQuoted(w.buf, v)
}

func (w *wireWriter) uint(k string, v uint64) {
	w.key(k)
	w.buf = strconv.AppendUint(w.buf, v, 10)
}

func (w *wireWriter) String() string {
	return string(append(w.buf, '}'))
}

const hexDigits = "0123456789abcdef"

// appendQuoted appends v as a quoted string. Only the quote, the backslash
// and control characters are escaped; every other byte is copied as is,
// including invalid UTF-8.
func appendQuoted(buf []byte, v string) []byte {
	buf = append(buf, '"')
	for i := 0; i < len(v); i++ {
		c := v[i]
		switch c {
		case '"', '\\':
			buf = append(buf, '\\', c)
		case '\n':
			buf = append(buf, '\\', 'n')
		case '\r':
			buf = append(buf, '\\', 'r')
		case '\t':
			buf = append(buf, '\\', 't')
		case '\b':
			buf = append(buf, '\\', 'b')
		case '\f':
			buf = append(buf, '\\', 'f')
		default:
			if c < 0x20 {
				buf = append(buf, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
			} else {
				buf = append(buf, c)
			}
		}
	}
	return append(buf, '"')
}
