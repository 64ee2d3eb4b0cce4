package protocol

// ParseMessage decodes wire text. It never fails: absent or unparsable
// fields keep their zero value and only a missing type tag marks the
// result invalid.
func ParseMessage(wire string) ParsedMessage {
	var p ParsedMessage

	fields := []struct {
		key  string
		flag FieldSet
		dst  *string
	}{
		{KeyType, FieldType, &p.Tag},
		{KeySrc, FieldSrc, &p.Src},
		{KeyDst, FieldDst, &p.Dst},
		{KeyPayload, FieldPayload, &p.Payload},
		{KeyReason, FieldReason, &p.Reason},
		{KeyVersion, FieldVersion, &p.Version},
	}

	for _, f := range fields {
		if v, ok := stringField(wire, f.key); ok {
			*f.dst = v
			p.Fields |= f.flag
		}
	}

	if seq, ok := uintField(wire, KeySeq); ok {
		p.Seq = seq
		p.Fields |= FieldSeq
	}

	p.Type = ParseMessageType(p.Tag)
	p.Valid = p.Tag != ""

	return p
}
