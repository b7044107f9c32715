package protocol

import (
	"chat-relay/errors"
	"fmt"
	"time"
	"unicode/utf8"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	fieldType protowire.Number = iota + 1
	fieldSender
	fieldRecipient
	fieldContent
	fieldTimestamp
	fieldID
)

// Timestamp body, laid out like google.protobuf.Timestamp.
const (
	fieldSeconds protowire.Number = iota + 1
	fieldNanos
)

// Marshal serialises the Envelope body (without the length prefix).
func Marshal(e Envelope) []byte {
	b := make([]byte, 0, 32+len(e.Sender)+len(e.Recipient)+len(e.Content))
	b = protowire.AppendTag(b, fieldType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(e.Type))
	b = appendString(b, fieldSender, e.Sender)
	b = appendString(b, fieldRecipient, e.Recipient)
	b = appendString(b, fieldContent, e.Content)
	if !e.Timestamp.IsZero() {
		b = protowire.AppendTag(b, fieldTimestamp, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalTimestamp(e.Timestamp))
	}
	b = protowire.AppendTag(b, fieldID, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(e.ID))
	return b
}

// Unmarshal parses an Envelope body produced by Marshal.
// Unknown fields are skipped; a missing or unknown type is rejected.
func Unmarshal(b []byte) (Envelope, error) {
	var (
		e        Envelope
		seenType bool
	)
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Envelope{}, malformed(protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldType && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Envelope{}, malformed(protowire.ParseError(n))
			}
			if v >= uint64(typeCount) {
				return Envelope{}, fmt.Errorf("%w: unknown message type %d", errors.ErrFraming, v)
			}
			e.Type = MessageType(v)
			seenType = true
			b = b[n:]

		case isStringField(num) && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Envelope{}, malformed(protowire.ParseError(n))
			}
			if !utf8.Valid(v) {
				return Envelope{}, fmt.Errorf("%w: field %d is not valid UTF-8", errors.ErrFraming, num)
			}
			setString(&e, num, string(v))
			b = b[n:]

		case num == fieldTimestamp && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return Envelope{}, malformed(protowire.ParseError(n))
			}
			ts, err := unmarshalTimestamp(v)
			if err != nil {
				return Envelope{}, err
			}
			e.Timestamp = ts
			b = b[n:]

		case num == fieldID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return Envelope{}, malformed(protowire.ParseError(n))
			}
			e.ID = protowire.DecodeZigZag(v)
			b = b[n:]

		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return Envelope{}, malformed(protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	if !seenType {
		return Envelope{}, fmt.Errorf("%w: missing message type", errors.ErrFraming)
	}
	return e, nil
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func isStringField(num protowire.Number) bool {
	return num == fieldSender || num == fieldRecipient || num == fieldContent
}

func setString(e *Envelope, num protowire.Number, v string) {
	switch num {
	case fieldSender:
		e.Sender = v
	case fieldRecipient:
		e.Recipient = v
	case fieldContent:
		e.Content = v
	}
}

// marshalTimestamp writes whole seconds and nanoseconds as separate fields.
// An absent field 5 is the zero time.
func marshalTimestamp(t time.Time) []byte {
	b := protowire.AppendTag(nil, fieldSeconds, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(t.Unix()))
	b = protowire.AppendTag(b, fieldNanos, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(t.Nanosecond()))
}

func unmarshalTimestamp(b []byte) (time.Time, error) {
	var seconds, nanos int64
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return time.Time{}, malformed(protowire.ParseError(n))
		}
		b = b[n:]
		if typ != protowire.VarintType || (num != fieldSeconds && num != fieldNanos) {
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return time.Time{}, malformed(protowire.ParseError(n))
			}
			b = b[n:]
			continue
		}
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return time.Time{}, malformed(protowire.ParseError(n))
		}
		if num == fieldSeconds {
			seconds = int64(v)
		} else {
			nanos = int64(v)
		}
		b = b[n:]
	}
	if nanos < 0 || nanos >= int64(time.Second) {
		return time.Time{}, fmt.Errorf("%w: timestamp nanos %d out of range", errors.ErrFraming, nanos)
	}
	return time.Unix(seconds, nanos).UTC(), nil
}

func malformed(err error) error {
	return fmt.Errorf("%w: malformed body: %v", errors.ErrFraming, err)
}
