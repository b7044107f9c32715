package repositories

import (
	"chat-relay/domain"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Stored values are protobuf-wire records, written field by field.

type field struct {
	num    protowire.Number
	varint uint64
	bytes  []byte
}

func parseFields(b []byte) ([]field, error) {
	var out []field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, protowire.ParseError(n)
		}
		b = b[n:]

		f := field{num: num}
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			f.varint = v
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			f.bytes = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return nil, protowire.ParseError(n)
			}
			b = b[n:]
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendTime(b []byte, num protowire.Number, t time.Time) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(t.UnixNano()))
}

func decodeTime(v uint64) time.Time {
	return time.Unix(0, protowire.DecodeZigZag(v)).UTC()
}

// account: 1 credential, 2 online, 3 created_at
func marshalAccount(a domain.Account) []byte {
	b := appendString(nil, 1, a.Credential)
	b = protowire.AppendTag(b, 2, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeBool(a.Online))
	return appendTime(b, 3, a.CreatedAt)
}

func unmarshalAccount(username string, b []byte) (domain.Account, error) {
	fields, err := parseFields(b)
	if err != nil {
		return domain.Account{}, fmt.Errorf("decoding account %s: %w", username, err)
	}
	a := domain.Account{Username: username}
	for _, f := range fields {
		switch f.num {
		case 1:
			a.Credential = string(f.bytes)
		case 2:
			a.Online = protowire.DecodeBool(f.varint)
		case 3:
			a.CreatedAt = decodeTime(f.varint)
		}
	}
	return a, nil
}

// group: 1 admin, 2 created_at. Members live under their own keys.
func marshalGroup(g domain.Group) []byte {
	b := appendString(nil, 1, g.Admin)
	return appendTime(b, 2, g.CreatedAt)
}

func unmarshalGroup(name string, b []byte) (domain.Group, error) {
	fields, err := parseFields(b)
	if err != nil {
		return domain.Group{}, fmt.Errorf("decoding group %s: %w", name, err)
	}
	g := domain.Group{Name: name}
	for _, f := range fields {
		switch f.num {
		case 1:
			g.Admin = string(f.bytes)
		case 2:
			g.CreatedAt = decodeTime(f.varint)
		}
	}
	return g, nil
}

// record: 1 id, 2 sender, 3 target, 4 content, 5 timestamp
func marshalRecord(r domain.Record) []byte {
	b := appendBytes(nil, 1, r.ID[:])
	b = appendString(b, 2, r.Sender)
	b = appendString(b, 3, r.Target)
	b = appendString(b, 4, r.Content)
	return appendTime(b, 5, r.Timestamp)
}

func unmarshalRecord(b []byte) (domain.Record, error) {
	fields, err := parseFields(b)
	if err != nil {
		return domain.Record{}, fmt.Errorf("decoding record: %w", err)
	}
	var r domain.Record
	for _, f := range fields {
		switch f.num {
		case 1:
			id, err := uuid.FromBytes(f.bytes)
			if err != nil {
				return domain.Record{}, fmt.Errorf("decoding record id: %w", err)
			}
			r.ID = id
		case 2:
			r.Sender = string(f.bytes)
		case 3:
			r.Target = string(f.bytes)
		case 4:
			r.Content = string(f.bytes)
		case 5:
			r.Timestamp = decodeTime(f.varint)
		}
	}
	return r, nil
}
