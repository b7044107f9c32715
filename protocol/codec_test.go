package protocol

import (
	"bytes"
	"chat-relay/errors"
	"encoding/binary"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func sample(t MessageType) Envelope {
	return Envelope{
		Type:      t,
		Sender:    "alice",
		Recipient: "bob",
		Content:   "hi ☕",
		Timestamp: time.Date(2024, 3, 1, 12, 30, 15, 123456789, time.UTC),
		ID:        -42,
	}
}

func TestEncodeDecode_Every_Type(t *testing.T) {
	for _, typ := range AllTypes() {
		t.Run(typ.String(), func(t *testing.T) {
			req := require.New(t)
			env := sample(typ)

			frame, err := Encode(env)
			req.NoError(err)

			got, err := Decode(frame)
			req.NoError(err)
			req.Equal(env, got)
		})
	}
}

func TestEncode_Prefix_Is_Body_Length(t *testing.T) {
	req := require.New(t)

	frame, err := Encode(sample(TypePrivateMessage))
	req.NoError(err)

	req.Equal(uint32(len(frame)-HeaderSize), binary.BigEndian.Uint32(frame[:HeaderSize]))
	req.Equal(Marshal(sample(TypePrivateMessage)), frame[HeaderSize:])
}

func TestMarshal_Empty_Strings_And_Zero_Values(t *testing.T) {
	req := require.New(t)

	// Given an envelope with nothing but a type
	env := Envelope{Type: TypeGetUsers}

	// Then it survives unchanged, zero time included
	got, err := Unmarshal(Marshal(env))
	req.NoError(err)
	req.Equal(env, got)
	req.True(got.Timestamp.IsZero())
}

func TestNewEnvelope_Timestamp_Round_Trips(t *testing.T) {
	req := require.New(t)
	env := NewEnvelope(TypeLogin)

	got, err := Unmarshal(Marshal(env))
	req.NoError(err)
	req.True(env.Timestamp.Equal(got.Timestamp))
	req.Equal(env, got)
}

func TestTimestamp_Round_Trips_At_Any_Instant(t *testing.T) {
	for name, at := range map[string]time.Time{
		"unix epoch":      time.Unix(0, 0).UTC(),
		"before epoch":    time.Date(1969, 12, 31, 23, 59, 59, 999999999, time.UTC),
		"before 1678":     time.Date(1200, 6, 1, 8, 0, 0, 42, time.UTC),
		"after 2262":      time.Date(3000, 1, 1, 0, 0, 0, 1, time.UTC),
		"first of year 1": time.Date(1, 1, 1, 0, 0, 0, 1, time.UTC),
	} {
		t.Run(name, func(t *testing.T) {
			req := require.New(t)
			env := Envelope{Type: TypePrivateMessage, Timestamp: at}

			got, err := Unmarshal(Marshal(env))
			req.NoError(err)
			req.Equal(env, got)
			req.False(got.Timestamp.IsZero())
		})
	}
}

func TestUnmarshal_Timestamp_Nanos_Out_Of_Range(t *testing.T) {
	req := require.New(t)
	ts := protowire.AppendTag(nil, fieldNanos, protowire.VarintType)
	ts = protowire.AppendVarint(ts, uint64(time.Second))

	body := protowire.AppendTag(nil, fieldType, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(TypeLogin))
	body = protowire.AppendTag(body, fieldTimestamp, protowire.BytesType)
	body = protowire.AppendBytes(body, ts)

	_, err := Unmarshal(body)
	req.ErrorIs(err, errors.ErrFraming)
}

func TestUnmarshal_Unknown_Type(t *testing.T) {
	req := require.New(t)

	// Given a body carrying type 22
	body := protowire.AppendTag(nil, fieldType, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(typeCount))

	_, err := Unmarshal(body)
	req.ErrorIs(err, errors.ErrFraming)
	req.Contains(err.Error(), "unknown message type")
}

func TestUnmarshal_Missing_Type(t *testing.T) {
	req := require.New(t)
	body := appendString(nil, fieldSender, "alice")

	_, err := Unmarshal(body)
	req.ErrorIs(err, errors.ErrFraming)
}

func TestUnmarshal_Invalid_UTF8(t *testing.T) {
	req := require.New(t)
	body := protowire.AppendTag(nil, fieldType, protowire.VarintType)
	body = protowire.AppendVarint(body, uint64(TypePrivateMessage))
	body = protowire.AppendTag(body, fieldContent, protowire.BytesType)
	body = protowire.AppendBytes(body, []byte{0xff, 0xfe})

	_, err := Unmarshal(body)
	req.ErrorIs(err, errors.ErrFraming)
}

func TestUnmarshal_Truncated_Body(t *testing.T) {
	req := require.New(t)
	body := Marshal(sample(TypeGroupMessage))

	_, err := Unmarshal(body[:len(body)-3])
	req.ErrorIs(err, errors.ErrFraming)
}

func TestUnmarshal_Skips_Unknown_Fields(t *testing.T) {
	req := require.New(t)
	env := sample(TypeSuccessMsg)
	body := Marshal(env)
	body = protowire.AppendTag(body, 99, protowire.BytesType)
	body = protowire.AppendString(body, "ignored")

	got, err := Unmarshal(body)
	req.NoError(err)
	req.Equal(env, got)
}

func TestDecode_Rejects_Bad_Lengths(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"short header", []byte{0, 0}},
		{"zero length", []byte{0, 0, 0, 0}},
		{"oversize", []byte{0xff, 0xff, 0xff, 0xff}},
		{"length mismatch", []byte{0, 0, 0, 9, 8, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.frame)
			require.ErrorIs(t, err, errors.ErrFraming)
		})
	}
}

func TestCodec_Encode_Above_Limit(t *testing.T) {
	req := require.New(t)
	codec := NewCodec(64)
	env := sample(TypePrivateMessage)
	env.Content = strings.Repeat("x", 100)

	_, err := codec.Encode(env)
	req.ErrorIs(err, errors.ErrFraming)
}

func TestReadFrame_Sequential(t *testing.T) {
	req := require.New(t)
	var stream bytes.Buffer
	first, second := sample(TypeLogin), sample(TypeLogout)
	for _, env := range []Envelope{first, second} {
		frame, err := Encode(env)
		req.NoError(err)
		stream.Write(frame)
	}

	got, err := ReadFrame(&stream)
	req.NoError(err)
	req.Equal(first, got)

	got, err = ReadFrame(&stream)
	req.NoError(err)
	req.Equal(second, got)

	_, err = ReadFrame(&stream)
	req.Error(err)
}

func TestMessageType_String(t *testing.T) {
	req := require.New(t)
	req.Equal("REGISTER", TypeRegister.String())
	req.Equal("SUCCESS_MSG", TypeSuccessMsg.String())
	req.Equal("MessageType(200)", MessageType(200).String())
	req.Len(AllTypes(), 22)
	req.Equal(MessageType(21), TypeSuccessMsg)
	req.Equal(MessageType(19), TypeKickMember)
}

func TestJoinSplitList(t *testing.T) {
	req := require.New(t)
	req.Equal("alice,bob", JoinList([]string{"alice", "bob"}))
	req.Equal("", JoinList(nil))
	req.Equal([]string{"alice", "bob"}, SplitList("alice,bob"))
	req.Nil(SplitList(""))
}
