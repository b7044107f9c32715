package protocol

import (
	"chat-relay/errors"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	HeaderSize          = 4
	DefaultMaxFrameSize = 1 << 20 // 1 MiB body limit
)

// Codec frames Envelopes with a bounded body size.
type Codec struct {
	MaxFrameSize uint32
}

// DefaultCodec uses DefaultMaxFrameSize.
var DefaultCodec = NewCodec(DefaultMaxFrameSize)

// NewCodec returns a Codec; a zero limit falls back to DefaultMaxFrameSize.
func NewCodec(maxFrameSize uint32) Codec {
	if maxFrameSize == 0 {
		maxFrameSize = DefaultMaxFrameSize
	}
	return Codec{MaxFrameSize: maxFrameSize}
}

// Encode serialises e into a complete frame.
func (c Codec) Encode(e Envelope) ([]byte, error) {
	body := Marshal(e)
	if err := c.checkSize(uint64(len(body))); err != nil {
		return nil, err
	}
	out := make([]byte, HeaderSize+len(body))
	binary.BigEndian.PutUint32(out[:HeaderSize], uint32(len(body)))
	copy(out[HeaderSize:], body)
	return out, nil
}

// Decode parses exactly one complete frame.
func (c Codec) Decode(frame []byte) (Envelope, error) {
	if len(frame) < HeaderSize {
		return Envelope{}, fmt.Errorf("%w: short frame of %d bytes", errors.ErrFraming, len(frame))
	}
	size := binary.BigEndian.Uint32(frame[:HeaderSize])
	if err := c.checkSize(uint64(size)); err != nil {
		return Envelope{}, err
	}
	if len(frame)-HeaderSize != int(size) {
		return Envelope{}, fmt.Errorf("%w: declared %d body bytes, got %d",
			errors.ErrFraming, size, len(frame)-HeaderSize)
	}
	return Unmarshal(frame[HeaderSize:])
}

// ReadFrame blocks until one whole frame has been read from r.
func (c Codec) ReadFrame(r io.Reader) (Envelope, error) {
	var hdr [HeaderSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return Envelope{}, err
	}
	size := binary.BigEndian.Uint32(hdr[:])
	if err := c.checkSize(uint64(size)); err != nil {
		return Envelope{}, err
	}
	body := make([]byte, size)
	if _, err := io.ReadFull(r, body); err != nil {
		return Envelope{}, err
	}
	return Unmarshal(body)
}

// NewAssembler returns an Assembler bounded by the codec limit.
func (c Codec) NewAssembler() *Assembler {
	return &Assembler{codec: c, expected: -1}
}

func (c Codec) checkSize(size uint64) error {
	if size == 0 {
		return fmt.Errorf("%w: empty frame", errors.ErrFraming)
	}
	if size > uint64(c.MaxFrameSize) {
		return fmt.Errorf("%w: frame of %d bytes exceeds limit of %d",
			errors.ErrFraming, size, c.MaxFrameSize)
	}
	return nil
}

// Encode frames e with DefaultCodec.
func Encode(e Envelope) ([]byte, error) { return DefaultCodec.Encode(e) }

// Decode parses a frame with DefaultCodec.
func Decode(frame []byte) (Envelope, error) { return DefaultCodec.Decode(frame) }

// ReadFrame reads one frame with DefaultCodec.
func ReadFrame(r io.Reader) (Envelope, error) { return DefaultCodec.ReadFrame(r) }

// Assembler reassembles frames from arbitrarily fragmented stream chunks.
// It keeps the partially read length prefix, the expected body length once
// known, and the body bytes accumulated so far. It is not safe for concurrent use.
type Assembler struct {
	codec    Codec
	header   [HeaderSize]byte
	headerN  int
	expected int // -1 while the length prefix is incomplete
	body     []byte
}

// Feed consumes chunk and returns every Envelope it completed, in order.
// After an error the Assembler must be discarded.
func (a *Assembler) Feed(chunk []byte) ([]Envelope, error) {
	var out []Envelope
	for len(chunk) > 0 {
		if a.expected < 0 {
			n := copy(a.header[a.headerN:], chunk)
			a.headerN += n
			chunk = chunk[n:]
			if a.headerN < HeaderSize {
				break
			}
			size := binary.BigEndian.Uint32(a.header[:])
			if err := a.codec.checkSize(uint64(size)); err != nil {
				return out, err
			}
			a.expected = int(size)
			a.body = make([]byte, 0, size)
		}

		n := min(a.expected-len(a.body), len(chunk))
		a.body = append(a.body, chunk[:n]...)
		chunk = chunk[n:]
		if len(a.body) < a.expected {
			break
		}

		e, err := Unmarshal(a.body)
		if err != nil {
			return out, err
		}
		out = append(out, e)
		a.reset()
	}
	return out, nil
}

// Pending reports whether a partial frame is buffered.
func (a *Assembler) Pending() bool {
	return a.headerN > 0
}

func (a *Assembler) reset() {
	a.headerN = 0
	a.expected = -1
	a.body = nil
}
