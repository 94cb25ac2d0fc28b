package protocol

import (
	"encoding/binary"
	"fmt"
)

// Builder assembles one message. Fields are appended in call order and the
// header length is filled in by Bytes.
type Builder struct {
	buf []byte
}

// NewBuilder starts a message of the given type.
//
// Parameters:
//   - t: The message type written into the header
//
// Returns:
//   - A Builder with the header reserved
func NewBuilder(t MsgType) *Builder {
	b := &Builder{buf: make([]byte, HeaderLen, HeaderLen+32)}
	binary.BigEndian.PutUint32(b.buf[0:4], uint32(t))
	return b
}

// Int appends a 4-byte big-endian signed integer.
func (b *Builder) Int(v int32) *Builder {
	b.buf = binary.BigEndian.AppendUint32(b.buf, uint32(v))
	return b
}

// Bool appends 1 for true and 0 for false.
func (b *Builder) Bool(v bool) *Builder {
	if v {
		return b.Int(1)
	}

	return b.Int(0)
}

// String appends a uint32 byte length followed by the string bytes.
func (b *Builder) String(s string) *Builder {
	b.buf = binary.BigEndian.AppendUint32(b.buf, uint32(len(s)))
	b.buf = append(b.buf, s...)
	return b
}

// Ints appends an element count followed by every element.
func (b *Builder) Ints(vs []int32) *Builder {
	b.Int(int32(len(vs)))
	for _, v := range vs {
		b.Int(v)
	}

	return b
}

// Bytes finalises the header length and returns the encoded message.
func (b *Builder) Bytes() []byte {
	binary.BigEndian.PutUint32(b.buf[4:8], uint32(len(b.buf)-HeaderLen))
	return b.buf
}

// Encode builds a message from a field list. Supported field types are
// int, int32, bool, string, []int and []int32.
//
// Parameters:
//   - t: The message type
//   - fields: Field values in declared order
//
// Returns:
//   - The encoded message, or an error naming the first unsupported field
func Encode(t MsgType, fields ...any) ([]byte, error) {
	b := NewBuilder(t)
	for i, f := range fields {
		switch v := f.(type) {
		case int:
			b.Int(int32(v))
		case int32:
			b.Int(v)
		case bool:
			b.Bool(v)
		case string:
			b.String(v)
		case []int32:
			b.Ints(v)
		case []int:
			b.Ints(toInt32s(v))
		default:
			return nil, fmt.Errorf("encode %s: unsupported field %d of type %T", t, i, f)
		}
	}

	return b.Bytes(), nil
}

// Decode extracts the first complete message from buf. When buf does not
// yet hold a complete message it returns consumed == 0 and a nil error; no
// bytes are interpreted beyond the header in that case.
//
// Parameters:
//   - buf: Buffered bytes, starting at a message boundary
//   - max: Largest payload length accepted
//
// Returns:
//   - The decoded message (its payload aliases buf)
//   - The number of bytes consumed from buf
//   - A *ProtocolError for an unknown type or oversized length
func Decode(buf []byte, max uint32) (Message, int, error) {
	if len(buf) < HeaderLen {
		return Message{}, 0, nil
	}

	t := MsgType(binary.BigEndian.Uint32(buf[0:4]))
	length := binary.BigEndian.Uint32(buf[4:8])

	if !t.Known() {
		return Message{}, 0, &ProtocolError{Kind: UnknownType, Type: t}
	}

	if length > max {
		return Message{}, 0, &ProtocolError{
			Kind:   Oversized,
			Type:   t,
			Detail: fmt.Sprintf("declared %d bytes, limit %d", length, max),
		}
	}

	total := HeaderLen + int(length)
	if len(buf) < total {
		return Message{}, 0, nil
	}

	return Message{Type: t, Payload: buf[HeaderLen:total:total]}, total, nil
}

// Reader decodes payload fields in declared order. The first failure is
// sticky: later reads return zero values and Finish reports it.
type Reader struct {
	t   MsgType
	buf []byte
	err error
}

// NewReader returns a Reader over the message payload.
func NewReader(m Message) *Reader {
	return &Reader{t: m.Type, buf: m.Payload}
}

func (r *Reader) fail(detail string) {
	if r.err == nil {
		r.err = &ProtocolError{Kind: Malformed, Type: r.t, Detail: detail}
	}
}

// Int reads a 4-byte big-endian signed integer.
func (r *Reader) Int() int32 {
	if r.err != nil {
		return 0
	}

	if len(r.buf) < 4 {
		r.fail("short integer")
		return 0
	}

	v := int32(binary.BigEndian.Uint32(r.buf))
	r.buf = r.buf[4:]
	return v
}

// Bool reads an integer and reports whether it is non-zero.
func (r *Reader) Bool() bool {
	return r.Int() != 0
}

// String reads a length-prefixed string.
func (r *Reader) String() string {
	if r.err != nil {
		return ""
	}

	if len(r.buf) < 4 {
		r.fail("short string length")
		return ""
	}

	n := binary.BigEndian.Uint32(r.buf)
	if uint64(n) > uint64(len(r.buf)-4) {
		r.fail(fmt.Sprintf("string of %d bytes overruns payload", n))
		return ""
	}

	s := string(r.buf[4 : 4+n])
	r.buf = r.buf[4+n:]
	return s
}

// Ints reads a counted integer list. An empty list decodes as nil.
func (r *Reader) Ints() []int32 {
	n := r.Int()
	if r.err != nil {
		return nil
	}

	if n < 0 || int64(n)*4 > int64(len(r.buf)) {
		r.fail(fmt.Sprintf("list of %d integers overruns payload", n))
		return nil
	}

	if n == 0 {
		return nil
	}

	vs := make([]int32, n)
	for i := range vs {
		vs[i] = r.Int()
	}

	return vs
}

// Finish reports the first decode failure, or a Malformed error when
// payload bytes remain unread.
func (r *Reader) Finish() error {
	if r.err == nil && len(r.buf) > 0 {
		r.fail(fmt.Sprintf("%d trailing bytes", len(r.buf)))
	}

	return r.err
}

func toInt32s(vs []int) []int32 {
	if len(vs) == 0 {
		return nil
	}

	out := make([]int32, len(vs))
	for i, v := range vs {
		out[i] = int32(v)
	}

	return out
}
