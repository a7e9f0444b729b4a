// Package pb holds the wire types for the Waku relay/store/lightpush RPCs.
//
// These are hand-written rather than protoc-generated, but they speak the
// same protobuf wire format: tag-prefixed fields, varint/length-delimited
// encoding via gogo/protobuf's proto.Buffer, the same primitive gogo emits
// for generated messages.
package pb

import (
	"errors"
	"io"

	"github.com/gogo/protobuf/proto"
)

const (
	wireVarint  = 0
	wireFixed64 = 1
	wireBytes   = 2
	wireFixed32 = 5
)

// ErrTruncated names a buffer that ends mid-field. The Unmarshal methods in
// this package do not return it; they pass on the error proto.Buffer
// reports for a truncated buffer.
var ErrTruncated = errors.New("pb: truncated message")

func tag(field int, wireType int) uint64 {
	return uint64(field)<<3 | uint64(wireType)
}

func writeVarintField(b *proto.Buffer, field int, v uint64) error {
	if err := b.EncodeVarint(tag(field, wireVarint)); err != nil {
		return err
	}
	return b.EncodeVarint(v)
}

func writeStringField(b *proto.Buffer, field int, s string) error {
	if s == "" {
		return nil
	}
	if err := b.EncodeVarint(tag(field, wireBytes)); err != nil {
		return err
	}
	return b.EncodeStringBytes(s)
}

func writeBytesField(b *proto.Buffer, field int, v []byte) error {
	if len(v) == 0 {
		return nil
	}
	if err := b.EncodeVarint(tag(field, wireBytes)); err != nil {
		return err
	}
	return b.EncodeRawBytes(v)
}

func writeMessageField(b *proto.Buffer, field int, m marshaler) error {
	if m == nil {
		return nil
	}
	raw, err := m.Marshal()
	if err != nil {
		return err
	}
	if len(raw) == 0 && !m.present() {
		return nil
	}
	return writeBytesField(b, field, raw)
}

func zigzagEncode(v int64) uint64 {
	return uint64(v<<1) ^ uint64(v>>63)
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}

// marshaler is implemented by every wire message in this package.
type marshaler interface {
	Marshal() ([]byte, error)
	// present reports whether the message is set (non-nil), distinguishing
	// "absent submessage" from "submessage of all zero values".
	present() bool
}

// fieldReader walks tag/value pairs out of a raw protobuf-encoded buffer.
type fieldReader struct {
	buf *proto.Buffer
}

func newFieldReader(data []byte) *fieldReader {
	return &fieldReader{buf: proto.NewBuffer(data)}
}

// next returns the next field number and wire type, or ok=false at EOF.
// proto.Buffer.Bytes returns the whole buffer rather than its unread part,
// so the end of the data is detected by the tag read running out of bytes;
// a tag cut short at the very end of the data also reads as EOF.
func (r *fieldReader) next() (field int, wireType int, ok bool, err error) {
	if len(r.buf.Bytes()) == 0 {
		return 0, 0, false, nil
	}
	key, err := r.buf.DecodeVarint()
	if err == io.ErrUnexpectedEOF {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	return int(key >> 3), int(key & 0x7), true, nil
}

func (r *fieldReader) skip(wireType int) error {
	switch wireType {
	case wireVarint:
		_, err := r.buf.DecodeVarint()
		return err
	case wireBytes:
		_, err := r.buf.DecodeRawBytes(false)
		return err
	case wireFixed64:
		_, err := r.buf.DecodeFixed64()
		return err
	case wireFixed32:
		_, err := r.buf.DecodeFixed32()
		return err
	default:
		return errors.New("pb: unknown wire type")
	}
}
