// Package rpcio implements the length-prefixed protobuf request/response
// framing shared by the store and lightpush engines (spec §4.4).
//
// Each concrete protocol opens a fresh stream per request and exchanges
// exactly one varint-length-prefixed protobuf frame in each direction.
// The framing primitive mirrors github.com/gogo/protobuf/io's delimited
// reader/writer (the same package the teacher's own test file imports as
// ggio) but is hand-rolled here against plain io.Reader/io.Writer so the
// hand-written pb types in pkg/pb don't need to satisfy gogo's full
// proto.Message interface just to be framed.
package rpcio

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/gogo/protobuf/proto"
)

// FramingError indicates a malformed or oversized length-prefixed frame.
type FramingError struct {
	Err error
}

func (e *FramingError) Error() string { return fmt.Sprintf("rpcio: framing error: %v", e.Err) }
func (e *FramingError) Unwrap() error { return e.Err }

// DecodeError indicates a protobuf (un)marshalling failure: a frame was
// read successfully but failed to unmarshal, or a message failed to
// marshal before being written.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string { return fmt.Sprintf("rpcio: decode error: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// ErrFrameTooLarge is wrapped by FramingError when a declared frame length
// exceeds the protocol's configured maximum.
var ErrFrameTooLarge = errors.New("rpcio: frame exceeds maximum size")

// Marshaler is implemented by every wire message passed through this
// package (satisfied by every type in pkg/pb).
type Marshaler interface {
	Marshal() ([]byte, error)
}

// Unmarshaler is implemented by every wire message passed through this
// package (satisfied by every type in pkg/pb).
type Unmarshaler interface {
	Unmarshal([]byte) error
}

// WriteDelimited writes msg to w as one varint-length-prefixed protobuf
// frame.
func WriteDelimited(w io.Writer, msg Marshaler) error {
	data, err := msg.Marshal()
	if err != nil {
		return &DecodeError{Err: err}
	}
	buf := proto.NewBuffer(nil)
	if err := buf.EncodeVarint(uint64(len(data))); err != nil {
		return &FramingError{Err: err}
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return &FramingError{Err: err}
	}
	if _, err := w.Write(data); err != nil {
		return &FramingError{Err: err}
	}
	return nil
}

// ReadDelimited reads one varint-length-prefixed protobuf frame from r and
// unmarshals it into msg. maxSize bounds the accepted frame length.
func ReadDelimited(r io.Reader, maxSize int, msg Unmarshaler) error {
	br, ok := r.(byteReader)
	if !ok {
		br = bufio.NewReader(r)
	}

	length, err := readUvarint(br)
	if err != nil {
		return &FramingError{Err: err}
	}
	if length > uint64(maxSize) {
		return &FramingError{Err: ErrFrameTooLarge}
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(br, data); err != nil {
		return &FramingError{Err: err}
	}

	if err := msg.Unmarshal(data); err != nil {
		return &DecodeError{Err: err}
	}
	return nil
}

type byteReader interface {
	io.Reader
	io.ByteReader
}

func readUvarint(r io.ByteReader) (uint64, error) {
	var x uint64
	var s uint
	for i := 0; i < 10; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		if b < 0x80 {
			return x | uint64(b)<<s, nil
		}
		x |= uint64(b&0x7f) << s
		s += 7
	}
	return 0, errors.New("rpcio: varint too long")
}
