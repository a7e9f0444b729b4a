// Package waku implements the message/index data model shared by the
// relay, store and lightpush engines.
package waku

import (
	"crypto/sha256"
	"time"

	"github.com/wakuswarm/wakunode/pkg/pb"
)

// DefaultPubsubTopic is the pubsub topic a node subscribes to when no
// explicit topic list is given, per spec §4.3.
const DefaultPubsubTopic = "/waku/2/default-waku/proto"

// MaxPayloadSize bounds Message.Payload, per spec §3/§6.
const MaxPayloadSize = 1 << 20 // 1 MiB

// Message is the application-defined payload moved between peers.
type Message struct {
	Payload      []byte
	ContentTopic string
	Version      uint32
	Timestamp    int64
}

// Index is the deterministic content identifier computed for a Message.
//
// PubsubTopic is populated from the Message's ContentTopic, not from the
// pubsub topic the message was actually published on — an inherited wire
// quirk (spec §3, §9), preserved here for wire compatibility. Cursor
// matching only ever consults Digest; the other fields exist to be echoed
// back unchanged in a response, per spec §4.6's design note.
type Index struct {
	Digest       []byte
	ReceiverTime int64
	SenderTime   int64
	PubsubTopic  string
}

// Equal reports whether two indices match on all four fields (spec §3).
func (idx Index) Equal(other Index) bool {
	return string(idx.Digest) == string(other.Digest) &&
		idx.ReceiverTime == other.ReceiverTime &&
		idx.SenderTime == other.SenderTime &&
		idx.PubsubTopic == other.PubsubTopic
}

// IndexedMessage is a Message paired with its Index and the pubsub topic it
// was actually observed on (distinct from Index.PubsubTopic, see above).
type IndexedMessage struct {
	Message     Message
	Index       Index
	PubsubTopic string
}

// Codec serialises Messages to/from protobuf wire bytes and computes their
// deterministic Index. Now defaults to time.Now but can be overridden in
// tests so receiver-time assignment is deterministic.
type Codec struct {
	Now func() time.Time
}

// NewCodec returns a Codec using the wall clock.
func NewCodec() *Codec {
	return &Codec{Now: time.Now}
}

func (c *Codec) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Encode serialises m into protobuf wire bytes.
func (c *Codec) Encode(m Message) ([]byte, error) {
	wire := &pb.Message{
		Payload:      m.Payload,
		ContentTopic: m.ContentTopic,
		Version:      m.Version,
		Timestamp:    m.Timestamp,
	}
	return wire.Marshal()
}

// Decode parses protobuf wire bytes into a Message.
func (c *Codec) Decode(data []byte) (Message, error) {
	wire := &pb.Message{}
	if err := wire.Unmarshal(data); err != nil {
		return Message{}, err
	}
	return Message{
		Payload:      wire.Payload,
		ContentTopic: wire.ContentTopic,
		Version:      wire.Version,
		Timestamp:    wire.Timestamp,
	}, nil
}

// ComputeIndex computes the deterministic Index for m. It is pure in
// (Payload, ContentTopic): two calls with equal values for those two
// fields always yield equal digests (spec §4.1, invariant 1).
func (c *Codec) ComputeIndex(m Message) Index {
	return Index{
		Digest:       Digest(m.Payload, m.ContentTopic),
		ReceiverTime: c.now().UnixNano(),
		SenderTime:   m.Timestamp,
		PubsubTopic:  m.ContentTopic,
	}
}

// Digest returns SHA-256(payload ‖ content_topic-as-UTF-8), the content
// identifier used throughout Index/MessageQueue/Store.
func Digest(payload []byte, contentTopic string) []byte {
	h := sha256.New()
	h.Write(payload)
	h.Write([]byte(contentTopic))
	sum := h.Sum(nil)
	return sum
}
