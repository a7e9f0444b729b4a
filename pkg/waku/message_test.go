package waku

import (
	"bytes"
	"crypto/sha256"
	"testing"
	"time"
)

// TestIndexDeterminism covers spec scenario S1.
func TestIndexDeterminism(t *testing.T) {
	fixedNow := time.Unix(0, 555)
	codec := &Codec{Now: func() time.Time { return fixedNow }}

	msg := Message{
		Payload:      []byte("test_payload"),
		ContentTopic: "/waku/2/default-waku/proto",
		Timestamp:    1234,
	}
	idx := codec.ComputeIndex(msg)

	want := sha256.Sum256(append([]byte("test_payload"), []byte("/waku/2/default-waku/proto")...))
	if !bytes.Equal(idx.Digest, want[:]) {
		t.Fatalf("digest mismatch: got %x want %x", idx.Digest, want)
	}
	if idx.SenderTime != 1234 {
		t.Fatalf("sender_time = %d, want 1234", idx.SenderTime)
	}
	if idx.PubsubTopic != msg.ContentTopic {
		t.Fatalf("pubsub_topic = %q, want %q", idx.PubsubTopic, msg.ContentTopic)
	}
	if idx.ReceiverTime != fixedNow.UnixNano() {
		t.Fatalf("receiver_time = %d, want %d", idx.ReceiverTime, fixedNow.UnixNano())
	}
}

// TestComputeIndexPure covers invariant 1: identical (payload, content_topic)
// always yields an identical digest, regardless of timestamp.
func TestComputeIndexPure(t *testing.T) {
	codec := NewCodec()
	a := codec.ComputeIndex(Message{Payload: []byte("x"), ContentTopic: "c", Timestamp: 1})
	b := codec.ComputeIndex(Message{Payload: []byte("x"), ContentTopic: "c", Timestamp: 2})
	if !bytes.Equal(a.Digest, b.Digest) {
		t.Fatal("expected equal digests for equal (payload, content_topic)")
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := NewCodec()
	msg := Message{Payload: []byte("hello"), ContentTopic: "/a/b", Version: 3, Timestamp: -99}
	raw, err := codec.Encode(msg)
	if err != nil {
		t.Fatal(err)
	}
	out, err := codec.Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out.Payload, msg.Payload) || out.ContentTopic != msg.ContentTopic ||
		out.Version != msg.Version || out.Timestamp != msg.Timestamp {
		t.Fatalf("round trip mismatch: got %+v want %+v", out, msg)
	}
}
