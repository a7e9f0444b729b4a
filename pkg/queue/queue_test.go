package queue

import (
	"testing"

	"github.com/wakuswarm/wakunode/pkg/waku"
)

func indexedFor(t *testing.T, codec *waku.Codec, payload string) waku.IndexedMessage {
	t.Helper()
	msg := waku.Message{Payload: []byte(payload), ContentTopic: "C"}
	idx := codec.ComputeIndex(msg)
	return waku.IndexedMessage{Message: msg, Index: idx, PubsubTopic: "T"}
}

// TestEviction covers spec scenario S2.
func TestEviction(t *testing.T) {
	codec := waku.NewCodec()
	q := New(3)

	for _, p := range []string{"1", "2", "3", "4"} {
		if err := q.Push(indexedFor(t, codec, p)); err != nil {
			t.Fatalf("push %q: %v", p, err)
		}
	}

	if q.Len() != 3 {
		t.Fatalf("len = %d, want 3", q.Len())
	}
	front, _ := q.Front()
	back, _ := q.Back()
	if string(front.Message.Payload) != "2" {
		t.Fatalf("front = %q, want 2", front.Message.Payload)
	}
	if string(back.Message.Payload) != "4" {
		t.Fatalf("back = %q, want 4", back.Message.Payload)
	}

	evictedDigest := waku.Digest([]byte("1"), "C")
	if q.HasDigest(evictedDigest) {
		t.Fatal("evicted digest should no longer be present")
	}
}

// TestDuplicateRejection covers spec scenario S3.
func TestDuplicateRejection(t *testing.T) {
	codec := waku.NewCodec()
	q := New(3)
	entry := indexedFor(t, codec, "1")

	if err := q.Push(entry); err != nil {
		t.Fatalf("first push: %v", err)
	}
	if err := q.Push(entry); err != ErrDuplicated {
		t.Fatalf("second push = %v, want ErrDuplicated", err)
	}
	if q.Len() != 1 {
		t.Fatalf("len = %d, want 1", q.Len())
	}
}

func TestIndexOfLastMatchWins(t *testing.T) {
	codec := waku.NewCodec()
	q := New(10)
	e := indexedFor(t, codec, "dup")
	if err := q.Push(e); err != nil {
		t.Fatal(err)
	}
	// Push rejects duplicate digests, so plant a second copy directly to
	// exercise IndexOf's tie-break.
	q.entries = append(q.entries, e)
	pos, ok := q.IndexOf(e.Index.Digest)
	if !ok || pos != 1 {
		t.Fatalf("IndexOf = %d,%v want 1,true", pos, ok)
	}
}

func TestEmptyQueueHasNoDigest(t *testing.T) {
	q := New(1)
	if q.HasDigest([]byte("anything")) {
		t.Fatal("empty queue should never report a digest present")
	}
	if _, ok := q.Front(); ok {
		t.Fatal("Front on empty queue should report ok=false")
	}
}
