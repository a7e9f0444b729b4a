// Package queue implements the bounded, duplicate-suppressing,
// insertion-ordered message history used by the store engine (spec §4.2).
package queue

import (
	"errors"

	"github.com/wakuswarm/wakunode/pkg/waku"
)

// DefaultCapacity is the default MessageQueue bound (spec §3/§6).
const DefaultCapacity = 50000

// ErrDuplicated is returned by Push when the entry's digest is already
// present in the queue.
var ErrDuplicated = errors.New("queue: message already present")

// MessageQueue is a bounded, insertion-ordered ring of IndexedMessage with
// O(1) duplicate detection via an auxiliary digest set. It is owned
// exclusively by its enclosing Store and is not safe for concurrent use.
// The Store pushes to it from its own ingest goroutine and queries it from
// stream handlers, serialising both with the Store's mutex; it is not
// confined to the node's event-loop goroutine.
type MessageQueue struct {
	capacity int
	entries  []waku.IndexedMessage
	digests  map[string]struct{}
}

// New returns an empty MessageQueue with the given capacity. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) *MessageQueue {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MessageQueue{
		capacity: capacity,
		entries:  make([]waku.IndexedMessage, 0, capacity),
		digests:  make(map[string]struct{}, capacity),
	}
}

// Push appends indexed to the queue. It returns ErrDuplicated without
// mutating the queue when the digest is already present; otherwise, if the
// queue is at capacity, the oldest entry is evicted before the new one is
// appended (spec §4.2).
func (q *MessageQueue) Push(indexed waku.IndexedMessage) error {
	key := string(indexed.Index.Digest)
	if _, ok := q.digests[key]; ok {
		return ErrDuplicated
	}

	if len(q.entries) >= q.capacity {
		evicted := q.entries[0]
		delete(q.digests, string(evicted.Index.Digest))
		q.entries = append(q.entries[:0], q.entries[1:]...)
	}

	q.entries = append(q.entries, indexed)
	q.digests[key] = struct{}{}
	return nil
}

// Len returns the number of entries currently queued.
func (q *MessageQueue) Len() int {
	return len(q.entries)
}

// HasDigest reports whether digest identifies a currently queued entry.
func (q *MessageQueue) HasDigest(digest []byte) bool {
	_, ok := q.digests[string(digest)]
	return ok
}

// Get returns the entry at position i, where 0 is the oldest.
func (q *MessageQueue) Get(i int) (waku.IndexedMessage, bool) {
	if i < 0 || i >= len(q.entries) {
		return waku.IndexedMessage{}, false
	}
	return q.entries[i], true
}

// Front returns the oldest entry, if any.
func (q *MessageQueue) Front() (waku.IndexedMessage, bool) {
	return q.Get(0)
}

// Back returns the newest entry, if any.
func (q *MessageQueue) Back() (waku.IndexedMessage, bool) {
	return q.Get(len(q.entries) - 1)
}

// IndexOf returns the position of the entry whose digest matches, scanning
// oldest-to-newest; if multiple entries share a digest the last one scanned
// wins, per spec §4.6 step 3. Digest equality is the only criterion
// consulted for cursor matching (spec §3, §9).
func (q *MessageQueue) IndexOf(digest []byte) (int, bool) {
	pos, found := -1, false
	key := string(digest)
	for i, e := range q.entries {
		if string(e.Index.Digest) == key {
			pos, found = i, true
		}
	}
	return pos, found
}

// Iter calls fn for each entry oldest-to-newest, stopping early if fn
// returns false.
func (q *MessageQueue) Iter(fn func(waku.IndexedMessage) bool) {
	for _, e := range q.entries {
		if !fn(e) {
			return
		}
	}
}
