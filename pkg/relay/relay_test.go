package relay

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/wakuswarm/wakunode/pkg/waku"
)

func newTestHost(t *testing.T) host.Host {
	t.Helper()
	h, err := libp2p.New(libp2p.ListenAddrStrings("/ip4/127.0.0.1/tcp/0"))
	if err != nil {
		t.Fatalf("new host: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

func connect(t *testing.T, ctx context.Context, a, b host.Host) {
	t.Helper()
	bInfo := peer.AddrInfo{ID: b.ID(), Addrs: b.Addrs()}
	if err := a.Connect(ctx, bInfo); err != nil {
		t.Fatalf("connect: %v", err)
	}
}

// TestSubscribePublishGossip covers spec invariant 4: subscribe+publish on
// a connected two-node mesh causes the peer's relay to emit a Gossip event
// with data byte-equal to encode(m).
func TestSubscribePublishGossip(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ha := newTestHost(t)
	hb := newTestHost(t)
	connect(t, ctx, ha, hb)

	ra, err := New(ctx, ha)
	if err != nil {
		t.Fatalf("new relay a: %v", err)
	}
	rb, err := New(ctx, hb)
	if err != nil {
		t.Fatalf("new relay b: %v", err)
	}

	const topic = "mytopic"
	if ok, err := ra.Subscribe(ctx, topic); err != nil || !ok {
		t.Fatalf("subscribe a: ok=%v err=%v", ok, err)
	}
	if ok, err := rb.Subscribe(ctx, topic); err != nil || !ok {
		t.Fatalf("subscribe b: ok=%v err=%v", ok, err)
	}

	// Let the mesh settle before publishing.
	time.Sleep(500 * time.Millisecond)

	msg := waku.Message{Payload: []byte("hi"), ContentTopic: "C", Timestamp: 1}
	codec := waku.NewCodec()
	wantData, err := codec.Encode(msg)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := ra.Publish(ctx, topic, msg); err != nil {
		t.Fatalf("publish: %v", err)
	}

	select {
	case evt := <-rb.Events():
		if string(evt.Data) != string(wantData) {
			t.Fatalf("gossip data mismatch: got %x want %x", evt.Data, wantData)
		}
		if evt.Topic != topic {
			t.Fatalf("gossip topic = %q, want %q", evt.Topic, topic)
		}
	case <-ctx.Done():
		t.Fatal("timed out waiting for gossip event")
	}
}

// TestSubscribeIdempotent covers spec §4.3's idempotent subscribe contract.
func TestSubscribeIdempotent(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := newTestHost(t)
	r, err := New(ctx, h)
	if err != nil {
		t.Fatal(err)
	}

	ok, err := r.Subscribe(ctx, "t")
	if err != nil || !ok {
		t.Fatalf("first subscribe: ok=%v err=%v", ok, err)
	}
	ok, err = r.Subscribe(ctx, "t")
	if err != nil || ok {
		t.Fatalf("second subscribe: ok=%v err=%v, want ok=false", ok, err)
	}
}

// TestPublishWithoutPeersFails covers the "no mesh peers" PublishError case.
func TestPublishWithoutPeersFails(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := newTestHost(t)
	r, err := New(ctx, h)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Subscribe(ctx, "lonely"); err != nil {
		t.Fatal(err)
	}
	_, err = r.Publish(ctx, "lonely", waku.Message{Payload: []byte("x"), ContentTopic: "C"})
	if err != ErrNoPeers {
		t.Fatalf("publish err = %v, want ErrNoPeers", err)
	}
}
