package lightpush

import (
	"context"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/wakuswarm/wakunode/pkg/pb"
	"github.com/wakuswarm/wakunode/pkg/relay"
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

// TestHandleRequestSuccess covers spec §4.5 steps 2-3: a publish that
// succeeds yields is_success=true.
func TestHandleRequestSuccess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ha := newTestHost(t)
	hb := newTestHost(t)
	connect(t, ctx, ha, hb)

	ra, err := relay.New(ctx, ha)
	if err != nil {
		t.Fatal(err)
	}
	rb, err := relay.New(ctx, hb)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ra.Subscribe(ctx, "T"); err != nil {
		t.Fatal(err)
	}
	if _, err := rb.Subscribe(ctx, "T"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)

	lp := &LightPush{Relay: ra}
	resp := lp.handleRequest(ctx, &pb.PushRequest{
		PubsubTopic: "T",
		Message:     &pb.Message{Payload: []byte("hi"), ContentTopic: "C"},
	})
	if !resp.IsSuccess {
		t.Fatalf("resp = %+v, want IsSuccess", resp)
	}
	if resp.Info != "" {
		t.Fatalf("resp.Info = %q, want empty on success", resp.Info)
	}
}

// TestHandleRequestFailure covers spec §4.5 step 3's failure branch: no
// mesh peers for the topic yields is_success=false with a textual reason.
func TestHandleRequestFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	h := newTestHost(t)

	r, err := relay.New(ctx, h)
	if err != nil {
		t.Fatal(err)
	}

	lp := &LightPush{Relay: r}
	resp := lp.handleRequest(ctx, &pb.PushRequest{
		PubsubTopic: "T",
		Message:     &pb.Message{Payload: []byte("hi"), ContentTopic: "C"},
	})
	if resp.IsSuccess {
		t.Fatal("resp.IsSuccess = true, want false with no mesh peers")
	}
	if resp.Info == "" {
		t.Fatal("resp.Info empty, want a textual reason")
	}
}

// TestFanOut covers spec scenario S6: a push on a LightPush server that
// embeds a Relay is observed as a Gossip event by a third, mesh-subscribed
// peer with an equal decoded Message.
func TestFanOut(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hb := newTestHost(t) // lightpush server
	hc := newTestHost(t) // mesh-subscribed observer
	connect(t, ctx, hb, hc)

	rb, err := relay.New(ctx, hb)
	if err != nil {
		t.Fatal(err)
	}
	rc, err := relay.New(ctx, hc)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := rb.Subscribe(ctx, "T"); err != nil {
		t.Fatal(err)
	}
	if _, err := rc.Subscribe(ctx, "T"); err != nil {
		t.Fatal(err)
	}
	time.Sleep(500 * time.Millisecond)

	lp := &LightPush{Relay: rb}
	want := waku.Message{Payload: []byte("fanout"), ContentTopic: "C"}
	resp := lp.handleRequest(ctx, &pb.PushRequest{
		PubsubTopic: "T",
		Message:     &pb.Message{Payload: want.Payload, ContentTopic: want.ContentTopic},
	})
	if !resp.IsSuccess {
		t.Fatalf("resp = %+v, want IsSuccess", resp)
	}

	codec := waku.NewCodec()
	select {
	case evt := <-rc.Events():
		got, err := codec.Decode(evt.Data)
		if err != nil {
			t.Fatal(err)
		}
		if string(got.Payload) != string(want.Payload) || got.ContentTopic != want.ContentTopic {
			t.Fatalf("observed message = %+v, want %+v", got, want)
		}
	case <-ctx.Done():
		t.Fatal("observer never saw a gossip event for the pushed message")
	}
}
