package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p"
	"github.com/libp2p/go-libp2p/core/host"

	"github.com/wakuswarm/wakunode/pkg/node"
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

func newTestServer(t *testing.T, ctx context.Context) *Server {
	t.Helper()
	h := newTestHost(t)
	n, err := node.New(ctx, h, node.Config{Relay: true, Topics: []string{"T"}})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	t.Cleanup(n.Close)
	s := New(ctx, n)
	t.Cleanup(s.Close)
	return s
}

// TestPostThenGetMessages covers spec §6's relay POST/GET round trip and
// the destructive-read drain contract.
func TestPostThenGetMessages(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s := newTestServer(t, ctx)

	body, _ := json.Marshal(wireMessage{Payload: "hi", ContentTopic: "C"})
	req := httptest.NewRequest(http.MethodPost, "/relay/v1/messages/T", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	// No mesh peers are connected, so the publish fails; this still
	// exercises the request/response wiring end to end.
	if rr.Code != http.StatusInternalServerError && rr.Code != http.StatusOK {
		t.Fatalf("post status = %d", rr.Code)
	}

	getReq := httptest.NewRequest(http.MethodGet, "/relay/v1/messages/T", nil)
	getRR := httptest.NewRecorder()
	s.Handler().ServeHTTP(getRR, getReq)
	if getRR.Code != http.StatusOK {
		t.Fatalf("get status = %d", getRR.Code)
	}

	var got []wireMessage
	if err := json.Unmarshal(getRR.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("messages = %+v, want empty (no gossip was ever observed, only published outward)", got)
	}
}

// TestGetDrainsInboxOnce covers the destructive-read contract directly
// against the inbox, independent of gossip delivery timing.
func TestGetDrainsInboxOnce(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s := newTestServer(t, ctx)

	s.mu.Lock()
	s.inbox["T"] = append(s.inbox["T"], mustMessage("a"), mustMessage("b"))
	s.mu.Unlock()

	req := httptest.NewRequest(http.MethodGet, "/relay/v1/messages/T", nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	var first []wireMessage
	if err := json.Unmarshal(rr.Body.Bytes(), &first); err != nil {
		t.Fatal(err)
	}
	if len(first) != 2 {
		t.Fatalf("first drain = %+v, want 2 messages", first)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/relay/v1/messages/T", nil)
	rr2 := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr2, req2)

	var second []wireMessage
	if err := json.Unmarshal(rr2.Body.Bytes(), &second); err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Fatalf("second drain = %+v, want empty (reads are destructive)", second)
	}
}

// TestSubscribeAndUnsubscribe covers spec §6's subscription endpoints.
func TestSubscribeAndUnsubscribe(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s := newTestServer(t, ctx)

	body, _ := json.Marshal(subscriptionBody{Topics: []string{"extra"}})
	req := httptest.NewRequest(http.MethodPost, "/relay/v1/subscriptions", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("post subscriptions status = %d, body = %s", rr.Code, rr.Body.String())
	}

	delReq := httptest.NewRequest(http.MethodDelete, "/relay/v1/subscriptions", bytes.NewReader(body))
	delRR := httptest.NewRecorder()
	s.Handler().ServeHTTP(delRR, delReq)
	if delRR.Code != http.StatusOK {
		t.Fatalf("delete subscriptions status = %d, body = %s", delRR.Code, delRR.Body.String())
	}
}

func mustMessage(payload string) waku.Message {
	return waku.Message{Payload: []byte(payload), ContentTopic: "C"}
}
