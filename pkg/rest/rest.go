// Package rest implements the node's local HTTP facade (spec §4.8): the
// only point where messages cross the process boundary in user-readable
// JSON form.
package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	logging "github.com/ipfs/go-log"

	"github.com/wakuswarm/wakunode/pkg/node"
	"github.com/wakuswarm/wakunode/pkg/waku"
)

var log = logging.Logger("rest")

// ListenAddr is the REST facade's fixed local listen address, spec §4.8.
const ListenAddr = "127.0.0.1:5000"

// maxBodySize bounds a request body, spec §6.
const maxBodySize = 16 << 10

// wireMessage is the REST JSON shape of a Message, spec §6: payload
// travels as UTF-8 text, rewrapped into the binary payload field.
type wireMessage struct {
	Payload      string `json:"payload"`
	ContentTopic string `json:"contentTopic"`
	Version      uint32 `json:"version"`
	Timestamp    int64  `json:"timestamp"`
}

func toWire(m waku.Message) wireMessage {
	return wireMessage{
		Payload:      string(m.Payload),
		ContentTopic: m.ContentTopic,
		Version:      m.Version,
		Timestamp:    m.Timestamp,
	}
}

type subscriptionBody struct {
	Topics []string `json:"topics"`
}

// Server serves the REST facade over a Node. It maintains a per-topic
// inbox populated from the Node's lifted Gossip events and drained
// destructively by GET requests (spec §4.8, §5). The inbox has no size
// bound; messages accumulate until a GET drains their topic.
type Server struct {
	n     *node.Node
	codec *waku.Codec

	mu    sync.Mutex
	inbox map[string][]waku.Message

	done chan struct{}
}

// New constructs a Server over n and starts lifting Gossip events into
// the per-topic inbox until ctx is cancelled.
func New(ctx context.Context, n *node.Node) *Server {
	s := &Server{
		n:     n,
		codec: waku.NewCodec(),
		inbox: make(map[string][]waku.Message),
		done:  make(chan struct{}),
	}
	go s.ingestLoop(ctx)
	return s
}

// Close stops the background ingest loop.
func (s *Server) Close() {
	close(s.done)
}

func (s *Server) ingestLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case evt, ok := <-s.n.Events():
			if !ok {
				return
			}
			msg, err := s.codec.Decode(evt.Data)
			if err != nil {
				log.Debugf("rest: dropping undecodable gossip payload on %q: %v", evt.Topic, err)
				continue
			}
			s.mu.Lock()
			s.inbox[evt.Topic] = append(s.inbox[evt.Topic], msg)
			s.mu.Unlock()
		}
	}
}

// Handler returns the gorilla/mux router serving spec §6's four relay
// endpoints.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/relay/v1/messages/{topic}", s.handleGetMessages).Methods(http.MethodGet)
	r.HandleFunc("/relay/v1/messages/{topic}", s.handlePostMessage).Methods(http.MethodPost)
	r.HandleFunc("/relay/v1/subscriptions", s.handlePostSubscriptions).Methods(http.MethodPost)
	r.HandleFunc("/relay/v1/subscriptions", s.handleDeleteSubscriptions).Methods(http.MethodDelete)
	return r
}

// ListenAndServe blocks serving the REST facade on ListenAddr.
func (s *Server) ListenAndServe() error {
	return http.ListenAndServe(ListenAddr, s.Handler())
}

// handleGetMessages drains the inbox for {topic}; each message is
// returned at most once (spec §6).
func (s *Server) handleGetMessages(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]

	s.mu.Lock()
	msgs := s.inbox[topic]
	delete(s.inbox, topic)
	s.mu.Unlock()

	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toWire(m))
	}
	writeJSON(w, http.StatusOK, out)
}

// handlePostMessage enqueues a message to Relay via the node's
// single-threaded command loop (spec §6, §5).
func (s *Server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]

	var wm wireMessage
	if err := decodeBody(w, r, &wm); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	msg := waku.Message{
		Payload:      []byte(wm.Payload),
		ContentTopic: wm.ContentTopic,
		Version:      wm.Version,
		Timestamp:    wm.Timestamp,
	}

	err := s.n.Submit(r.Context(), func(ctx context.Context) error {
		_, err := s.n.Publish(ctx, topic, msg)
		return err
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handlePostSubscriptions forwards each topic to Relay.subscribe (spec
// §6); the first failure short-circuits and is reported.
func (s *Server) handlePostSubscriptions(w http.ResponseWriter, r *http.Request) {
	var body subscriptionBody
	if err := decodeBody(w, r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := s.n.Submit(r.Context(), func(ctx context.Context) error {
		for _, topic := range body.Topics {
			if _, err := s.n.Subscribe(ctx, topic); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleDeleteSubscriptions forwards each topic to Relay.unsubscribe.
func (s *Server) handleDeleteSubscriptions(w http.ResponseWriter, r *http.Request) {
	var body subscriptionBody
	if err := decodeBody(w, r, &body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err := s.n.Submit(r.Context(), func(ctx context.Context) error {
		for _, topic := range body.Topics {
			if _, err := s.n.Unsubscribe(topic); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
