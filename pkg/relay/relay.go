// Package relay implements the Waku relay engine: topic subscriptions and
// publish/receive over a gossip mesh (spec §4.3).
//
// The mesh itself — graft/prune, peer scoring, heartbeat fanout — is an
// external collaborator per spec §1 and is not reimplemented here; it is
// the real github.com/libp2p/go-libp2p-pubsub GossipSubRouter, the very
// package this module's teacher file pair (pubsub.go/gossipsub.go) is a
// historical snapshot of. Relay is a thin Waku-flavoured wrapper around a
// *pubsub.PubSub: Waku's Message codec on the way out (inbound Gossip
// events carry the raw encoded bytes), a deterministic message-id
// function, and a single unified Gossip event channel fed by one reader
// goroutine per subscribed topic. The topics/peers bookkeeping this package
// owns is guarded by a mutex.
package relay

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"

	logging "github.com/ipfs/go-log"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	pubsubpb "github.com/libp2p/go-libp2p-pubsub/pb"
	"github.com/mr-tron/base58"

	"github.com/wakuswarm/wakunode/pkg/waku"
)

var log = logging.Logger("relay")

// ProtocolID is the relay wire protocol, spec §4.3/§6.
const ProtocolID = "/vac/waku/relay/2.0.0"

// gossipQueueSize is the relay's outbound event channel depth; a slow
// consumer causes events to be dropped rather than blocking the reader
// goroutine, matching the teacher's peerOutboundQueueSize discipline.
const gossipQueueSize = 256

// ErrNoPeers is returned by Publish when the topic currently has no mesh
// peers to propagate to.
var ErrNoPeers = errors.New("relay: no peers for topic")

// ErrTooLarge is returned by Publish when the encoded message exceeds the
// transport's maximum message size.
var ErrTooLarge = errors.New("relay: message exceeds maximum size")

// GossipEvent is emitted for each validated inbound mesh message observed
// on a subscribed topic (spec §4.3).
type GossipEvent struct {
	PropagationSource peer.ID
	MessageID         string
	Topic             string
	Data              []byte
}

type joinedTopic struct {
	topic  *pubsub.Topic
	sub    *pubsub.Subscription
	cancel context.CancelFunc
}

// Relay is the Waku relay engine.
type Relay struct {
	host  host.Host
	ps    *pubsub.PubSub
	codec *waku.Codec

	mu     sync.Mutex
	topics map[string]*joinedTopic
	peers  map[peer.ID]struct{}

	gossip chan GossipEvent

	maxMessageSize int
}

// New constructs a Relay bound to h, with anonymous validation (no
// per-message signature required) and a deterministic message-id function,
// per spec §4.3.
func New(ctx context.Context, h host.Host, opts ...Option) (*Relay, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithMessageIdFn(messageIDFn),
		pubsub.WithMessageSigning(false),
		pubsub.WithStrictSignatureVerification(false),
		pubsub.WithMaxMessageSize(cfg.maxMessageSize),
	)
	if err != nil {
		return nil, fmt.Errorf("relay: starting gossipsub: %w", err)
	}

	return &Relay{
		host:           h,
		ps:             ps,
		codec:          waku.NewCodec(),
		topics:         make(map[string]*joinedTopic),
		peers:          make(map[peer.ID]struct{}),
		gossip:         make(chan GossipEvent, gossipQueueSize),
		maxMessageSize: cfg.maxMessageSize,
	}, nil
}

// Events returns the channel Gossip events are delivered on.
func (r *Relay) Events() <-chan GossipEvent {
	return r.gossip
}

// Subscribe joins topic if not already joined. It returns true when the
// node was not previously subscribed (spec §4.3, idempotent contract).
func (r *Relay) Subscribe(ctx context.Context, topic string) (bool, error) {
	r.mu.Lock()
	if _, ok := r.topics[topic]; ok {
		r.mu.Unlock()
		return false, nil
	}
	r.mu.Unlock()

	t, err := r.ps.Join(topic)
	if err != nil {
		return false, fmt.Errorf("relay: join %q: %w", topic, err)
	}
	sub, err := t.Subscribe()
	if err != nil {
		_ = t.Close()
		return false, fmt.Errorf("relay: subscribe %q: %w", topic, err)
	}

	readCtx, cancel := context.WithCancel(ctx)
	jt := &joinedTopic{topic: t, sub: sub, cancel: cancel}

	r.mu.Lock()
	if _, ok := r.topics[topic]; ok {
		r.mu.Unlock()
		cancel()
		sub.Cancel()
		_ = t.Close()
		return false, nil
	}
	r.topics[topic] = jt
	r.mu.Unlock()

	go r.readLoop(readCtx, topic, sub)
	return true, nil
}

// Unsubscribe leaves topic if currently joined. It returns true when the
// node was previously subscribed.
func (r *Relay) Unsubscribe(topic string) (bool, error) {
	r.mu.Lock()
	jt, ok := r.topics[topic]
	if !ok {
		r.mu.Unlock()
		return false, nil
	}
	delete(r.topics, topic)
	r.mu.Unlock()

	jt.cancel()
	jt.sub.Cancel()
	if err := jt.topic.Close(); err != nil {
		return true, fmt.Errorf("relay: close topic %q: %w", topic, err)
	}
	return true, nil
}

// Publish encodes msg with the Waku codec and publishes it on topic. It
// fails when the topic has no mesh peers or the encoded message exceeds
// the transport limit (spec §4.3).
func (r *Relay) Publish(ctx context.Context, topic string, msg waku.Message) (string, error) {
	data, err := r.codec.Encode(msg)
	if err != nil {
		return "", fmt.Errorf("relay: encode: %w", err)
	}
	if len(data) > r.maxMessageSize {
		return "", ErrTooLarge
	}

	r.mu.Lock()
	jt, ok := r.topics[topic]
	r.mu.Unlock()
	if !ok {
		joined, err := r.ps.Join(topic)
		if err != nil {
			return "", fmt.Errorf("relay: join %q for publish: %w", topic, err)
		}
		defer joined.Close()
		if err := r.publishOnTopic(ctx, joined, topic, data); err != nil {
			return "", err
		}
		return messageIDFromData(data), nil
	}

	if err := r.publishOnTopic(ctx, jt.topic, topic, data); err != nil {
		return "", err
	}
	return messageIDFromData(data), nil
}

func (r *Relay) publishOnTopic(ctx context.Context, t *pubsub.Topic, topic string, data []byte) error {
	if len(r.ps.ListPeers(topic)) == 0 {
		return ErrNoPeers
	}
	if err := t.Publish(ctx, data); err != nil {
		return fmt.Errorf("relay: publish on %q: %w", topic, err)
	}
	return nil
}

// AddPeer records an explicit mesh peer, per spec §4.3.
func (r *Relay) AddPeer(pid peer.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.peers[pid] = struct{}{}
}

// Topics returns the set of topics currently subscribed to.
func (r *Relay) Topics() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.topics))
	for t := range r.topics {
		out = append(out, t)
	}
	return out
}

func (r *Relay) readLoop(ctx context.Context, topic string, sub *pubsub.Subscription) {
	for {
		m, err := sub.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Debugf("relay: subscription for %q ended: %v", topic, err)
			return
		}

		evt := GossipEvent{
			PropagationSource: m.ReceivedFrom,
			MessageID:         messageIDFromData(m.GetData()),
			Topic:             topic,
			Data:              m.GetData(),
		}
		select {
		case r.gossip <- evt:
		default:
			log.Warningf("relay: gossip event channel full; dropping event for topic %q", topic)
		}
	}
}

// messageIDFn computes a deterministic message id over the raw published
// bytes, independent of sender identity or sequence number, so the mesh
// suppresses duplicates delivered across multiple paths (spec §4.3).
func messageIDFn(pmsg *pubsubpb.Message) string {
	return messageIDFromData(pmsg.GetData())
}

// messageIDFromData hashes data into a short base58 id, matching the
// encoding go-libp2p peer/content identifiers use elsewhere on the mesh
// rather than raw hex.
func messageIDFromData(data []byte) string {
	h := fnv.New64a()
	h.Write(data)
	var buf [8]byte
	for i := range buf {
		buf[i] = byte(h.Sum64() >> (8 * i))
	}
	return base58.Encode(buf[:])
}
