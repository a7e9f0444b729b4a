// Package node composes the Relay, Store and LightPush engines behind a
// single connection manager and a single-threaded cooperative event loop
// (spec §4.7, §5).
package node

import (
	"context"
	"errors"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/wakuswarm/wakunode/pkg/lightpush"
	"github.com/wakuswarm/wakunode/pkg/relay"
	"github.com/wakuswarm/wakunode/pkg/store"
	"github.com/wakuswarm/wakunode/pkg/waku"
)

var log = logging.Logger("node")

// ErrBothStoreAndLightPush is the fatal ConfigError raised when Store and
// LightPush are both requested on the same node (spec §4.7, §7).
var ErrBothStoreAndLightPush = errors.New("node: store and lightpush cannot both be enabled")

// ErrNoRelay is returned by Relay-forwarding operations when the node was
// constructed with every engine disabled.
var ErrNoRelay = errors.New("node: no relay engine available")

// EngineKind tags which child engine produced a lifted event.
type EngineKind int

const (
	EngineRelay EngineKind = iota
	EngineStore
	EngineLightPush
)

func (k EngineKind) String() string {
	switch k {
	case EngineRelay:
		return "relay"
	case EngineStore:
		return "store"
	case EngineLightPush:
		return "lightpush"
	default:
		return "unknown"
	}
}

// GossipEvent is a Relay Gossip event tagged by the engine that observed
// it, unifying Relay/Store/LightPush traffic into one outbound stream
// (spec §4.7).
type GossipEvent struct {
	Kind EngineKind
	relay.GossipEvent
}

// RequestResponseEvent is a lifted Store/LightPush RPC lifecycle event
// tagged by its originating engine.
type RequestResponseEvent struct {
	Kind      EngineKind
	Inbound   bool
	RequestID string
	Err       error
}

// restCommand is a unit of work submitted by the REST facade to the
// node's event-loop goroutine (spec §5: a bounded queue in both
// directions between the REST task and the node loop).
type restCommand struct {
	do   func(ctx context.Context) error
	done chan<- error
}

// restQueueCapacity is the bounded command-queue depth spec §5 mandates.
const restQueueCapacity = 32

// child is the tagged-sum marker for the node's one active local engine:
// Store and LightPush embed their own Relay, so at most one of
// {*relay.Relay, *store.Store, *lightpush.LightPush} ever runs locally
// (spec §9 design note).
type child interface{ isChild() }

type relayChild struct{ *relay.Relay }
type storeChild struct{ *store.Store }
type lightPushChild struct{ *lightpush.LightPush }

func (relayChild) isChild()     {}
func (storeChild) isChild()     {}
func (lightPushChild) isChild() {}

// Config selects which engines to run and their parameters, mirroring the
// CLI flag table in spec §6.
type Config struct {
	Relay         bool
	Store         bool
	LightPush     bool
	StoreCapacity int
	Topics        []string
	StaticNodes   []ma.Multiaddr
}

// Node composes the Relay/Store/LightPush engines behind a single
// connection manager (spec §4.7).
type Node struct {
	host host.Host
	main child

	gossip chan GossipEvent
	rr     chan RequestResponseEvent
	rest   chan restCommand

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New validates cfg and constructs whichever engines it enables, per spec
// §4.7's composition and mutual-exclusion rules.
func New(ctx context.Context, h host.Host, cfg Config) (*Node, error) {
	if cfg.Store && cfg.LightPush {
		return nil, ErrBothStoreAndLightPush
	}

	n := &Node{
		host:   h,
		gossip: make(chan GossipEvent, 256),
		rr:     make(chan RequestResponseEvent, 256),
		rest:   make(chan restCommand, restQueueCapacity),
	}

	switch {
	case cfg.Store:
		st, err := store.New(ctx, h, cfg.StoreCapacity)
		if err != nil {
			return nil, fmt.Errorf("node: starting store: %w", err)
		}
		n.main = storeChild{st}
	case cfg.LightPush:
		lp, err := lightpush.New(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("node: starting lightpush: %w", err)
		}
		n.main = lightPushChild{lp}
	case cfg.Relay:
		r, err := relay.New(ctx, h)
		if err != nil {
			return nil, fmt.Errorf("node: starting relay: %w", err)
		}
		n.main = relayChild{r}
	}

	for _, addr := range cfg.StaticNodes {
		if err := n.dialStatic(ctx, addr); err != nil {
			log.Warningf("node: dialing static peer %s: %v", addr, err)
		}
	}

	topics := cfg.Topics
	if len(topics) == 0 && n.main != nil {
		topics = []string{waku.DefaultPubsubTopic}
	}
	for _, t := range topics {
		if _, err := n.Subscribe(ctx, t); err != nil {
			return nil, fmt.Errorf("node: initial subscribe %q: %w", t, err)
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.wg.Add(1)
	go n.run(loopCtx)

	return n, nil
}

func (n *Node) dialStatic(ctx context.Context, addr ma.Multiaddr) error {
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return fmt.Errorf("node: parsing static peer address: %w", err)
	}
	return n.host.Connect(ctx, *info)
}

// relay returns whichever engine's embedded Relay is active, or nil when
// the node has none (every engine disabled).
func (n *Node) relay() *relay.Relay {
	switch c := n.main.(type) {
	case relayChild:
		return c.Relay
	case storeChild:
		return c.Store.Relay
	case lightPushChild:
		return c.LightPush.Relay
	default:
		return nil
	}
}

// Store returns the node's Store engine, or nil when it is not enabled.
func (n *Node) Store() *store.Store {
	if c, ok := n.main.(storeChild); ok {
		return c.Store
	}
	return nil
}

// LightPush returns the node's LightPush engine, or nil when it is not
// enabled.
func (n *Node) LightPush() *lightpush.LightPush {
	if c, ok := n.main.(lightPushChild); ok {
		return c.LightPush
	}
	return nil
}

// Subscribe forwards to the active engine's embedded Relay (spec §4.7).
func (n *Node) Subscribe(ctx context.Context, topic string) (bool, error) {
	r := n.relay()
	if r == nil {
		return false, ErrNoRelay
	}
	return r.Subscribe(ctx, topic)
}

// Unsubscribe forwards to the active engine's embedded Relay.
func (n *Node) Unsubscribe(topic string) (bool, error) {
	r := n.relay()
	if r == nil {
		return false, ErrNoRelay
	}
	return r.Unsubscribe(topic)
}

// Publish forwards to the active engine's embedded Relay, spec §6's REST
// POST /relay/v1/messages entry point.
func (n *Node) Publish(ctx context.Context, topic string, msg waku.Message) (string, error) {
	r := n.relay()
	if r == nil {
		return "", ErrNoRelay
	}
	return r.Publish(ctx, topic, msg)
}

// Events returns the unified, engine-tagged Gossip event stream.
func (n *Node) Events() <-chan GossipEvent {
	return n.gossip
}

// RequestResponseEvents returns the unified, engine-tagged RPC lifecycle
// event stream.
func (n *Node) RequestResponseEvents() <-chan RequestResponseEvent {
	return n.rr
}

// Submit enqueues fn for execution on the node's single event-loop
// goroutine and waits for it to run, the bounded cooperative hand-off
// spec §5 requires between the REST task and the node loop.
func (n *Node) Submit(ctx context.Context, fn func(ctx context.Context) error) error {
	done := make(chan error, 1)
	cmd := restCommand{do: fn, done: done}

	select {
	case n.rest <- cmd:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the node's event loop and any active engine.
func (n *Node) Close() {
	n.cancel()
	n.wg.Wait()
	switch c := n.main.(type) {
	case storeChild:
		c.Store.Close()
	case lightPushChild:
		c.LightPush.Close()
	}
}

// run is the node's single-threaded cooperative event loop (spec §5): one
// goroutine owns all mutable composition state and every other caller
// talks to it through channels, the direct descendant of the teacher's
// processLoop.
func (n *Node) run(ctx context.Context) {
	defer n.wg.Done()

	var (
		kind        EngineKind
		gossipCh    <-chan relay.GossipEvent
		storeRR     <-chan store.RequestResponseEvent
		lightpushRR <-chan lightpush.RequestResponseEvent
	)

	switch c := n.main.(type) {
	case relayChild:
		kind = EngineRelay
		gossipCh = c.Relay.Events()
	case storeChild:
		kind = EngineStore
		gossipCh = c.Store.GossipEvents()
		storeRR = c.Store.RequestResponseEvents()
	case lightPushChild:
		kind = EngineLightPush
		gossipCh = c.LightPush.GossipEvents()
		lightpushRR = c.LightPush.RequestResponseEvents()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-gossipCh:
			if !ok {
				gossipCh = nil
				continue
			}
			n.emitGossip(kind, evt)

		case evt, ok := <-storeRR:
			if !ok {
				storeRR = nil
				continue
			}
			n.emitRR(kind, evt.Inbound, evt.RequestID, evt.Err)

		case evt, ok := <-lightpushRR:
			if !ok {
				lightpushRR = nil
				continue
			}
			n.emitRR(kind, evt.Inbound, evt.RequestID, evt.Err)

		case cmd := <-n.rest:
			err := cmd.do(ctx)
			select {
			case cmd.done <- err:
			default:
			}
		}
	}
}

func (n *Node) emitGossip(kind EngineKind, evt relay.GossipEvent) {
	select {
	case n.gossip <- GossipEvent{Kind: kind, GossipEvent: evt}:
	default:
		log.Warningf("node: gossip channel full; dropping event for topic %q", evt.Topic)
	}
}

func (n *Node) emitRR(kind EngineKind, inbound bool, reqID string, err error) {
	select {
	case n.rr <- RequestResponseEvent{Kind: kind, Inbound: inbound, RequestID: reqID, Err: err}:
	default:
	}
}
