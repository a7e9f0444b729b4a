// Package lightpush implements the Waku lightpush engine: it accepts a
// push RPC from a non-meshed client and forwards the contained message to
// an embedded Relay on the client's behalf (spec §4.5).
package lightpush

import (
	"context"
	"fmt"

	logging "github.com/ipfs/go-log"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/wakuswarm/wakunode/pkg/pb"
	"github.com/wakuswarm/wakunode/pkg/relay"
	"github.com/wakuswarm/wakunode/pkg/rpcio"
	"github.com/wakuswarm/wakunode/pkg/waku"
)

var log = logging.Logger("lightpush")

// ProtocolID is the lightpush wire protocol, spec §4.5/§6.
const ProtocolID = protocol.ID("/vac/waku/lightpush/2.0.0-beta1")

// maxFrameSize bounds a PushRPC frame, spec §4.5: MAX_MESSAGE_SIZE + 64 KiB.
func maxFrameSize() int {
	return waku.MaxPayloadSize + 64<<10
}

// RequestResponseEvent is lifted from the framing layer for observability,
// mirroring the store engine's event.
type RequestResponseEvent struct {
	Inbound   bool
	RequestID string
	Err       error
}

// LightPush is the lightpush engine. It embeds its own Relay, per spec §4.7.
type LightPush struct {
	Relay *relay.Relay
	host  host.Host

	gossip chan relay.GossipEvent
	rr     chan RequestResponseEvent

	cancelLift context.CancelFunc
}

// New constructs a LightPush with its own embedded Relay (spec §4.7).
func New(ctx context.Context, h host.Host) (*LightPush, error) {
	r, err := relay.New(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("lightpush: starting embedded relay: %w", err)
	}

	lp := &LightPush{
		Relay:  r,
		host:   h,
		gossip: make(chan relay.GossipEvent, 256),
		rr:     make(chan RequestResponseEvent, 256),
	}

	liftCtx, cancel := context.WithCancel(ctx)
	lp.cancelLift = cancel
	go lp.liftLoop(liftCtx)

	h.SetStreamHandler(ProtocolID, lp.handleStream)
	return lp, nil
}

// Close stops the lifting goroutine and removes the stream handler.
func (lp *LightPush) Close() {
	lp.cancelLift()
	lp.host.RemoveStreamHandler(ProtocolID)
}

// GossipEvents returns Relay Gossip events lifted out of the embedded
// relay, so a node composing this engine still sees mesh traffic (spec
// §9 design note, shared with the store engine).
func (lp *LightPush) GossipEvents() <-chan relay.GossipEvent {
	return lp.gossip
}

// RequestResponseEvents returns lifted request/response lifecycle events.
func (lp *LightPush) RequestResponseEvents() <-chan RequestResponseEvent {
	return lp.rr
}

// Subscribe forwards to the embedded Relay.
func (lp *LightPush) Subscribe(ctx context.Context, topic string) (bool, error) {
	return lp.Relay.Subscribe(ctx, topic)
}

func (lp *LightPush) liftLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-lp.Relay.Events():
			select {
			case lp.gossip <- evt:
			default:
				log.Warningf("lightpush: gossip relay channel full; dropping lifted event for topic %q", evt.Topic)
			}
		}
	}
}

func (lp *LightPush) handleStream(str network.Stream) {
	defer str.Close()

	req := &pb.PushRPC{}
	if err := rpcio.ReadDelimited(str, maxFrameSize(), req); err != nil {
		str.Reset()
		lp.emitRR(true, "", err)
		return
	}

	resp := lp.handleRequest(context.Background(), req.Query)
	out := &pb.PushRPC{RequestId: req.RequestId, Query: req.Query, Response: resp}
	if err := rpcio.WriteDelimited(str, out); err != nil {
		lp.emitRR(false, req.RequestId, err)
		return
	}
	lp.emitRR(false, req.RequestId, nil)
}

// handleRequest executes the server state machine of spec §4.5 against a
// decoded PushRequest, independent of wire I/O.
func (lp *LightPush) handleRequest(ctx context.Context, query *pb.PushRequest) *pb.PushResponse {
	wireMsg := query.GetMessage()
	msg := waku.Message{
		Payload:      wireMsg.GetPayload(),
		ContentTopic: wireMsg.GetContentTopic(),
		Version:      wireMsg.GetVersion(),
		Timestamp:    wireMsg.GetTimestamp(),
	}

	if _, err := lp.Relay.Publish(ctx, query.GetPubsubTopic(), msg); err != nil {
		return &pb.PushResponse{IsSuccess: false, Info: err.Error()}
	}
	return &pb.PushResponse{IsSuccess: true}
}

func (lp *LightPush) emitRR(inbound bool, reqID string, err error) {
	select {
	case lp.rr <- RequestResponseEvent{Inbound: inbound, RequestID: reqID, Err: err}:
	default:
	}
}

// AddLightPushPeer records addr for pid in the host's peerstore so
// SendRequest can dial it without the client being mesh-subscribed (spec
// §4.5 client operations).
func (lp *LightPush) AddLightPushPeer(pid peer.ID, addr ma.Multiaddr) {
	lp.host.Peerstore().AddAddr(pid, addr, peerstore.PermanentAddrTTL)
}

// SendRequest issues a push request to pid and waits for its response
// (spec §4.5 client operations). The caller need not be subscribed to
// pubsubTopic.
func (lp *LightPush) SendRequest(
	ctx context.Context,
	pid peer.ID,
	requestID string,
	pubsubTopic string,
	msg waku.Message,
) (*pb.PushResponse, error) {
	str, err := lp.host.NewStream(ctx, pid, ProtocolID)
	if err != nil {
		return nil, fmt.Errorf("lightpush: opening stream to %s: %w", pid, err)
	}
	defer str.Close()

	req := &pb.PushRPC{
		RequestId: requestID,
		Query: &pb.PushRequest{
			PubsubTopic: pubsubTopic,
			Message: &pb.Message{
				Payload:      msg.Payload,
				ContentTopic: msg.ContentTopic,
				Version:      msg.Version,
				Timestamp:    msg.Timestamp,
			},
		},
	}

	if err := rpcio.WriteDelimited(str, req); err != nil {
		return nil, err
	}

	resp := &pb.PushRPC{}
	if err := rpcio.ReadDelimited(str, maxFrameSize(), resp); err != nil {
		return nil, err
	}
	return resp.Response, nil
}
