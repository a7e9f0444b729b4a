// Package store implements the Waku store engine: it ingests messages
// observed by an embedded Relay into a bounded MessageQueue and answers
// paged, filtered history queries against that queue (spec §4.6).
package store

import (
	"context"
	"fmt"
	"sync"

	logging "github.com/ipfs/go-log"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/peerstore"
	"github.com/libp2p/go-libp2p/core/protocol"
	ma "github.com/multiformats/go-multiaddr"

	"github.com/wakuswarm/wakunode/pkg/pb"
	"github.com/wakuswarm/wakunode/pkg/queue"
	"github.com/wakuswarm/wakunode/pkg/relay"
	"github.com/wakuswarm/wakunode/pkg/rpcio"
	"github.com/wakuswarm/wakunode/pkg/waku"
)

var log = logging.Logger("store")

// ProtocolID is the store wire protocol, spec §4.6/§6.
const ProtocolID = protocol.ID("/vac/waku/store/2.0.0-beta4")

// MaxMessagesPerPage bounds the number of messages returned in one
// HistoryResponse, spec §4.6.
const MaxMessagesPerPage = 100

// maxFrameSize computes the per-protocol RPC length bound, spec §4.4/§4.6:
// 100 × MAX_MESSAGE_SIZE + 64 KiB of headroom.
func maxFrameSize() int {
	return MaxMessagesPerPage*waku.MaxPayloadSize + 64<<10
}

// RequestResponseEvent is lifted from the framing layer for observability,
// spec §4.6.
type RequestResponseEvent struct {
	Inbound   bool
	RequestID string
	Err       error
}

// Store is the store engine. It embeds its own Relay, per spec §4.7.
type Store struct {
	Relay *relay.Relay
	host  host.Host
	codec *waku.Codec

	mu    sync.Mutex
	queue *queue.MessageQueue

	gossip chan relay.GossipEvent
	rr     chan RequestResponseEvent

	cancelIngest context.CancelFunc
}

// New constructs a Store with its own embedded Relay and a MessageQueue of
// the given capacity (spec §4.7).
func New(ctx context.Context, h host.Host, capacity int) (*Store, error) {
	r, err := relay.New(ctx, h)
	if err != nil {
		return nil, fmt.Errorf("store: starting embedded relay: %w", err)
	}

	s := &Store{
		Relay:  r,
		host:   h,
		codec:  waku.NewCodec(),
		queue:  queue.New(capacity),
		gossip: make(chan relay.GossipEvent, 256),
		rr:     make(chan RequestResponseEvent, 256),
	}

	ingestCtx, cancel := context.WithCancel(ctx)
	s.cancelIngest = cancel
	go s.ingestLoop(ingestCtx)

	h.SetStreamHandler(ProtocolID, s.handleStream)
	return s, nil
}

// Close stops the ingest loop and removes the stream handler.
func (s *Store) Close() {
	s.cancelIngest()
	s.host.RemoveStreamHandler(ProtocolID)
}

// GossipEvents returns Relay Gossip events lifted out of the embedded
// relay, so composing this Store into a node does not hide mesh traffic
// (spec §4.6, design note §9).
func (s *Store) GossipEvents() <-chan relay.GossipEvent {
	return s.gossip
}

// RequestResponseEvents returns lifted request/response lifecycle events.
func (s *Store) RequestResponseEvents() <-chan RequestResponseEvent {
	return s.rr
}

// Subscribe forwards to the embedded Relay (spec §4.6 client operations).
func (s *Store) Subscribe(ctx context.Context, topic string) (bool, error) {
	return s.Relay.Subscribe(ctx, topic)
}

func (s *Store) ingestLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-s.Relay.Events():
			s.ingest(evt)
			select {
			case s.gossip <- evt:
			default:
				log.Warningf("store: gossip relay channel full; dropping lifted event for topic %q", evt.Topic)
			}
		}
	}
}

// ingest decodes evt.Data and attempts to push it into the queue. Decode
// failures are dropped, and ingestLoop still surfaces the event afterwards
// (spec §7: DecodeError on inbound mesh data). Duplicate digests are
// dropped silently (spec §7: QueueError(Duplicated) is not an externally
// visible error).
func (s *Store) ingest(evt relay.GossipEvent) {
	msg, err := s.codec.Decode(evt.Data)
	if err != nil {
		log.Debugf("store: dropping undecodable message on %q: %v", evt.Topic, err)
		return
	}

	indexed := waku.IndexedMessage{
		Message:     msg,
		Index:       s.codec.ComputeIndex(msg),
		PubsubTopic: evt.Topic,
	}

	s.mu.Lock()
	err = s.queue.Push(indexed)
	s.mu.Unlock()
	if err != nil {
		log.Debugf("store: dropping duplicate message on %q", evt.Topic)
	}
}

func (s *Store) handleStream(str network.Stream) {
	defer str.Close()

	req := &pb.HistoryRPC{}
	if err := rpcio.ReadDelimited(str, maxFrameSize(), req); err != nil {
		str.Reset()
		s.emitRR(true, "", err)
		return
	}

	resp := s.QueryLocal(req.Query)
	out := &pb.HistoryRPC{RequestId: req.RequestId, Query: req.Query, Response: resp}
	if err := rpcio.WriteDelimited(str, out); err != nil {
		s.emitRR(false, req.RequestId, err)
		return
	}
	s.emitRR(false, req.RequestId, nil)
}

func (s *Store) emitRR(inbound bool, reqID string, err error) {
	select {
	case s.rr <- RequestResponseEvent{Inbound: inbound, RequestID: reqID, Err: err}:
	default:
	}
}

// QueryLocal executes a HistoryQuery against the local queue and returns
// the response, without any wire I/O. It is the pure core of spec §4.6's
// server algorithm, reused by the stream handler and directly by tests.
func (s *Store) QueryLocal(query *pb.HistoryQuery) *pb.HistoryResponse {
	if query == nil {
		query = &pb.HistoryQuery{}
	}
	paging := query.GetPagingInfo()
	cursor := paging.GetCursor()
	pageSize := paging.GetPageSize()
	if pageSize > MaxMessagesPerPage {
		pageSize = MaxMessagesPerPage
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if cursor == nil || !s.queue.HasDigest(cursor.Digest) {
		return &pb.HistoryResponse{
			Messages:   nil,
			PagingInfo: paging,
			Error:      pb.ErrorCodeInvalidCursor,
		}
	}

	start, ok := s.queue.IndexOf(cursor.Digest)
	if !ok {
		return &pb.HistoryResponse{
			Messages:   nil,
			PagingInfo: paging,
			Error:      pb.ErrorCodeInvalidCursor,
		}
	}

	filters := make(map[string]struct{}, len(query.ContentFilters))
	for _, f := range query.ContentFilters {
		filters[f.ContentTopic] = struct{}{}
	}

	dir := 1
	if paging.GetDirection() == pb.DirectionBackward {
		dir = -1
	}

	n := s.queue.Len()
	messages := make([]*pb.Message, 0, pageSize)
	for k := 0; uint64(len(messages)) < pageSize && k < n; k++ {
		pos := ((start+k*dir)%n + n) % n
		entry, ok := s.queue.Get(pos)
		if !ok {
			break
		}
		if entry.PubsubTopic != query.PubsubTopic {
			continue
		}
		if _, ok := filters[entry.Message.ContentTopic]; !ok {
			continue
		}
		messages = append(messages, &pb.Message{
			Payload:      entry.Message.Payload,
			ContentTopic: entry.Message.ContentTopic,
			Version:      entry.Message.Version,
			Timestamp:    entry.Message.Timestamp,
		})
	}

	return &pb.HistoryResponse{
		Messages:   messages,
		PagingInfo: paging,
		Error:      pb.ErrorCodeNone,
	}
}

// AddStorePeer records addr for pid in the host's peerstore so SendQuery
// can dial it (spec §4.6 client operations).
func (s *Store) AddStorePeer(pid peer.ID, addr ma.Multiaddr) {
	s.host.Peerstore().AddAddr(pid, addr, peerstore.PermanentAddrTTL)
}

// SendQuery issues a HistoryQuery to pid and waits for its response (spec
// §4.6 client operations). direction=true encodes FORWARD, false BACKWARD.
func (s *Store) SendQuery(
	ctx context.Context,
	pid peer.ID,
	requestID string,
	cursor *waku.Index,
	pageSize uint64,
	direction bool,
	pubsubTopic string,
	contentTopics []string,
) (*pb.HistoryResponse, error) {
	str, err := s.host.NewStream(ctx, pid, ProtocolID)
	if err != nil {
		return nil, fmt.Errorf("store: opening stream to %s: %w", pid, err)
	}
	defer str.Close()

	dir := pb.DirectionForward
	if !direction {
		dir = pb.DirectionBackward
	}

	filters := make([]*pb.ContentFilter, 0, len(contentTopics))
	for _, ct := range contentTopics {
		filters = append(filters, &pb.ContentFilter{ContentTopic: ct})
	}

	var pbCursor *pb.Index
	if cursor != nil {
		pbCursor = &pb.Index{
			Digest:       cursor.Digest,
			ReceiverTime: cursor.ReceiverTime,
			SenderTime:   cursor.SenderTime,
			PubsubTopic:  cursor.PubsubTopic,
		}
	}

	req := &pb.HistoryRPC{
		RequestId: requestID,
		Query: &pb.HistoryQuery{
			PubsubTopic:    pubsubTopic,
			ContentFilters: filters,
			PagingInfo: &pb.PagingInfo{
				PageSize:  pageSize,
				Cursor:    pbCursor,
				Direction: dir,
			},
		},
	}

	if err := rpcio.WriteDelimited(str, req); err != nil {
		return nil, err
	}

	resp := &pb.HistoryRPC{}
	if err := rpcio.ReadDelimited(str, maxFrameSize(), resp); err != nil {
		return nil, err
	}
	return resp.Response, nil
}
