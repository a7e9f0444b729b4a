package pb

// Nil-safe accessors, matching the convention protoc-generated code uses
// throughout the pack (e.g. pb.Message.GetFrom() in the teacher package) so
// callers can chain through an absent submessage without a nil check at
// every level.

func (m *Message) GetPayload() []byte {
	if m == nil {
		return nil
	}
	return m.Payload
}

func (m *Message) GetContentTopic() string {
	if m == nil {
		return ""
	}
	return m.ContentTopic
}

func (m *Message) GetTimestamp() int64 {
	if m == nil {
		return 0
	}
	return m.Timestamp
}

func (m *Message) GetVersion() uint32 {
	if m == nil {
		return 0
	}
	return m.Version
}

func (idx *Index) GetDigest() []byte {
	if idx == nil {
		return nil
	}
	return idx.Digest
}

func (idx *Index) GetPubsubTopic() string {
	if idx == nil {
		return ""
	}
	return idx.PubsubTopic
}

func (p *PagingInfo) GetCursor() *Index {
	if p == nil {
		return nil
	}
	return p.Cursor
}

func (p *PagingInfo) GetPageSize() uint64 {
	if p == nil {
		return 0
	}
	return p.PageSize
}

func (p *PagingInfo) GetDirection() Direction {
	if p == nil {
		return DirectionForward
	}
	return p.Direction
}

func (q *HistoryQuery) GetPagingInfo() *PagingInfo {
	if q == nil {
		return nil
	}
	return q.PagingInfo
}

func (q *HistoryQuery) GetPubsubTopic() string {
	if q == nil {
		return ""
	}
	return q.PubsubTopic
}

func (r *PushRequest) GetMessage() *Message {
	if r == nil {
		return nil
	}
	return r.Message
}

func (r *PushRequest) GetPubsubTopic() string {
	if r == nil {
		return ""
	}
	return r.PubsubTopic
}

func (rpc *PushRPC) GetQuery() *PushRequest {
	if rpc == nil {
		return nil
	}
	return rpc.Query
}
