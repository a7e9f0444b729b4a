package pb

import "github.com/gogo/protobuf/proto"

// Direction selects which way a history query walks the store's queue.
type Direction int32

const (
	DirectionForward  Direction = 0
	DirectionBackward Direction = 1
)

// ErrorCode reports the outcome of a history query.
type ErrorCode int32

const (
	ErrorCodeNone          ErrorCode = 0
	ErrorCodeInvalidCursor ErrorCode = 1
)

// ContentFilter names one content topic a history query is restricted to.
type ContentFilter struct {
	ContentTopic string
}

func (c *ContentFilter) present() bool { return c != nil }

func (c *ContentFilter) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if c == nil {
		return b.Bytes(), nil
	}
	if err := writeStringField(b, 1, c.ContentTopic); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (c *ContentFilter) Unmarshal(data []byte) error {
	*c = ContentFilter{}
	rd := newFieldReader(data)
	for {
		field, wireType, ok, err := rd.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if field == 1 {
			v, err := rd.buf.DecodeStringBytes()
			if err != nil {
				return err
			}
			c.ContentTopic = v
			continue
		}
		if err := rd.skip(wireType); err != nil {
			return err
		}
	}
}

// PagingInfo carries the page size, cursor and walk direction of a history
// query, and is echoed back unchanged in the response.
type PagingInfo struct {
	PageSize  uint64
	Cursor    *Index
	Direction Direction
}

func (p *PagingInfo) present() bool { return p != nil }

func (p *PagingInfo) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if p == nil {
		return b.Bytes(), nil
	}
	if p.PageSize != 0 {
		if err := writeVarintField(b, 1, p.PageSize); err != nil {
			return nil, err
		}
	}
	if err := writeMessageField(b, 2, p.Cursor); err != nil {
		return nil, err
	}
	if p.Direction != DirectionForward {
		if err := writeVarintField(b, 3, uint64(p.Direction)); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

func (p *PagingInfo) Unmarshal(data []byte) error {
	*p = PagingInfo{}
	rd := newFieldReader(data)
	for {
		field, wireType, ok, err := rd.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		switch field {
		case 1:
			v, err := rd.buf.DecodeVarint()
			if err != nil {
				return err
			}
			p.PageSize = v
		case 2:
			raw, err := rd.buf.DecodeRawBytes(true)
			if err != nil {
				return err
			}
			idx := &Index{}
			if err := idx.Unmarshal(raw); err != nil {
				return err
			}
			p.Cursor = idx
		case 3:
			v, err := rd.buf.DecodeVarint()
			if err != nil {
				return err
			}
			p.Direction = Direction(v)
		default:
			if err := rd.skip(wireType); err != nil {
				return err
			}
		}
	}
}

// HistoryQuery is the request payload of a HistoryRPC.
type HistoryQuery struct {
	PubsubTopic    string
	ContentFilters []*ContentFilter
	PagingInfo     *PagingInfo
}

func (q *HistoryQuery) present() bool { return q != nil }

func (q *HistoryQuery) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if q == nil {
		return b.Bytes(), nil
	}
	if err := writeStringField(b, 1, q.PubsubTopic); err != nil {
		return nil, err
	}
	for _, f := range q.ContentFilters {
		if err := writeMessageField(b, 2, f); err != nil {
			return nil, err
		}
	}
	if err := writeMessageField(b, 3, q.PagingInfo); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (q *HistoryQuery) Unmarshal(data []byte) error {
	*q = HistoryQuery{}
	rd := newFieldReader(data)
	for {
		field, wireType, ok, err := rd.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		switch field {
		case 1:
			v, err := rd.buf.DecodeStringBytes()
			if err != nil {
				return err
			}
			q.PubsubTopic = v
		case 2:
			raw, err := rd.buf.DecodeRawBytes(true)
			if err != nil {
				return err
			}
			f := &ContentFilter{}
			if err := f.Unmarshal(raw); err != nil {
				return err
			}
			q.ContentFilters = append(q.ContentFilters, f)
		case 3:
			raw, err := rd.buf.DecodeRawBytes(true)
			if err != nil {
				return err
			}
			pi := &PagingInfo{}
			if err := pi.Unmarshal(raw); err != nil {
				return err
			}
			q.PagingInfo = pi
		default:
			if err := rd.skip(wireType); err != nil {
				return err
			}
		}
	}
}

// HistoryResponse is the response payload of a HistoryRPC.
type HistoryResponse struct {
	Messages   []*Message
	PagingInfo *PagingInfo
	Error      ErrorCode
}

func (r *HistoryResponse) present() bool { return r != nil }

func (r *HistoryResponse) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if r == nil {
		return b.Bytes(), nil
	}
	for _, m := range r.Messages {
		if err := writeMessageField(b, 1, m); err != nil {
			return nil, err
		}
	}
	if err := writeMessageField(b, 2, r.PagingInfo); err != nil {
		return nil, err
	}
	if r.Error != ErrorCodeNone {
		if err := writeVarintField(b, 3, uint64(r.Error)); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

func (r *HistoryResponse) Unmarshal(data []byte) error {
	*r = HistoryResponse{}
	rd := newFieldReader(data)
	for {
		field, wireType, ok, err := rd.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		switch field {
		case 1:
			raw, err := rd.buf.DecodeRawBytes(true)
			if err != nil {
				return err
			}
			m := &Message{}
			if err := m.Unmarshal(raw); err != nil {
				return err
			}
			r.Messages = append(r.Messages, m)
		case 2:
			raw, err := rd.buf.DecodeRawBytes(true)
			if err != nil {
				return err
			}
			pi := &PagingInfo{}
			if err := pi.Unmarshal(raw); err != nil {
				return err
			}
			r.PagingInfo = pi
		case 3:
			v, err := rd.buf.DecodeVarint()
			if err != nil {
				return err
			}
			r.Error = ErrorCode(v)
		default:
			if err := rd.skip(wireType); err != nil {
				return err
			}
		}
	}
}

// HistoryRPC is the full request/response envelope exchanged over the
// store protocol.
type HistoryRPC struct {
	RequestId string
	Query     *HistoryQuery
	Response  *HistoryResponse
}

func (rpc *HistoryRPC) present() bool { return rpc != nil }

func (rpc *HistoryRPC) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if rpc == nil {
		return b.Bytes(), nil
	}
	if err := writeStringField(b, 1, rpc.RequestId); err != nil {
		return nil, err
	}
	if err := writeMessageField(b, 2, rpc.Query); err != nil {
		return nil, err
	}
	if err := writeMessageField(b, 3, rpc.Response); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (rpc *HistoryRPC) Unmarshal(data []byte) error {
	*rpc = HistoryRPC{}
	rd := newFieldReader(data)
	for {
		field, wireType, ok, err := rd.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		switch field {
		case 1:
			v, err := rd.buf.DecodeStringBytes()
			if err != nil {
				return err
			}
			rpc.RequestId = v
		case 2:
			raw, err := rd.buf.DecodeRawBytes(true)
			if err != nil {
				return err
			}
			q := &HistoryQuery{}
			if err := q.Unmarshal(raw); err != nil {
				return err
			}
			rpc.Query = q
		case 3:
			raw, err := rd.buf.DecodeRawBytes(true)
			if err != nil {
				return err
			}
			resp := &HistoryResponse{}
			if err := resp.Unmarshal(raw); err != nil {
				return err
			}
			rpc.Response = resp
		default:
			if err := rd.skip(wireType); err != nil {
				return err
			}
		}
	}
}
