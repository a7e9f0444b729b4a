package pb

import "github.com/gogo/protobuf/proto"

// PushRequest is the query payload of a PushRPC.
type PushRequest struct {
	PubsubTopic string
	Message     *Message
}

func (r *PushRequest) present() bool { return r != nil }

func (r *PushRequest) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if r == nil {
		return b.Bytes(), nil
	}
	if err := writeStringField(b, 1, r.PubsubTopic); err != nil {
		return nil, err
	}
	if err := writeMessageField(b, 2, r.Message); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (r *PushRequest) Unmarshal(data []byte) error {
	*r = PushRequest{}
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
			r.PubsubTopic = v
		case 2:
			raw, err := rd.buf.DecodeRawBytes(true)
			if err != nil {
				return err
			}
			msg := &Message{}
			if err := msg.Unmarshal(raw); err != nil {
				return err
			}
			r.Message = msg
		default:
			if err := rd.skip(wireType); err != nil {
				return err
			}
		}
	}
}

// PushResponse is the response payload of a PushRPC.
type PushResponse struct {
	IsSuccess bool
	Info      string
}

func (r *PushResponse) present() bool { return r != nil }

func (r *PushResponse) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if r == nil {
		return b.Bytes(), nil
	}
	if r.IsSuccess {
		if err := writeVarintField(b, 1, 1); err != nil {
			return nil, err
		}
	}
	if err := writeStringField(b, 2, r.Info); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (r *PushResponse) Unmarshal(data []byte) error {
	*r = PushResponse{}
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
			r.IsSuccess = v != 0
		case 2:
			v, err := rd.buf.DecodeStringBytes()
			if err != nil {
				return err
			}
			r.Info = v
		default:
			if err := rd.skip(wireType); err != nil {
				return err
			}
		}
	}
}

// PushRPC is the full request/response envelope exchanged over the
// lightpush protocol.
type PushRPC struct {
	RequestId string
	Query     *PushRequest
	Response  *PushResponse
}

func (rpc *PushRPC) present() bool { return rpc != nil }

func (rpc *PushRPC) Marshal() ([]byte, error) {
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

func (rpc *PushRPC) Unmarshal(data []byte) error {
	*rpc = PushRPC{}
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
			q := &PushRequest{}
			if err := q.Unmarshal(raw); err != nil {
				return err
			}
			rpc.Query = q
		case 3:
			raw, err := rd.buf.DecodeRawBytes(true)
			if err != nil {
				return err
			}
			resp := &PushResponse{}
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
