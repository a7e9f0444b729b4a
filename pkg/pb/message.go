package pb

import "github.com/gogo/protobuf/proto"

// Message is the wire form of a Waku application message. All fields are
// optional; an absent field decodes to its zero value.
type Message struct {
	Payload      []byte
	ContentTopic string
	Version      uint32
	Timestamp    int64
}

func (m *Message) present() bool {
	return m != nil
}

// Marshal encodes m into protobuf wire bytes.
func (m *Message) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if m == nil {
		return b.Bytes(), nil
	}
	if err := writeBytesField(b, 1, m.Payload); err != nil {
		return nil, err
	}
	if err := writeStringField(b, 2, m.ContentTopic); err != nil {
		return nil, err
	}
	if m.Version != 0 {
		if err := writeVarintField(b, 3, uint64(m.Version)); err != nil {
			return nil, err
		}
	}
	if m.Timestamp != 0 {
		if err := writeVarintField(b, 4, zigzagEncode(m.Timestamp)); err != nil {
			return nil, err
		}
	}
	return b.Bytes(), nil
}

// Unmarshal decodes protobuf wire bytes into m, resetting it first.
func (m *Message) Unmarshal(data []byte) error {
	*m = Message{}
	r := newFieldReader(data)
	for {
		field, wireType, ok, err := r.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		switch field {
		case 1:
			v, err := r.buf.DecodeRawBytes(true)
			if err != nil {
				return err
			}
			m.Payload = v
		case 2:
			v, err := r.buf.DecodeStringBytes()
			if err != nil {
				return err
			}
			m.ContentTopic = v
		case 3:
			v, err := r.buf.DecodeVarint()
			if err != nil {
				return err
			}
			m.Version = uint32(v)
		case 4:
			v, err := r.buf.DecodeVarint()
			if err != nil {
				return err
			}
			m.Timestamp = zigzagDecode(v)
		default:
			if err := r.skip(wireType); err != nil {
				return err
			}
		}
	}
}

// Index is the deterministic content identifier computed for a Message.
//
// PubsubTopic is populated from the Message's content topic rather than the
// pubsub topic the message travelled on — a documented wire-compatibility
// quirk inherited from the upstream protocol, not a bug. See waku.Codec.ComputeIndex.
type Index struct {
	Digest       []byte
	ReceiverTime int64
	SenderTime   int64
	PubsubTopic  string
}

func (idx *Index) present() bool {
	return idx != nil
}

// Marshal encodes idx into protobuf wire bytes.
func (idx *Index) Marshal() ([]byte, error) {
	b := proto.NewBuffer(nil)
	if idx == nil {
		return b.Bytes(), nil
	}
	if err := writeBytesField(b, 1, idx.Digest); err != nil {
		return nil, err
	}
	if idx.ReceiverTime != 0 {
		if err := writeVarintField(b, 2, zigzagEncode(idx.ReceiverTime)); err != nil {
			return nil, err
		}
	}
	if idx.SenderTime != 0 {
		if err := writeVarintField(b, 3, zigzagEncode(idx.SenderTime)); err != nil {
			return nil, err
		}
	}
	if err := writeStringField(b, 4, idx.PubsubTopic); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// Unmarshal decodes protobuf wire bytes into idx, resetting it first.
func (idx *Index) Unmarshal(data []byte) error {
	*idx = Index{}
	r := newFieldReader(data)
	for {
		field, wireType, ok, err := r.next()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		switch field {
		case 1:
			v, err := r.buf.DecodeRawBytes(true)
			if err != nil {
				return err
			}
			idx.Digest = v
		case 2:
			v, err := r.buf.DecodeVarint()
			if err != nil {
				return err
			}
			idx.ReceiverTime = zigzagDecode(v)
		case 3:
			v, err := r.buf.DecodeVarint()
			if err != nil {
				return err
			}
			idx.SenderTime = zigzagDecode(v)
		case 4:
			v, err := r.buf.DecodeStringBytes()
			if err != nil {
				return err
			}
			idx.PubsubTopic = v
		default:
			if err := r.skip(wireType); err != nil {
				return err
			}
		}
	}
}

// Equal reports whether two indices match on all four fields, per spec §3.
func (idx *Index) Equal(other *Index) bool {
	if idx == nil || other == nil {
		return idx == other
	}
	return string(idx.Digest) == string(other.Digest) &&
		idx.ReceiverTime == other.ReceiverTime &&
		idx.SenderTime == other.SenderTime &&
		idx.PubsubTopic == other.PubsubTopic
}
