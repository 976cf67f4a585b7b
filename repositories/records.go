package repositories

import (
	"duochat/domain"
	"fmt"
	"time"

	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored with the protobuf wire format, field numbers below are frozen.
const (
	messageFieldID     protowire.Number = 1
	messageFieldSeq    protowire.Number = 2
	messageFieldFrom   protowire.Number = 3
	messageFieldTo     protowire.Number = 4
	messageFieldText   protowire.Number = 5
	messageFieldSentAt protowire.Number = 6

	conversationFieldA          protowire.Number = 1
	conversationFieldB          protowire.Number = 2
	conversationFieldCount      protowire.Number = 3
	conversationFieldLastSentAt protowire.Number = 4
	conversationFieldCreatedAt  protowire.Number = 5
)

// conversationRecord is the header of a conversation log.
type conversationRecord struct {
	A          domain.Identity
	B          domain.Identity
	Count      uint64
	LastSentAt time.Time
	CreatedAt  time.Time
}

func (c conversationRecord) key() domain.ConversationKey {
	return domain.ConversationKey{A: c.A, B: c.B}
}

func marshalMessage(m domain.Message) []byte {
	var b []byte
	b = protowire.AppendTag(b, messageFieldID, protowire.BytesType)
	b = protowire.AppendBytes(b, m.ID[:])
	b = protowire.AppendTag(b, messageFieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, m.Seq)
	b = protowire.AppendTag(b, messageFieldFrom, protowire.BytesType)
	b = protowire.AppendString(b, string(m.From))
	b = protowire.AppendTag(b, messageFieldTo, protowire.BytesType)
	b = protowire.AppendString(b, string(m.To))
	b = protowire.AppendTag(b, messageFieldText, protowire.BytesType)
	b = protowire.AppendString(b, m.Text)
	b = protowire.AppendTag(b, messageFieldSentAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.SentAt.UnixNano()))
	return b
}

func unmarshalMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == messageFieldID && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return n, nil
			}
			id, err := uuid.FromBytes(v)
			if err != nil {
				return 0, err
			}
			m.ID = id
			return n, nil
		case num == messageFieldSeq && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.Seq = v
			return n, nil
		case num == messageFieldFrom && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.From = domain.Identity(v)
			return n, nil
		case num == messageFieldTo && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.To = domain.Identity(v)
			return n, nil
		case num == messageFieldText && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			m.Text = v
			return n, nil
		case num == messageFieldSentAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			m.SentAt = time.Unix(0, int64(v)).UTC()
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return m, err
}

func marshalConversation(c conversationRecord) []byte {
	var b []byte
	b = protowire.AppendTag(b, conversationFieldA, protowire.BytesType)
	b = protowire.AppendString(b, string(c.A))
	b = protowire.AppendTag(b, conversationFieldB, protowire.BytesType)
	b = protowire.AppendString(b, string(c.B))
	b = protowire.AppendTag(b, conversationFieldCount, protowire.VarintType)
	b = protowire.AppendVarint(b, c.Count)
	b = protowire.AppendTag(b, conversationFieldLastSentAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(unixNano(c.LastSentAt)))
	b = protowire.AppendTag(b, conversationFieldCreatedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(unixNano(c.CreatedAt)))
	return b
}

func unmarshalConversation(b []byte) (conversationRecord, error) {
	var c conversationRecord
	err := consumeFields(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == conversationFieldA && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			c.A = domain.Identity(v)
			return n, nil
		case num == conversationFieldB && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			c.B = domain.Identity(v)
			return n, nil
		case num == conversationFieldCount && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.Count = v
			return n, nil
		case num == conversationFieldLastSentAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.LastSentAt = fromUnixNano(int64(v))
			return n, nil
		case num == conversationFieldCreatedAt && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			c.CreatedAt = fromUnixNano(int64(v))
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, b), nil
	})
	return c, err
}

// consumeFields walks a record and hands every field value to fn,
// fn returns how many bytes it consumed or a negative protowire error code.
func consumeFields(b []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("corrupted record tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		n, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if n < 0 {
			return fmt.Errorf("corrupted record field %d: %w", num, protowire.ParseError(n))
		}
		b = b[n:]
	}
	return nil
}

func unixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.Unix(0, v).UTC()
}
