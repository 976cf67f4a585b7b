package repositories

import (
	"context"
	"duochat/contract"
	"duochat/domain"
	"duochat/errors"
	"duochat/runtime"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

var _ contract.IConversationStore = (*ConversationStore)(nil)

// ConversationStore owns every conversation and its message log.
//
// Layout:
//
//	conv:{a}:{b}            -> conversation header (members, count, last sentAt)
//	member:{identity}:{a}:{b} -> empty marker, one per participant
//	msg:{a}:{b}:{seq}       -> message, seq padded on 19 digits
//
// Identities are hex encoded inside keys so that prefix scans can never
// overlap between pairs. Zero padding keeps lexicographic order equal to
// insertion order.
type ConversationStore struct {
	db    *badger.DB
	log   *slog.Logger
	locks *runtime.KeyedMutex
	now   func() time.Time
}

func NewConversationStore(db *badger.DB, log *slog.Logger) *ConversationStore {
	return &ConversationStore{
		db:    db,
		log:   log,
		locks: runtime.NewKeyedMutex(),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// OpenInMemory opens a badger database living in process memory only.
// Everything is lost on restart. Badger logs at INFO when log is at DEBUG, WARNING otherwise.
func OpenInMemory(log *slog.Logger) (*badger.DB, error) {
	options := badger.DefaultOptions("").WithInMemory(true)
	if log.Enabled(context.Background(), slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.INFO)
	} else {
		options = options.WithLoggingLevel(badger.WARNING)
	}
	return badger.Open(options)
}

// GetOrCreate returns the conversation of the pair, creating an empty one if needed.
func (s *ConversationStore) GetOrCreate(a, b domain.Identity) (domain.Conversation, error) {
	if !a.Valid() || !b.Valid() {
		return domain.Conversation{}, errors.ErrInvalidIdentity
	}
	key := domain.Key(a, b)
	unlock := s.locks.Lock(key)
	err := s.db.Update(func(txn *badger.Txn) error {
		_, err := s.ensureConversation(txn, key)
		return err
	})
	unlock()
	if err != nil {
		return domain.Conversation{}, err
	}

	messages, err := s.History(a, b)
	if err != nil {
		return domain.Conversation{}, err
	}
	return domain.Conversation{
		Key:      key,
		Members:  [2]domain.Identity{key.A, key.B},
		Messages: messages,
	}, nil
}

// Append stores a message at the tail of the pair's conversation.
// Seq and sentAt are assigned here, under the conversation lock, so concurrent
// appends never interleave and sentAt never goes backwards inside one log.
func (s *ConversationStore) Append(from, to domain.Identity, text string) (domain.Message, error) {
	if !from.Valid() || !to.Valid() {
		return domain.Message{}, errors.ErrInvalidIdentity
	}
	if domain.IsBlank(text) {
		return domain.Message{}, errors.ErrEmptyMessage
	}
	key := domain.Key(from, to)
	unlock := s.locks.Lock(key)
	defer unlock()

	var message domain.Message
	err := s.db.Update(func(txn *badger.Txn) error {
		header, err := s.ensureConversation(txn, key)
		if err != nil {
			return err
		}

		sentAt := s.now()
		if sentAt.Before(header.LastSentAt) {
			sentAt = header.LastSentAt
		}
		header.Count++
		header.LastSentAt = sentAt

		message = domain.Message{
			ID:     uuid.New(),
			Seq:    header.Count,
			From:   from,
			To:     to,
			Text:   text,
			SentAt: sentAt,
		}
		if err = txn.Set(messageKey(key, message.Seq), marshalMessage(message)); err != nil {
			return err
		}
		return txn.Set(conversationKey(key), marshalConversation(header))
	})
	if err != nil {
		return domain.Message{}, fmt.Errorf("append to %s: %w", key, err)
	}
	s.log.Debug("Message appended", "conversation", key.String(), "seq", message.Seq)
	return message, nil
}

// History returns the full log of the pair, oldest first.
// An unknown pair yields an empty slice and no error.
func (s *ConversationStore) History(a, b domain.Identity) ([]domain.Message, error) {
	key := domain.Key(a, b)
	messages := make([]domain.Message, 0)
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := messagePrefix(key)
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(value []byte) error {
				message, err := unmarshalMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// ListForIdentity returns one summary per conversation the identity takes part in.
// The most recently active conversations come first, empty ones last.
func (s *ConversationStore) ListForIdentity(identity domain.Identity) ([]domain.ConversationSummary, error) {
	type entry struct {
		header  conversationRecord
		summary domain.ConversationSummary
	}
	var entries []entry
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := memberPrefix(identity)
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		var keys []domain.ConversationKey
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key, err := parsePair(string(it.Item().Key()[len(prefix):]))
			if err != nil {
				return err
			}
			keys = append(keys, key)
		}

		for _, key := range keys {
			header, err := getConversation(txn, key)
			if err != nil {
				return err
			}
			summary := domain.ConversationSummary{
				Peer:          key.Peer(identity),
				TotalMessages: int(header.Count),
			}
			if header.Count > 0 {
				last, err := getMessage(txn, key, header.Count)
				if err != nil {
					return err
				}
				summary.LastMessage = &last
			}
			entries = append(entries, entry{header: header, summary: summary})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		hi, hj := entries[i].header, entries[j].header
		if hi.Count == 0 || hj.Count == 0 {
			if hi.Count != hj.Count {
				return hj.Count == 0
			}
			return hi.key().String() < hj.key().String()
		}
		if !hi.LastSentAt.Equal(hj.LastSentAt) {
			return hi.LastSentAt.After(hj.LastSentAt)
		}
		return hi.key().String() < hj.key().String()
	})

	summaries := make([]domain.ConversationSummary, 0, len(entries))
	for _, e := range entries {
		summaries = append(summaries, e.summary)
	}
	return summaries, nil
}

// ensureConversation must run under the conversation lock.
func (s *ConversationStore) ensureConversation(txn *badger.Txn, key domain.ConversationKey) (conversationRecord, error) {
	header, err := getConversation(txn, key)
	if err == nil {
		return header, nil
	}
	if !stderrors.Is(err, badger.ErrKeyNotFound) {
		return conversationRecord{}, err
	}

	header = conversationRecord{A: key.A, B: key.B, CreatedAt: s.now()}
	if err = txn.Set(conversationKey(key), marshalConversation(header)); err != nil {
		return conversationRecord{}, err
	}
	for _, member := range uniqueMembers(key) {
		if err = txn.Set(memberKey(member, key), nil); err != nil {
			return conversationRecord{}, err
		}
	}
	s.log.Debug("Conversation created", "conversation", key.String())
	return header, nil
}

func getConversation(txn *badger.Txn, key domain.ConversationKey) (conversationRecord, error) {
	item, err := txn.Get(conversationKey(key))
	if err != nil {
		return conversationRecord{}, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return conversationRecord{}, err
	}
	return unmarshalConversation(value)
}

func getMessage(txn *badger.Txn, key domain.ConversationKey, seq uint64) (domain.Message, error) {
	item, err := txn.Get(messageKey(key, seq))
	if err != nil {
		return domain.Message{}, err
	}
	value, err := item.ValueCopy(nil)
	if err != nil {
		return domain.Message{}, err
	}
	return unmarshalMessage(value)
}

func uniqueMembers(key domain.ConversationKey) []domain.Identity {
	if key.A == key.B {
		return []domain.Identity{key.A}
	}
	return []domain.Identity{key.A, key.B}
}

func pair(key domain.ConversationKey) string {
	return hex.EncodeToString([]byte(key.A)) + ":" + hex.EncodeToString([]byte(key.B))
}

func parsePair(s string) (domain.ConversationKey, error) {
	a, b, ok := strings.Cut(s, ":")
	if !ok {
		return domain.ConversationKey{}, fmt.Errorf("malformed pair %q", s)
	}
	rawA, err := hex.DecodeString(a)
	if err != nil {
		return domain.ConversationKey{}, err
	}
	rawB, err := hex.DecodeString(b)
	if err != nil {
		return domain.ConversationKey{}, err
	}
	return domain.ConversationKey{A: domain.Identity(rawA), B: domain.Identity(rawB)}, nil
}

func conversationKey(key domain.ConversationKey) []byte {
	return []byte("conv:" + pair(key))
}

func memberPrefix(identity domain.Identity) []byte {
	return []byte("member:" + hex.EncodeToString([]byte(identity)) + ":")
}

func memberKey(identity domain.Identity, key domain.ConversationKey) []byte {
	return append(memberPrefix(identity), pair(key)...)
}

func messagePrefix(key domain.ConversationKey) []byte {
	return []byte("msg:" + pair(key) + ":")
}

func messageKey(key domain.ConversationKey, seq uint64) []byte {
	return append(messagePrefix(key), fmt.Sprintf("%019d", seq)...)
}

// Close releases the underlying database.
func (s *ConversationStore) Close() error {
	return s.db.Close()
}
