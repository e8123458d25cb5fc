package repositories

import (
	"chat-relay/codec"
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"
)

var _ contract.IMessageLog = (*MessageRepository)(nil)

const (
	messagePrefix     = "msg:"
	pairPrefix        = "pair:"
	messageSequence   = "seq:msg"
	sequenceBandwidth = 1000
)

// MessageRepository is the Badger backed message log.
// Every message is stored once under "msg:{seq}" and referenced from
// "pair:{len}:{low}:{len}:{high}:{seq}" so a conversation is a single prefix scan.
type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
	seq *badger.Sequence
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) (*MessageRepository, error) {
	seq, err := db.GetSequence([]byte(messageSequence), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("message sequence: %w", err)
	}
	return &MessageRepository{db: db, log: log, seq: seq}, nil
}

type diskMessage struct {
	ID   string    `cbor:"id"`
	From string    `cbor:"from"`
	To   string    `cbor:"to"`
	Text string    `cbor:"text"`
	At   time.Time `cbor:"at"`
	Read bool      `cbor:"read"`
}

// Append stores the message after every message already stored.
// Keys use a 20-digit zero padded sequence so lexicographic order is log order.
func (m *MessageRepository) Append(_ context.Context, message domain.Message) error {
	n, err := m.seq.Next()
	if err != nil {
		return fmt.Errorf("next message sequence: %w", err)
	}
	bytes, err := codec.Marshal(fromMessage(message))
	if err != nil {
		return err
	}
	key := messageKey(n)
	return m.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, bytes); err != nil {
			return err
		}
		return txn.Set(pairKey(domain.NewConversationPair(message.FromUserID, message.ToUserID), n), key)
	})
}

// Conversation returns every message between userID and otherUserID in log order.
func (m *MessageRepository) Conversation(_ context.Context, userID, otherUserID string) ([]domain.Message, error) {
	var messages []domain.Message
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := pairScanPrefix(domain.NewConversationPair(userID, otherUserID))
		options := badger.DefaultIteratorOptions
		options.Prefix = prefix
		it := txn.NewIterator(options)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			ref, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			item, err := txn.Get(ref)
			if err != nil {
				return fmt.Errorf("dangling conversation entry %q: %w", ref, err)
			}
			var dm diskMessage
			if err := item.Value(func(value []byte) error {
				return codec.Unmarshal(value, &dm)
			}); err != nil {
				return err
			}
			message, err := toMessage(dm)
			if err != nil {
				return err
			}
			if !message.Between(userID, otherUserID) {
				return fmt.Errorf("conversation entry %q points at a foreign message", it.Item().Key())
			}
			messages = append(messages, message)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return lo.Ternary(messages == nil, []domain.Message{}, messages), nil
}

// Len counts the stored messages with a key-only scan.
func (m *MessageRepository) Len(_ context.Context) (int, error) {
	count := 0
	err := m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		options.Prefix = []byte(messagePrefix)
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Close releases the leased sequence range.
func (m *MessageRepository) Close() error {
	return m.seq.Release()
}

func messageKey(n uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", messagePrefix, n))
}

// pairScanPrefix length-prefixes both ids so ids containing ':' cannot collide.
func pairScanPrefix(pair domain.ConversationPair) []byte {
	return []byte(fmt.Sprintf("%s%d:%s:%d:%s:", pairPrefix, len(pair.Low), pair.Low, len(pair.High), pair.High))
}

func pairKey(pair domain.ConversationPair, n uint64) []byte {
	return append(pairScanPrefix(pair), []byte(fmt.Sprintf("%020d", n))...)
}

func fromMessage(message domain.Message) diskMessage {
	return diskMessage{
		ID:   message.ID.String(),
		From: message.FromUserID,
		To:   message.ToUserID,
		Text: message.Text,
		At:   message.Timestamp,
		Read: message.Read,
	}
}

func toMessage(dm diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:         parsedID,
		FromUserID: dm.From,
		ToUserID:   dm.To,
		Text:       dm.Text,
		Timestamp:  dm.At.UTC(),
		Read:       dm.Read,
	}, nil
}
