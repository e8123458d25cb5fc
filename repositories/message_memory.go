package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"sync"

	"github.com/samber/lo"
)

var _ contract.IMessageLog = (*MessageLog)(nil)

// MessageLog is the in-memory message log. Entries are never mutated or removed.
type MessageLog struct {
	mu       sync.RWMutex
	messages []domain.Message
}

func NewMessageLog() *MessageLog {
	return &MessageLog{}
}

func (l *MessageLog) Append(_ context.Context, message domain.Message) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, message)
	return nil
}

// Conversation scans the whole log. Appends landing during the scan are not seen.
func (l *MessageLog) Conversation(_ context.Context, userID, otherUserID string) ([]domain.Message, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return lo.Filter(l.messages, func(m domain.Message, _ int) bool {
		return m.Between(userID, otherUserID)
	}), nil
}

func (l *MessageLog) Len(_ context.Context) (int, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages), nil
}
