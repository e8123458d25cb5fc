package repositories

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

// MessageLogSuite runs the same expectations against every backend.
type MessageLogSuite struct {
	suite.Suite
	open    func() (contract.IMessageLog, func())
	log     contract.IMessageLog
	cleanup func()
	ctx     context.Context
	at      time.Time
}

func (s *MessageLogSuite) SetupTest() {
	s.ctx = context.Background()
	s.at = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.log, s.cleanup = s.open()
}

func (s *MessageLogSuite) TearDownTest() {
	s.cleanup()
}

func (s *MessageLogSuite) message(from, to, text string, offset time.Duration) domain.Message {
	return domain.Message{
		ID:         uuid.New(),
		FromUserID: from,
		ToUserID:   to,
		Text:       text,
		Timestamp:  s.at.Add(offset),
	}
}

func (s *MessageLogSuite) TestConversation_Both_Directions_In_Log_Order() {
	req := s.Require()
	messages := []domain.Message{
		s.message("u1", "u2", "hi", 0),
		s.message("u2", "u1", "hello", time.Second),
		s.message("u1", "u3", "other thread", 2*time.Second),
		s.message("u1", "u2", "how are you", 3*time.Second),
	}
	for _, m := range messages {
		req.NoError(s.log.Append(s.ctx, m))
	}

	forward, err := s.log.Conversation(s.ctx, "u1", "u2")
	req.NoError(err)
	backward, err := s.log.Conversation(s.ctx, "u2", "u1")
	req.NoError(err)

	expected := []domain.Message{messages[0], messages[1], messages[3]}
	req.Equal(expected, forward)
	req.Equal(forward, backward)
}

func (s *MessageLogSuite) TestConversation_Empty() {
	req := s.Require()
	req.NoError(s.log.Append(s.ctx, s.message("u1", "u2", "hi", 0)))

	messages, err := s.log.Conversation(s.ctx, "u1", "ghost")
	req.NoError(err)
	req.NotNil(messages)
	req.Empty(messages)
}

func (s *MessageLogSuite) TestConversation_Same_Timestamp_Keeps_Insertion_Order() {
	req := s.Require()
	var appended []domain.Message
	for i := 0; i < 25; i++ {
		m := s.message("u1", "u2", fmt.Sprintf("burst %d", i), 0)
		appended = append(appended, m)
		req.NoError(s.log.Append(s.ctx, m))
	}

	messages, err := s.log.Conversation(s.ctx, "u2", "u1")
	req.NoError(err)
	req.Equal(appended, messages)
}

func (s *MessageLogSuite) TestConversation_Ids_With_Separator_Do_Not_Collide() {
	req := s.Require()
	req.NoError(s.log.Append(s.ctx, s.message("a:b", "c", "first", 0)))
	req.NoError(s.log.Append(s.ctx, s.message("a", "b:c", "second", time.Second)))

	messages, err := s.log.Conversation(s.ctx, "a", "b:c")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("second", messages[0].Text)
}

func (s *MessageLogSuite) TestConversation_Separator_In_Second_Id_Does_Not_Leak() {
	req := s.Require()
	req.NoError(s.log.Append(s.ctx, s.message("a", "b", "real", 0)))
	req.NoError(s.log.Append(s.ctx, s.message("a", "b:x", "not for b", time.Second)))

	messages, err := s.log.Conversation(s.ctx, "b", "a")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("real", messages[0].Text)

	messages, err = s.log.Conversation(s.ctx, "a", "b:x")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("not for b", messages[0].Text)
}

func (s *MessageLogSuite) TestConversation_Prefix_Ids_Stay_Apart() {
	req := s.Require()
	req.NoError(s.log.Append(s.ctx, s.message("u1", "u2", "short", 0)))
	req.NoError(s.log.Append(s.ctx, s.message("u1", "u20", "longer", time.Second)))
	req.NoError(s.log.Append(s.ctx, s.message("u10", "u2", "other low", 2*time.Second)))
	req.NoError(s.log.Append(s.ctx, s.message("u1:", "u2", "colon low", 3*time.Second)))

	messages, err := s.log.Conversation(s.ctx, "u2", "u1")
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("short", messages[0].Text)
}

func (s *MessageLogSuite) TestConversation_With_Self() {
	req := s.Require()
	req.NoError(s.log.Append(s.ctx, s.message("u1", "u1", "note to self", 0)))
	req.NoError(s.log.Append(s.ctx, s.message("u1", "u2", "hi", time.Second)))

	self, err := s.log.Conversation(s.ctx, "u1", "u1")
	req.NoError(err)
	req.Len(self, 1)
	req.Equal("note to self", self[0].Text)

	other, err := s.log.Conversation(s.ctx, "u1", "u2")
	req.NoError(err)
	req.Len(other, 1)
	req.Equal("hi", other[0].Text)
}

func (s *MessageLogSuite) TestLen_Counts_Every_Append() {
	req := s.Require()
	for i := 0; i < 3; i++ {
		req.NoError(s.log.Append(s.ctx, s.message("u1", "u2", "x", time.Duration(i))))
	}
	n, err := s.log.Len(s.ctx)
	req.NoError(err)
	req.Equal(3, n)
}

func TestMessageLog_Memory(t *testing.T) {
	suite.Run(t, &MessageLogSuite{open: func() (contract.IMessageLog, func()) {
		return NewMessageLog(), func() {}
	}})
}

func TestMessageLog_Badger(t *testing.T) {
	var db *badger.DB
	suite.Run(t, &MessageLogSuite{open: func() (contract.IMessageLog, func()) {
		var err error
		db, err = OpenInMemory()
		if err != nil {
			t.Fatal(err)
		}
		repository, err := NewMessageRepository(db, slog.Default())
		if err != nil {
			t.Fatal(err)
		}
		return repository, func() {
			_ = repository.Close()
			_ = db.Close()
		}
	}})
}
