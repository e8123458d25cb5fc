package ws

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		frame   string
		event   string
		payload any
		err     error
	}{
		{
			name:    "authenticate",
			frame:   `{"event":"authenticate","data":{"id":"u1","username":"alice"}}`,
			event:   Authenticate,
			payload: &AuthenticatePayload{ID: "u1", Username: "alice"},
		},
		{
			name:    "send-message",
			frame:   `{"event":"send-message","data":{"to":"u2","text":"hi"}}`,
			event:   SendMessage,
			payload: &SendMessagePayload{To: "u2", Text: "hi"},
		},
		{
			name:    "get-history",
			frame:   `{"event":"get-history","data":{"withUserId":"u2"}}`,
			event:   GetHistory,
			payload: &GetHistoryPayload{WithUserID: "u2"},
		},
		{name: "not json", frame: `hello`, err: errors.ErrInvalidPayload},
		{name: "unknown event", frame: `{"event":"typing","data":{}}`, event: "typing", err: errors.ErrUnknownEvent},
		{name: "missing data", frame: `{"event":"send-message"}`, event: SendMessage, err: errors.ErrInvalidPayload},
		{name: "wrong shape", frame: `{"event":"send-message","data":{"to":42}}`, event: SendMessage, err: errors.ErrInvalidPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			name, payload, err := Decode([]byte(tt.frame))
			req.Equal(tt.event, name)
			if tt.err != nil {
				req.ErrorIs(err, tt.err)
				return
			}
			req.NoError(err)
			req.Equal(tt.payload, payload)
		})
	}
}

func TestEncode_NewMessage(t *testing.T) {
	req := require.New(t)
	id := uuid.New()
	at := time.Date(2026, 3, 1, 12, 0, 0, 500, time.UTC)

	frame, err := Encode(event.NewMessage{
		Message:   domain.Message{ID: id, FromUserID: "u1", ToUserID: "u2", Text: "hi", Timestamp: at},
		Direction: domain.Outgoing,
		Sender:    domain.Profile{ID: "u1", Username: "alice", Name: "Alice"},
	})
	req.NoError(err)

	expected := `{"event":"new-message","data":{
		"id":"` + id.String() + `","from":"u1","to":"u2","text":"hi",
		"timestamp":"2026-03-01T12:00:00.0000005Z","read":false,"direction":"outgoing",
		"user":{"id":"u1","username":"alice","name":"Alice","avatar":null}}}`
	req.JSONEq(expected, string(frame))
}

func TestEncode_Presence_And_Directory(t *testing.T) {
	avatar := "data:image/png;base64,AAAA"
	tests := []struct {
		name     string
		event    event.DomainEvent
		expected string
	}{
		{
			name:     "user-offline is a bare id",
			event:    event.UserOffline{UserID: "u1"},
			expected: `{"event":"user-offline","data":"u1"}`,
		},
		{
			name:     "user-online",
			event:    event.UserOnline{Profile: domain.Profile{ID: "u1", Username: "alice", Name: "Alice", Avatar: &avatar}},
			expected: `{"event":"user-online","data":{"id":"u1","username":"alice","name":"Alice","avatar":"data:image/png;base64,AAAA"}}`,
		},
		{
			name:     "all-users",
			event:    event.AllUsers{Users: []domain.User{{ID: "u2", Username: "bob", Name: "Bob", Online: true}}},
			expected: `{"event":"all-users","data":[{"id":"u2","username":"bob","name":"Bob","avatar":null,"online":true}]}`,
		},
		{
			name:     "empty all-users is an empty list",
			event:    event.AllUsers{},
			expected: `{"event":"all-users","data":[]}`,
		},
		{
			name:     "empty history",
			event:    event.MessagesHistory{WithUserID: "u2"},
			expected: `{"event":"messages-history","data":{"withUserId":"u2","messages":[]}}`,
		},
		{
			name:     "user-updated",
			event:    event.UserUpdated{User: domain.User{ID: "u1", Username: "alicia", Name: "Alicia"}},
			expected: `{"event":"user-updated","data":{"id":"u1","username":"alicia","name":"Alicia","avatar":null,"online":false}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame, err := Encode(tt.event)
			require.NoError(t, err)
			require.JSONEq(t, tt.expected, string(frame))
		})
	}
}

func TestEncode_Roundtrip_Envelope(t *testing.T) {
	req := require.New(t)
	frame, err := Encode(event.UserOffline{UserID: "u1"})
	req.NoError(err)

	var envelope Envelope
	req.NoError(json.Unmarshal(frame, &envelope))
	req.Equal("user-offline", envelope.Event)
}
