package ws

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"encoding/json"
	"fmt"
	"time"

	"github.com/samber/lo"
)

// Inbound event names.
const (
	Authenticate = "authenticate"
	SendMessage  = "send-message"
	GetHistory   = "get-history"
)

// Envelope is the frame exchanged in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type AuthenticatePayload struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

type SendMessagePayload struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type GetHistoryPayload struct {
	WithUserID string `json:"withUserId"`
}

type UserView struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Name     string  `json:"name"`
	Avatar   *string `json:"avatar"`
	Online   bool    `json:"online"`
}

type ProfileView struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Name     string  `json:"name"`
	Avatar   *string `json:"avatar"`
}

type MessageView struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	To        string `json:"to"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
	Read      bool   `json:"read"`
}

type NewMessageView struct {
	MessageView
	Direction domain.Direction `json:"direction"`
	User      ProfileView      `json:"user"`
}

type MessagesHistoryView struct {
	WithUserID string        `json:"withUserId"`
	Messages   []MessageView `json:"messages"`
}

// Decode parses an inbound frame into its typed payload.
func Decode(frame []byte) (string, any, error) {
	var envelope Envelope
	if err := json.Unmarshal(frame, &envelope); err != nil {
		return "", nil, fmt.Errorf("%w: %w", errors.ErrInvalidPayload, err)
	}

	var payload any
	switch envelope.Event {
	case Authenticate:
		payload = &AuthenticatePayload{}
	case SendMessage:
		payload = &SendMessagePayload{}
	case GetHistory:
		payload = &GetHistoryPayload{}
	default:
		return envelope.Event, nil, fmt.Errorf("%w: %q", errors.ErrUnknownEvent, envelope.Event)
	}
	if len(envelope.Data) == 0 {
		return envelope.Event, nil, fmt.Errorf("%w: %s without data", errors.ErrInvalidPayload, envelope.Event)
	}
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return envelope.Event, nil, fmt.Errorf("%w: %w", errors.ErrInvalidPayload, err)
	}
	return envelope.Event, payload, nil
}

// Encode renders an outbound event as a frame.
func Encode(e event.DomainEvent) ([]byte, error) {
	var data any
	switch evt := e.(type) {
	case event.AllUsers:
		data = lo.Map(evt.Users, func(u domain.User, _ int) UserView { return toUserView(u) })
	case event.UserOnline:
		data = toProfileView(evt.Profile)
	case event.UserOffline:
		data = evt.UserID
	case event.NewMessage:
		data = NewMessageView{
			MessageView: toMessageView(evt.Message),
			Direction:   evt.Direction,
			User:        toProfileView(evt.Sender),
		}
	case event.MessagesHistory:
		data = MessagesHistoryView{
			WithUserID: evt.WithUserID,
			Messages:   lo.Map(evt.Messages, func(m domain.Message, _ int) MessageView { return toMessageView(m) }),
		}
	case event.UserUpdated:
		data = toUserView(evt.User)
	default:
		return nil, fmt.Errorf("%w: %T", errors.ErrUnknownEvent, e)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{Event: string(e.Name()), Data: raw})
}

func toUserView(u domain.User) UserView {
	return UserView{ID: u.ID, Username: u.Username, Name: u.Name, Avatar: u.Avatar, Online: u.Online}
}

func toProfileView(p domain.Profile) ProfileView {
	return ProfileView{ID: p.ID, Username: p.Username, Name: p.Name, Avatar: p.Avatar}
}

func toMessageView(m domain.Message) MessageView {
	return MessageView{
		ID:        m.ID.String(),
		From:      m.FromUserID,
		To:        m.ToUserID,
		Text:      m.Text,
		Timestamp: m.Timestamp.UTC().Format(time.RFC3339Nano),
		Read:      m.Read,
	}
}
