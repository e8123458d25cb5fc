package event

import (
	"chat-relay/domain"
)

// Name is the wire name of an outbound event.
type Name string

const (
	AllUsersName        Name = "all-users"
	UserOnlineName      Name = "user-online"
	UserOfflineName     Name = "user-offline"
	NewMessageName      Name = "new-message"
	MessagesHistoryName Name = "messages-history"
	UserUpdatedName     Name = "user-updated"
)

// DomainEvent is anything the core delivers to one or more connections.
type DomainEvent interface {
	Name() Name
}

// AllUsers is the directory snapshot sent to a freshly authenticated connection.
// It never contains the authenticated user itself.
type AllUsers struct {
	Users []domain.User
}

func (AllUsers) Name() Name { return AllUsersName }

// UserOnline is broadcast to every other connection after authentication.
type UserOnline struct {
	Profile domain.Profile
}

func (UserOnline) Name() Name { return UserOnlineName }

// UserOffline is broadcast to every other connection after a disconnect.
type UserOffline struct {
	UserID string
}

func (UserOffline) Name() Name { return UserOfflineName }

// NewMessage is the realtime copy of a routed message.
// Sender carries the author's public profile.
type NewMessage struct {
	Message   domain.Message
	Direction domain.Direction
	Sender    domain.Profile
}

func (NewMessage) Name() Name { return NewMessageName }

// MessagesHistory answers a history query, oldest first.
type MessagesHistory struct {
	WithUserID string
	Messages   []domain.Message
}

func (MessagesHistory) Name() Name { return MessagesHistoryName }

// UserUpdated is broadcast to everyone after a profile change.
type UserUpdated struct {
	User domain.User
}

func (UserUpdated) Name() Name { return UserUpdatedName }
