//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// EventSink receives the events addressed to one connection.
// Consume must not block the caller.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry is the session registry: which connections are open and
// which user identity each authenticated connection carries.
type IRegistry interface {
	Attach(conn domain.ConnectionID, sink EventSink)
	Detach(conn domain.ConnectionID)
	Bind(conn domain.ConnectionID, userID, username string) (superseded *domain.ConnectionID)
	Unbind(conn domain.ConnectionID, userID, username string) bool
	Resolve(username string) (domain.ConnectionID, bool)
	ResolveUser(userID string) (domain.ConnectionID, bool)
	Rekey(oldUsername, newUsername string) bool
	SessionOf(conn domain.ConnectionID) (domain.Session, bool)
	Sink(conn domain.ConnectionID) (EventSink, bool)
	SinksExcept(conn domain.ConnectionID) []EventSink
	AllSinks() []EventSink
}

// IMessageLog is the append-only ordered store of every sent message.
type IMessageLog interface {
	Append(ctx context.Context, message domain.Message) error
	Conversation(ctx context.Context, userID, otherUserID string) ([]domain.Message, error)
	Len(ctx context.Context) (int, error)
}

// IUserRepository is the identity directory.
type IUserRepository interface {
	CreateUser(ctx context.Context, username, name string) (domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	SetOnline(ctx context.Context, id string, online bool) error
	UpdateProfile(ctx context.Context, id, username, name string, avatar *string) (previous domain.User, updated domain.User, err error)
}

// IUserIndex answers free-text user searches.
type IUserIndex interface {
	Index(ctx context.Context, user domain.User) error
	Search(ctx context.Context, query string) ([]string, error)
}

// IMetrics is what the core and the transport report to.
type IMetrics interface {
	ConnectionOpened()
	ConnectionClosed()
	PresenceChanged(online bool)
	CommandHandled(name string)
	CommandIgnored(name string, reason string)
	MessageRouted()
	EventDelivered(name string)
	EventDropped(name string)
	QueueSampled(name string, length, capacity int)
}

type IOrchestrator interface {
	Connect(conn domain.ConnectionID, sink EventSink)
	Handle(ctx context.Context, cmd domain.Command) error
	Dispatch(ctx context.Context, cmd domain.Command) error
	RekeySession(ctx context.Context, oldUsername, newUsername string) bool
	BroadcastUserUpdated(ctx context.Context, user domain.User)
	Start(ctx context.Context) error
	Stop()
}
