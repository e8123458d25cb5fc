// Package runtime owns the relay's shared state: the session registry and
// the single command loop that mutates it.
// It coordinates identity, log and sinks without knowing about transports.
package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/runtime/workers"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var _ contract.IOrchestrator = (*Orchestrator)(nil)
var _ workers.CommandHandler = (*Orchestrator)(nil)

// Orchestrator processes core commands one at a time.
// Every registry, directory and log mutation happens under mu, so the
// command worker and the account API never interleave.
type Orchestrator struct {
	mu            sync.Mutex
	log           *slog.Logger
	supervisor    contract.ISupervisor
	registry      contract.IRegistry
	users         contract.IUserRepository
	messages      contract.IMessageLog
	metrics       contract.IMetrics
	commands      chan domain.Command
	done          chan struct{}
	stopOnce      sync.Once
	sinkTimeout   time.Duration
	now           func() time.Time
	lastTimestamp time.Time

	metricInterval       time.Duration
	lowCapacityThreshold int
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor,
	registry contract.IRegistry, users contract.IUserRepository,
	messages contract.IMessageLog, metrics contract.IMetrics,
	bufferSize int, sinkTimeout time.Duration) *Orchestrator {
	return &Orchestrator{
		log:         log,
		supervisor:  supervisor,
		registry:    registry,
		users:       users,
		messages:    messages,
		metrics:     metrics,
		commands:    make(chan domain.Command, bufferSize),
		done:        make(chan struct{}),
		sinkTimeout: sinkTimeout,
		now:         time.Now,
	}
}

// WithClock replaces the wall clock, used by tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// WithQueueSampling reports the command queue length every interval and
// warns when no more than lowCapacityThreshold slots are left.
func (o *Orchestrator) WithQueueSampling(interval time.Duration, lowCapacityThreshold int) *Orchestrator {
	o.metricInterval = interval
	o.lowCapacityThreshold = lowCapacityThreshold
	return o
}

// Connect registers a freshly opened, unauthenticated connection.
func (o *Orchestrator) Connect(conn domain.ConnectionID, sink contract.EventSink) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.registry.Attach(conn, sink)
	o.metrics.ConnectionOpened()
}

// Dispatch queues a command for the command worker.
// It blocks while the queue is full, until ctx ends or the engine stops.
func (o *Orchestrator) Dispatch(ctx context.Context, cmd domain.Command) error {
	select {
	case <-o.done:
		return errors.ErrEngineStopped
	default:
	}
	select {
	case o.commands <- cmd:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-o.done:
		return errors.ErrEngineStopped
	}
}

// Handle runs one command to completion.
// Returned errors are informational: the caller is never notified.
func (o *Orchestrator) Handle(ctx context.Context, cmd domain.Command) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var err error
	switch c := cmd.(type) {
	case domain.AuthenticateCommand:
		err = o.authenticate(ctx, c)
	case domain.SendMessageCommand:
		err = o.send(ctx, c)
	case domain.GetHistoryCommand:
		err = o.history(ctx, c)
	case domain.DisconnectCommand:
		err = o.disconnect(ctx, c)
	default:
		err = fmt.Errorf("%w: %T", errors.ErrUnknownEvent, cmd)
	}

	name := commandName(cmd)
	if err != nil {
		o.metrics.CommandIgnored(name, reason(err))
		return err
	}
	o.metrics.CommandHandled(name)
	return nil
}

func (o *Orchestrator) authenticate(ctx context.Context, cmd domain.AuthenticateCommand) error {
	user, err := o.users.GetUser(ctx, cmd.UserID)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return fmt.Errorf("%w: %s", errors.ErrUnknownUser, cmd.UserID)
		}
		return err
	}

	// Authenticating again on the same connection releases the first identity.
	// The same identity is only rebound: presence does not change.
	if previous, ok := o.registry.SessionOf(cmd.Connection); ok {
		if previous.UserID == user.ID {
			return o.reauthenticate(ctx, cmd, user)
		}
		if err := o.release(ctx, previous); err != nil {
			return err
		}
	}

	if err := o.users.SetOnline(ctx, user.ID, true); err != nil {
		return err
	}
	if !user.Online {
		o.metrics.PresenceChanged(true)
	}
	user.Online = true

	if superseded := o.registry.Bind(cmd.Connection, user.ID, cmd.Username); superseded != nil {
		o.log.Debug("Session superseded", "user_id", user.ID, "previous_connection_id", *superseded, "connection_id", cmd.Connection)
	}

	all, err := o.users.ListUsers(ctx)
	if err != nil {
		return err
	}
	others := lo.Filter(all, func(u domain.User, _ int) bool { return u.ID != user.ID })
	o.deliverTo(ctx, cmd.Connection, event.AllUsers{Users: others})

	o.broadcast(ctx, o.registry.SinksExcept(cmd.Connection), event.UserOnline{Profile: user.Profile()})
	o.log.Info("User authenticated", "user_id", user.ID, "username", cmd.Username)
	return nil
}

func (o *Orchestrator) reauthenticate(ctx context.Context, cmd domain.AuthenticateCommand, user domain.User) error {
	if !user.Online {
		if err := o.users.SetOnline(ctx, user.ID, true); err != nil {
			return err
		}
		o.metrics.PresenceChanged(true)
	}
	o.registry.Bind(cmd.Connection, user.ID, cmd.Username)

	all, err := o.users.ListUsers(ctx)
	if err != nil {
		return err
	}
	others := lo.Filter(all, func(u domain.User, _ int) bool { return u.ID != user.ID })
	o.deliverTo(ctx, cmd.Connection, event.AllUsers{Users: others})
	o.log.Debug("User re-authenticated", "user_id", user.ID, "username", cmd.Username)
	return nil
}

func (o *Orchestrator) disconnect(ctx context.Context, cmd domain.DisconnectCommand) error {
	defer func() {
		o.registry.Detach(cmd.Connection)
		o.metrics.ConnectionClosed()
	}()

	session, ok := o.registry.SessionOf(cmd.Connection)
	if !ok {
		return nil
	}
	return o.release(ctx, session)
}

// release unbinds a session. Presence only changes when the session was
// still the live binding of its user.
func (o *Orchestrator) release(ctx context.Context, session domain.Session) error {
	if !o.registry.Unbind(session.ConnectionID, session.UserID, session.Username) {
		o.log.Debug("Stale session released", "user_id", session.UserID, "connection_id", session.ConnectionID)
		return nil
	}

	if err := o.users.SetOnline(ctx, session.UserID, false); err != nil {
		if !stderrors.Is(err, errors.ErrUserNotFound) {
			return err
		}
	}
	o.metrics.PresenceChanged(false)
	o.broadcast(ctx, o.registry.SinksExcept(session.ConnectionID), event.UserOffline{UserID: session.UserID})
	o.log.Info("User offline", "user_id", session.UserID)
	return nil
}

func (o *Orchestrator) send(ctx context.Context, cmd domain.SendMessageCommand) error {
	session, ok := o.registry.SessionOf(cmd.Connection)
	if !ok {
		return errors.ErrUnauthenticated
	}
	sender, err := o.users.GetUser(ctx, session.UserID)
	if err != nil {
		if stderrors.Is(err, errors.ErrUserNotFound) {
			return fmt.Errorf("%w: %s", errors.ErrUnknownUser, session.UserID)
		}
		return err
	}

	message := domain.Message{
		ID:         uuid.New(),
		FromUserID: sender.ID,
		ToUserID:   cmd.ToUserID,
		Text:       cmd.Text,
		Timestamp:  o.timestamp(),
		Read:       false,
	}
	if err := o.messages.Append(ctx, message); err != nil {
		return err
	}

	profile := sender.Profile()
	o.deliverTo(ctx, cmd.Connection, event.NewMessage{Message: message, Direction: domain.Outgoing, Sender: profile})

	if recipient, ok := o.registry.ResolveUser(cmd.ToUserID); ok && recipient != cmd.Connection {
		o.deliverTo(ctx, recipient, event.NewMessage{Message: message, Direction: domain.Incoming, Sender: profile})
	}
	o.metrics.MessageRouted()
	return nil
}

func (o *Orchestrator) history(ctx context.Context, cmd domain.GetHistoryCommand) error {
	session, ok := o.registry.SessionOf(cmd.Connection)
	if !ok {
		return errors.ErrUnauthenticated
	}
	messages, err := o.History(ctx, session.UserID, cmd.WithUserID)
	if err != nil {
		return err
	}
	o.deliverTo(ctx, cmd.Connection, event.MessagesHistory{WithUserID: cmd.WithUserID, Messages: messages})
	return nil
}

// History returns the thread between userID and otherUserID, oldest first.
// Ties keep log order.
func (o *Orchestrator) History(ctx context.Context, userID, otherUserID string) ([]domain.Message, error) {
	messages, err := o.messages.Conversation(ctx, userID, otherUserID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})
	return messages, nil
}

// RekeySession follows a username change made through the account API.
func (o *Orchestrator) RekeySession(ctx context.Context, oldUsername, newUsername string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if oldUsername == newUsername {
		return false
	}
	ok := o.registry.Rekey(oldUsername, newUsername)
	if ok {
		o.log.Info("Session rekeyed", "from", oldUsername, "to", newUsername)
	}
	return ok
}

// BroadcastUserUpdated tells every open connection about a new profile.
func (o *Orchestrator) BroadcastUserUpdated(ctx context.Context, user domain.User) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.broadcast(ctx, o.registry.AllSinks(), event.UserUpdated{User: user})
}

// Start registers the command worker and blocks until the supervisor stops.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.supervisor.Add(workers.NewCommandWorker(o.log, o.commands, o))
	if o.metricInterval > 0 {
		o.supervisor.Add(workers.NewChannelCapacityWorker(o.log,
			[]workers.NamedChannel{{Name: "commands", Channel: o.commands}},
			o.metrics, o.metricInterval, o.lowCapacityThreshold))
	}
	o.log.Info("Starting orchestrator and all supervised workers")
	o.supervisor.Run(ctx)
	return nil
}

// Stop cancels the supervised workers. Later dispatches fail with
// ErrEngineStopped.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.stopOnce.Do(func() { close(o.done) })
	o.supervisor.Stop()
}

// timestamp never goes backwards, keeping log order and time order equal.
func (o *Orchestrator) timestamp() time.Time {
	t := o.now().UTC()
	if t.Before(o.lastTimestamp) {
		t = o.lastTimestamp
	}
	o.lastTimestamp = t
	return t
}

func (o *Orchestrator) deliverTo(ctx context.Context, conn domain.ConnectionID, evt event.DomainEvent) {
	sink, ok := o.registry.Sink(conn)
	if !ok {
		return
	}
	o.consume(ctx, sink, evt)
}

// broadcast is best effort: a failing sink never stops the others.
func (o *Orchestrator) broadcast(ctx context.Context, sinks []contract.EventSink, evt event.DomainEvent) {
	for _, sink := range sinks {
		o.consume(ctx, sink, evt)
	}
}

func (o *Orchestrator) consume(ctx context.Context, sink contract.EventSink, evt event.DomainEvent) {
	if o.sinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.sinkTimeout)
		defer cancel()
	}
	if err := sink.Consume(ctx, evt); err != nil {
		o.metrics.EventDropped(string(evt.Name()))
		o.log.Debug("Event dropped", "event", evt.Name(), "error", err)
		return
	}
	o.metrics.EventDelivered(string(evt.Name()))
}

func commandName(cmd domain.Command) string {
	switch cmd.(type) {
	case domain.AuthenticateCommand:
		return "authenticate"
	case domain.SendMessageCommand:
		return "send-message"
	case domain.GetHistoryCommand:
		return "get-history"
	case domain.DisconnectCommand:
		return "disconnect"
	default:
		return "unknown"
	}
}

func reason(err error) string {
	switch {
	case stderrors.Is(err, errors.ErrUnauthenticated):
		return "unauthenticated"
	case stderrors.Is(err, errors.ErrUnknownUser):
		return "unknown_user"
	case stderrors.Is(err, errors.ErrUnknownEvent):
		return "unknown_event"
	default:
		return "internal"
	}
}
