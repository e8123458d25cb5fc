package ws

import (
	"chat-relay/contract"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"context"
	"sync"
)

var _ contract.EventSink = (*Sink)(nil)

// Sink is the outbound queue of one websocket connection.
// Consume never blocks: a full queue drops the event.
type Sink struct {
	events    chan event.DomainEvent
	done      chan struct{}
	closeOnce sync.Once
}

func NewSink(bufferSize int) *Sink {
	return &Sink{
		events: make(chan event.DomainEvent, bufferSize),
		done:   make(chan struct{}),
	}
}

// Consume is called by the orchestrator.
// The write pump of the connection takes it from there.
func (s *Sink) Consume(ctx context.Context, e event.DomainEvent) error {
	select {
	case <-s.done:
		return errors.ErrConnClosed
	default:
	}
	select {
	case s.events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return errors.ErrBufferFull
	}
}

// Events is drained by the write pump.
func (s *Sink) Events() <-chan event.DomainEvent {
	return s.events
}

// Done is closed once the connection is gone.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

func (s *Sink) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}
