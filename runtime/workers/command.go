package workers

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
	"log/slog"
)

var _ contract.Worker = (*CommandWorker)(nil)

// CommandHandler applies one command to the shared state.
type CommandHandler interface {
	Handle(ctx context.Context, cmd domain.Command) error
}

// CommandWorker drains the command queue sequentially.
// It is the single writer of the session registry and the message log.
type CommandWorker struct {
	log      *slog.Logger
	commands <-chan domain.Command
	handler  CommandHandler
}

func NewCommandWorker(log *slog.Logger, commands <-chan domain.Command, handler CommandHandler) *CommandWorker {
	return &CommandWorker{log: log, commands: commands, handler: handler}
}

func (w *CommandWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Stopping command worker")
			return ctx.Err()
		case cmd, ok := <-w.commands:
			if !ok {
				w.log.Debug("Command channel is closed")
				return nil
			}
			if err := w.handler.Handle(ctx, cmd); err != nil {
				w.log.Debug("Command ignored", "connection_id", cmd.Origin(), "error", err)
			}
		}
	}
}
