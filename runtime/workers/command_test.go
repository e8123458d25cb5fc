package workers

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	mu       sync.Mutex
	commands []domain.Command
	fail     bool
}

func (h *recordingHandler) Handle(_ context.Context, cmd domain.Command) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.commands = append(h.commands, cmd)
	if h.fail {
		return errors.ErrUnauthenticated
	}
	return nil
}

func (h *recordingHandler) handled() []domain.Command {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.Command(nil), h.commands...)
}

func TestCommandWorker_Handles_In_Order(t *testing.T) {
	req := require.New(t)
	commands := make(chan domain.Command, 3)
	handler := &recordingHandler{}
	worker := NewCommandWorker(slog.Default(), commands, handler)

	conn := domain.NewConnectionID()
	expected := []domain.Command{
		domain.AuthenticateCommand{Connection: conn, UserID: "u1", Username: "alice"},
		domain.SendMessageCommand{Connection: conn, ToUserID: "u2", Text: "hi"},
		domain.DisconnectCommand{Connection: conn},
	}
	for _, cmd := range expected {
		commands <- cmd
	}
	close(commands)

	// When the channel is drained then closed
	err := worker.Run(context.Background())

	// Then the worker ends cleanly after handling everything in order
	req.NoError(err)
	req.Equal(expected, handler.handled())
}

func TestCommandWorker_Keeps_Running_On_Handler_Error(t *testing.T) {
	req := require.New(t)
	commands := make(chan domain.Command)
	handler := &recordingHandler{fail: true}
	worker := NewCommandWorker(slog.Default(), commands, handler)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	commands <- domain.GetHistoryCommand{Connection: domain.NewConnectionID(), WithUserID: "u2"}
	commands <- domain.GetHistoryCommand{Connection: domain.NewConnectionID(), WithUserID: "u3"}
	cancel()

	select {
	case err := <-done:
		req.ErrorIs(err, context.Canceled)
	case <-time.After(time.Second):
		req.Fail("worker should stop on cancel")
	}
	req.Len(handler.handled(), 2)
}
