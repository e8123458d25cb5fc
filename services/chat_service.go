package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"context"
)

type IChatService interface {
	Open(sink contract.EventSink) domain.ConnectionID
	Authenticate(ctx context.Context, conn domain.ConnectionID, userID, username string) error
	SendMessage(ctx context.Context, conn domain.ConnectionID, toUserID, text string) error
	GetHistory(ctx context.Context, conn domain.ConnectionID, withUserID string) error
	Close(ctx context.Context, conn domain.ConnectionID) error
}

// ChatService turns transport callbacks into core commands.
type ChatService struct {
	orchestrator contract.IOrchestrator
}

func NewChatService(o contract.IOrchestrator) *ChatService {
	return &ChatService{orchestrator: o}
}

// Open registers a new connection and returns its id.
func (s *ChatService) Open(sink contract.EventSink) domain.ConnectionID {
	conn := domain.NewConnectionID()
	s.orchestrator.Connect(conn, sink)
	return conn
}

func (s *ChatService) Authenticate(ctx context.Context, conn domain.ConnectionID, userID, username string) error {
	return s.orchestrator.Dispatch(ctx, domain.AuthenticateCommand{Connection: conn, UserID: userID, Username: username})
}

func (s *ChatService) SendMessage(ctx context.Context, conn domain.ConnectionID, toUserID, text string) error {
	return s.orchestrator.Dispatch(ctx, domain.SendMessageCommand{Connection: conn, ToUserID: toUserID, Text: text})
}

func (s *ChatService) GetHistory(ctx context.Context, conn domain.ConnectionID, withUserID string) error {
	return s.orchestrator.Dispatch(ctx, domain.GetHistoryCommand{Connection: conn, WithUserID: withUserID})
}

func (s *ChatService) Close(ctx context.Context, conn domain.ConnectionID) error {
	return s.orchestrator.Dispatch(ctx, domain.DisconnectCommand{Connection: conn})
}
