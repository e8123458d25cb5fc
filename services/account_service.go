package services

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
)

type IAccountService interface {
	Register(ctx context.Context, req auth.RegisterRequest) (domain.User, Token, error)
	Login(ctx context.Context, req auth.LoginRequest) (domain.User, Token, error)
	ListUsers(ctx context.Context, currentUserID string) ([]domain.User, error)
	Search(ctx context.Context, query, currentUserID string) ([]domain.User, error)
	GetUser(ctx context.Context, id string) (domain.User, error)
	UpdateProfile(ctx context.Context, callerID, id string, req auth.UpdateProfileRequest) (domain.User, error)
}

// TokenIssuer generates the account token returned by register and login.
type TokenIssuer interface {
	GenerateToken(userID string) (string, error)
}

type Token string

func (t Token) String() string {
	return string(t)
}

// AccountService is the account API: registration, login, directory
// queries and profile updates. Presence is never changed here.
type AccountService struct {
	log            *slog.Logger
	users          contract.IUserRepository
	index          contract.IUserIndex
	tokens         TokenIssuer
	orchestrator   contract.IOrchestrator
	avatarMaxBytes int
}

func NewAccountService(log *slog.Logger, users contract.IUserRepository, index contract.IUserIndex,
	tokens TokenIssuer, orchestrator contract.IOrchestrator, avatarMaxBytes int) *AccountService {
	return &AccountService{
		log:            log,
		users:          users,
		index:          index,
		tokens:         tokens,
		orchestrator:   orchestrator,
		avatarMaxBytes: avatarMaxBytes,
	}
}

func (s *AccountService) Register(ctx context.Context, req auth.RegisterRequest) (domain.User, Token, error) {
	if err := auth.ValidateRegister(req); err != nil {
		return domain.User{}, "", err
	}

	user, err := s.users.CreateUser(ctx, req.Username, req.Name)
	if err != nil {
		return domain.User{}, "", err
	}
	if err := s.index.Index(ctx, user); err != nil {
		s.log.Warn("User not indexed", "user_id", user.ID, "error", err)
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("token generation failed: %w", err)
	}
	s.log.Info("User registered", "user_id", user.ID, "username", user.Username)
	return user, Token(token), nil
}

// Login only proves the username exists; password handling is out of scope.
func (s *AccountService) Login(ctx context.Context, req auth.LoginRequest) (domain.User, Token, error) {
	if err := auth.ValidateLogin(req); err != nil {
		return domain.User{}, "", err
	}

	user, err := s.users.GetUserByUsername(ctx, req.Username)
	if stderrors.Is(err, errors.ErrUserNotFound) {
		return domain.User{}, "", errors.ErrUnknownUsername
	}
	if err != nil {
		return domain.User{}, "", err
	}

	token, err := s.tokens.GenerateToken(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("token generation failed: %w", err)
	}
	return user, Token(token), nil
}

func (s *AccountService) ListUsers(ctx context.Context, currentUserID string) ([]domain.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(users, func(u domain.User, _ int) bool { return u.ID != currentUserID }), nil
}

// Search matches query against usernames and names, ignoring case.
// Users are returned in registration order.
func (s *AccountService) Search(ctx context.Context, query, currentUserID string) ([]domain.User, error) {
	if query == "" {
		return []domain.User{}, nil
	}
	ids, err := s.index.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	matched := lo.SliceToMap(ids, func(id string) (string, struct{}) { return id, struct{}{} })

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	return lo.Filter(users, func(u domain.User, _ int) bool {
		_, ok := matched[u.ID]
		return ok && u.ID != currentUserID
	}), nil
}

func (s *AccountService) GetUser(ctx context.Context, id string) (domain.User, error) {
	return s.users.GetUser(ctx, id)
}

// UpdateProfile lets a user change their own profile. A username change
// re-keys the live session; every connection is told about the new profile.
func (s *AccountService) UpdateProfile(ctx context.Context, callerID, id string, req auth.UpdateProfileRequest) (domain.User, error) {
	if callerID != id {
		return domain.User{}, errors.ErrForbidden
	}
	if err := auth.ValidateUpdateProfile(req); err != nil {
		return domain.User{}, err
	}
	if req.Avatar != nil {
		if _, err := checkAvatar(*req.Avatar, s.avatarMaxBytes); err != nil {
			return domain.User{}, err
		}
	}

	previous, updated, err := s.users.UpdateProfile(ctx, id, req.Username, req.Name, req.Avatar)
	if err != nil {
		return domain.User{}, err
	}
	if err := s.index.Index(ctx, updated); err != nil {
		s.log.Warn("User not reindexed", "user_id", updated.ID, "error", err)
	}

	if previous.Username != updated.Username {
		s.orchestrator.RekeySession(ctx, previous.Username, updated.Username)
	}
	s.orchestrator.BroadcastUserUpdated(ctx, updated)
	s.log.Info("Profile updated", "user_id", updated.ID, "username", updated.Username)
	return updated, nil
}
