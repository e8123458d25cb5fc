package services

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type accountFixture struct {
	svc          *AccountService
	users        *mocks.MockIUserRepository
	index        *mocks.MockIUserIndex
	orchestrator *mocks.MockIOrchestrator
	tokens       *auth.Tokens
}

func newAccountFixture(t *testing.T) accountFixture {
	ctrl := gomock.NewController(t)
	f := accountFixture{
		users:        mocks.NewMockIUserRepository(ctrl),
		index:        mocks.NewMockIUserIndex(ctrl),
		orchestrator: mocks.NewMockIOrchestrator(ctrl),
		tokens:       auth.NewTokens("test-secret", time.Hour),
	}
	f.svc = NewAccountService(logs.GetLoggerFromLevel(slog.LevelDebug), f.users, f.index, f.tokens, f.orchestrator, 1024)
	return f
}

func TestAccountService_Register(t *testing.T) {
	ctx := context.Background()

	t.Run("should register and index the user", func(t *testing.T) {
		req := require.New(t)
		f := newAccountFixture(t)
		alice := domain.User{ID: "u1", Username: "alice", Name: "Alice"}

		f.users.EXPECT().CreateUser(ctx, "alice", "Alice").Return(alice, nil).Times(1)
		f.index.EXPECT().Index(ctx, alice).Return(nil).Times(1)

		user, token, err := f.svc.Register(ctx, auth.RegisterRequest{Username: "alice", Name: "Alice"})

		req.NoError(err)
		req.Equal(alice, user)
		claims, err := f.tokens.ValidateToken(token.String())
		req.NoError(err)
		req.Equal("u1", claims.UserID)
	})

	t.Run("should fail when the payload is invalid", func(t *testing.T) {
		req := require.New(t)
		f := newAccountFixture(t)

		// Repository should NEVER be called
		f.users.EXPECT().CreateUser(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, token, err := f.svc.Register(ctx, auth.RegisterRequest{Username: "", Name: "Alice"})

		req.ErrorIs(err, errors.ErrInvalidPayload)
		req.Empty(token)
	})

	t.Run("should fail when the username exists", func(t *testing.T) {
		req := require.New(t)
		f := newAccountFixture(t)

		f.users.EXPECT().CreateUser(ctx, "alice", "Alice").Return(domain.User{}, errors.ErrUsernameTaken)
		f.index.EXPECT().Index(gomock.Any(), gomock.Any()).Times(0)

		_, _, err := f.svc.Register(ctx, auth.RegisterRequest{Username: "alice", Name: "Alice"})

		req.ErrorIs(err, errors.ErrUsernameTaken)
	})
}

func TestAccountService_Login(t *testing.T) {
	ctx := context.Background()

	t.Run("should issue a token for a known username", func(t *testing.T) {
		req := require.New(t)
		f := newAccountFixture(t)
		alice := domain.User{ID: "u1", Username: "alice", Name: "Alice"}
		f.users.EXPECT().GetUserByUsername(ctx, "alice").Return(alice, nil)

		user, token, err := f.svc.Login(ctx, auth.LoginRequest{Username: "alice"})

		req.NoError(err)
		req.Equal(alice, user)
		req.NotEmpty(token)
	})

	t.Run("should refuse an unknown username", func(t *testing.T) {
		req := require.New(t)
		f := newAccountFixture(t)
		f.users.EXPECT().GetUserByUsername(ctx, "ghost").Return(domain.User{}, errors.ErrUserNotFound)

		_, _, err := f.svc.Login(ctx, auth.LoginRequest{Username: "ghost"})

		req.ErrorIs(err, errors.ErrUnknownUsername)
	})
}

func TestAccountService_Directory(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newAccountFixture(t)
	users := []domain.User{
		{ID: "u1", Username: "alice", Name: "Alice"},
		{ID: "u2", Username: "bob", Name: "Bob", Online: true},
		{ID: "u3", Username: "alicia", Name: "Alicia"},
	}
	f.users.EXPECT().ListUsers(ctx).Return(users, nil).AnyTimes()

	// ListUsers skips the current user
	listed, err := f.svc.ListUsers(ctx, "u1")
	req.NoError(err)
	req.Equal([]string{"u2", "u3"}, lo.Map(listed, func(u domain.User, _ int) string { return u.ID }))

	// Search keeps registration order and skips the current user
	f.index.EXPECT().Search(ctx, "ali").Return([]string{"u3", "u1"}, nil)
	found, err := f.svc.Search(ctx, "ali", "u1")
	req.NoError(err)
	req.Equal([]domain.User{users[2]}, found)

	// An empty query never reaches the index
	found, err = f.svc.Search(ctx, "", "u1")
	req.NoError(err)
	req.NotNil(found)
	req.Empty(found)
}

func TestAccountService_UpdateProfile(t *testing.T) {
	ctx := context.Background()
	alice := domain.User{ID: "u1", Username: "alice", Name: "Alice", Online: true}

	t.Run("should rekey the session and broadcast on rename", func(t *testing.T) {
		req := require.New(t)
		f := newAccountFixture(t)
		avatar := dataURL("image/png", pngHeader)
		renamed := alice
		renamed.Username = "alicia"
		renamed.Name = "Alicia"
		renamed.Avatar = &avatar

		gomock.InOrder(
			f.users.EXPECT().UpdateProfile(ctx, "u1", "alicia", "Alicia", &avatar).Return(alice, renamed, nil),
			f.index.EXPECT().Index(ctx, renamed).Return(nil),
			f.orchestrator.EXPECT().RekeySession(ctx, "alice", "alicia").Return(true),
			f.orchestrator.EXPECT().BroadcastUserUpdated(ctx, renamed),
		)

		updated, err := f.svc.UpdateProfile(ctx, "u1", "u1", auth.UpdateProfileRequest{Username: "alicia", Name: "Alicia", Avatar: &avatar})

		req.NoError(err)
		req.Equal(renamed, updated)
	})

	t.Run("should not rekey when the username is unchanged", func(t *testing.T) {
		req := require.New(t)
		f := newAccountFixture(t)
		updated := alice
		updated.Name = "Alice L."

		f.users.EXPECT().UpdateProfile(ctx, "u1", "alice", "Alice L.", nil).Return(alice, updated, nil)
		f.index.EXPECT().Index(ctx, updated).Return(nil)
		f.orchestrator.EXPECT().RekeySession(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
		f.orchestrator.EXPECT().BroadcastUserUpdated(ctx, updated)

		_, err := f.svc.UpdateProfile(ctx, "u1", "u1", auth.UpdateProfileRequest{Username: "alice", Name: "Alice L."})
		req.NoError(err)
	})

	t.Run("should refuse to update someone else", func(t *testing.T) {
		req := require.New(t)
		f := newAccountFixture(t)
		f.users.EXPECT().UpdateProfile(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := f.svc.UpdateProfile(ctx, "u2", "u1", auth.UpdateProfileRequest{Username: "alice", Name: "Alice"})
		req.ErrorIs(err, errors.ErrForbidden)
	})

	t.Run("should refuse an avatar that is not an image", func(t *testing.T) {
		req := require.New(t)
		f := newAccountFixture(t)
		avatar := dataURL("image/png", []byte("definitely not an image"))
		f.users.EXPECT().UpdateProfile(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := f.svc.UpdateProfile(ctx, "u1", "u1", auth.UpdateProfileRequest{Username: "alice", Name: "Alice", Avatar: &avatar})
		req.ErrorIs(err, errors.ErrInvalidAvatar)
	})

	t.Run("should surface a taken username without side effects", func(t *testing.T) {
		req := require.New(t)
		f := newAccountFixture(t)
		f.users.EXPECT().UpdateProfile(ctx, "u1", "bob", "Alice", nil).Return(domain.User{}, domain.User{}, errors.ErrUsernameTaken)
		f.orchestrator.EXPECT().BroadcastUserUpdated(gomock.Any(), gomock.Any()).Times(0)

		_, err := f.svc.UpdateProfile(ctx, "u1", "u1", auth.UpdateProfileRequest{Username: "bob", Name: "Alice"})
		req.ErrorIs(err, errors.ErrUsernameTaken)
	})
}
