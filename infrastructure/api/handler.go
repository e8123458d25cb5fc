package api

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/services"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
)

const maxBodyBytes = 4 << 20

// AccountHandler serves the account API on top of services.IAccountService.
type AccountHandler struct {
	log      *slog.Logger
	accounts services.IAccountService
}

func NewAccountHandler(log *slog.Logger, accounts services.IAccountService) *AccountHandler {
	return &AccountHandler{log: log, accounts: accounts}
}

// Register handles POST /api/register.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if err := decode(w, r, &req); err != nil {
		writeError(h.log, w, r, err)
		return
	}
	user, token, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{Success: true, User: toProfileResponse(user), Token: token.String()})
}

// Login handles POST /api/login.
func (h *AccountHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if err := decode(w, r, &req); err != nil {
		writeError(h.log, w, r, err)
		return
	}
	user, token, err := h.accounts.Login(r.Context(), req)
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{Success: true, User: toProfileResponse(user), Token: token.String()})
}

// ListUsers handles GET /api/users?currentUserId=.
func (h *AccountHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.accounts.ListUsers(r.Context(), r.URL.Query().Get("currentUserId"))
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(users, func(u domain.User, _ int) userResponse { return toUserResponse(u) }))
}

// Search handles GET /api/users/search?q=&currentUserId=.
func (h *AccountHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	users, err := h.accounts.Search(r.Context(), query.Get("q"), query.Get("currentUserId"))
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(users, func(u domain.User, _ int) userResponse { return toUserResponse(u) }))
}

// GetUser handles GET /api/users/{id}.
func (h *AccountHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	user, err := h.accounts.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// UpdateProfile handles PUT /api/users/{id}. The route sits behind auth.RequireToken.
func (h *AccountHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	callerID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		writeError(h.log, w, r, errors.ErrInvalidToken)
		return
	}
	var req auth.UpdateProfileRequest
	if err := decode(w, r, &req); err != nil {
		writeError(h.log, w, r, err)
		return
	}
	if _, err := h.accounts.UpdateProfile(r.Context(), callerID, chi.URLParam(r, "id"), req); err != nil {
		writeError(h.log, w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: %w", errors.ErrInvalidPayload, err)
	}
	return nil
}
