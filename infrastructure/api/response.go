package api

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"log/slog"
	"net/http"
)

type userResponse struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Name     string  `json:"name"`
	Avatar   *string `json:"avatar"`
	Online   bool    `json:"online"`
}

type profileResponse struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Name     string  `json:"name"`
	Avatar   *string `json:"avatar"`
}

type accountResponse struct {
	Success bool            `json:"success"`
	User    profileResponse `json:"user"`
	Token   string          `json:"token"`
}

type successResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{ID: u.ID, Username: u.Username, Name: u.Name, Avatar: u.Avatar, Online: u.Online}
}

func toProfileResponse(u domain.User) profileResponse {
	return profileResponse{ID: u.ID, Username: u.Username, Name: u.Name, Avatar: u.Avatar}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps a service error to its status and stable code.
// Internal errors never leak their message.
func writeError(log *slog.Logger, w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatus(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		message = "internal error"
	}
	writeJSON(w, status, errorResponse{Code: errors.Code(err), Message: message})
}
