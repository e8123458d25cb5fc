// Package api is the HTTP surface of the relay: the account API, the
// websocket endpoint, static files and operational endpoints.
package api

import (
	"chat-relay/auth"
	"chat-relay/services"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type RouterDeps struct {
	Accounts       services.IAccountService
	Tokens         auth.TokenValidator
	Gateway        http.Handler
	Metrics        http.Handler
	Statuses       StatusRecorder
	AllowedOrigins []string
	StaticDir      string
}

func NewRouter(log *slog.Logger, deps RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// The websocket handler blocks for the lifetime of the connection and
	// takes over the response writer.
	r.Handle("/ws", deps.Gateway)

	r.Group(func(r chi.Router) {
		r.Use(observe(log, deps.Statuses))

		r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			_, _ = w.Write([]byte("ok"))
		})
		r.Handle("/metrics", deps.Metrics)

		accounts := NewAccountHandler(log, deps.Accounts)
		r.Route("/api", func(r chi.Router) {
			r.Use(cors(deps.AllowedOrigins))
			r.Post("/register", accounts.Register)
			r.Post("/login", accounts.Login)
			r.Route("/users", func(r chi.Router) {
				r.Get("/", accounts.ListUsers)
				r.Get("/search", accounts.Search)
				r.Get("/{id}", accounts.GetUser)
				r.With(auth.RequireToken(deps.Tokens, func(w http.ResponseWriter, r *http.Request, err error) {
					writeError(log, w, r, err)
				})).Put("/{id}", accounts.UpdateProfile)
			})
		})

		if deps.StaticDir != "" {
			r.Handle("/*", http.FileServer(http.Dir(deps.StaticDir)))
		}
	})
	return r
}
