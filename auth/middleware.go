package auth

import (
	"context"
	"net/http"
	"strings"
)

type contextKey string

const UserIDKey contextKey = "user_id"

// TokenValidator is what RequireToken needs from Tokens.
type TokenValidator interface {
	ValidateToken(tokenString string) (*CustomClaims, error)
}

// RequireToken rejects requests without a valid "Bearer <token>" header and
// injects the token's user id into the request context.
// onError writes the rejection so the caller keeps its own error format.
func RequireToken(tokens TokenValidator, onError func(w http.ResponseWriter, r *http.Request, err error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenStr, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || tokenStr == "" {
				onError(w, r, errMissingToken)
				return
			}
			claims, err := tokens.ValidateToken(tokenStr)
			if err != nil {
				onError(w, r, err)
				return
			}
			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserIDFrom returns the user id injected by RequireToken.
func UserIDFrom(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDKey).(string)
	return userID, ok && userID != ""
}
