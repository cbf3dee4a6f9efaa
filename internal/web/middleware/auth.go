package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JonMunkholm/salesreport/internal/auth"
	"github.com/JonMunkholm/salesreport/internal/core"
	"github.com/JonMunkholm/salesreport/internal/logging"
)

// TokenHeader carries the access token. "Authorization: Bearer" is accepted too.
const TokenHeader = "x-access-token"

type ctxKey struct{}

// TokenVerifier resolves an access token to its user.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (auth.User, error)
}

// RequireToken rejects requests without a valid access token with 403 and
// puts the authenticated user into the request context.
func RequireToken(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := v.Verify(r.Context(), tokenFromRequest(r))
			if err != nil {
				status := http.StatusForbidden
				if !errors.Is(err, auth.ErrTokenMissing) && !errors.Is(err, auth.ErrTokenInvalid) {
					status = http.StatusInternalServerError
				}
				logging.FromContext(r.Context()).Warn("auth: request rejected",
					"path", r.URL.Path,
					"method", r.Method,
					"ip", ClientIP(r),
					"error", err,
				)
				writeError(w, status, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, user)
			ctx = logging.WithUsername(ctx, user.Username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext returns the user stored by RequireToken.
func UserFromContext(ctx context.Context) (auth.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(auth.User)
	return u, ok
}

func tokenFromRequest(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(TokenHeader)); t != "" {
		return t
	}
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// writeError writes the same JSON error shape the web handlers use.
func writeError(w http.ResponseWriter, status int, err error) {
	msg := core.MapError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(map[string]string{
		"error":   msg.Message,
		"message": msg.Message,
		"action":  msg.Action,
		"code":    msg.Code,
	}); encErr != nil {
		slog.Error("json encode error", "error", encErr)
	}
}
