package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vlady-pos/vlady-pos/internal/platform/httpx"
	"github.com/vlady-pos/vlady-pos/internal/shared"
)

// RequireAuth resolves the bearer token into a session and stores it in the
// request context. Requests without a live session get 401.
func RequireAuth(service *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				httpx.RespondError(w, shared.ErrUnauthorized)
				return
			}
			sess, err := service.ResolveToken(r.Context(), raw)
			if err != nil {
				if !errors.Is(err, shared.ErrUnauthorized) && logger != nil {
					logger.Error("resolve token", slog.Any("error", err))
				}
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(shared.ContextWithSession(r.Context(), sess)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	raw := strings.TrimSpace(parts[1])
	return raw, raw != ""
}
