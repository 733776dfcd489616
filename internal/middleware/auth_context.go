package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"pillsync/internal/platform/logger"
	"pillsync/internal/ports/auth"

	chimw "github.com/go-chi/chi/v5/middleware"
)

type claimsKey struct{}

// DebugUserHeader solo se acepta cuando no hay verifier (modo dev).
const DebugUserHeader = "X-Debug-User-ID"

// AuthContext resuelve quién llama.
//   - Sin verifier: toma DebugUserHeader.
//   - Con verifier: sin Authorization el request sigue anónimo (catálogo de
//     learning, health). Un token presente pero mal formado, inválido o
//     vencido corta con 401; nunca se degrada a anónimo.
//
// Los handlers siguen decidiendo 401/403 para requests anónimos.
func AuthContext(verifier auth.AuthVerifier, log logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.Nop()
	}
	log = log.With(map[string]any{"component": "auth"})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if verifier == nil {
				uid := strings.TrimSpace(r.Header.Get(DebugUserHeader))
				if uid == "" {
					next.ServeHTTP(w, r)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), auth.Claims{UserID: uid})))
				return
			}

			header := strings.TrimSpace(r.Header.Get("Authorization"))
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearerToken(header)
			if !ok {
				rejectToken(w, "invalid_request")
				return
			}

			claims, err := verifier.Verify(r.Context(), token)
			if err == nil && strings.TrimSpace(claims.UserID) == "" {
				err = errMissingSubject
			}
			if err != nil {
				log.Warn("bearer token rejected", map[string]any{
					"request_id": chimw.GetReqID(r.Context()),
					"path":       r.URL.Path,
					"err":        err.Error(),
				})
				rejectToken(w, "invalid_token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

var errMissingSubject = errors.New("token without subject")

// WithClaims deja las claims en ctx. Lo usan AuthContext y los tests de handlers.
func WithClaims(ctx context.Context, c auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

func GetClaims(ctx context.Context) (auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(auth.Claims)
	return c, ok
}

// UserID devuelve el usuario autenticado, o "" si el request es anónimo.
func UserID(ctx context.Context) string {
	c, ok := GetClaims(ctx)
	if !ok {
		return ""
	}
	return strings.TrimSpace(c.UserID)
}

func rejectToken(w http.ResponseWriter, code string) {
	w.Header().Set("WWW-Authenticate", `Bearer realm="pillsync", error="`+code+`"`)
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
