package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"pillsync/internal/ports/auth"
)

type stubVerifier struct{}

func (stubVerifier) Verify(ctx context.Context, token string) (auth.Claims, error) {
	if token != "good" {
		return auth.Claims{}, errors.New("bad token")
	}
	return auth.Claims{UserID: "u1"}, nil
}

type emptySubject struct{}

func (emptySubject) Verify(ctx context.Context, token string) (auth.Claims, error) {
	return auth.Claims{Email: "x@example.com"}, nil
}

// serve devuelve el status, el usuario que vio el handler y si el handler corrió.
func serve(t *testing.T, verifier auth.AuthVerifier, header, value string) (*httptest.ResponseRecorder, string, bool) {
	t.Helper()
	var (
		got     string
		reached bool
	)
	h := AuthContext(verifier, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		got = UserID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, got, reached
}

func TestAuthContext_DevMode(t *testing.T) {
	if _, got, _ := serve(t, nil, DebugUserHeader, " dev-1 "); got != "dev-1" {
		t.Fatalf("dev mode should take debug header, got %q", got)
	}
	if _, got, reached := serve(t, nil, "", ""); !reached || got != "" {
		t.Fatalf("anonymous request must pass through, got %q reached=%v", got, reached)
	}
}

func TestAuthContext_Verifier(t *testing.T) {
	if _, got, reached := serve(t, stubVerifier{}, DebugUserHeader, "dev-1"); !reached || got != "" {
		t.Fatalf("debug header must be ignored with a verifier, got %q", got)
	}
	if _, got, _ := serve(t, stubVerifier{}, "Authorization", "Bearer good"); got != "u1" {
		t.Fatalf("expected u1, got %q", got)
	}
	if _, got, reached := serve(t, stubVerifier{}, "", ""); !reached || got != "" {
		t.Fatalf("missing token must stay anonymous, got %q reached=%v", got, reached)
	}
}

func TestAuthContext_RejectsBadTokens(t *testing.T) {
	cases := map[string]string{
		"Bearer nope": `error="invalid_token"`,
		"Basic good":  `error="invalid_request"`,
		"Bearer ":     `error="invalid_request"`,
	}
	for value, wantErr := range cases {
		rec, _, reached := serve(t, stubVerifier{}, "Authorization", value)
		if reached {
			t.Fatalf("%q: handler must not run", value)
		}
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%q: expected 401, got %d", value, rec.Code)
		}
		if h := rec.Header().Get("WWW-Authenticate"); !strings.Contains(h, wantErr) {
			t.Fatalf("%q: unexpected WWW-Authenticate %q", value, h)
		}
	}
}

func TestAuthContext_TokenWithoutSubject(t *testing.T) {
	rec, _, reached := serve(t, emptySubject{}, "Authorization", "Bearer anything")
	if reached || rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without reaching handler, got %d reached=%v", rec.Code, reached)
	}
}

func TestRequestLog_PassesThrough(t *testing.T) {
	h := RequestLog(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected 418, got %d", rec.Code)
	}
}
