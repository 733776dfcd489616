package httpclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			if r.Header.Get("X-Api-Key") != "k" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			_, _ = w.Write([]byte(`{"title":"Lesson 1"}`))
		case "/boom":
			http.Error(w, "boom", http.StatusInternalServerError)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c, err := New(srv.URL+"/", 0)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.Headers = map[string]string{"X-Api-Key": "k"}

	var out struct {
		Title string `json:"title"`
	}
	if err := c.GetJSON(context.Background(), "ok", &out); err != nil || out.Title != "Lesson 1" {
		t.Fatalf("GetJSON: %+v %v", out, err)
	}

	if err := c.GetJSON(context.Background(), "/missing", &out); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	var httpErr *HTTPError
	if err := c.GetJSON(context.Background(), "/boom", &out); !errors.As(err, &httpErr) || httpErr.StatusCode != 500 {
		t.Fatalf("expected HTTPError 500, got %v", err)
	}
}

func TestNew_RejectsBadBaseURL(t *testing.T) {
	if _, err := New("::not a url", 0); err == nil {
		t.Fatalf("expected error")
	}
	c, _ := New("", 0)
	if err := c.GetJSON(context.Background(), "/relative", nil); err == nil {
		t.Fatalf("relative path without base url should fail")
	}
}
