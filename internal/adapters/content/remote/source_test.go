package remote

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pillsync/internal/platform/httpclient"
)

func TestLesson(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/lessons/1.json":
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"title":"  Plant Anatomy  ","paragraphs":["Roots.","Stems."]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	src, err := New(srv.URL, time.Second)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l, err := src.Lesson(context.Background(), "1")
	if err != nil {
		t.Fatalf("Lesson: %v", err)
	}
	if l.Title != "Plant Anatomy" || len(l.Paragraphs) != 2 {
		t.Fatalf("unexpected lesson: %+v", l)
	}

	if _, err := src.Lesson(context.Background(), "2"); !errors.Is(err, httpclient.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New("  ", time.Second); err != ErrNotConfigured {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
