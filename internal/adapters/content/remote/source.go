// Package remote lee lecciones desde un documento JSON servido por HTTP.
package remote

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"pillsync/internal/domain/learning"
	"pillsync/internal/platform/httpclient"
)

var ErrNotConfigured = errors.New("remote content source not configured")

type lessonDocument struct {
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
}

// Source implementa learning.ContentSource contra <baseURL>/lessons/<id>.json.
type Source struct {
	client *httpclient.Client
}

// New: baseURL vacío devuelve ErrNotConfigured (el caller sigue sin remoto).
func New(baseURL string, timeout time.Duration) (*Source, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, ErrNotConfigured
	}
	c, err := httpclient.New(baseURL, timeout)
	if err != nil {
		return nil, err
	}
	return &Source{client: c}, nil
}

func (s *Source) Lesson(ctx context.Context, id string) (learning.RemoteLesson, error) {
	if s == nil || s.client == nil {
		return learning.RemoteLesson{}, ErrNotConfigured
	}

	var doc lessonDocument
	if err := s.client.GetJSON(ctx, "/lessons/"+url.PathEscape(id)+".json", &doc); err != nil {
		return learning.RemoteLesson{}, err
	}
	return learning.RemoteLesson{
		Title:      strings.TrimSpace(doc.Title),
		Paragraphs: doc.Paragraphs,
	}, nil
}
