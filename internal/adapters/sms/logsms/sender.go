// Package logsms es el Sender de desarrollo: solo loguea el SMS.
package logsms

import (
	"context"

	"pillsync/internal/platform/logger"
)

type Sender struct {
	log logger.Logger
}

func New(log logger.Logger) *Sender {
	if log == nil {
		log = logger.Nop()
	}
	return &Sender{log: log.With(map[string]any{"component": "sms.log"})}
}

func (s *Sender) Send(ctx context.Context, to, body string) error {
	s.log.Info("sms (not sent)", map[string]any{"to": to, "body": body})
	return nil
}
