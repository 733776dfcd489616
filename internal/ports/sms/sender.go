package sms

import "context"

// Sender entrega un SMS a un número (p.ej. la SIM del pastillero).
type Sender interface {
	Send(ctx context.Context, to, body string) error
}
