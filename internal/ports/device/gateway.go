package device

import (
	"context"
	"errors"
)

var (
	ErrUnknownDevice = errors.New("unknown device")
	ErrNoFix         = errors.New("device location unavailable")
)

// Info es un dispositivo visible en un scan.
type Info struct {
	ID   string
	Name string
}

type Location struct {
	Lat float64
	Lng float64
}

// Gateway abstrae el pastillero físico (scan, buzzer, ubicación).
// Hay una implementación mock para dev/tests y una real sobre MQTT.
type Gateway interface {
	// Scan lista dispositivos cercanos. refresh=true fuerza un nuevo barrido.
	Scan(ctx context.Context, refresh bool) ([]Info, error)

	Ring(ctx context.Context, deviceID string, slotID int) error
	Silence(ctx context.Context, deviceID string) error

	// Locate devuelve la posición del kit. phone es la posición del teléfono
	// (el mock la usa como referencia).
	Locate(ctx context.Context, deviceID string, phone Location) (Location, error)
}
