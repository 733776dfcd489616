// Package mock simula el pastillero: scan con demora, buzzer en memoria y
// ubicación desplazada respecto del teléfono.
package mock

import (
	"context"
	"sync"
	"time"

	"pillsync/internal/platform/logger"
	"pillsync/internal/ports/device"
)

const (
	ScanDelay    = 2000 * time.Millisecond
	RefreshDelay = 1500 * time.Millisecond

	// Desplazamiento fijo del kit respecto del teléfono.
	LatOffset = 0.0009
	LngOffset = 0.0012
)

var (
	knownDevices = []device.Info{
		{ID: "MedBox-Pro-v2.1", Name: "MedBox-Pro-v2.1"},
		{ID: "SmartKit_X800", Name: "SmartKit_X800"},
	}
	unknownDevice = device.Info{ID: "Unknown Device", Name: "Unknown Device"}
)

type Gateway struct {
	mu      sync.Mutex
	ringing map[string]int // deviceID -> slot

	scanDelay    time.Duration
	refreshDelay time.Duration
	log          logger.Logger
}

type Options struct {
	ScanDelay    time.Duration
	RefreshDelay time.Duration
}

// New: delays en cero usan los valores por defecto; negativos desactivan la demora (tests).
func New(log logger.Logger, opts Options) *Gateway {
	if log == nil {
		log = logger.Nop()
	}
	g := &Gateway{
		ringing:      make(map[string]int),
		scanDelay:    opts.ScanDelay,
		refreshDelay: opts.RefreshDelay,
		log:          log.With(map[string]any{"component": "gateway.mock"}),
	}
	if g.scanDelay == 0 {
		g.scanDelay = ScanDelay
	}
	if g.refreshDelay == 0 {
		g.refreshDelay = RefreshDelay
	}
	return g
}

func (g *Gateway) Scan(ctx context.Context, refresh bool) ([]device.Info, error) {
	delay := g.scanDelay
	if refresh {
		delay = g.refreshDelay
	}
	if err := wait(ctx, delay); err != nil {
		return nil, err
	}

	out := append([]device.Info(nil), knownDevices...)
	if refresh {
		out = append(out, unknownDevice)
	}
	return out, nil
}

func (g *Gateway) Ring(ctx context.Context, deviceID string, slotID int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.ringing[deviceID] = slotID
	g.log.Info("buzzer on", map[string]any{"device_id": deviceID, "slot_id": slotID})
	return nil
}

func (g *Gateway) Silence(ctx context.Context, deviceID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.ringing, deviceID)
	g.log.Info("buzzer off", map[string]any{"device_id": deviceID})
	return nil
}

// Ringing indica qué slot está sonando en el dispositivo.
func (g *Gateway) Ringing(deviceID string) (int, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	slot, ok := g.ringing[deviceID]
	return slot, ok
}

func (g *Gateway) Locate(ctx context.Context, deviceID string, phone device.Location) (device.Location, error) {
	if deviceID == "" {
		return device.Location{}, device.ErrUnknownDevice
	}
	return device.Location{Lat: phone.Lat + LatOffset, Lng: phone.Lng + LngOffset}, nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
