package mock

import (
	"context"
	"math"
	"testing"
	"time"

	"pillsync/internal/ports/device"
)

func TestScan(t *testing.T) {
	g := New(nil, Options{ScanDelay: -1, RefreshDelay: -1})

	first, err := g.Scan(context.Background(), false)
	if err != nil || len(first) != 2 || first[0].Name != "MedBox-Pro-v2.1" {
		t.Fatalf("unexpected first scan: %v %v", first, err)
	}
	again, err := g.Scan(context.Background(), true)
	if err != nil || len(again) != 3 || again[2].Name != "Unknown Device" {
		t.Fatalf("refresh should add the unknown device: %v %v", again, err)
	}
}

func TestScan_HonorsContext(t *testing.T) {
	g := New(nil, Options{ScanDelay: time.Hour})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := g.Scan(ctx, false); err == nil {
		t.Fatalf("expected context error")
	}
}

func TestRingSilence(t *testing.T) {
	g := New(nil, Options{})
	ctx := context.Background()

	_ = g.Ring(ctx, "MedBox-Pro-v2.1", 2)
	if slot, ok := g.Ringing("MedBox-Pro-v2.1"); !ok || slot != 2 {
		t.Fatalf("expected slot 2 ringing")
	}
	_ = g.Silence(ctx, "MedBox-Pro-v2.1")
	if _, ok := g.Ringing("MedBox-Pro-v2.1"); ok {
		t.Fatalf("expected silence")
	}
}

func TestLocate_OffsetsPhone(t *testing.T) {
	g := New(nil, Options{})

	loc, err := g.Locate(context.Background(), "MedBox-Pro-v2.1", device.Location{Lat: 40.7128, Lng: -74.0060})
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if math.Abs(loc.Lat-40.7137) > 1e-9 || math.Abs(loc.Lng-(-74.0048)) > 1e-9 {
		t.Fatalf("unexpected location: %+v", loc)
	}
	if _, err := g.Locate(context.Background(), "", device.Location{}); err != device.ErrUnknownDevice {
		t.Fatalf("expected ErrUnknownDevice, got %v", err)
	}
}
