package app

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"pillsync/internal/platform/logger"
)

func TestStartHeartbeat_StopWaitsForLoop(t *testing.T) {
	var buf bytes.Buffer
	a := New(Options{
		Log:               logger.New(logger.Options{Level: logger.Info, Format: logger.FormatJSON, Out: &buf}),
		HeartbeatInterval: time.Hour,
	})
	defer a.Close()

	stop := a.StartHeartbeat(context.Background())

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stop did not return")
	}

	// stop volvió después de que Run terminó: su último log ya está escrito
	if !strings.Contains(buf.String(), `"message":"heartbeat stopped"`) {
		t.Fatalf("expected heartbeat stopped log before stop returned, got %q", buf.String())
	}

	// idempotente
	stop()
}

func TestStartHeartbeat_ParentCancelStopsLoop(t *testing.T) {
	a := New(Options{HeartbeatInterval: time.Hour})
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	stop := a.StartHeartbeat(ctx)
	cancel()

	done := make(chan struct{})
	go func() {
		stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("stop did not return after parent cancel")
	}
}
