package devices

import (
	"context"
	"errors"
	"testing"

	"pillsync/internal/domain/history"
	"pillsync/internal/domain/patients"
	"pillsync/internal/ports/device"
)

type fakeStore struct {
	byID map[string]patients.Patient
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (patients.Patient, error) {
	p, ok := f.byID[id]
	if !ok {
		return patients.Patient{}, patients.ErrNotFound
	}
	return p, nil
}

func (f *fakeStore) SetDevice(ctx context.Context, patientID, deviceID string) (patients.Patient, error) {
	p, ok := f.byID[patientID]
	if !ok {
		return patients.Patient{}, patients.ErrNotFound
	}
	p.DeviceID = deviceID
	f.byID[patientID] = p
	return p, nil
}

func (f *fakeStore) UpdateLocation(ctx context.Context, patientID string, loc patients.Location) (patients.Patient, error) {
	p, ok := f.byID[patientID]
	if !ok {
		return patients.Patient{}, patients.ErrNotFound
	}
	p.LastLocation = loc
	f.byID[patientID] = p
	return p, nil
}

type fakeGateway struct {
	located string
}

func (g *fakeGateway) Scan(ctx context.Context, refresh bool) ([]device.Info, error) {
	return []device.Info{{ID: "MedBox-Pro-v2.1", Name: "MedBox-Pro-v2.1"}}, nil
}

func (g *fakeGateway) Ring(ctx context.Context, deviceID string, slotID int) error { return nil }

func (g *fakeGateway) Silence(ctx context.Context, deviceID string) error { return nil }

func (g *fakeGateway) Locate(ctx context.Context, deviceID string, phone device.Location) (device.Location, error) {
	g.located = deviceID
	return device.Location{Lat: phone.Lat + 1, Lng: phone.Lng + 1}, nil
}

type fakeSMS struct {
	to, body string
	err      error
}

func (f *fakeSMS) Send(ctx context.Context, to, body string) error {
	f.to, f.body = to, body
	return f.err
}

type fakeRecorder struct {
	types []history.EventType
}

func (f *fakeRecorder) Record(ctx context.Context, in history.RecordInput) (history.Event, error) {
	f.types = append(f.types, in.Type)
	return history.Event{}, nil
}

var owner = history.Actor{Type: history.ActorTypeOwnerUser, ID: "u1"}

func newTestService() (*Service, *fakeStore, *fakeGateway, *fakeSMS, *fakeRecorder) {
	store := &fakeStore{byID: map[string]patients.Patient{
		"P001": {ID: "P001", OwnerUserID: "u1"},
	}}
	gw := &fakeGateway{}
	sender := &fakeSMS{}
	rec := &fakeRecorder{}
	return NewService(gw, sender, store, rec, nil), store, gw, sender, rec
}

func TestPairUnpair(t *testing.T) {
	svc, store, _, _, rec := newTestService()
	ctx := context.Background()

	if _, err := svc.Pair(ctx, "P001", "  ", owner); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	p, err := svc.Pair(ctx, "P001", "MedBox-Pro-v2.1", owner)
	if err != nil || !p.Paired() {
		t.Fatalf("Pair: %+v %v", p, err)
	}

	p, err = svc.Unpair(ctx, "P001", owner)
	if err != nil || p.Paired() || store.byID["P001"].DeviceID != "" {
		t.Fatalf("Unpair: %+v %v", p, err)
	}
	// segundo unpair no registra nada
	if _, err := svc.Unpair(ctx, "P001", owner); err != nil {
		t.Fatalf("Unpair twice: %v", err)
	}
	if len(rec.types) != 2 || rec.types[0] != history.EventTypeDevicePaired || rec.types[1] != history.EventTypeDeviceUnpaired {
		t.Fatalf("unexpected history: %v", rec.types)
	}
}

func TestLocate_RequiresPairingAndSavesLocation(t *testing.T) {
	svc, store, gw, _, _ := newTestService()
	ctx := context.Background()
	phone := device.Location{Lat: 10, Lng: 120}

	if _, err := svc.Locate(ctx, "P001", phone, owner); err != ErrNotPaired {
		t.Fatalf("expected ErrNotPaired, got %v", err)
	}

	if _, err := svc.Pair(ctx, "P001", "MedBox-Pro-v2.1", owner); err != nil {
		t.Fatalf("Pair: %v", err)
	}
	loc, err := svc.Locate(ctx, "P001", phone, owner)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if gw.located != "MedBox-Pro-v2.1" || loc.Lat != 11 {
		t.Fatalf("unexpected locate: %+v via %s", loc, gw.located)
	}
	if store.byID["P001"].LastLocation.Lng != 121 {
		t.Fatalf("kit location should be saved on the patient")
	}
}

func TestRequestLocate(t *testing.T) {
	svc, _, _, sender, rec := newTestService()
	ctx := context.Background()

	for _, reply := range []string{"", "12345", "09171234abc", "+63 917 123 4567"} {
		if err := svc.RequestLocate(ctx, "P001", "+639170000000", reply, owner); err != ErrInvalidInput {
			t.Fatalf("reply %q: expected ErrInvalidInput, got %v", reply, err)
		}
	}
	if err := svc.RequestLocate(ctx, "P001", "", "09171234567", owner); err != ErrInvalidInput {
		t.Fatalf("expected ErrInvalidInput without sim number, got %v", err)
	}

	if err := svc.RequestLocate(ctx, "P001", "+639170000000", "09171234567", owner); err != nil {
		t.Fatalf("RequestLocate: %v", err)
	}
	if sender.to != "+639170000000" || sender.body != "LOCATE:09171234567\nCOMMAND:CMD_LOCATE" {
		t.Fatalf("unexpected sms: %q %q", sender.to, sender.body)
	}
	if len(rec.types) != 1 || rec.types[0] != history.EventTypeLocateRequested {
		t.Fatalf("unexpected history: %v", rec.types)
	}

	sender.err = errors.New("queue down")
	if err := svc.RequestLocate(ctx, "P001", "+639170000000", "09171234567", owner); err == nil {
		t.Fatalf("expected sms failure to surface")
	}
}

func TestValidReplyNumber_CountsOnlyASCIIDigits(t *testing.T) {
	cases := map[string]bool{
		"0917123456":    true,
		"+639171234567": true,
		"+123456789":    false, // el "+" no cuenta como dígito
		"123456789":     false,
		"++0917123456":  false,
		"091712345+":    false,
		"٠٩١٧١٢٣٤٥٦٧":   false, // dígitos árabe-índicos
		"０９１７１２３４５６":    false, // dígitos de ancho completo
	}
	for in, want := range cases {
		if got := validReplyNumber(in); got != want {
			t.Fatalf("validReplyNumber(%q) = %v, want %v", in, got, want)
		}
	}
}
