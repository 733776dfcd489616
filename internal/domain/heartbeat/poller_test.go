package heartbeat

import (
	"context"
	"testing"
	"time"

	"pillsync/internal/domain/alarms"
	"pillsync/internal/domain/patients"
	"pillsync/internal/domain/schedule"
)

type fakePatients struct {
	list []patients.Patient
}

func (f *fakePatients) ListPaired(ctx context.Context) ([]patients.Patient, error) {
	return f.list, nil
}

type fakeTaken struct {
	ids []schedule.DoseID
}

func (f *fakeTaken) ListTaken(ctx context.Context, patientID string, day string) ([]schedule.DoseID, error) {
	return f.ids, nil
}

// fakeStarter no deja la alarma activa salvo que active lo diga (simula un "not yet" inmediato).
type fakeStarter struct {
	active    map[string]bool
	activated []alarms.ActivateInput
}

func (f *fakeStarter) IsActive(patientID string) bool { return f.active[patientID] }

func (f *fakeStarter) Activate(ctx context.Context, in alarms.ActivateInput) (alarms.Alarm, error) {
	f.activated = append(f.activated, in)
	return alarms.Alarm{PatientID: in.PatientID, DoseID: in.DoseID}, nil
}

type fakeClaims struct {
	keys map[string]bool
}

func (f *fakeClaims) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if f.keys[key] {
		return false, nil
	}
	f.keys[key] = true
	return true, nil
}

func patient() patients.Patient {
	return patients.Patient{
		ID:       "P001",
		DeviceID: "MedBox-Pro-v2.1",
		Slots: []patients.Slot{
			{ID: 1, Label: "Heart Meds", MedicineName: "Atorvastatin", PillCount: 14, Schedule: []string{"08:00", "20:00"}},
			{ID: 2, Label: "Diabetes", MedicineName: "Metformin", PillCount: 4, Schedule: []string{"09:00"}},
			{ID: 3, Label: patients.UnassignedLabel, Schedule: []string{"08:00"}},
		},
	}
}

type fixture struct {
	poller  *Poller
	now     time.Time
	taken   *fakeTaken
	starter *fakeStarter
}

func newFixture(list ...patients.Patient) *fixture {
	f := &fixture{
		now:     time.Date(2026, 10, 19, 8, 0, 12, 0, time.Local),
		taken:   &fakeTaken{},
		starter: &fakeStarter{active: map[string]bool{}},
	}
	f.poller = NewPoller(&fakePatients{list: list}, f.taken, f.starter, &fakeClaims{keys: map[string]bool{}}, nil, Options{
		Now: func() time.Time { return f.now },
	})
	return f
}

func TestTick_FiresOncePerDoseMinute(t *testing.T) {
	f := newFixture(patient())
	ctx := context.Background()

	if n := f.poller.Tick(ctx); n != 1 {
		t.Fatalf("expected 1 alarm, got %d", n)
	}
	got := f.starter.activated[0]
	if got.SlotID != 1 || got.DoseID != "2026-10-19/1/0" || got.MedicineName != "Atorvastatin" || got.DeviceID != "MedBox-Pro-v2.1" {
		t.Fatalf("unexpected activation: %+v", got)
	}

	// mismo minuto, alarma ya descartada: no vuelve a sonar
	f.now = f.now.Add(5 * time.Second)
	if n := f.poller.Tick(ctx); n != 0 {
		t.Fatalf("expected no second alarm in the same minute, got %d", n)
	}

	f.now = time.Date(2026, 10, 19, 8, 1, 0, 0, time.Local)
	if n := f.poller.Tick(ctx); n != 0 {
		t.Fatalf("expected nothing due at 08:01, got %d", n)
	}

	f.now = time.Date(2026, 10, 19, 9, 0, 3, 0, time.Local)
	if n := f.poller.Tick(ctx); n != 1 || f.starter.activated[1].SlotID != 2 {
		t.Fatalf("expected slot 2 alarm at 09:00")
	}
}

func TestTick_SkipsTakenDose(t *testing.T) {
	f := newFixture(patient())
	f.taken.ids = []schedule.DoseID{"2026-10-19/1/0"}

	if n := f.poller.Tick(context.Background()); n != 0 {
		t.Fatalf("expected no alarm for a taken dose, got %d", n)
	}
}

func TestTick_SkipsWhenAlarmActive(t *testing.T) {
	f := newFixture(patient())
	f.starter.active["P001"] = true

	if n := f.poller.Tick(context.Background()); n != 0 {
		t.Fatalf("expected no alarm while another is active, got %d", n)
	}
}

func TestTick_WeeklySlotOnlyOnSelectedDays(t *testing.T) {
	p := patient()
	p.Slots[0].FrequencyType = patients.FrequencyWeekly
	p.Slots[0].SelectedDays = []int{int(time.Tuesday)}

	f := newFixture(p) // 2026-10-19 es lunes
	if n := f.poller.Tick(context.Background()); n != 0 {
		t.Fatalf("weekly slot should not ring on monday, got %d", n)
	}

	f.now = f.now.AddDate(0, 0, 1)
	if n := f.poller.Tick(context.Background()); n != 1 {
		t.Fatalf("weekly slot should ring on tuesday, got %d", n)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.poller.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
}
