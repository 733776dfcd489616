package memory

import (
	"context"
	"testing"
	"time"

	"pillsync/internal/domain/caregivers"
	"pillsync/internal/domain/history"
	"pillsync/internal/domain/ledger"
	"pillsync/internal/domain/patients"
	"pillsync/internal/domain/schedule"
)

func seedPatient(t *testing.T, s *Store) patients.Patient {
	t.Helper()
	p := patients.Patient{
		ID:          "P1",
		OwnerUserID: "u1",
		Name:        "Ana",
		Slots: []patients.Slot{
			{ID: 1, Label: "Heart", MedicineName: "Atorvastatin", PillCount: 1, Schedule: []string{"08:00", "20:00"}},
			{ID: 2, Label: patients.UnassignedLabel, Schedule: []string{}},
		},
		CreatedAt: time.Now(),
	}
	if err := NewPatientRepo(s).Create(context.Background(), p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return p
}

func TestPatientRepo_UpdateIsolation(t *testing.T) {
	s := NewStore()
	repo := NewPatientRepo(s)
	ctx := context.Background()
	seedPatient(t, s)

	got, _ := repo.GetByID(ctx, "P1")
	got.Slots[0].Schedule[0] = "99:99"

	again, _ := repo.GetByID(ctx, "P1")
	if again.Slots[0].Schedule[0] != "08:00" {
		t.Fatalf("stored patient was mutated through a returned copy")
	}

	_, err := repo.Update(ctx, "P1", func(p *patients.Patient) error {
		p.Name = "changed"
		return patients.ErrInvalidInput
	})
	if err != patients.ErrInvalidInput {
		t.Fatalf("expected fn error, got %v", err)
	}
	again, _ = repo.GetByID(ctx, "P1")
	if again.Name != "Ana" {
		t.Fatalf("failed update must not persist, got %q", again.Name)
	}

	if _, err := repo.GetByID(ctx, "missing"); err != patients.ErrNotFound {
		t.Fatalf("expected patients.ErrNotFound, got %v", err)
	}
}

func TestLedgerRepo_MutateAndListTaken(t *testing.T) {
	s := NewStore()
	seedPatient(t, s)
	repo := NewLedgerRepo(s)
	ctx := context.Background()

	dose := schedule.DoseID("2026-10-19/1/0")
	snap, err := repo.Mutate(ctx, "P1", dose, func(cur *ledger.Snapshot) error {
		if !cur.Assigned || cur.ScheduleLen != 2 || cur.PillCount != 1 || cur.Taken {
			t.Fatalf("unexpected snapshot: %+v", *cur)
		}
		next, _, err := ledger.Apply(*cur, ledger.OpTake)
		*cur = next
		return err
	})
	if err != nil || !snap.Taken || snap.PillCount != 0 {
		t.Fatalf("unexpected result: %+v %v", snap, err)
	}

	p, _ := NewPatientRepo(s).GetByID(ctx, "P1")
	if p.Slots[0].PillCount != 0 {
		t.Fatalf("pill count not persisted: %d", p.Slots[0].PillCount)
	}

	taken, _ := repo.ListTaken(ctx, "P1", "2026-10-19")
	if len(taken) != 1 || taken[0] != dose {
		t.Fatalf("unexpected taken set: %v", taken)
	}
	if other, _ := repo.ListTaken(ctx, "P1", "2026-10-20"); len(other) != 0 {
		t.Fatalf("taken set leaked across days: %v", other)
	}

	if _, err := repo.Mutate(ctx, "P1", "2026-10-19/7/0", func(*ledger.Snapshot) error { return nil }); err != ledger.ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown slot, got %v", err)
	}
}

func TestHistoryRepo_FiltersAndOrder(t *testing.T) {
	s := NewStore()
	repo := NewHistoryRepo(s)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	evs := []history.Event{
		{ID: "e1", PatientID: "P1", Type: history.EventTypeDoseTaken, SlotID: 1, OccurredAt: base},
		{ID: "e2", PatientID: "P1", Type: history.EventTypeNote, OccurredAt: base.Add(time.Hour)},
		{ID: "e3", PatientID: "P1", Type: history.EventTypeDoseTaken, SlotID: 2, OccurredAt: base.Add(2 * time.Hour)},
		{ID: "e4", PatientID: "P2", Type: history.EventTypeNote, OccurredAt: base},
	}
	for _, e := range evs {
		if err := repo.Create(ctx, e); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	all, _ := repo.ListByPatient(ctx, "P1", history.ListFilter{})
	if len(all) != 3 || all[0].ID != "e3" || all[2].ID != "e1" {
		t.Fatalf("unexpected order: %+v", all)
	}

	doses, _ := repo.ListByPatient(ctx, "P1", history.ListFilter{Types: []history.EventType{history.EventTypeDoseTaken}, SlotID: 2})
	if len(doses) != 1 || doses[0].ID != "e3" {
		t.Fatalf("unexpected filtered list: %+v", doses)
	}

	from := base.Add(time.Hour)
	ranged, _ := repo.ListByPatient(ctx, "P1", history.ListFilter{From: &from, Limit: 1})
	if len(ranged) != 1 || ranged[0].ID != "e3" {
		t.Fatalf("unexpected ranged list: %+v", ranged)
	}

	if err := repo.Void(ctx, "e2"); err != nil {
		t.Fatalf("Void: %v", err)
	}
	e, _ := repo.GetByID(ctx, "e2")
	if e.Status != history.EventStatusVoided {
		t.Fatalf("expected voided, got %s", e.Status)
	}
	if err := repo.Void(ctx, "nope"); err != history.ErrNotFound {
		t.Fatalf("expected history.ErrNotFound, got %v", err)
	}
}

func TestGrantRepo_ActiveGrantPrefersLatest(t *testing.T) {
	s := NewStore()
	repo := NewGrantRepo(s)
	ctx := context.Background()
	t0 := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	_ = repo.Create(ctx, caregivers.Grant{ID: "g1", PatientID: "P1", GranteeUserID: "c1", Status: caregivers.StatusActive, CreatedAt: t0, UpdatedAt: t0})
	_ = repo.Create(ctx, caregivers.Grant{ID: "g2", PatientID: "P1", GranteeUserID: "c1", Status: caregivers.StatusActive, CreatedAt: t0, UpdatedAt: t0.Add(time.Hour)})
	_ = repo.Create(ctx, caregivers.Grant{ID: "g3", PatientID: "P1", GranteeUserID: "c1", Status: caregivers.StatusRevoked, CreatedAt: t0, UpdatedAt: t0.Add(2 * time.Hour)})

	g, err := repo.GetActiveGrant(ctx, "P1", "c1")
	if err != nil || g.ID != "g2" {
		t.Fatalf("expected g2, got %+v %v", g, err)
	}
	if _, err := repo.GetActiveGrant(ctx, "P1", "c2"); err != caregivers.ErrNotFound {
		t.Fatalf("expected caregivers.ErrNotFound, got %v", err)
	}
	if byPatient, _ := repo.ListByPatient(ctx, "P1"); len(byPatient) != 3 {
		t.Fatalf("expected 3 grants, got %d", len(byPatient))
	}
}

func TestGrantRepo_GetByCodeAndIsolation(t *testing.T) {
	s := NewStore()
	repo := NewGrantRepo(s)
	ctx := context.Background()

	scopes := []caregivers.Scope{caregivers.ScopePatientRead}
	_ = repo.Create(ctx, caregivers.Grant{ID: "g1", PatientID: "P1", Code: "AB12CD34", Scopes: scopes, Status: caregivers.StatusInvited})
	scopes[0] = caregivers.ScopePatientConfigure

	g, err := repo.GetByCode(ctx, "AB12CD34")
	if err != nil || g.ID != "g1" {
		t.Fatalf("expected g1 by code, got %+v %v", g, err)
	}
	if g.Scopes[0] != caregivers.ScopePatientRead {
		t.Fatalf("stored scopes must not alias the caller slice: %v", g.Scopes)
	}
	if _, err := repo.GetByCode(ctx, "ZZZZZZZZ"); err != caregivers.ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown code, got %v", err)
	}
	if _, err := repo.GetByCode(ctx, ""); err != caregivers.ErrNotFound {
		t.Fatalf("empty code must never match, got %v", err)
	}
}
