package memory

import (
	"context"
	"sort"
	"strings"

	"pillsync/internal/domain/ledger"
	"pillsync/internal/domain/schedule"
)

type ledgerRepo struct {
	s *Store
}

func NewLedgerRepo(s *Store) ledger.Repository {
	return &ledgerRepo{s: s}
}

func (r *ledgerRepo) Mutate(ctx context.Context, patientID string, dose schedule.DoseID, fn func(s *ledger.Snapshot) error) (ledger.Snapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.patients[patientID]
	if !ok {
		return ledger.Snapshot{}, ledger.ErrNotFound
	}
	slotID := dose.SlotID()
	idx := -1
	for i := range p.Slots {
		if p.Slots[i].ID == slotID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ledger.Snapshot{}, ledger.ErrNotFound
	}
	date, err := dose.Day()
	if err != nil {
		return ledger.Snapshot{}, ledger.ErrInvalidInput
	}
	weekday := date.Weekday()

	slot := p.Slots[idx]
	_, taken := r.s.taken[patientID][dose]
	snap := ledger.Snapshot{
		PatientID:   patientID,
		DoseID:      dose,
		SlotID:      slotID,
		Assigned:    slot.Assigned(),
		Scheduled:   slot.ActiveOn(weekday),
		ScheduleLen: len(slot.Schedule),
		PillCount:   slot.PillCount,
		Taken:       taken,
	}
	if err := fn(&snap); err != nil {
		return ledger.Snapshot{}, err
	}

	// los slots guardados nunca salen del store sin clonar
	p.Slots[idx].PillCount = snap.PillCount
	r.s.patients[patientID] = p

	set := r.s.taken[patientID]
	if set == nil {
		set = make(map[schedule.DoseID]struct{})
		r.s.taken[patientID] = set
	}
	if snap.Taken {
		set[dose] = struct{}{}
	} else {
		delete(set, dose)
	}
	return snap, nil
}

func (r *ledgerRepo) ListTaken(ctx context.Context, patientID string, day string) ([]schedule.DoseID, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	prefix := day + "/"
	out := make([]schedule.DoseID, 0)
	for id := range r.s.taken[patientID] {
		if strings.HasPrefix(string(id), prefix) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
