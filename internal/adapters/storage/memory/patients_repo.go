package memory

import (
	"context"
	"errors"
	"sort"
	"strings"

	"pillsync/internal/domain/patients"
)

type patientRepo struct {
	s *Store
}

func NewPatientRepo(s *Store) patients.Repository {
	return &patientRepo{s: s}
}

func (r *patientRepo) Create(ctx context.Context, p patients.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if strings.TrimSpace(p.ID) == "" {
		return errors.New("patient id required")
	}
	if _, exists := r.s.patients[p.ID]; exists {
		return errors.New("patient already exists")
	}
	r.s.patients[p.ID] = clonePatient(p)
	return nil
}

func (r *patientRepo) GetByID(ctx context.Context, id string) (patients.Patient, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.patients[id]
	if !ok {
		return patients.Patient{}, patients.ErrNotFound
	}
	return clonePatient(p), nil
}

func (r *patientRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]patients.Patient, error) {
	return r.list(func(p patients.Patient) bool { return p.OwnerUserID == ownerUserID }), nil
}

func (r *patientRepo) ListPaired(ctx context.Context) ([]patients.Patient, error) {
	return r.list(patients.Patient.Paired), nil
}

func (r *patientRepo) Update(ctx context.Context, id string, fn func(p *patients.Patient) error) (patients.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cur, ok := r.s.patients[id]
	if !ok {
		return patients.Patient{}, patients.ErrNotFound
	}
	next := clonePatient(cur)
	if err := fn(&next); err != nil {
		return patients.Patient{}, err
	}
	r.s.patients[id] = next
	return clonePatient(next), nil
}

func (r *patientRepo) list(keep func(patients.Patient) bool) []patients.Patient {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]patients.Patient, 0)
	for _, p := range r.s.patients {
		if keep(p) {
			out = append(out, clonePatient(p))
		}
	}

	// Orden estable por created_at asc (solo para consistencia en dev)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// clonePatient copia los slices: el caller no puede tocar el estado guardado.
func clonePatient(p patients.Patient) patients.Patient {
	slots := make([]patients.Slot, len(p.Slots))
	for i, s := range p.Slots {
		s.Schedule = append([]string(nil), s.Schedule...)
		s.SelectedDays = append([]int(nil), s.SelectedDays...)
		slots[i] = s
	}
	p.Slots = slots
	return p
}
