package memory

import (
	"context"
	"errors"
	"sort"

	"pillsync/internal/domain/history"

	"github.com/samber/lo"
)

const defaultHistoryLimit = 50

type historyRepo struct {
	s *Store
}

func NewHistoryRepo(s *Store) history.Repository {
	return &historyRepo{s: s}
}

func (r *historyRepo) Create(ctx context.Context, e history.Event) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if e.ID == "" {
		return errors.New("event id required")
	}
	if _, exists := r.s.events[e.ID]; exists {
		return errors.New("event already exists")
	}
	r.s.events[e.ID] = e
	return nil
}

func (r *historyRepo) GetByID(ctx context.Context, id string) (history.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	e, ok := r.s.events[id]
	if !ok {
		return history.Event{}, history.ErrNotFound
	}
	return e, nil
}

func (r *historyRepo) ListByPatient(ctx context.Context, patientID string, filter history.ListFilter) ([]history.Event, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	out := make([]history.Event, 0)
	for _, e := range r.s.events {
		if e.PatientID != patientID {
			continue
		}
		if len(filter.Types) > 0 && !lo.Contains(filter.Types, e.Type) {
			continue
		}
		if filter.SlotID > 0 && e.SlotID != filter.SlotID {
			continue
		}
		// rango sobre occurred_at, ambos extremos inclusive
		if filter.From != nil && e.OccurredAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && e.OccurredAt.After(*filter.To) {
			continue
		}
		out = append(out, e)
	}

	// Orden por occurred_at desc (más reciente primero)
	sort.Slice(out, func(i, j int) bool {
		if !out[i].OccurredAt.Equal(out[j].OccurredAt) {
			return out[i].OccurredAt.After(out[j].OccurredAt)
		}
		return out[i].RecordedAt.After(out[j].RecordedAt)
	})

	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *historyRepo) Void(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	e, ok := r.s.events[id]
	if !ok {
		return history.ErrNotFound
	}
	e.Status = history.EventStatusVoided
	r.s.events[id] = e
	return nil
}
