package memory

import (
	"context"
	"errors"
	"sort"

	"pillsync/internal/domain/caregivers"
)

type grantRepo struct {
	s *Store
}

func NewGrantRepo(s *Store) caregivers.Repository {
	return &grantRepo{s: s}
}

func (r *grantRepo) Create(ctx context.Context, g caregivers.Grant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if g.ID == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.s.grants[g.ID]; exists {
		return errors.New("grant already exists")
	}
	r.s.grants[g.ID] = cloneGrant(g)
	return nil
}

func (r *grantRepo) Update(ctx context.Context, g caregivers.Grant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if g.ID == "" {
		return errors.New("grant id required")
	}
	if _, exists := r.s.grants[g.ID]; !exists {
		return caregivers.ErrNotFound
	}
	r.s.grants[g.ID] = cloneGrant(g)
	return nil
}

func (r *grantRepo) GetByID(ctx context.Context, id string) (caregivers.Grant, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	g, ok := r.s.grants[id]
	if !ok {
		return caregivers.Grant{}, caregivers.ErrNotFound
	}
	return g, nil
}

func (r *grantRepo) GetByCode(ctx context.Context, code string) (caregivers.Grant, error) {
	found := r.list(func(g caregivers.Grant) bool { return g.Code != "" && g.Code == code })
	if len(found) == 0 {
		return caregivers.Grant{}, caregivers.ErrNotFound
	}
	return found[0], nil
}

func (r *grantRepo) ListByPatient(ctx context.Context, patientID string) ([]caregivers.Grant, error) {
	return r.list(func(g caregivers.Grant) bool { return g.PatientID == patientID }), nil
}

func (r *grantRepo) ListByGrantee(ctx context.Context, granteeUserID string) ([]caregivers.Grant, error) {
	return r.list(func(g caregivers.Grant) bool { return g.GranteeUserID == granteeUserID }), nil
}

// Si por data sucia hubiera varios grants activos, gana el último UpdatedAt
// (y en empate, el último CreatedAt).
func (r *grantRepo) GetActiveGrant(ctx context.Context, patientID, granteeUserID string) (caregivers.Grant, error) {
	active := r.list(func(g caregivers.Grant) bool {
		return g.PatientID == patientID &&
			g.GranteeUserID == granteeUserID &&
			g.Status == caregivers.StatusActive
	})
	if len(active) == 0 {
		return caregivers.Grant{}, caregivers.ErrNotFound
	}

	winner := active[0]
	for _, g := range active[1:] {
		if g.UpdatedAt.After(winner.UpdatedAt) ||
			(g.UpdatedAt.Equal(winner.UpdatedAt) && g.CreatedAt.After(winner.CreatedAt)) {
			winner = g
		}
	}
	return winner, nil
}

func (r *grantRepo) list(keep func(caregivers.Grant) bool) []caregivers.Grant {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]caregivers.Grant, 0)
	for _, g := range r.s.grants {
		if keep(g) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func cloneGrant(g caregivers.Grant) caregivers.Grant {
	g.Scopes = append([]caregivers.Scope{}, g.Scopes...)
	return g
}
