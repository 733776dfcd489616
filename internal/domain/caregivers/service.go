package caregivers

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrBadState     = errors.New("invalid state")
	ErrExpired      = errors.New("invite code expired")
	ErrLimit        = errors.New("caregiver limit reached")
)

const (
	// InviteTTL es lo que dura un código sin canjear.
	InviteTTL = 72 * time.Hour

	// MaxCaregivers cuenta activos + invitaciones vigentes por paciente.
	MaxCaregivers = 5

	codeLen  = 8
	labelMax = 40
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{
		repo: repo,
		now:  time.Now,
	}
}

// WithClock reemplaza el reloj (tests y app.Options.Now).
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

type InviteInput struct {
	PatientID   string
	OwnerUserID string

	// Opcional: si viene, solo ese usuario puede canjear el código.
	GranteeUserID string
	Label         string

	// Scopes explícitos ganan sobre Role. Sin ninguno => RoleViewer.
	Role   Role
	Scopes []Scope
}

// Invite genera la invitación con su código de canje.
func (s *Service) Invite(ctx context.Context, in InviteInput) (Grant, error) {
	patientID := strings.TrimSpace(in.PatientID)
	ownerID := strings.TrimSpace(in.OwnerUserID)
	granteeID := strings.TrimSpace(in.GranteeUserID)
	label := strings.TrimSpace(in.Label)

	if patientID == "" || ownerID == "" || label == "" || len(label) > labelMax {
		return Grant{}, ErrInvalidInput
	}
	if granteeID == ownerID {
		return Grant{}, ErrInvalidInput
	}
	scopes, err := resolveScopes(in.Role, in.Scopes)
	if err != nil {
		return Grant{}, err
	}

	now := s.now()
	current, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return Grant{}, err
	}
	live := lo.Filter(current, func(g Grant, _ int) bool { return g.Live(now) })
	if len(live) >= MaxCaregivers {
		return Grant{}, ErrLimit
	}
	if granteeID != "" && lo.ContainsBy(live, func(g Grant) bool { return g.GranteeUserID == granteeID }) {
		return Grant{}, ErrBadState
	}

	g := Grant{
		ID:            uuid.NewString(),
		PatientID:     patientID,
		OwnerUserID:   ownerID,
		GranteeUserID: granteeID,
		Label:         label,
		Code:          newCode(),
		ExpiresAt:     now.Add(InviteTTL),
		Scopes:        scopes,
		Status:        StatusInvited,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Redeem canjea el código y deja al usuario como cuidador activo.
// Canjear de nuevo el propio código es idempotente.
func (s *Service) Redeem(ctx context.Context, code, userID string) (Grant, error) {
	code = normalizeCode(code)
	userID = strings.TrimSpace(userID)
	if code == "" || userID == "" {
		return Grant{}, ErrInvalidInput
	}

	g, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		return Grant{}, ErrNotFound
	}

	switch {
	case g.Status == StatusActive && g.GranteeUserID == userID:
		return g, nil
	case g.Status != StatusInvited:
		return Grant{}, ErrBadState
	case g.Expired(s.now()):
		return Grant{}, ErrExpired
	case g.OwnerUserID == userID:
		return Grant{}, ErrInvalidInput
	case g.GranteeUserID != "" && g.GranteeUserID != userID:
		return Grant{}, ErrForbidden
	}

	// un cuidador tiene un solo grant activo por paciente; para cambiarle
	// permisos el owner usa SetScopes
	if _, err := s.repo.GetActiveGrant(ctx, g.PatientID, userID); err == nil {
		return Grant{}, ErrBadState
	}

	g.GranteeUserID = userID
	g.Status = StatusActive
	g.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// GrantRef ubica un grant dentro de su paciente (así lo direccionan las rutas).
type GrantRef struct {
	PatientID string
	GrantID   string
}

// SetScopes cambia los permisos de un grant vivo. Solo el owner.
func (s *Service) SetScopes(ctx context.Context, ref GrantRef, ownerUserID string, role Role, scopes []Scope) (Grant, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return Grant{}, ErrInvalidInput
	}
	g, err := s.load(ctx, ref)
	if err != nil {
		return Grant{}, err
	}
	if g.OwnerUserID != ownerUserID {
		return Grant{}, ErrForbidden
	}
	if g.Status == StatusRevoked || g.Expired(s.now()) {
		return Grant{}, ErrBadState
	}
	resolved, err := resolveScopes(role, scopes)
	if err != nil {
		return Grant{}, err
	}

	g.Scopes = resolved
	g.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Revoke: el owner quita el acceso o el cuidador se da de baja. Idempotente.
func (s *Service) Revoke(ctx context.Context, ref GrantRef, userID string) (Grant, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Grant{}, ErrInvalidInput
	}
	g, err := s.load(ctx, ref)
	if err != nil {
		return Grant{}, err
	}
	if g.OwnerUserID != userID && (g.GranteeUserID != userID || g.Status != StatusActive) {
		return Grant{}, ErrForbidden
	}
	if g.Status == StatusRevoked {
		return g, nil
	}

	now := s.now()
	g.Status = StatusRevoked
	g.UpdatedAt = now
	g.RevokedAt = &now
	if err := s.repo.Update(ctx, g); err != nil {
		return Grant{}, err
	}
	return g, nil
}

// Caregivers lista lo que el owner ve del paciente: activos e invitaciones
// vigentes. Revocados y códigos vencidos no aparecen.
func (s *Service) Caregivers(ctx context.Context, patientID string) ([]Grant, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return lo.Filter(items, func(g Grant, _ int) bool { return g.Live(now) }), nil
}

// SharedWith devuelve los grants activos del cuidador, uno por paciente.
func (s *Service) SharedWith(ctx context.Context, userID string) ([]Grant, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidInput
	}
	items, err := s.repo.ListByGrantee(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := lo.Filter(items, func(g Grant, _ int) bool { return g.Status == StatusActive })
	sort.SliceStable(active, func(i, j int) bool { return active[i].UpdatedAt.After(active[j].UpdatedAt) })
	return lo.UniqBy(active, func(g Grant) string { return g.PatientID }), nil
}

// Authorize aplica la regla de acceso de todos los handlers:
// el owner pasa siempre; un cuidador necesita grant activo con el scope.
// Devuelve isOwner para que el caller elija el tipo de actor.
func (s *Service) Authorize(ctx context.Context, patientID, ownerUserID, userID string, scope Scope) (bool, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false, ErrForbidden
	}
	if ownerUserID == userID {
		return true, nil
	}
	g, err := s.repo.GetActiveGrant(ctx, strings.TrimSpace(patientID), userID)
	if err != nil || !g.Allows(scope) {
		return false, ErrForbidden
	}
	return false, nil
}

// load trata un grant de otro paciente como inexistente.
func (s *Service) load(ctx context.Context, ref GrantRef) (Grant, error) {
	grantID := strings.TrimSpace(ref.GrantID)
	if grantID == "" {
		return Grant{}, ErrInvalidInput
	}
	g, err := s.repo.GetByID(ctx, grantID)
	if err != nil || g.PatientID != strings.TrimSpace(ref.PatientID) {
		return Grant{}, ErrNotFound
	}
	return g, nil
}

// resolveScopes: scopes explícitos o el preset del rol. Cualquier permiso
// implica poder leer al paciente, así que patient:read siempre queda.
func resolveScopes(role Role, in []Scope) ([]Scope, error) {
	var picked []Scope
	if len(in) > 0 {
		for _, raw := range in {
			sc := Scope(strings.TrimSpace(string(raw)))
			if !lo.Contains(allScopes, sc) {
				return nil, ErrInvalidInput
			}
			picked = append(picked, sc)
		}
	} else {
		if role == "" {
			role = RoleViewer
		}
		preset, ok := roleScopes[role]
		if !ok {
			return nil, ErrInvalidInput
		}
		picked = preset
	}

	// orden canónico, sin duplicados
	return lo.Filter(allScopes, func(sc Scope, _ int) bool {
		return sc == ScopePatientRead || lo.Contains(picked, sc)
	}), nil
}

func newCode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return strings.ToUpper(raw[:codeLen])
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(code), "-", ""))
}
