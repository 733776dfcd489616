package caregivers

import (
	"time"

	"github.com/samber/lo"
)

// Scope habilita un grupo de rutas del paciente.
type Scope string

const (
	ScopePatientRead      Scope = "patient:read"
	ScopePatientConfigure Scope = "patient:configure"
	ScopeDosesRecord      Scope = "doses:record"
	ScopeAlarmsRespond    Scope = "alarms:respond"
	ScopeDeviceLocate     Scope = "device:locate"
	ScopeHistoryWrite     Scope = "history:write"
)

var allScopes = []Scope{
	ScopePatientRead,
	ScopePatientConfigure,
	ScopeDosesRecord,
	ScopeAlarmsRespond,
	ScopeDeviceLocate,
	ScopeHistoryWrite,
}

// Role es un preset de scopes según lo que el cuidador hace con el pastillero.
// @Enum viewer, helper, manager
type Role string

const (
	RoleViewer  Role = "viewer"  // familiar que mira el dashboard
	RoleHelper  Role = "helper"  // registra tomas y atiende alarmas
	RoleManager Role = "manager" // además carga slots y maneja el dispositivo
)

var roleScopes = map[Role][]Scope{
	RoleViewer: {ScopePatientRead},
	RoleHelper: {ScopePatientRead, ScopeDosesRecord, ScopeAlarmsRespond, ScopeHistoryWrite},
	RoleManager: {
		ScopePatientRead, ScopeDosesRecord, ScopeAlarmsRespond, ScopeHistoryWrite,
		ScopePatientConfigure, ScopeDeviceLocate,
	},
}

type Status string

const (
	StatusInvited Status = "invited"
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Grant es el acceso de un cuidador a un paciente. Nace como invitación con
// código; el cuidador queda fijado recién al canjearlo.
type Grant struct {
	ID        string
	PatientID string

	OwnerUserID   string
	GranteeUserID string // vacío hasta el canje, salvo invitación nominal
	Label         string // cómo lo llama el owner: "Hija", "Enfermera noche"

	Code      string
	ExpiresAt time.Time // vence el código, no el acceso

	Scopes []Scope
	Status Status

	CreatedAt time.Time
	UpdatedAt time.Time
	RevokedAt *time.Time
}

// Expired: invitación sin canjear con el código vencido.
func (g Grant) Expired(now time.Time) bool {
	return g.Status == StatusInvited && !now.Before(g.ExpiresAt)
}

// Live cuenta para el cupo del paciente: activo o invitación vigente.
func (g Grant) Live(now time.Time) bool {
	return g.Status == StatusActive || (g.Status == StatusInvited && !g.Expired(now))
}

// Allows: solo un grant activo habilita scopes.
func (g Grant) Allows(scope Scope) bool {
	return g.Status == StatusActive && lo.Contains(g.Scopes, scope)
}
