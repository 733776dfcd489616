package caregivers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"pillsync/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// PatientOwnerLookup evita importar el paquete patients (rompe ciclos).
type PatientOwnerLookup interface {
	OwnerOf(ctx context.Context, patientID string) (string, error)
}

func RegisterRoutes(r chi.Router, svc *Service, owners PatientOwnerLookup) {
	r.Route("/patients/{patientID}/caregivers", func(cr chi.Router) {
		cr.Post("/", inviteHandler(svc, owners))
		cr.Get("/", listCaregiversHandler(svc, owners))
		cr.Put("/{grantID}/scopes", setScopesHandler(svc))
		cr.Delete("/{grantID}", revokeHandler(svc))
	})

	r.Post("/caregivers/redeem", redeemHandler(svc))
}

type inviteRequest struct {
	Label         string  `json:"label"`
	GranteeUserID string  `json:"grantee_user_id,omitempty"`
	Role          Role    `json:"role,omitempty" enums:"viewer,helper,manager"`
	Scopes        []Scope `json:"scopes,omitempty" enums:"patient:read,patient:configure,doses:record,alarms:respond,device:locate,history:write"`
}

type scopesRequest struct {
	Role   Role    `json:"role,omitempty" enums:"viewer,helper,manager"`
	Scopes []Scope `json:"scopes,omitempty"`
}

type redeemRequest struct {
	Code string `json:"code"`
}

// caregiverResponse no expone el código: solo lo ve el owner al invitar.
type caregiverResponse struct {
	ID            string     `json:"id"`
	PatientID     string     `json:"patient_id"`
	Label         string     `json:"label"`
	GranteeUserID string     `json:"grantee_user_id,omitempty"`
	Scopes        []Scope    `json:"scopes"`
	Status        Status     `json:"status"`
	ExpiresAt     *time.Time `json:"expires_at,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
}

type inviteResponse struct {
	caregiverResponse
	Code string `json:"code"`
}

// inviteHandler godoc
// @Summary Invitar cuidador
// @Description Solo el owner. Devuelve un código de canje que vence a las 72h. Sin role ni scopes se invita como `viewer`.
// @Tags caregivers
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Param payload body inviteRequest true "Etiqueta y permisos"
// @Success 201 {object} inviteResponse
// @Failure 400 {string} string "invalid json / role o scopes inválidos"
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient not found"
// @Failure 409 {string} string "cupo de cuidadores lleno / ya es cuidador"
// @Router /patients/{patientID}/caregivers [post]
func inviteHandler(svc *Service, owners PatientOwnerLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, ownerID, ok := requireOwner(w, r, owners)
		if !ok {
			return
		}

		var req inviteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		g, err := svc.Invite(r.Context(), InviteInput{
			PatientID:     patientID,
			OwnerUserID:   ownerID,
			GranteeUserID: req.GranteeUserID,
			Label:         req.Label,
			Role:          req.Role,
			Scopes:        req.Scopes,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, inviteResponse{caregiverResponse: toCaregiverResponse(g), Code: g.Code})
	}
}

// listCaregiversHandler godoc
// @Summary Cuidadores del paciente
// @Description Activos e invitaciones vigentes. Solo el owner.
// @Tags caregivers
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param patientID path string true "ID del paciente"
// @Success 200 {array} caregiverResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Router /patients/{patientID}/caregivers [get]
func listCaregiversHandler(svc *Service, owners PatientOwnerLookup) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, _, ok := requireOwner(w, r, owners)
		if !ok {
			return
		}
		items, err := svc.Caregivers(r.Context(), patientID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toResponses(items))
	}
}

func setScopesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req scopesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		g, err := svc.SetScopes(r.Context(), GrantRef{
			PatientID: chi.URLParam(r, "patientID"),
			GrantID:   chi.URLParam(r, "grantID"),
		}, userID, req.Role, req.Scopes)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCaregiverResponse(g))
	}
}

// revokeHandler godoc
// @Summary Quitar cuidador
// @Description El owner revoca, o el cuidador se da de baja. Idempotente.
// @Tags caregivers
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param patientID path string true "ID del paciente"
// @Param grantID path string true "ID del grant"
// @Success 200 {object} caregiverResponse
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "not found"
// @Router /patients/{patientID}/caregivers/{grantID} [delete]
func revokeHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		g, err := svc.Revoke(r.Context(), GrantRef{
			PatientID: chi.URLParam(r, "patientID"),
			GrantID:   chi.URLParam(r, "grantID"),
		}, userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCaregiverResponse(g))
	}
}

// redeemHandler godoc
// @Summary Canjear código de cuidador
// @Tags caregivers
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param payload body redeemRequest true "Código recibido del owner"
// @Success 200 {object} caregiverResponse
// @Failure 404 {string} string "not found"
// @Failure 409 {string} string "ya canjeado / ya es cuidador"
// @Failure 410 {string} string "invite code expired"
// @Router /caregivers/redeem [post]
func redeemHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req redeemRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		g, err := svc.Redeem(r.Context(), req.Code, userID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toCaregiverResponse(g))
	}
}

// requireOwner responde 401/404/403 y devuelve false si el caller no es el owner.
func requireOwner(w http.ResponseWriter, r *http.Request, owners PatientOwnerLookup) (string, string, bool) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", "", false
	}
	patientID := chi.URLParam(r, "patientID")
	ownerID, err := owners.OwnerOf(r.Context(), patientID)
	if err != nil || strings.TrimSpace(ownerID) == "" {
		http.Error(w, "patient not found", http.StatusNotFound)
		return "", "", false
	}
	if ownerID != userID {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", "", false
	}
	return patientID, ownerID, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch err {
	case ErrInvalidInput:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case ErrForbidden:
		http.Error(w, "forbidden", http.StatusForbidden)
	case ErrNotFound:
		http.Error(w, "not found", http.StatusNotFound)
	case ErrBadState, ErrLimit:
		http.Error(w, err.Error(), http.StatusConflict)
	case ErrExpired:
		http.Error(w, err.Error(), http.StatusGone)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toResponses(items []Grant) []caregiverResponse {
	out := make([]caregiverResponse, 0, len(items))
	for _, g := range items {
		out = append(out, toCaregiverResponse(g))
	}
	return out
}

func toCaregiverResponse(g Grant) caregiverResponse {
	resp := caregiverResponse{
		ID:            g.ID,
		PatientID:     g.PatientID,
		Label:         g.Label,
		GranteeUserID: g.GranteeUserID,
		Scopes:        g.Scopes,
		Status:        g.Status,
		UpdatedAt:     g.UpdatedAt,
		RevokedAt:     g.RevokedAt,
	}
	if g.Status == StatusInvited {
		exp := g.ExpiresAt
		resp.ExpiresAt = &exp
	}
	return resp
}

// writeJSON está duplicado a propósito en cada módulo; extraerlo recién si aparece en más lugares.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
