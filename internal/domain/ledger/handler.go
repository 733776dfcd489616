package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"pillsync/internal/domain/caregivers"
	"pillsync/internal/domain/history"
	"pillsync/internal/domain/schedule"
	"pillsync/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// PatientOwnerLookup evita importar patients.
type PatientOwnerLookup interface {
	OwnerOf(ctx context.Context, patientID string) (string, error)
}

func RegisterRoutes(r chi.Router, svc *Service, owners PatientOwnerLookup, grantsSvc *caregivers.Service) {
	r.Route("/patients/{patientID}/doses", func(dr chi.Router) {
		dr.Get("/taken", listTakenHandler(svc, owners, grantsSvc))
		dr.Post("/take", doseActionHandler(svc, owners, grantsSvc, OpTake))
		dr.Post("/undo", doseActionHandler(svc, owners, grantsSvc, OpUndo))
		dr.Post("/toggle", doseActionHandler(svc, owners, grantsSvc, OpToggle))
	})
}

type doseActionRequest struct {
	DoseID string `json:"dose_id" example:"2026-10-19/1/0"`
}

type snapshotResponse struct {
	PatientID string `json:"patient_id"`
	DoseID    string `json:"dose_id"`
	SlotID    int    `json:"slot_id"`
	PillCount int    `json:"pill_count"`
	Taken     bool   `json:"taken"`
}

type takenResponse struct {
	Day   string   `json:"day"`
	Doses []string `json:"doses"`
}

// doseActionHandler godoc
// @Summary Tomar / deshacer / alternar dosis
// @Description take descuenta una pastilla (mínimo 0), undo la devuelve, toggle alterna. Idempotentes. Owner o cuidador con `doses:record`.
// @Tags doses
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param patientID path string true "ID del paciente"
// @Param payload body doseActionRequest true "ID de dosis YYYY-MM-DD/<slot>/<index>"
// @Success 200 {object} snapshotResponse
// @Failure 400 {string} string "invalid dose id"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient/dose not found"
// @Failure 409 {string} string "slot is unassigned"
// @Router /patients/{patientID}/doses/take [post]
// @Router /patients/{patientID}/doses/undo [post]
// @Router /patients/{patientID}/doses/toggle [post]
func doseActionHandler(svc *Service, owners PatientOwnerLookup, grantsSvc *caregivers.Service, op Op) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, actor, ok := authorize(w, r, owners, grantsSvc, caregivers.ScopeDosesRecord)
		if !ok {
			return
		}

		var req doseActionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		dose := schedule.DoseID(strings.TrimSpace(req.DoseID))

		var (
			snap Snapshot
			err  error
		)
		switch op {
		case OpTake:
			snap, err = svc.Take(r.Context(), patientID, dose, actor)
		case OpUndo:
			snap, err = svc.Undo(r.Context(), patientID, dose, actor)
		default:
			snap, err = svc.Toggle(r.Context(), patientID, dose, actor)
		}
		if err != nil {
			switch err {
			case ErrInvalidInput:
				http.Error(w, "invalid dose id", http.StatusBadRequest)
			case ErrNotFound:
				http.Error(w, "dose not found", http.StatusNotFound)
			case ErrUnassigned, ErrNotScheduled:
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, snapshotResponse{
			PatientID: snap.PatientID,
			DoseID:    string(snap.DoseID),
			SlotID:    snap.SlotID,
			PillCount: snap.PillCount,
			Taken:     snap.Taken,
		})
	}
}

func listTakenHandler(svc *Service, owners PatientOwnerLookup, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, _, ok := authorize(w, r, owners, grantsSvc, caregivers.ScopePatientRead)
		if !ok {
			return
		}

		day := svc.Today()
		if raw := strings.TrimSpace(r.URL.Query().Get("day")); raw != "" {
			t, err := time.ParseInLocation(time.DateOnly, raw, time.Local)
			if err != nil {
				http.Error(w, "day must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			day = t
		}

		ids, err := svc.ListTaken(r.Context(), patientID, day)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := takenResponse{Day: day.Format(time.DateOnly), Doses: make([]string, 0, len(ids))}
		for _, id := range ids {
			out.Doses = append(out.Doses, string(id))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func authorize(w http.ResponseWriter, r *http.Request, owners PatientOwnerLookup, grantsSvc *caregivers.Service, scope caregivers.Scope) (string, history.Actor, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", history.Actor{}, false
	}

	patientID := chi.URLParam(r, "patientID")
	ownerID, err := owners.OwnerOf(r.Context(), patientID)
	if err != nil {
		http.Error(w, "patient not found", http.StatusNotFound)
		return "", history.Actor{}, false
	}

	isOwner, err := grantsSvc.Authorize(r.Context(), patientID, ownerID, claims.UserID, scope)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", history.Actor{}, false
	}

	actor := history.Actor{Type: history.ActorTypeCaregiverUser, ID: claims.UserID}
	if isOwner {
		actor.Type = history.ActorTypeOwnerUser
	}
	return patientID, actor, true
}

// writeJSON está duplicado a propósito en cada módulo; extraerlo recién si aparece en más lugares.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
