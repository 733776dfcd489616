package alarms

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"pillsync/internal/domain/caregivers"
	"pillsync/internal/domain/history"
	"pillsync/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// PatientOwnerLookup evita importar patients.
type PatientOwnerLookup interface {
	OwnerOf(ctx context.Context, patientID string) (string, error)
}

func RegisterRoutes(r chi.Router, m *Manager, owners PatientOwnerLookup, grantsSvc *caregivers.Service) {
	r.Route("/patients/{patientID}/alarm", func(ar chi.Router) {
		ar.Get("/", getAlarmHandler(m, owners, grantsSvc))
		ar.Post("/{action}", alarmActionHandler(m, owners, grantsSvc))
	})
}

type promptResponse struct {
	Title   string `json:"title"`
	Message string `json:"message"`
}

type alarmResponse struct {
	ID           string         `json:"id"`
	PatientID    string         `json:"patient_id"`
	DeviceID     string         `json:"device_id,omitempty"`
	SlotID       int            `json:"slot_id"`
	DoseID       string         `json:"dose_id"`
	MedicineName string         `json:"medicine_name"`
	Step         string         `json:"step" example:"RINGING"`
	Manual       bool           `json:"manual"`
	Prompt       promptResponse `json:"prompt"`
	StartedAt    time.Time      `json:"started_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// getAlarmHandler godoc
// @Summary Alarma activa
// @Description Devuelve la alarma activa del paciente con el texto del paso actual. Los clientes hacen polling de este endpoint.
// @Tags alarms
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param patientID path string true "ID del paciente"
// @Success 200 {object} alarmResponse
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "no active alarm"
// @Router /patients/{patientID}/alarm [get]
func getAlarmHandler(m *Manager, owners PatientOwnerLookup, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, _, ok := authorize(w, r, owners, grantsSvc, caregivers.ScopePatientRead)
		if !ok {
			return
		}

		a, ok := m.Active(patientID)
		if !ok {
			http.Error(w, ErrNoAlarm.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toAlarmResponse(a))
	}
}

// alarmActionHandler godoc
// @Summary Responder a la alarma
// @Description turn_off (RINGING), confirm o not_yet (CONFIRMING). Owner o cuidador con `alarms:respond`.
// @Tags alarms
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param patientID path string true "ID del paciente"
// @Param action path string true "turn_off | confirm | not_yet"
// @Success 200 {object} alarmResponse
// @Failure 400 {string} string "unknown action"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "no active alarm"
// @Failure 409 {string} string "invalid alarm transition"
// @Router /patients/{patientID}/alarm/{action} [post]
func alarmActionHandler(m *Manager, owners PatientOwnerLookup, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, actor, ok := authorize(w, r, owners, grantsSvc, caregivers.ScopeAlarmsRespond)
		if !ok {
			return
		}

		var (
			a   Alarm
			err error
		)
		switch Action(chi.URLParam(r, "action")) {
		case ActionTurnOff:
			a, err = m.TurnOff(r.Context(), patientID, actor)
		case ActionConfirm:
			a, err = m.Confirm(r.Context(), patientID, actor)
		case ActionNotYet:
			a, err = m.NotYet(r.Context(), patientID, actor)
		default:
			http.Error(w, "unknown action", http.StatusBadRequest)
			return
		}
		if err != nil {
			switch err {
			case ErrNoAlarm:
				http.Error(w, err.Error(), http.StatusNotFound)
			case ErrBadTransition:
				http.Error(w, err.Error(), http.StatusConflict)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		writeJSON(w, http.StatusOK, toAlarmResponse(a))
	}
}

func toAlarmResponse(a Alarm) alarmResponse {
	p := a.Prompt()
	return alarmResponse{
		ID:           a.ID,
		PatientID:    a.PatientID,
		DeviceID:     a.DeviceID,
		SlotID:       a.SlotID,
		DoseID:       string(a.DoseID),
		MedicineName: a.MedicineName,
		Step:         string(a.State.Step),
		Manual:       a.State.Manual,
		Prompt:       promptResponse{Title: p.Title, Message: p.Message},
		StartedAt:    a.StartedAt,
		UpdatedAt:    a.UpdatedAt,
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
