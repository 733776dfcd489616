package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pillsync/internal/domain/caregivers"
	"pillsync/internal/domain/schedule"
	"pillsync/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// PatientLookup es lo que el historial necesita del paciente (lo implementa patients.Service).
type PatientLookup interface {
	OwnerOf(ctx context.Context, patientID string) (string, error)
	EntriesFor(ctx context.Context, patientID string) (func(day time.Time) []schedule.Entry, error)
}

func RegisterRoutes(r chi.Router, svc *Service, patientsSvc PatientLookup, grantsSvc *caregivers.Service) {
	r.Route("/patients/{patientID}/history", func(hr chi.Router) {
		hr.Get("/", listEventsHandler(svc, patientsSvc, grantsSvc))
		hr.Post("/", createNoteHandler(svc, patientsSvc, grantsSvc))
		hr.Post("/{eventID}/void", voidEventHandler(svc, patientsSvc, grantsSvc))
	})
	r.Get("/patients/{patientID}/adherence", adherenceHandler(svc, patientsSvc, grantsSvc))
}

type createNoteRequest struct {
	Type       EventType `json:"type" enums:"NOTE"`
	OccurredAt string    `json:"occurred_at"` // RFC3339
	SlotID     int       `json:"slot_id"`
	Notes      string    `json:"notes"`
}

// eventResponse es también el payload que se publica en el bus.
type eventResponse struct {
	ID         string      `json:"id"`
	PatientID  string      `json:"patient_id"`
	Type       EventType   `json:"type"`
	SlotID     int         `json:"slot_id,omitempty"`
	DoseID     string      `json:"dose_id,omitempty"`
	OccurredAt time.Time   `json:"occurred_at"`
	RecordedAt time.Time   `json:"recorded_at"`
	Notes      string      `json:"notes,omitempty"`
	ActorType  ActorType   `json:"actor_type"`
	ActorID    string      `json:"actor_id"`
	Status     EventStatus `json:"status"`
}

type adherenceDayResponse struct {
	Day       string  `json:"day"`
	Scheduled int     `json:"scheduled"`
	Taken     int     `json:"taken"`
	Rate      float64 `json:"rate"`
}

// listEventsHandler godoc
// @Summary Historial del paciente
// @Description Eventos de dosis, alarmas, dispositivo y notas. Owner o cuidador con `patient:read`.
// @Tags history
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param patientID path string true "ID del paciente"
// @Param limit query int false "Máximo de eventos (1-200). Por defecto 50"
// @Param types query string false "CSV de tipos (ej: DOSE_TAKEN,ALARM_NOT_YET)"
// @Param slot_id query int false "Solo eventos de este slot"
// @Param from query string false "occurred_at mínimo (RFC3339)"
// @Param to query string false "occurred_at máximo (RFC3339)"
// @Success 200 {array} eventResponse
// @Failure 400 {string} string "parámetros de filtro inválidos"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID}/history [get]
func listEventsHandler(svc *Service, patientsSvc PatientLookup, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, _, ok := authorize(w, r, patientsSvc, grantsSvc, caregivers.ScopePatientRead)
		if !ok {
			return
		}

		filter, err := parseListFilter(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		items, err := svc.ListByPatient(r.Context(), patientID, filter)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]eventResponse, 0, len(items))
		for _, e := range items {
			out = append(out, toEventResponse(e))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// createNoteHandler godoc
// @Summary Agregar nota al historial
// @Description Solo se crean por API los tipos manuales (NOTE). Owner o cuidador con `history:write`.
// @Tags history
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param patientID path string true "ID del paciente"
// @Param payload body createNoteRequest true "occurred_at en RFC3339; si falta, ahora"
// @Success 201 {object} eventResponse
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 403 {string} string "forbidden"
// @Router /patients/{patientID}/history [post]
func createNoteHandler(svc *Service, patientsSvc PatientLookup, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, actor, ok := authorize(w, r, patientsSvc, grantsSvc, caregivers.ScopeHistoryWrite)
		if !ok {
			return
		}

		var req createNoteRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Type == "" {
			req.Type = EventTypeNote
		}

		occurred := time.Now()
		if v := strings.TrimSpace(req.OccurredAt); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				http.Error(w, "occurred_at must be RFC3339", http.StatusBadRequest)
				return
			}
			occurred = t
		}

		e, err := svc.Create(r.Context(), patientID, actor, CreateInput{
			Type:       req.Type,
			OccurredAt: occurred,
			SlotID:     req.SlotID,
			Notes:      req.Notes,
		})
		if err != nil {
			if err == ErrInvalidInput {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, toEventResponse(e))
	}
}

// voidEventHandler godoc
// @Summary Anular (void) una nota
// @Description Los eventos del sistema no se anulan (409). Owner o cuidador con `history:write`.
// @Tags history
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param patientID path string true "ID del paciente"
// @Param eventID path string true "ID del evento"
// @Success 200 {object} eventResponse
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "event not found"
// @Failure 409 {string} string "invalid state"
// @Router /patients/{patientID}/history/{eventID}/void [post]
func voidEventHandler(svc *Service, patientsSvc PatientLookup, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, _, ok := authorize(w, r, patientsSvc, grantsSvc, caregivers.ScopeHistoryWrite)
		if !ok {
			return
		}

		// el evento tiene que ser de este paciente
		ev, err := svc.GetByID(r.Context(), chi.URLParam(r, "eventID"))
		if err != nil || ev.PatientID != patientID {
			http.Error(w, "event not found", http.StatusNotFound)
			return
		}

		updated, err := svc.Void(r.Context(), ev.ID)
		if err != nil {
			switch err {
			case ErrBadState:
				http.Error(w, err.Error(), http.StatusConflict)
			case ErrNotFound:
				http.Error(w, "event not found", http.StatusNotFound)
			default:
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}
		writeJSON(w, http.StatusOK, toEventResponse(updated))
	}
}

// adherenceHandler godoc
// @Summary Adherencia por día
// @Description Dosis programadas vs tomadas de los últimos N días (hoy incluido). Owner o cuidador con `patient:read`.
// @Tags history
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param patientID path string true "ID del paciente"
// @Param days query int false "Días (1-31). Por defecto 7"
// @Success 200 {array} adherenceDayResponse
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID}/adherence [get]
func adherenceHandler(svc *Service, patientsSvc PatientLookup, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		patientID, _, ok := authorize(w, r, patientsSvc, grantsSvc, caregivers.ScopePatientRead)
		if !ok {
			return
		}

		days := 0
		if v := r.URL.Query().Get("days"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 1 {
				http.Error(w, "days must be a positive number", http.StatusBadRequest)
				return
			}
			days = n
		}

		entriesFor, err := patientsSvc.EntriesFor(r.Context(), patientID)
		if err != nil {
			http.Error(w, "patient not found", http.StatusNotFound)
			return
		}

		items, err := svc.Adherence(r.Context(), patientID, entriesFor, days)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]adherenceDayResponse, 0, len(items))
		for _, d := range items {
			out = append(out, adherenceDayResponse{Day: d.Day, Scheduled: d.Scheduled, Taken: d.Taken, Rate: d.Rate()})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func parseListFilter(r *http.Request) (ListFilter, error) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}

	filter := ListFilter{Limit: limit}

	// types=DOSE_TAKEN,ALARM_NOT_YET
	if v := strings.TrimSpace(r.URL.Query().Get("types")); v != "" {
		for _, p := range strings.Split(v, ",") {
			if t := EventType(strings.TrimSpace(p)); t != "" {
				filter.Types = append(filter.Types, t)
			}
		}
	}

	if v := strings.TrimSpace(r.URL.Query().Get("slot_id")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return ListFilter{}, errors.New("slot_id must be a positive number")
		}
		filter.SlotID = n
	}

	// from/to RFC3339
	if v := strings.TrimSpace(r.URL.Query().Get("from")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ListFilter{}, errors.New("from must be RFC3339")
		}
		filter.From = &t
	}
	if v := strings.TrimSpace(r.URL.Query().Get("to")); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ListFilter{}, errors.New("to must be RFC3339")
		}
		filter.To = &t
	}

	return filter, nil
}

func toEventResponse(e Event) eventResponse {
	return eventResponse{
		ID:         e.ID,
		PatientID:  e.PatientID,
		Type:       e.Type,
		SlotID:     e.SlotID,
		DoseID:     string(e.DoseID),
		OccurredAt: e.OccurredAt,
		RecordedAt: e.RecordedAt,
		Notes:      e.Notes,
		ActorType:  e.Actor.Type,
		ActorID:    e.Actor.ID,
		Status:     e.Status,
	}
}

func authorize(w http.ResponseWriter, r *http.Request, patientsSvc PatientLookup, grantsSvc *caregivers.Service, scope caregivers.Scope) (string, Actor, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", Actor{}, false
	}

	patientID := chi.URLParam(r, "patientID")
	ownerID, err := patientsSvc.OwnerOf(r.Context(), patientID)
	if err != nil {
		http.Error(w, "patient not found", http.StatusNotFound)
		return "", Actor{}, false
	}

	isOwner, err := grantsSvc.Authorize(r.Context(), patientID, ownerID, claims.UserID, scope)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", Actor{}, false
	}

	actor := Actor{Type: ActorTypeCaregiverUser, ID: claims.UserID}
	if isOwner {
		actor.Type = ActorTypeOwnerUser
	}
	return patientID, actor, true
}

// writeJSON está duplicado a propósito en cada módulo; extraerlo recién si aparece en más lugares.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
