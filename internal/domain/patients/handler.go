package patients

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"pillsync/internal/domain/caregivers"
	"pillsync/internal/domain/history"
	"pillsync/internal/middleware"

	"github.com/go-chi/chi/v5"
)

// Recorder lo implementa history.Service. Puede ser nil.
type Recorder interface {
	Record(ctx context.Context, in history.RecordInput) (history.Event, error)
}

func RegisterRoutes(r chi.Router, svc *Service, grantsSvc *caregivers.Service, rec Recorder) {
	r.Route("/patients", func(pr chi.Router) {
		pr.Post("/", createPatientHandler(svc))
		pr.Get("/", listPatientsHandler(svc))

		pr.Get("/{patientID}", getPatientHandler(svc, grantsSvc))
		pr.Patch("/{patientID}", updatePatientHandler(svc, grantsSvc))
		pr.Get("/{patientID}/dashboard", dashboardHandler(svc, grantsSvc))
		pr.Put("/{patientID}/location", updateLocationHandler(svc, grantsSvc, rec))

		pr.Put("/{patientID}/slots/{slotID}", configureSlotHandler(svc, grantsSvc, rec))
		pr.Delete("/{patientID}/slots/{slotID}", clearSlotHandler(svc, grantsSvc, rec))
	})

	// Pacientes compartidos conmigo (cuidador)
	r.Get("/me/patients", listMySharedPatientsHandler(svc, grantsSvc))
}

type createPatientRequest struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

type updatePatientRequest struct {
	// Punteros para PATCH real: nil = no tocar.
	Name *string `json:"name"`
	Age  *int    `json:"age"`
}

type slotRequest struct {
	Label         string        `json:"label"`
	MedicineName  string        `json:"medicine_name"`
	PillCount     int           `json:"pill_count"`
	Schedule      []string      `json:"schedule"`
	ColorTheme    string        `json:"color_theme"`
	Dosage        string        `json:"dosage"`
	IsShortTerm   bool          `json:"is_short_term"`
	DurationDays  int           `json:"duration_days"`
	FrequencyType FrequencyType `json:"frequency_type" enums:"daily,weekly"`
	SelectedDays  []int         `json:"selected_days"`
	TimesPerDay   int           `json:"times_per_day"`
}

type locationRequest struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type slotResponse struct {
	ID            int           `json:"id"`
	Label         string        `json:"label"`
	MedicineName  string        `json:"medicine_name"`
	PillCount     int           `json:"pill_count"`
	Schedule      []string      `json:"schedule"`
	ColorTheme    string        `json:"color_theme,omitempty"`
	Dosage        string        `json:"dosage,omitempty"`
	IsShortTerm   bool          `json:"is_short_term"`
	DurationDays  int           `json:"duration_days,omitempty"`
	FrequencyType FrequencyType `json:"frequency_type"`
	SelectedDays  []int         `json:"selected_days"`
	TimesPerDay   int           `json:"times_per_day"`
	Assigned      bool          `json:"assigned"`
}

type locationResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type patientResponse struct {
	ID           string           `json:"id"`
	OwnerUserID  string           `json:"owner_user_id"`
	Name         string           `json:"name"`
	Age          int              `json:"age"`
	Slots        []slotResponse   `json:"slots"`
	LastLocation locationResponse `json:"last_location"`
	RiskScore    int              `json:"risk_score"`
	DeviceID     string           `json:"device_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

type slotSummaryResponse struct {
	Slot       slotResponse `json:"slot"`
	NextDose   string       `json:"next_dose"`
	NextDoseAt *time.Time   `json:"next_dose_at,omitempty"`
}

type doseResponse struct {
	ID           string    `json:"id"`
	SlotID       int       `json:"slot_id"`
	Time         string    `json:"time"`
	At           time.Time `json:"at"`
	Label        string    `json:"label,omitempty"`
	MedicineName string    `json:"medicine_name,omitempty"`
	Taken        bool      `json:"taken"`
}

type dashboardResponse struct {
	Patient    patientResponse       `json:"patient"`
	Slots      []slotSummaryResponse `json:"slots"`
	Today      []doseResponse        `json:"today"`
	Upcoming   []doseResponse        `json:"upcoming"`
	TakenCount int                   `json:"taken_count"`

	// Solo para el owner: quién más cuida al paciente.
	Caregivers []caregiverSummaryResponse `json:"caregivers,omitempty"`
}

type caregiverSummaryResponse struct {
	ID     string             `json:"id"`
	Label  string             `json:"label"`
	Status caregivers.Status  `json:"status"`
	Scopes []caregivers.Scope `json:"scopes"`
}

type sharedPatientResponse struct {
	Patient patientResponse    `json:"patient"`
	GrantID string             `json:"grant_id"`
	Label   string             `json:"label"`
	Scopes  []caregivers.Scope `json:"scopes"`
}

// createPatientHandler godoc
// @Summary Crear paciente
// @Description Crea el paciente del usuario autenticado con todos los slots vacíos (Unassigned).
// @Tags patients
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param payload body createPatientRequest true "Nombre y edad"
// @Success 201 {object} patientResponse
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 401 {string} string "unauthorized"
// @Router /patients [post]
func createPatientHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		var req createPatientRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		p, err := svc.Create(r.Context(), claims.UserID, CreateInput{Name: req.Name, Age: req.Age})
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		writeJSON(w, http.StatusCreated, toPatientResponse(p))
	}
}

func listPatientsHandler(svc *Service) http.HandlerFunc {
	// Solo owner (los compartidos van por /me/patients)
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.ListByOwner(r.Context(), claims.UserID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]patientResponse, 0, len(items))
		for _, p := range items {
			out = append(out, toPatientResponse(p))
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func getPatientHandler(svc *Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadAuthorized(w, r, svc, grantsSvc, caregivers.ScopePatientRead)
		if !ok {
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(p))
	}
}

func updatePatientHandler(svc *Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadAuthorized(w, r, svc, grantsSvc, caregivers.ScopePatientConfigure)
		if !ok {
			return
		}

		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()

		var req updatePatientRequest
		if err := dec.Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		updated, err := svc.UpdateProfile(r.Context(), p.ID, UpdateProfileInput{Name: req.Name, Age: req.Age})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toPatientResponse(updated))
	}
}

// dashboardHandler godoc
// @Summary Dashboard del paciente
// @Description Próxima dosis por slot, dosis de hoy con estado tomado/pendiente y próximas dosis. Owner o cuidador con `patient:read`; el owner además ve sus cuidadores.
// @Tags patients
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param Authorization header string false "Bearer token en producción"
// @Param patientID path string true "ID del paciente"
// @Success 200 {object} dashboardResponse
// @Failure 401 {string} string "unauthorized"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID}/dashboard [get]
func dashboardHandler(svc *Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadAuthorized(w, r, svc, grantsSvc, caregivers.ScopePatientRead)
		if !ok {
			return
		}

		d, err := svc.Dashboard(r.Context(), p.ID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		out := toDashboardResponse(d)

		if middleware.UserID(r.Context()) == p.OwnerUserID {
			grants, err := grantsSvc.Caregivers(r.Context(), p.ID)
			if err != nil {
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			for _, g := range grants {
				out.Caregivers = append(out.Caregivers, caregiverSummaryResponse{
					ID:     g.ID,
					Label:  g.Label,
					Status: g.Status,
					Scopes: g.Scopes,
				})
			}
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// configureSlotHandler godoc
// @Summary Configurar slot
// @Description Label y medicamento obligatorios, pill_count >= 1. Schedule vacío queda en ["08:00"]. Owner o cuidador con `patient:configure`.
// @Tags patients
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param patientID path string true "ID del paciente"
// @Param slotID path int true "ID del slot (1..N)"
// @Param payload body slotRequest true "Configuración del slot"
// @Success 200 {object} patientResponse
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient/slot not found"
// @Router /patients/{patientID}/slots/{slotID} [put]
func configureSlotHandler(svc *Service, grantsSvc *caregivers.Service, rec Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadAuthorized(w, r, svc, grantsSvc, caregivers.ScopePatientConfigure)
		if !ok {
			return
		}

		slotID, err := strconv.Atoi(chi.URLParam(r, "slotID"))
		if err != nil {
			http.Error(w, "slotID must be a number", http.StatusBadRequest)
			return
		}

		var req slotRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		updated, err := svc.ConfigureSlot(r.Context(), p.ID, slotID, SlotInput{
			Label:         req.Label,
			MedicineName:  req.MedicineName,
			PillCount:     req.PillCount,
			Schedule:      req.Schedule,
			ColorTheme:    req.ColorTheme,
			Dosage:        req.Dosage,
			IsShortTerm:   req.IsShortTerm,
			DurationDays:  req.DurationDays,
			FrequencyType: req.FrequencyType,
			SelectedDays:  req.SelectedDays,
			TimesPerDay:   req.TimesPerDay,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		record(r, rec, p, history.EventTypeSlotConfigured, slotID, req.MedicineName)
		writeJSON(w, http.StatusOK, toPatientResponse(updated))
	}
}

func clearSlotHandler(svc *Service, grantsSvc *caregivers.Service, rec Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadAuthorized(w, r, svc, grantsSvc, caregivers.ScopePatientConfigure)
		if !ok {
			return
		}

		slotID, err := strconv.Atoi(chi.URLParam(r, "slotID"))
		if err != nil {
			http.Error(w, "slotID must be a number", http.StatusBadRequest)
			return
		}

		updated, err := svc.ClearSlot(r.Context(), p.ID, slotID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		record(r, rec, p, history.EventTypeSlotCleared, slotID, "")
		writeJSON(w, http.StatusOK, toPatientResponse(updated))
	}
}

func updateLocationHandler(svc *Service, grantsSvc *caregivers.Service, rec Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := loadAuthorized(w, r, svc, grantsSvc, caregivers.ScopeDeviceLocate)
		if !ok {
			return
		}

		var req locationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		updated, err := svc.UpdateLocation(r.Context(), p.ID, Location{Lat: req.Lat, Lng: req.Lng})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		record(r, rec, p, history.EventTypeLocationUpdated, 0, fmt.Sprintf("%.6f,%.6f", req.Lat, req.Lng))
		writeJSON(w, http.StatusOK, toPatientResponse(updated))
	}
}

func listMySharedPatientsHandler(svc *Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	// Pacientes compartidos conmigo (grants activos con patient:read)
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		if userID == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		grants, err := grantsSvc.SharedWith(r.Context(), userID)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]sharedPatientResponse, 0, len(grants))
		for _, g := range grants {
			if !g.Allows(caregivers.ScopePatientRead) {
				continue
			}
			p, err := svc.GetByID(r.Context(), g.PatientID)
			if err != nil {
				// grant huérfano: se ignora
				continue
			}
			out = append(out, sharedPatientResponse{
				Patient: toPatientResponse(p),
				GrantID: g.ID,
				Label:   g.Label,
				Scopes:  g.Scopes,
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// loadAuthorized resuelve claims + paciente + permisos. Si devuelve false ya respondió.
func loadAuthorized(w http.ResponseWriter, r *http.Request, svc *Service, grantsSvc *caregivers.Service, scope caregivers.Scope) (Patient, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return Patient{}, false
	}

	p, err := svc.GetByID(r.Context(), chi.URLParam(r, "patientID"))
	if err != nil {
		http.Error(w, "patient not found", http.StatusNotFound)
		return Patient{}, false
	}

	if _, err := grantsSvc.Authorize(r.Context(), p.ID, p.OwnerUserID, claims.UserID, scope); err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return Patient{}, false
	}
	return p, true
}

// record deja el cambio en el historial. Best-effort: el cambio ya se persistió.
func record(r *http.Request, rec Recorder, p Patient, typ history.EventType, slotID int, notes string) {
	if rec == nil {
		return
	}
	claims, _ := middleware.GetClaims(r.Context())
	actor := history.Actor{Type: history.ActorTypeCaregiverUser, ID: claims.UserID}
	if claims.UserID == p.OwnerUserID {
		actor.Type = history.ActorTypeOwnerUser
	}
	_, _ = rec.Record(r.Context(), history.RecordInput{
		PatientID: p.ID,
		Type:      typ,
		SlotID:    slotID,
		Notes:     notes,
		Actor:     actor,
	})
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch err {
	case ErrInvalidInput:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case ErrNotFound:
		http.Error(w, "patient not found", http.StatusNotFound)
	case ErrSlotNotFound:
		http.Error(w, "slot not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toSlotResponse(s Slot) slotResponse {
	return slotResponse{
		ID:            s.ID,
		Label:         s.Label,
		MedicineName:  s.MedicineName,
		PillCount:     s.PillCount,
		Schedule:      s.Schedule,
		ColorTheme:    s.ColorTheme,
		Dosage:        s.Dosage,
		IsShortTerm:   s.IsShortTerm,
		DurationDays:  s.DurationDays,
		FrequencyType: s.FrequencyType,
		SelectedDays:  s.SelectedDays,
		TimesPerDay:   s.TimesPerDay,
		Assigned:      s.Assigned(),
	}
}

func toPatientResponse(p Patient) patientResponse {
	slots := make([]slotResponse, 0, len(p.Slots))
	for _, s := range p.Slots {
		slots = append(slots, toSlotResponse(s))
	}
	return patientResponse{
		ID:           p.ID,
		OwnerUserID:  p.OwnerUserID,
		Name:         p.Name,
		Age:          p.Age,
		Slots:        slots,
		LastLocation: locationResponse{Lat: p.LastLocation.Lat, Lng: p.LastLocation.Lng},
		RiskScore:    p.RiskScore,
		DeviceID:     p.DeviceID,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func toDashboardResponse(d Dashboard) dashboardResponse {
	out := dashboardResponse{
		Patient:    toPatientResponse(d.Patient),
		Slots:      make([]slotSummaryResponse, 0, len(d.Slots)),
		Today:      make([]doseResponse, 0, len(d.Today)),
		Upcoming:   make([]doseResponse, 0, len(d.Upcoming)),
		TakenCount: d.TakenCount,
	}
	for _, s := range d.Slots {
		out.Slots = append(out.Slots, slotSummaryResponse{
			Slot:       toSlotResponse(s.Slot),
			NextDose:   s.NextDose,
			NextDoseAt: s.NextDoseAt,
		})
	}
	for _, ds := range d.Today {
		out.Today = append(out.Today, doseResponse{
			ID:           string(ds.Dose.ID),
			SlotID:       ds.Dose.SlotID,
			Time:         ds.Dose.Time.String(),
			At:           ds.Dose.At,
			Label:        ds.Label,
			MedicineName: ds.MedicineName,
			Taken:        ds.Taken,
		})
	}
	for _, dose := range d.Upcoming {
		out.Upcoming = append(out.Upcoming, doseResponse{
			ID:     string(dose.ID),
			SlotID: dose.SlotID,
			Time:   dose.Time.String(),
			At:     dose.At,
		})
	}
	return out
}

// writeJSON está duplicado a propósito en cada módulo; extraerlo recién si aparece en más lugares.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
