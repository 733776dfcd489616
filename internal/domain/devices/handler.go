package devices

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"pillsync/internal/domain/caregivers"
	"pillsync/internal/domain/history"
	"pillsync/internal/domain/patients"
	"pillsync/internal/middleware"
	"pillsync/internal/ports/device"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service, grantsSvc *caregivers.Service) {
	r.Get("/devices/scan", scanHandler(svc))

	r.Route("/patients/{patientID}/device", func(dr chi.Router) {
		dr.Put("/", pairHandler(svc, grantsSvc))
		dr.Delete("/", unpairHandler(svc, grantsSvc))
		dr.Post("/locate", locateHandler(svc, grantsSvc))
		dr.Post("/locate-sms", locateSMSHandler(svc, grantsSvc))
	})
}

type deviceResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type pairRequest struct {
	DeviceID string `json:"device_id" example:"MedBox-Pro-v2.1"`
}

type pairResponse struct {
	PatientID string `json:"patient_id"`
	DeviceID  string `json:"device_id"`
	Paired    bool   `json:"paired"`
}

type locateRequest struct {
	// Posición actual del teléfono
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type locationResponse struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type locateSMSRequest struct {
	SIMNumber   string `json:"sim_number"`   // SIM dentro del pastillero
	ReplyNumber string `json:"reply_number"` // a dónde responde el kit
}

type locateSMSResponse struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

// scanHandler godoc
// @Summary Buscar pastilleros cercanos
// @Description Devuelve los dispositivos visibles. refresh=true fuerza un nuevo barrido.
// @Tags devices
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param refresh query bool false "Nuevo barrido"
// @Success 200 {array} deviceResponse
// @Failure 401 {string} string "unauthorized"
// @Router /devices/scan [get]
func scanHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.GetClaims(r.Context())
		if !ok || strings.TrimSpace(claims.UserID) == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		items, err := svc.Scan(r.Context(), r.URL.Query().Get("refresh") == "true")
		if err != nil {
			http.Error(w, "scan failed", http.StatusBadGateway)
			return
		}

		out := make([]deviceResponse, 0, len(items))
		for _, d := range items {
			out = append(out, deviceResponse{ID: d.ID, Name: d.Name})
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// pairHandler godoc
// @Summary Emparejar pastillero
// @Description Owner o cuidador con `patient:configure`.
// @Tags devices
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param patientID path string true "ID del paciente"
// @Param payload body pairRequest true "Dispositivo"
// @Success 200 {object} pairResponse
// @Failure 400 {string} string "invalid json / invalid input"
// @Failure 403 {string} string "forbidden"
// @Failure 404 {string} string "patient not found"
// @Router /patients/{patientID}/device [put]
func pairHandler(svc *Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, actor, ok := authorize(w, r, svc, grantsSvc, caregivers.ScopePatientConfigure)
		if !ok {
			return
		}

		var req pairRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		updated, err := svc.Pair(r.Context(), p.ID, req.DeviceID, actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pairResponse{PatientID: updated.ID, DeviceID: updated.DeviceID, Paired: updated.Paired()})
	}
}

func unpairHandler(svc *Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, actor, ok := authorize(w, r, svc, grantsSvc, caregivers.ScopePatientConfigure)
		if !ok {
			return
		}

		updated, err := svc.Unpair(r.Context(), p.ID, actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pairResponse{PatientID: updated.ID, Paired: false})
	}
}

// locateHandler godoc
// @Summary Ubicar el kit
// @Description Pide la posición del pastillero al gateway y la guarda como última ubicación. Owner o cuidador con `device:locate`.
// @Tags devices
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param patientID path string true "ID del paciente"
// @Param payload body locateRequest true "Posición del teléfono"
// @Success 200 {object} locationResponse
// @Failure 409 {string} string "patient has no paired device"
// @Failure 503 {string} string "device location unavailable"
// @Router /patients/{patientID}/device/locate [post]
func locateHandler(svc *Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, actor, ok := authorize(w, r, svc, grantsSvc, caregivers.ScopeDeviceLocate)
		if !ok {
			return
		}

		var req locateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		loc, err := svc.Locate(r.Context(), p.ID, device.Location{Lat: req.Lat, Lng: req.Lng}, actor)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, locationResponse{Lat: loc.Lat, Lng: loc.Lng})
	}
}

// locateSMSHandler godoc
// @Summary Pedir ubicación por SMS
// @Description Envía `LOCATE:<reply>\nCOMMAND:CMD_LOCATE` a la SIM del kit. reply_number necesita al menos 10 dígitos.
// @Tags devices
// @Accept json
// @Produce json
// @Param X-Debug-User-ID header string false "Solo en modo dev, ID de usuario para depuración"
// @Param patientID path string true "ID del paciente"
// @Param payload body locateSMSRequest true "Números"
// @Success 202 {object} locateSMSResponse
// @Failure 400 {string} string "invalid input"
// @Router /patients/{patientID}/device/locate-sms [post]
func locateSMSHandler(svc *Service, grantsSvc *caregivers.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, actor, ok := authorize(w, r, svc, grantsSvc, caregivers.ScopeDeviceLocate)
		if !ok {
			return
		}

		var req locateSMSRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		if err := svc.RequestLocate(r.Context(), p.ID, req.SIMNumber, req.ReplyNumber, actor); err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusAccepted, locateSMSResponse{
			To:   strings.TrimSpace(req.SIMNumber),
			Body: LocateCommand(strings.TrimSpace(req.ReplyNumber)),
		})
	}
}

func authorize(w http.ResponseWriter, r *http.Request, svc *Service, grantsSvc *caregivers.Service, scope caregivers.Scope) (patients.Patient, history.Actor, bool) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok || strings.TrimSpace(claims.UserID) == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return patients.Patient{}, history.Actor{}, false
	}

	p, err := svc.GetPatient(r.Context(), chi.URLParam(r, "patientID"))
	if err != nil {
		http.Error(w, "patient not found", http.StatusNotFound)
		return patients.Patient{}, history.Actor{}, false
	}

	isOwner, err := grantsSvc.Authorize(r.Context(), p.ID, p.OwnerUserID, claims.UserID, scope)
	if err != nil {
		http.Error(w, "forbidden", http.StatusForbidden)
		return patients.Patient{}, history.Actor{}, false
	}

	actor := history.Actor{Type: history.ActorTypeCaregiverUser, ID: claims.UserID}
	if isOwner {
		actor.Type = history.ActorTypeOwnerUser
	}
	return p, actor, true
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidInput), errors.Is(err, patients.ErrInvalidInput):
		http.Error(w, "invalid input", http.StatusBadRequest)
	case errors.Is(err, patients.ErrNotFound):
		http.Error(w, "patient not found", http.StatusNotFound)
	case errors.Is(err, ErrNotPaired):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, device.ErrUnknownDevice):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, device.ErrNoFix):
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

// writeJSON está duplicado a propósito en cada módulo; extraerlo recién si aparece en más lugares.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
