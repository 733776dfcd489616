// Package devices empareja pastilleros con pacientes y resuelve su ubicación.
package devices

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"pillsync/internal/domain/history"
	"pillsync/internal/domain/patients"
	"pillsync/internal/platform/logger"
	"pillsync/internal/ports/device"
	"pillsync/internal/ports/sms"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotPaired    = errors.New("patient has no paired device")
)

// MinReplyDigits: dígitos mínimos del número al que responde el kit, sin contar el "+".
const MinReplyDigits = 10

type PatientStore interface {
	GetByID(ctx context.Context, id string) (patients.Patient, error)
	SetDevice(ctx context.Context, patientID, deviceID string) (patients.Patient, error)
	UpdateLocation(ctx context.Context, patientID string, loc patients.Location) (patients.Patient, error)
}

type Recorder interface {
	Record(ctx context.Context, in history.RecordInput) (history.Event, error)
}

type Service struct {
	gw       device.Gateway
	sms      sms.Sender
	patients PatientStore
	history  Recorder
	log      logger.Logger
}

// NewService: sender y rec pueden ser nil.
func NewService(gw device.Gateway, sender sms.Sender, pats PatientStore, rec Recorder, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		gw:       gw,
		sms:      sender,
		patients: pats,
		history:  rec,
		log:      log.With(map[string]any{"component": "devices"}),
	}
}

func (s *Service) Scan(ctx context.Context, refresh bool) ([]device.Info, error) {
	return s.gw.Scan(ctx, refresh)
}

func (s *Service) GetPatient(ctx context.Context, patientID string) (patients.Patient, error) {
	return s.patients.GetByID(ctx, patientID)
}

// Pair asocia el pastillero al paciente. Desde ahí el heartbeat lo vigila.
func (s *Service) Pair(ctx context.Context, patientID, deviceID string, actor history.Actor) (patients.Patient, error) {
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		return patients.Patient{}, ErrInvalidInput
	}
	p, err := s.patients.SetDevice(ctx, patientID, deviceID)
	if err != nil {
		return patients.Patient{}, err
	}
	s.record(ctx, p.ID, history.EventTypeDevicePaired, actor, deviceID)
	return p, nil
}

func (s *Service) Unpair(ctx context.Context, patientID string, actor history.Actor) (patients.Patient, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return patients.Patient{}, err
	}
	if !p.Paired() {
		return p, nil
	}
	prev := p.DeviceID

	p, err = s.patients.SetDevice(ctx, patientID, "")
	if err != nil {
		return patients.Patient{}, err
	}
	s.record(ctx, p.ID, history.EventTypeDeviceUnpaired, actor, prev)
	return p, nil
}

// Locate pide la posición del kit al gateway y la guarda como última
// ubicación conocida del paciente.
func (s *Service) Locate(ctx context.Context, patientID string, phone device.Location, actor history.Actor) (device.Location, error) {
	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return device.Location{}, err
	}
	if !p.Paired() {
		return device.Location{}, ErrNotPaired
	}

	loc, err := s.gw.Locate(ctx, p.DeviceID, phone)
	if err != nil {
		return device.Location{}, err
	}

	if _, err := s.patients.UpdateLocation(ctx, p.ID, patients.Location{Lat: loc.Lat, Lng: loc.Lng}); err != nil {
		return device.Location{}, fmt.Errorf("save kit location: %w", err)
	}
	s.record(ctx, p.ID, history.EventTypeLocationUpdated, actor, fmt.Sprintf("%.6f,%.6f", loc.Lat, loc.Lng))
	return loc, nil
}

// LocateCommand es el cuerpo del SMS que entiende el firmware del kit.
func LocateCommand(replyNumber string) string {
	return fmt.Sprintf("LOCATE:%s\nCOMMAND:CMD_LOCATE", replyNumber)
}

// RequestLocate manda el comando de ubicación por SMS a la SIM del kit.
// El kit contesta a replyNumber con un link de ubicación.
func (s *Service) RequestLocate(ctx context.Context, patientID, simNumber, replyNumber string, actor history.Actor) error {
	simNumber = strings.TrimSpace(simNumber)
	replyNumber = strings.TrimSpace(replyNumber)
	if simNumber == "" || !validReplyNumber(replyNumber) {
		return ErrInvalidInput
	}
	if s.sms == nil {
		return errors.New("sms sender not configured")
	}

	p, err := s.patients.GetByID(ctx, patientID)
	if err != nil {
		return err
	}

	if err := s.sms.Send(ctx, simNumber, LocateCommand(replyNumber)); err != nil {
		return fmt.Errorf("send locate sms: %w", err)
	}
	s.record(ctx, p.ID, history.EventTypeLocateRequested, actor, replyNumber)
	return nil
}

// validReplyNumber: "+" inicial opcional y al menos MinReplyDigits dígitos ASCII.
func validReplyNumber(n string) bool {
	digits := strings.TrimPrefix(n, "+")
	if len(digits) < MinReplyDigits {
		return false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return false
		}
	}
	return true
}

func (s *Service) record(ctx context.Context, patientID string, typ history.EventType, actor history.Actor, notes string) {
	if s.history == nil {
		return
	}
	if _, err := s.history.Record(ctx, history.RecordInput{
		PatientID: patientID,
		Type:      typ,
		Notes:     notes,
		Actor:     actor,
	}); err != nil {
		s.log.Warn("device history record failed", map[string]any{"patient_id": patientID, "type": string(typ), "err": err})
	}
}
