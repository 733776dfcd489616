package history

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"pillsync/internal/domain/schedule"
	"pillsync/internal/platform/logger"
	"pillsync/internal/ports/bus"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("event not found")
	ErrBadState     = errors.New("invalid state")
)

const (
	DefaultAdherenceDays = 7
	MaxAdherenceDays     = 31
)

type Service struct {
	repo  Repository
	pub   bus.Publisher
	taken TakenLister
	log   logger.Logger
	now   func() time.Time
}

// NewService: pub y taken pueden ser nil (sin publicación / sin adherencia).
func NewService(repo Repository, pub bus.Publisher, taken TakenLister, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:  repo,
		pub:   pub,
		taken: taken,
		log:   log.With(map[string]any{"component": "history"}),
		now:   time.Now,
	}
}

// WithClock reemplaza el reloj (tests y app.Options.Now).
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

type RecordInput struct {
	PatientID  string
	Type       EventType
	SlotID     int
	DoseID     schedule.DoseID
	OccurredAt time.Time
	Notes      string
	Actor      Actor
}

// Record persiste un evento y lo publica en el bus (best-effort).
func (s *Service) Record(ctx context.Context, in RecordInput) (Event, error) {
	if strings.TrimSpace(in.PatientID) == "" || in.Type == "" {
		return Event{}, ErrInvalidInput
	}
	if in.Actor.Type == "" || strings.TrimSpace(in.Actor.ID) == "" {
		return Event{}, ErrInvalidInput
	}

	now := s.now()
	occurred := in.OccurredAt
	if occurred.IsZero() {
		occurred = now
	}

	e := Event{
		ID:         uuid.NewString(),
		PatientID:  strings.TrimSpace(in.PatientID),
		Type:       in.Type,
		SlotID:     in.SlotID,
		DoseID:     in.DoseID,
		OccurredAt: occurred,
		RecordedAt: now,
		Notes:      strings.TrimSpace(in.Notes),
		Actor:      in.Actor,
		Status:     EventStatusActive,
	}

	if err := s.repo.Create(ctx, e); err != nil {
		return Event{}, err
	}

	s.publish(ctx, e)
	return e, nil
}

type CreateInput struct {
	Type       EventType
	OccurredAt time.Time
	SlotID     int
	Notes      string
}

// Create registra un evento manual (solo tipos permitidos por API).
func (s *Service) Create(ctx context.Context, patientID string, actor Actor, in CreateInput) (Event, error) {
	if _, ok := manualTypes[in.Type]; !ok {
		return Event{}, ErrInvalidInput
	}
	if in.OccurredAt.IsZero() {
		return Event{}, ErrInvalidInput
	}
	return s.Record(ctx, RecordInput{
		PatientID:  patientID,
		Type:       in.Type,
		SlotID:     in.SlotID,
		OccurredAt: in.OccurredAt,
		Notes:      in.Notes,
		Actor:      actor,
	})
}

func (s *Service) GetByID(ctx context.Context, id string) (Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Event{}, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID string, filter ListFilter) ([]Event, error) {
	return s.repo.ListByPatient(ctx, patientID, filter)
}

// Void marca un evento manual como voided (no se borra).
// Los eventos del sistema (dosis, alarmas) no se anulan.
func (s *Service) Void(ctx context.Context, id string) (Event, error) {
	e, err := s.GetByID(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if _, ok := manualTypes[e.Type]; !ok {
		return Event{}, ErrBadState
	}
	if e.Status == EventStatusVoided {
		return e, nil
	}
	if err := s.repo.Void(ctx, e.ID); err != nil {
		return Event{}, err
	}
	return s.repo.GetByID(ctx, e.ID)
}

// Adherence cuenta, para los últimos days días (hoy incluido), dosis
// programadas vs tomadas. entriesFor devuelve el schedule vigente para cada día.
func (s *Service) Adherence(ctx context.Context, patientID string, entriesFor func(day time.Time) []schedule.Entry, days int) ([]DayAdherence, error) {
	if strings.TrimSpace(patientID) == "" || entriesFor == nil {
		return nil, ErrInvalidInput
	}
	if s.taken == nil {
		return nil, ErrBadState
	}
	if days <= 0 {
		days = DefaultAdherenceDays
	}
	if days > MaxAdherenceDays {
		days = MaxAdherenceDays
	}

	now := s.now()
	out := make([]DayAdherence, 0, days)
	for i := days - 1; i >= 0; i-- {
		day := now.AddDate(0, 0, -i)
		key := day.Format(time.DateOnly)

		scheduled := schedule.TodayDoses(entriesFor(day), day)
		taken, err := s.taken.ListTaken(ctx, patientID, key)
		if err != nil {
			return nil, err
		}

		ids := lo.Map(scheduled, func(d schedule.Dose, _ int) schedule.DoseID { return d.ID })
		out = append(out, DayAdherence{
			Day:       key,
			Scheduled: len(scheduled),
			Taken:     len(lo.Intersect(ids, taken)),
		})
	}
	return out, nil
}

func (s *Service) publish(ctx context.Context, e Event) {
	if s.pub == nil {
		return
	}
	payload, err := json.Marshal(toEventResponse(e))
	if err != nil {
		s.log.Warn("history event marshal failed", map[string]any{"event_id": e.ID, "err": err})
		return
	}
	if err := s.pub.Publish(ctx, e.PatientID, payload); err != nil {
		s.log.Warn("history event publish failed", map[string]any{
			"event_id":   e.ID,
			"patient_id": e.PatientID,
			"type":       string(e.Type),
			"err":        err,
		})
	}
}
