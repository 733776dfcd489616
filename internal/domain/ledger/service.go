package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"pillsync/internal/domain/history"
	"pillsync/internal/domain/schedule"
	"pillsync/internal/platform/logger"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
	ErrUnassigned   = errors.New("slot is unassigned")
	ErrNotScheduled = errors.New("dose is not scheduled")
)

// Recorder lo implementa history.Service.
type Recorder interface {
	Record(ctx context.Context, in history.RecordInput) (history.Event, error)
}

type Service struct {
	repo    Repository
	history Recorder
	log     logger.Logger
	now     func() time.Time
}

// NewService: rec puede ser nil (sin historial).
func NewService(repo Repository, rec Recorder, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:    repo,
		history: rec,
		log:     log.With(map[string]any{"component": "ledger"}),
		now:     time.Now,
	}
}

// WithClock reemplaza el reloj (tests y app.Options.Now).
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

// Today es el día del reloj del service.
func (s *Service) Today() time.Time {
	return s.now()
}

// Take marca la dosis como tomada y descuenta una pastilla. Idempotente.
func (s *Service) Take(ctx context.Context, patientID string, dose schedule.DoseID, actor history.Actor) (Snapshot, error) {
	return s.apply(ctx, patientID, dose, OpTake, actor)
}

// Undo revierte una toma: la dosis vuelve a pendiente y el stock sube 1. Idempotente.
func (s *Service) Undo(ctx context.Context, patientID string, dose schedule.DoseID, actor history.Actor) (Snapshot, error) {
	return s.apply(ctx, patientID, dose, OpUndo, actor)
}

// Toggle alterna tomada/pendiente (el botón de la lista de dosis de hoy).
func (s *Service) Toggle(ctx context.Context, patientID string, dose schedule.DoseID, actor history.Actor) (Snapshot, error) {
	return s.apply(ctx, patientID, dose, OpToggle, actor)
}

func (s *Service) ListTaken(ctx context.Context, patientID string, day time.Time) ([]schedule.DoseID, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.ListTaken(ctx, patientID, day.Format(time.DateOnly))
}

func (s *Service) apply(ctx context.Context, patientID string, dose schedule.DoseID, op Op, actor history.Actor) (Snapshot, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return Snapshot{}, ErrInvalidInput
	}
	day, _, index, err := dose.Parse()
	if err != nil {
		return Snapshot{}, ErrInvalidInput
	}
	// YYYY-MM-DD compara bien como string
	if day > s.now().Format(time.DateOnly) {
		return Snapshot{}, ErrNotScheduled
	}

	changed := false
	snap, err := s.repo.Mutate(ctx, patientID, dose, func(cur *Snapshot) error {
		if !cur.Assigned {
			return ErrUnassigned
		}
		if index >= cur.ScheduleLen {
			return ErrNotFound
		}
		if !cur.Scheduled {
			return ErrNotScheduled
		}
		next, ok, err := Apply(*cur, op)
		if err != nil {
			return err
		}
		*cur = next
		changed = ok
		return nil
	})
	if err != nil {
		return Snapshot{}, err
	}

	if changed {
		s.record(ctx, snap, actor)
	}
	return snap, nil
}

func (s *Service) record(ctx context.Context, snap Snapshot, actor history.Actor) {
	if s.history == nil {
		return
	}
	typ := history.EventTypeDoseUndone
	if snap.Taken {
		typ = history.EventTypeDoseTaken
	}
	if _, err := s.history.Record(ctx, history.RecordInput{
		PatientID: snap.PatientID,
		Type:      typ,
		SlotID:    snap.SlotID,
		DoseID:    snap.DoseID,
		Actor:     actor,
	}); err != nil {
		s.log.Warn("dose history record failed", map[string]any{
			"patient_id": snap.PatientID,
			"dose_id":    string(snap.DoseID),
			"err":        err,
		})
	}
}
