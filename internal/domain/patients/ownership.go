package patients

import (
	"context"
	"time"

	"pillsync/internal/domain/schedule"
)

// OwnerOf expone el ownerUserID de un paciente.
// Lo usan caregivers/history sin importar este paquete (evita ciclos).
func (s *Service) OwnerOf(ctx context.Context, patientID string) (string, error) {
	p, err := s.GetByID(ctx, patientID)
	if err != nil {
		return "", err
	}
	return p.OwnerUserID, nil
}

// EntriesFor devuelve el schedule actual del paciente como función de día.
// La adherencia lo aplica también a días pasados (no hay versionado de slots).
func (s *Service) EntriesFor(ctx context.Context, patientID string) (func(day time.Time) []schedule.Entry, error) {
	p, err := s.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}
	return p.ScheduleEntries, nil
}
