package ledger

import (
	"context"

	"pillsync/internal/domain/schedule"
)

type Repository interface {
	// Mutate carga el Snapshot de (paciente, dosis), aplica fn y persiste
	// taken-set + pill count en la misma operación atómica.
	// Si fn devuelve error no se persiste nada.
	Mutate(ctx context.Context, patientID string, dose schedule.DoseID, fn func(s *Snapshot) error) (Snapshot, error)

	// ListTaken devuelve las dosis tomadas del día (YYYY-MM-DD).
	ListTaken(ctx context.Context, patientID string, day string) ([]schedule.DoseID, error)
}
