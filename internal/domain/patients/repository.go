package patients

import (
	"context"

	"pillsync/internal/domain/schedule"
)

type Repository interface {
	Create(ctx context.Context, p Patient) error
	GetByID(ctx context.Context, id string) (Patient, error)
	ListByOwner(ctx context.Context, ownerUserID string) ([]Patient, error)
	ListPaired(ctx context.Context) ([]Patient, error)

	// Update carga el paciente, aplica fn y persiste en una sola operación atómica
	// (misma exclusión que las mutaciones del ledger).
	Update(ctx context.Context, id string, fn func(p *Patient) error) (Patient, error)
}

// TakenLister lo implementa el repo del ledger.
type TakenLister interface {
	ListTaken(ctx context.Context, patientID string, day string) ([]schedule.DoseID, error)
}
