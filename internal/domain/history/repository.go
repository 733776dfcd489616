package history

import (
	"context"
	"time"

	"pillsync/internal/domain/schedule"
)

type Repository interface {
	Create(ctx context.Context, e Event) error
	GetByID(ctx context.Context, id string) (Event, error)
	ListByPatient(ctx context.Context, patientID string, filter ListFilter) ([]Event, error)
	Void(ctx context.Context, id string) error
}

type ListFilter struct {
	Types  []EventType
	SlotID int
	From   *time.Time
	To     *time.Time
	Limit  int
}

// TakenLister lo implementa el repo del ledger; se usa para adherencia.
type TakenLister interface {
	ListTaken(ctx context.Context, patientID string, day string) ([]schedule.DoseID, error)
}
