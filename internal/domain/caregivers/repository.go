package caregivers

import "context"

type Repository interface {
	Create(ctx context.Context, g Grant) error
	Update(ctx context.Context, g Grant) error
	GetByID(ctx context.Context, id string) (Grant, error)
	GetByCode(ctx context.Context, code string) (Grant, error)

	// ListByPatient ordena por CreatedAt asc.
	ListByPatient(ctx context.Context, patientID string) ([]Grant, error)
	ListByGrantee(ctx context.Context, granteeUserID string) ([]Grant, error)
	GetActiveGrant(ctx context.Context, patientID, granteeUserID string) (Grant, error)
}
