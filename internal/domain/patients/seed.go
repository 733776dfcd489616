package patients

import (
	"context"
)

const DemoPatientID = "P001"

// SeedDemo crea el paciente de demo (idempotente). Slots 1-3 configurados, resto vacíos.
func (s *Service) SeedDemo(ctx context.Context, ownerUserID string) (Patient, error) {
	if p, err := s.repo.GetByID(ctx, DemoPatientID); err == nil {
		return p, nil
	}

	now := s.now()
	p := Patient{
		ID:           DemoPatientID,
		OwnerUserID:  ownerUserID,
		Name:         "User",
		Age:          68,
		Slots:        s.emptySlots(),
		LastLocation: Location{Lat: 40.7128, Lng: -74.0060},
		RiskScore:    45,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	demo := []SlotInput{
		{Label: "Heart Meds", MedicineName: "Atorvastatin", PillCount: 14, Schedule: []string{"08:00", "20:00"}},
		{Label: "Diabetes", MedicineName: "Metformin", PillCount: 4, Schedule: []string{"09:00"}},
		{Label: "Pain Relief", MedicineName: "Ibuprofen", PillCount: 22, Schedule: []string{"12:00", "18:00", "00:00"}},
	}
	for i, in := range demo {
		if i >= len(p.Slots) {
			break
		}
		slot, err := s.buildSlot(i+1, in)
		if err != nil {
			return Patient{}, err
		}
		p.Slots[i] = slot
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return Patient{}, err
	}
	return p, nil
}
