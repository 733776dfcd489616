package history

import (
	"time"

	"pillsync/internal/domain/schedule"
)

type Actor struct {
	Type ActorType
	ID   string
}

// Event es una entrada append-only del historial de un paciente.
// SlotID y DoseID van vacíos en eventos que no refieren a una dosis.
type Event struct {
	ID        string
	PatientID string

	Type EventType

	SlotID int
	DoseID schedule.DoseID

	OccurredAt time.Time
	RecordedAt time.Time

	Notes string

	Actor  Actor
	Status EventStatus
}

// DayAdherence resume dosis programadas vs tomadas en un día.
type DayAdherence struct {
	Day       string
	Scheduled int
	Taken     int
}

func (d DayAdherence) Rate() float64 {
	if d.Scheduled == 0 {
		return 0
	}
	return float64(d.Taken) / float64(d.Scheduled)
}
