package ledger

import "pillsync/internal/domain/schedule"

// Snapshot es el estado que una mutación del ledger lee y escribe de una vez:
// la pertenencia de la dosis al taken-set y el stock del slot dueño.
type Snapshot struct {
	PatientID string
	DoseID    schedule.DoseID

	SlotID      int
	Assigned    bool
	Scheduled   bool // el slot toma ese día (weekly fuera de sus días = false)
	ScheduleLen int

	PillCount int
	Taken     bool
}

type Op string

const (
	OpTake   Op = "take"
	OpUndo   Op = "undo"
	OpToggle Op = "toggle"
)

// Apply es la transición pura del ledger.
// take: marca tomada y descuenta 1 (clamp en 0). undo: desmarca y suma 1.
// Tomar una dosis ya tomada, o deshacer una pendiente, no cambia nada.
func Apply(s Snapshot, op Op) (Snapshot, bool, error) {
	switch op {
	case OpToggle:
		if s.Taken {
			return Apply(s, OpUndo)
		}
		return Apply(s, OpTake)
	case OpTake:
		if s.Taken {
			return s, false, nil
		}
		s.Taken = true
		s.PillCount = max(0, s.PillCount-1)
		return s, true, nil
	case OpUndo:
		if !s.Taken {
			return s, false, nil
		}
		s.Taken = false
		s.PillCount++
		return s, true, nil
	default:
		return s, false, ErrInvalidInput
	}
}
