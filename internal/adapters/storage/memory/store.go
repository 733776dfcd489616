// Package memory guarda todo en mapas del proceso. Sirve para dev y tests;
// se pierde al reiniciar.
package memory

import (
	"sync"

	"pillsync/internal/domain/caregivers"
	"pillsync/internal/domain/history"
	"pillsync/internal/domain/learning"
	"pillsync/internal/domain/patients"
	"pillsync/internal/domain/schedule"
)

// Store comparte un único mutex entre pacientes y ledger: una toma descuenta
// stock y marca la dosis en la misma sección crítica que una edición de slot.
type Store struct {
	mu sync.RWMutex

	patients map[string]patients.Patient
	taken    map[string]map[schedule.DoseID]struct{}
	events   map[string]history.Event
	grants   map[string]caregivers.Grant
	students map[string]learning.Student
}

func NewStore() *Store {
	return &Store{
		patients: make(map[string]patients.Patient),
		taken:    make(map[string]map[schedule.DoseID]struct{}),
		events:   make(map[string]history.Event),
		grants:   make(map[string]caregivers.Grant),
		students: make(map[string]learning.Student),
	}
}
