package patients

import (
	"time"

	"pillsync/internal/domain/schedule"

	"github.com/samber/lo"
)

// UnassignedLabel marca un slot vacío. Un slot así nunca genera dosis.
const UnassignedLabel = "Unassigned"

const DefaultSlotCount = 6

// FrequencyType define cada cuánto aplica el schedule del slot.
// @Enum daily, weekly
type FrequencyType string

const (
	FrequencyDaily  FrequencyType = "daily"
	FrequencyWeekly FrequencyType = "weekly"
)

// Slot es un compartimento físico del pastillero y su medicación.
type Slot struct {
	ID           int
	Label        string
	MedicineName string
	PillCount    int
	Schedule     []string // "HH:MM" o datetime ISO
	ColorTheme   string

	Dosage        string
	IsShortTerm   bool
	DurationDays  int
	FrequencyType FrequencyType
	SelectedDays  []int // 0=domingo .. 6=sábado (solo weekly)
	TimesPerDay   int
}

func (s Slot) Assigned() bool {
	return s.Label != "" && s.Label != UnassignedLabel
}

// ActiveOn indica si el slot tiene tomas el día de la semana dado.
func (s Slot) ActiveOn(day time.Weekday) bool {
	if !s.Assigned() {
		return false
	}
	if s.FrequencyType != FrequencyWeekly {
		return true
	}
	return lo.Contains(s.SelectedDays, int(day))
}

func emptySlot(id int) Slot {
	return Slot{
		ID:            id,
		Label:         UnassignedLabel,
		Schedule:      []string{},
		FrequencyType: FrequencyDaily,
		SelectedDays:  []int{},
	}
}

type Location struct {
	Lat float64
	Lng float64
}

// Patient representa al paciente y su pastillero (slots de tamaño fijo).
type Patient struct {
	ID          string
	OwnerUserID string

	Name string
	Age  int

	Slots []Slot

	LastLocation Location
	RiskScore    int // placeholder, sin cálculo todavía

	DeviceID string // pastillero emparejado; vacío = sin emparejar

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Patient) Paired() bool {
	return p.DeviceID != ""
}

func (p Patient) Slot(id int) (Slot, bool) {
	return lo.Find(p.Slots, func(s Slot) bool { return s.ID == id })
}

// ScheduleEntries arma la entrada del índice de dosis para el día dado.
// Slots sin asignar, o weekly fuera de sus días, quedan como no asignados.
func (p Patient) ScheduleEntries(day time.Time) []schedule.Entry {
	return lo.Map(p.Slots, func(s Slot, _ int) schedule.Entry {
		return schedule.Entry{
			SlotID:   s.ID,
			Assigned: s.ActiveOn(day.Weekday()),
			Times:    s.Schedule,
		}
	})
}
