// Package schedule deriva las dosis a partir de los horarios de cada slot.
// Todo es puro: el caller pasa la hora actual y recibe valores.
package schedule

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Placeholder se muestra cuando el slot no tiene ningún horario válido.
const Placeholder = "--:--"

var ErrInvalidDoseID = errors.New("invalid dose id")

// Clock es una hora del día con precisión de minuto.
type Clock struct {
	Hour   int
	Minute int
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

// On devuelve el instante de c en el día calendario de day (misma location).
func (c Clock) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, day.Location())
}

// ClockOf trunca t a hora y minuto.
func ClockOf(t time.Time) Clock {
	return Clock{Hour: t.Hour(), Minute: t.Minute()}
}

var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// ParseClock acepta "HH:MM", "H:MM" o un datetime ISO. Si el ISO trae zona,
// se convierte a loc antes de tomar la hora.
func ParseClock(s string, loc *time.Location) (Clock, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Clock{}, false
	}
	if loc == nil {
		loc = time.Local
	}

	if !strings.Contains(s, "T") {
		h, m, ok := strings.Cut(s, ":")
		if !ok || len(m) != 2 || len(h) == 0 || len(h) > 2 {
			return Clock{}, false
		}
		hour, err := strconv.Atoi(h)
		if err != nil || hour < 0 || hour > 23 {
			return Clock{}, false
		}
		minute, err := strconv.Atoi(m)
		if err != nil || minute < 0 || minute > 59 {
			return Clock{}, false
		}
		return Clock{Hour: hour, Minute: minute}, true
	}

	for _, layout := range isoLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err != nil {
			continue
		}
		return ClockOf(t.In(loc)), true
	}
	return Clock{}, false
}

// ParseClocks descarta las entradas mal formadas.
func ParseClocks(times []string, loc *time.Location) []Clock {
	return lo.FilterMap(times, func(s string, _ int) (Clock, bool) {
		return ParseClock(s, loc)
	})
}

// NextDose devuelve el primer horario posterior al minuto actual. Si ya pasaron
// todos los de hoy, devuelve el más temprano (wrap, sin cambiar de día).
func NextDose(times []string, now time.Time) string {
	clocks := ParseClocks(times, now.Location())
	if len(clocks) == 0 {
		return Placeholder
	}

	current := ClockOf(now).minutes()
	future := lo.Filter(clocks, func(c Clock, _ int) bool { return c.minutes() > current })
	if len(future) > 0 {
		return earliest(future).String()
	}
	return earliest(clocks).String()
}

// NextDoseAt es NextDose como instante: pasado el último horario de hoy,
// devuelve la primera dosis de mañana.
func NextDoseAt(times []string, now time.Time) (time.Time, bool) {
	clocks := ParseClocks(times, now.Location())
	if len(clocks) == 0 {
		return time.Time{}, false
	}

	current := ClockOf(now).minutes()
	future := lo.Filter(clocks, func(c Clock, _ int) bool { return c.minutes() > current })
	if len(future) > 0 {
		return earliest(future).On(now), true
	}
	return earliest(clocks).On(now.AddDate(0, 0, 1)), true
}

func earliest(clocks []Clock) Clock {
	return lo.MinBy(clocks, func(a, b Clock) bool { return a.minutes() < b.minutes() })
}

// Entry es lo que el índice necesita de un slot.
type Entry struct {
	SlotID   int
	Assigned bool
	Times    []string
}

// EntriesFunc devuelve las entradas vigentes en un día. Un slot weekly queda
// sin asignar los días que no toma.
type EntriesFunc func(day time.Time) []Entry

// DoseID identifica una dosis programada: YYYY-MM-DD/<slot>/<index>.
type DoseID string

func NewDoseID(day time.Time, slotID, index int) DoseID {
	return DoseID(fmt.Sprintf("%s/%d/%d", day.Format(time.DateOnly), slotID, index))
}

// Parse separa el id en fecha, slot e índice dentro del schedule.
func (id DoseID) Parse() (day string, slotID int, index int, err error) {
	parts := strings.Split(string(id), "/")
	if len(parts) != 3 {
		return "", 0, 0, ErrInvalidDoseID
	}
	if _, err := time.Parse(time.DateOnly, parts[0]); err != nil {
		return "", 0, 0, ErrInvalidDoseID
	}
	slotID, err = strconv.Atoi(parts[1])
	if err != nil || slotID < 1 {
		return "", 0, 0, ErrInvalidDoseID
	}
	index, err = strconv.Atoi(parts[2])
	if err != nil || index < 0 {
		return "", 0, 0, ErrInvalidDoseID
	}
	return parts[0], slotID, index, nil
}

// SlotID devuelve el slot del id, o 0 si el id es inválido.
func (id DoseID) SlotID() int {
	_, slot, _, err := id.Parse()
	if err != nil {
		return 0
	}
	return slot
}

// Day devuelve la fecha del id (medianoche UTC); alcanza para comparar días y weekday.
func (id DoseID) Day() (time.Time, error) {
	day, _, _, err := id.Parse()
	if err != nil {
		return time.Time{}, err
	}
	return time.Parse(time.DateOnly, day)
}

// Dose es una dosis derivada. No se persiste: el ledger guarda solo ids.
type Dose struct {
	ID     DoseID
	SlotID int
	Index  int
	Time   Clock
	At     time.Time
}

// dosesOn expande los slots asignados para el día dado. Index es la posición
// en el schedule del slot, así los ids no cambian si otra entrada es inválida.
func dosesOn(entries []Entry, day time.Time) []Dose {
	out := make([]Dose, 0)
	for _, e := range lo.Filter(entries, func(e Entry, _ int) bool { return e.Assigned }) {
		for i, raw := range e.Times {
			c, ok := ParseClock(raw, day.Location())
			if !ok {
				continue
			}
			out = append(out, Dose{
				ID:     NewDoseID(day, e.SlotID, i),
				SlotID: e.SlotID,
				Index:  i,
				Time:   c,
				At:     c.On(day),
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].At.Equal(out[j].At) {
			return out[i].At.Before(out[j].At)
		}
		return out[i].SlotID < out[j].SlotID
	})
	return out
}

// TodayDoses lista las dosis del día de now, ordenadas por hora y luego slot.
// Los slots sin asignar no aportan dosis.
func TodayDoses(entries []Entry, now time.Time) []Dose {
	return dosesOn(entries, now)
}

// DueAt devuelve las dosis cuyo HH:MM coincide con el de now.
func DueAt(entries []Entry, now time.Time) []Dose {
	current := ClockOf(now)
	return lo.Filter(dosesOn(entries, now), func(d Dose, _ int) bool {
		return d.Time == current
	})
}
