package schedule

import (
	"container/heap"
	"time"
)

// idleDays corta la búsqueda: si una semana entera no genera dosis, no hay más.
const idleDays = 7

type doseHeap []Dose

func (h doseHeap) Len() int { return len(h) }

func (h doseHeap) Less(i, j int) bool {
	if !h[i].At.Equal(h[j].At) {
		return h[i].At.Before(h[j].At)
	}
	return h[i].SlotID < h[j].SlotID
}

func (h doseHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *doseHeap) Push(x any) { *h = append(*h, x.(Dose)) }

func (h *doseHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Upcoming devuelve las próximas limit dosis posteriores al minuto actual.
// Recorre día por día pidiendo las entradas vigentes de cada uno, así los
// slots weekly solo aparecen en sus días.
func Upcoming(entriesFor EntriesFunc, now time.Time, limit int) []Dose {
	if limit <= 0 || entriesFor == nil {
		return nil
	}

	minute := ClockOf(now).On(now)
	h := &doseHeap{}
	for day, idle := now, 0; idle < idleDays; day = day.AddDate(0, 0, 1) {
		found := false
		for _, d := range dosesOn(entriesFor(day), day) {
			if !d.At.After(minute) {
				continue
			}
			heap.Push(h, d)
			found = true
		}
		// los días siguientes solo traen dosis más tardías
		if h.Len() >= limit {
			break
		}
		if found {
			idle = 0
		} else {
			idle++
		}
	}
	if h.Len() == 0 {
		return nil
	}

	out := make([]Dose, 0, limit)
	for h.Len() > 0 && len(out) < limit {
		out = append(out, heap.Pop(h).(Dose))
	}
	return out
}

// NextFor es la próxima dosis de un slot según sus días vigentes.
func NextFor(entriesFor EntriesFunc, slotID int, now time.Time) (Dose, bool) {
	only := func(day time.Time) []Entry {
		for _, e := range entriesFor(day) {
			if e.SlotID == slotID {
				return []Entry{e}
			}
		}
		return nil
	}
	next := Upcoming(only, now, 1)
	if len(next) == 0 {
		return Dose{}, false
	}
	return next[0], true
}
