package patients

import (
	"context"
	"time"

	"pillsync/internal/domain/schedule"
)

const upcomingLimit = 5

type SlotSummary struct {
	Slot       Slot
	Assigned   bool
	NextDose   string // "HH:MM" o schedule.Placeholder
	NextDoseAt *time.Time
}

type DoseStatus struct {
	Dose         schedule.Dose
	Label        string
	MedicineName string
	Taken        bool
}

// Dashboard es la vista de un paciente en un instante dado.
type Dashboard struct {
	Patient    Patient
	Slots      []SlotSummary
	Today      []DoseStatus
	Upcoming   []schedule.Dose
	TakenCount int
}

func (s *Service) Dashboard(ctx context.Context, patientID string) (Dashboard, error) {
	p, err := s.GetByID(ctx, patientID)
	if err != nil {
		return Dashboard{}, err
	}

	now := s.now()
	entries := p.ScheduleEntries(now)

	taken := map[schedule.DoseID]struct{}{}
	if s.taken != nil {
		ids, err := s.taken.ListTaken(ctx, p.ID, now.Format(time.DateOnly))
		if err != nil {
			return Dashboard{}, err
		}
		for _, id := range ids {
			taken[id] = struct{}{}
		}
	}

	d := Dashboard{
		Patient:  p,
		Slots:    make([]SlotSummary, 0, len(p.Slots)),
		Today:    make([]DoseStatus, 0),
		Upcoming: schedule.Upcoming(p.ScheduleEntries, now, upcomingLimit),
	}

	for _, sl := range p.Slots {
		sum := SlotSummary{Slot: sl, Assigned: sl.Assigned(), NextDose: schedule.Placeholder}
		if next, ok := schedule.NextFor(p.ScheduleEntries, sl.ID, now); ok {
			sum.NextDoseAt = &next.At
			sum.NextDose = next.Time.String()
			if sl.FrequencyType != FrequencyWeekly {
				// daily: el display hace wrap al más temprano sin fecha
				sum.NextDose = schedule.NextDose(sl.Schedule, now)
			}
		}
		d.Slots = append(d.Slots, sum)
	}

	for _, dose := range schedule.TodayDoses(entries, now) {
		sl, _ := p.Slot(dose.SlotID)
		_, isTaken := taken[dose.ID]
		if isTaken {
			d.TakenCount++
		}
		d.Today = append(d.Today, DoseStatus{
			Dose:         dose,
			Label:        sl.Label,
			MedicineName: sl.MedicineName,
			Taken:        isTaken,
		})
	}

	return d, nil
}
