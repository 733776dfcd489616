// Package heartbeat dispara las alarmas cuando llega el minuto de una dosis.
package heartbeat

import (
	"context"
	"fmt"
	"time"

	"pillsync/internal/domain/alarms"
	"pillsync/internal/domain/patients"
	"pillsync/internal/domain/schedule"
	"pillsync/internal/platform/logger"
	"pillsync/internal/ports/dedup"

	"github.com/samber/lo"
)

const (
	DefaultInterval = 5 * time.Second
	DefaultClaimTTL = 2 * time.Minute
)

type PatientLister interface {
	ListPaired(ctx context.Context) ([]patients.Patient, error)
}

// TakenLister lo implementa el repo del ledger.
type TakenLister interface {
	ListTaken(ctx context.Context, patientID string, day string) ([]schedule.DoseID, error)
}

// AlarmStarter lo implementa alarms.Manager.
type AlarmStarter interface {
	IsActive(patientID string) bool
	Activate(ctx context.Context, in alarms.ActivateInput) (alarms.Alarm, error)
}

type Options struct {
	Interval time.Duration
	ClaimTTL time.Duration
	Now      func() time.Time
}

type Poller struct {
	patients PatientLister
	taken    TakenLister
	alarms   AlarmStarter
	claims   dedup.Claimer
	log      logger.Logger

	interval time.Duration
	claimTTL time.Duration
	now      func() time.Time
}

func NewPoller(pl PatientLister, taken TakenLister, starter AlarmStarter, claims dedup.Claimer, log logger.Logger, opts Options) *Poller {
	if log == nil {
		log = logger.Nop()
	}
	p := &Poller{
		patients: pl,
		taken:    taken,
		alarms:   starter,
		claims:   claims,
		log:      log.With(map[string]any{"component": "heartbeat"}),
		interval: opts.Interval,
		claimTTL: opts.ClaimTTL,
		now:      opts.Now,
	}
	if p.interval <= 0 {
		p.interval = DefaultInterval
	}
	if p.claimTTL <= 0 {
		p.claimTTL = DefaultClaimTTL
	}
	if p.now == nil {
		p.now = time.Now
	}
	return p
}

// Run corre Tick cada intervalo hasta que se cancele ctx. Los errores de un
// tick se loguean; el loop no se corta.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("heartbeat started", map[string]any{"interval": p.interval.String()})

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			p.log.Info("heartbeat stopped", nil)
			return nil
		case <-ticker.C:
			p.Tick(ctx)
		}
	}
}

// Tick revisa todos los pacientes emparejados y activa las alarmas de las
// dosis cuyo minuto es el actual. Devuelve cuántas alarmas activó.
func (p *Poller) Tick(ctx context.Context) int {
	now := p.now()

	list, err := p.patients.ListPaired(ctx)
	if err != nil {
		p.log.Error("list paired patients failed", map[string]any{"err": err})
		return 0
	}

	fired := 0
	for _, pt := range list {
		if p.alarms.IsActive(pt.ID) {
			continue
		}
		due := schedule.DueAt(pt.ScheduleEntries(now), now)
		if len(due) == 0 {
			continue
		}

		taken, err := p.taken.ListTaken(ctx, pt.ID, now.Format(time.DateOnly))
		if err != nil {
			p.log.Error("list taken failed", map[string]any{"patient_id": pt.ID, "err": err})
			continue
		}
		pending := lo.Filter(due, func(d schedule.Dose, _ int) bool { return !lo.Contains(taken, d.ID) })

		// una alarma por paciente: la primera dosis pendiente (orden hora, slot)
		for _, d := range pending {
			ok, err := p.claim(ctx, pt.ID, d.ID)
			if err != nil {
				p.log.Error("heartbeat claim failed", map[string]any{"patient_id": pt.ID, "dose_id": string(d.ID), "err": err})
				break
			}
			if !ok {
				continue
			}

			slot, _ := pt.Slot(d.SlotID)
			_, err = p.alarms.Activate(ctx, alarms.ActivateInput{
				PatientID:    pt.ID,
				DeviceID:     pt.DeviceID,
				SlotID:       d.SlotID,
				DoseID:       d.ID,
				MedicineName: slot.MedicineName,
			})
			if err != nil {
				p.log.Warn("alarm activation failed", map[string]any{"patient_id": pt.ID, "dose_id": string(d.ID), "err": err})
				break
			}
			fired++
			break
		}
	}
	return fired
}

func (p *Poller) claim(ctx context.Context, patientID string, dose schedule.DoseID) (bool, error) {
	if p.claims == nil {
		return true, nil
	}
	return p.claims.Claim(ctx, fmt.Sprintf("pillsync:heartbeat:%s:%s", patientID, dose), p.claimTTL)
}
