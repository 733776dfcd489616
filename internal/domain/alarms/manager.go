package alarms

import (
	"context"
	"strings"
	"sync"
	"time"

	"pillsync/internal/domain/history"
	"pillsync/internal/domain/ledger"
	"pillsync/internal/domain/schedule"
	"pillsync/internal/platform/logger"

	"github.com/google/uuid"
)

const (
	DefaultTimeout      = 60 * time.Second
	DefaultSuccessDelay = 1800 * time.Millisecond

	deviceCallTimeout = 5 * time.Second
)

// Timer es el handle de un timer one-shot (time.Timer lo cumple).
type Timer interface {
	Stop() bool
}

// AfterFunc programa f después de d. Inyectable para tests.
type AfterFunc func(d time.Duration, f func()) Timer

func realAfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Ringer es la parte del device gateway que usan las alarmas.
type Ringer interface {
	Ring(ctx context.Context, deviceID string, slotID int) error
	Silence(ctx context.Context, deviceID string) error
}

// Ledger confirma la dosis al final del flujo (ledger.Service lo cumple).
type Ledger interface {
	Take(ctx context.Context, patientID string, dose schedule.DoseID, actor history.Actor) (ledger.Snapshot, error)
}

type Recorder interface {
	Record(ctx context.Context, in history.RecordInput) (history.Event, error)
}

type Options struct {
	Timeout      time.Duration
	SuccessDelay time.Duration

	// Opcionales (tests)
	AfterFunc AfterFunc
	Now       func() time.Time
}

type tracked struct {
	alarm Alarm
	timer Timer
}

// Manager mantiene como máximo una alarma activa por paciente y es dueño de
// sus timers: cada transición detiene el timer del paso anterior.
type Manager struct {
	mu     sync.Mutex
	active map[string]*tracked

	ringer  Ringer
	ledger  Ledger
	history Recorder
	log     logger.Logger

	timeout      time.Duration
	successDelay time.Duration
	afterFunc    AfterFunc
	now          func() time.Time
}

// NewManager: ringer y rec pueden ser nil.
func NewManager(ringer Ringer, led Ledger, rec Recorder, log logger.Logger, opts Options) *Manager {
	if log == nil {
		log = logger.Nop()
	}
	m := &Manager{
		active:       make(map[string]*tracked),
		ringer:       ringer,
		ledger:       led,
		history:      rec,
		log:          log.With(map[string]any{"component": "alarms"}),
		timeout:      opts.Timeout,
		successDelay: opts.SuccessDelay,
		afterFunc:    opts.AfterFunc,
		now:          opts.Now,
	}
	if m.timeout <= 0 {
		m.timeout = DefaultTimeout
	}
	if m.successDelay <= 0 {
		m.successDelay = DefaultSuccessDelay
	}
	if m.afterFunc == nil {
		m.afterFunc = realAfterFunc
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

type ActivateInput struct {
	PatientID    string
	DeviceID     string
	SlotID       int
	DoseID       schedule.DoseID
	MedicineName string
}

// Activate abre una alarma en RINGING, hace sonar el pastillero (best-effort)
// y arranca el timer de fallback.
func (m *Manager) Activate(ctx context.Context, in ActivateInput) (Alarm, error) {
	if strings.TrimSpace(in.PatientID) == "" || in.SlotID < 1 {
		return Alarm{}, ErrInvalidInput
	}
	if _, _, _, err := in.DoseID.Parse(); err != nil {
		return Alarm{}, ErrInvalidInput
	}

	m.mu.Lock()
	if _, ok := m.active[in.PatientID]; ok {
		m.mu.Unlock()
		return Alarm{}, ErrAlarmActive
	}

	now := m.now()
	a := Alarm{
		ID:           uuid.NewString(),
		PatientID:    in.PatientID,
		DeviceID:     in.DeviceID,
		SlotID:       in.SlotID,
		DoseID:       in.DoseID,
		MedicineName: in.MedicineName,
		State:        State{Step: StepRinging},
		StartedAt:    now,
		UpdatedAt:    now,
	}
	t := &tracked{alarm: a}
	m.active[a.PatientID] = t
	t.timer = m.afterFunc(m.timeout, func() { m.onTimeout(a.PatientID, a.ID) })
	m.mu.Unlock()

	if m.ringer != nil && a.DeviceID != "" {
		if err := m.ringer.Ring(ctx, a.DeviceID, a.SlotID); err != nil {
			m.log.Warn("ring failed", map[string]any{"patient_id": a.PatientID, "device_id": a.DeviceID, "err": err})
		}
	}

	m.record(ctx, a, history.EventTypeAlarmRinging, history.SystemActor, "")
	m.log.Info("alarm ringing", map[string]any{"patient_id": a.PatientID, "slot_id": a.SlotID, "dose_id": string(a.DoseID)})
	return a, nil
}

// Active devuelve la alarma activa del paciente, si hay.
func (m *Manager) Active(patientID string) (Alarm, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.active[patientID]
	if !ok {
		return Alarm{}, false
	}
	return t.alarm, true
}

func (m *Manager) IsActive(patientID string) bool {
	_, ok := m.Active(patientID)
	return ok
}

// TurnOff: el usuario apagó el buzzer. RINGING -> CONFIRMING (manual).
func (m *Manager) TurnOff(ctx context.Context, patientID string, actor history.Actor) (Alarm, error) {
	a, err := m.advance(patientID, "", ActionTurnOff, nil)
	if err != nil {
		return a, err
	}
	m.silence(ctx, a)
	m.record(ctx, a, history.EventTypeAlarmStopped, actor, "manual")
	return a, nil
}

// Confirm: "sí, la tomé". CONFIRMING -> SUCCESS; tras el delay se descuenta
// la dosis en el ledger y la alarma se cierra.
func (m *Manager) Confirm(ctx context.Context, patientID string, actor history.Actor) (Alarm, error) {
	a, err := m.advance(patientID, "", ActionConfirm, func(t *tracked) {
		id := t.alarm.ID
		t.timer = m.afterFunc(m.successDelay, func() { m.complete(patientID, id, actor) })
	})
	if err != nil {
		return a, err
	}
	m.record(ctx, a, history.EventTypeAlarmConfirmed, actor, "")
	return a, nil
}

// NotYet: CONFIRMING -> CLOSED. La dosis queda pendiente y el stock no cambia.
func (m *Manager) NotYet(ctx context.Context, patientID string, actor history.Actor) (Alarm, error) {
	a, err := m.advance(patientID, "", ActionNotYet, nil)
	if err != nil {
		return a, err
	}
	m.record(ctx, a, history.EventTypeAlarmNotYet, actor, "")
	return a, nil
}

// Stop cancela todos los timers y descarta las alarmas (shutdown).
func (m *Manager) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, t := range m.active {
		if t.timer != nil {
			t.timer.Stop()
		}
		delete(m.active, id)
	}
}

func (m *Manager) onTimeout(patientID, alarmID string) {
	a, err := m.advance(patientID, alarmID, ActionTimeout, nil)
	if err != nil {
		// timer viejo: la alarma ya avanzó o se cerró
		return
	}
	ctx := context.Background()
	m.silence(ctx, a)
	m.record(ctx, a, history.EventTypeAlarmStopped, history.SystemActor, "timeout")
}

func (m *Manager) complete(patientID, alarmID string, actor history.Actor) {
	a, ok := m.Active(patientID)
	if !ok || a.ID != alarmID || a.State.Step != StepSuccess {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), deviceCallTimeout)
	defer cancel()

	if m.ledger != nil {
		if _, err := m.ledger.Take(ctx, a.PatientID, a.DoseID, actor); err != nil {
			m.log.Error("dose confirmation failed", map[string]any{
				"patient_id": a.PatientID,
				"dose_id":    string(a.DoseID),
				"err":        err,
			})
		}
	}

	closed, err := m.advance(patientID, alarmID, ActionDismiss, nil)
	if err != nil {
		return
	}
	m.record(ctx, closed, history.EventTypeAlarmClosed, history.SystemActor, "")
}

// advance aplica la transición bajo lock. alarmID vacío = la alarma activa
// (acciones de usuario); no vacío = solo si sigue siendo esa (timers).
// then corre bajo el mismo lock con el estado nuevo (para programar timers).
func (m *Manager) advance(patientID, alarmID string, action Action, then func(t *tracked)) (Alarm, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.active[patientID]
	if !ok || (alarmID != "" && t.alarm.ID != alarmID) {
		return Alarm{}, ErrNoAlarm
	}

	next, err := Transition(t.alarm.State, action)
	if err != nil {
		return t.alarm, err
	}

	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.alarm.State = next
	t.alarm.UpdatedAt = m.now()

	if next.Step == StepClosed {
		delete(m.active, patientID)
	} else if then != nil {
		then(t)
	}
	return t.alarm, nil
}

func (m *Manager) silence(ctx context.Context, a Alarm) {
	if m.ringer == nil || a.DeviceID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, deviceCallTimeout)
	defer cancel()
	if err := m.ringer.Silence(ctx, a.DeviceID); err != nil {
		m.log.Warn("silence failed", map[string]any{"patient_id": a.PatientID, "device_id": a.DeviceID, "err": err})
	}
}

func (m *Manager) record(ctx context.Context, a Alarm, typ history.EventType, actor history.Actor, notes string) {
	if m.history == nil {
		return
	}
	if _, err := m.history.Record(ctx, history.RecordInput{
		PatientID: a.PatientID,
		Type:      typ,
		SlotID:    a.SlotID,
		DoseID:    a.DoseID,
		Notes:     notes,
		Actor:     actor,
	}); err != nil {
		m.log.Warn("alarm history record failed", map[string]any{"patient_id": a.PatientID, "type": string(typ), "err": err})
	}
}
