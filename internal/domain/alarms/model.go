package alarms

import (
	"errors"
	"fmt"
	"time"

	"pillsync/internal/domain/schedule"
)

var (
	ErrBadTransition = errors.New("invalid alarm transition")
	ErrAlarmActive   = errors.New("alarm already active")
	ErrNoAlarm       = errors.New("no active alarm")
	ErrInvalidInput  = errors.New("invalid input")
)

type Step string

const (
	StepRinging    Step = "RINGING"
	StepConfirming Step = "CONFIRMING"
	StepSuccess    Step = "SUCCESS"
	StepClosed     Step = "CLOSED"
)

type Action string

const (
	ActionTurnOff Action = "turn_off" // usuario apaga el buzzer
	ActionTimeout Action = "timeout"  // timer de fallback
	ActionConfirm Action = "confirm"  // "sí, la tomé"
	ActionNotYet  Action = "not_yet"  // "todavía no"
	ActionDismiss Action = "dismiss"  // fin del delay de SUCCESS
)

// State es lo mínimo que necesita la transición.
// Manual recuerda si el buzzer se apagó a mano (cambia el texto de confirmación).
type State struct {
	Step   Step
	Manual bool
}

// Transition es la máquina de estados pura:
//
//	RINGING    --turn_off--> CONFIRMING (manual)
//	RINGING    --timeout---> CONFIRMING (automático)
//	CONFIRMING --confirm---> SUCCESS
//	CONFIRMING --not_yet---> CLOSED
//	SUCCESS    --dismiss---> CLOSED
//
// Cualquier otra combinación devuelve ErrBadTransition.
func Transition(s State, a Action) (State, error) {
	switch {
	case s.Step == StepRinging && a == ActionTurnOff:
		return State{Step: StepConfirming, Manual: true}, nil
	case s.Step == StepRinging && a == ActionTimeout:
		return State{Step: StepConfirming, Manual: false}, nil
	case s.Step == StepConfirming && a == ActionConfirm:
		return State{Step: StepSuccess, Manual: s.Manual}, nil
	case s.Step == StepConfirming && a == ActionNotYet:
		return State{Step: StepClosed, Manual: s.Manual}, nil
	case s.Step == StepSuccess && a == ActionDismiss:
		return State{Step: StepClosed, Manual: s.Manual}, nil
	default:
		return s, ErrBadTransition
	}
}

// Alarm es la alarma activa de un paciente. Transitoria: no se persiste.
type Alarm struct {
	ID        string
	PatientID string
	DeviceID  string

	SlotID       int
	DoseID       schedule.DoseID
	MedicineName string

	State State

	StartedAt time.Time
	UpdatedAt time.Time
}

// Prompt es el texto del diálogo de confirmación.
type Prompt struct {
	Title   string
	Message string
}

// ConfirmPrompt depende de cómo se detuvo el buzzer.
func ConfirmPrompt(manual bool, medicine string) Prompt {
	if manual {
		return Prompt{
			Title:   "Alarm Deactivated. Did you take your meds?",
			Message: fmt.Sprintf("Thank you for turning off the alarm. Please confirm you took your %s.", medicine),
		}
	}
	return Prompt{
		Title:   "Buzzer Timed Out. Did you take your meds?",
		Message: fmt.Sprintf("The alarm stopped after 1 minute. We need to verify: did you take your %s?", medicine),
	}
}

// Prompt devuelve el texto para el paso actual de la alarma.
func (a Alarm) Prompt() Prompt {
	switch a.State.Step {
	case StepRinging:
		return Prompt{
			Title:   "Time for your medication",
			Message: "Your MedBox device is ringing. Deactivate the physical buzzer to proceed.",
		}
	case StepConfirming:
		return ConfirmPrompt(a.State.Manual, a.MedicineName)
	case StepSuccess:
		return Prompt{Title: "Confirmed!", Message: "Syncing with Cloud..."}
	default:
		return Prompt{}
	}
}
