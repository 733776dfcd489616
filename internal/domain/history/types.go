package history

type EventType string

const (
	EventTypeNote            EventType = "NOTE"
	EventTypeSlotConfigured  EventType = "SLOT_CONFIGURED"
	EventTypeSlotCleared     EventType = "SLOT_CLEARED"
	EventTypeDoseTaken       EventType = "DOSE_TAKEN"
	EventTypeDoseUndone      EventType = "DOSE_UNDONE"
	EventTypeAlarmRinging    EventType = "ALARM_RINGING"
	EventTypeAlarmStopped    EventType = "ALARM_STOPPED"
	EventTypeAlarmConfirmed  EventType = "ALARM_CONFIRMED"
	EventTypeAlarmNotYet     EventType = "ALARM_NOT_YET"
	EventTypeAlarmClosed     EventType = "ALARM_CLOSED"
	EventTypeDevicePaired    EventType = "DEVICE_PAIRED"
	EventTypeDeviceUnpaired  EventType = "DEVICE_UNPAIRED"
	EventTypeLocateRequested EventType = "LOCATE_REQUESTED"
	EventTypeLocationUpdated EventType = "LOCATION_UPDATED"
)

// manualTypes son los tipos que se pueden crear por API. El resto los emite el sistema.
var manualTypes = map[EventType]struct{}{
	EventTypeNote: {},
}

type ActorType string

const (
	ActorTypeOwnerUser     ActorType = "OWNER_USER"
	ActorTypeCaregiverUser ActorType = "CAREGIVER_USER"
	ActorTypeSystem        ActorType = "SYSTEM"
)

// SystemActor es el actor de heartbeat, timers de alarma y adapters.
var SystemActor = Actor{Type: ActorTypeSystem, ID: "pillsync"}

type EventStatus string

const (
	EventStatusActive EventStatus = "active"
	EventStatusVoided EventStatus = "voided"
)
