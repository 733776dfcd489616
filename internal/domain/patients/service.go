package patients

import (
	"context"
	"errors"
	"strings"
	"time"

	"pillsync/internal/domain/schedule"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("patient not found")
	ErrSlotNotFound = errors.New("slot not found")
)

// DefaultDoseTime es el horario que recibe un slot configurado sin schedule.
const DefaultDoseTime = "08:00"

var palette = []string{"blue", "emerald", "amber", "rose", "violet", "cyan"}

type Service struct {
	repo      Repository
	taken     TakenLister
	slotCount int
	now       func() time.Time
}

// NewService: taken puede ser nil (Dashboard reporta todo pendiente).
func NewService(repo Repository, taken TakenLister, slotCount int) *Service {
	if slotCount <= 0 {
		slotCount = DefaultSlotCount
	}
	return &Service{
		repo:      repo,
		taken:     taken,
		slotCount: slotCount,
		now:       time.Now,
	}
}

// WithClock reemplaza el reloj (tests y app.Options.Now).
func (s *Service) WithClock(now func() time.Time) *Service {
	if now != nil {
		s.now = now
	}
	return s
}

type CreateInput struct {
	Name string
	Age  int
}

// Create arma el paciente desde el template: N slots vacíos.
func (s *Service) Create(ctx context.Context, ownerUserID string, in CreateInput) (Patient, error) {
	if strings.TrimSpace(ownerUserID) == "" || strings.TrimSpace(in.Name) == "" {
		return Patient{}, ErrInvalidInput
	}
	if in.Age < 0 || in.Age > 150 {
		return Patient{}, ErrInvalidInput
	}

	now := s.now()
	p := Patient{
		ID:          uuid.NewString(),
		OwnerUserID: strings.TrimSpace(ownerUserID),
		Name:        strings.TrimSpace(in.Name),
		Age:         in.Age,
		Slots:       s.emptySlots(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Create(ctx, p); err != nil {
		return Patient{}, err
	}
	return p, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Patient{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByOwner(ctx context.Context, ownerUserID string) ([]Patient, error) {
	return s.repo.ListByOwner(ctx, ownerUserID)
}

// ListPaired devuelve los pacientes con pastillero emparejado (los que vigila el heartbeat).
func (s *Service) ListPaired(ctx context.Context) ([]Patient, error) {
	return s.repo.ListPaired(ctx)
}

type UpdateProfileInput struct {
	// nil = no tocar
	Name *string
	Age  *int
}

func (s *Service) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (Patient, error) {
	return s.repo.Update(ctx, id, func(p *Patient) error {
		if in.Name != nil {
			name := strings.TrimSpace(*in.Name)
			if name == "" {
				return ErrInvalidInput
			}
			p.Name = name
		}
		if in.Age != nil {
			if *in.Age < 0 || *in.Age > 150 {
				return ErrInvalidInput
			}
			p.Age = *in.Age
		}
		p.UpdatedAt = s.now()
		return nil
	})
}

type SlotInput struct {
	Label         string
	MedicineName  string
	PillCount     int
	Schedule      []string
	ColorTheme    string
	Dosage        string
	IsShortTerm   bool
	DurationDays  int
	FrequencyType FrequencyType
	SelectedDays  []int
	TimesPerDay   int
}

// ConfigureSlot aplica el formulario de configuración de un slot:
// - label y medicamento obligatorios
// - pill count mínimo 1
// - schedule vacío => ["08:00"]; horarios inválidos se rechazan
func (s *Service) ConfigureSlot(ctx context.Context, patientID string, slotID int, in SlotInput) (Patient, error) {
	slot, err := s.buildSlot(slotID, in)
	if err != nil {
		return Patient{}, err
	}

	return s.repo.Update(ctx, patientID, func(p *Patient) error {
		for i := range p.Slots {
			if p.Slots[i].ID == slotID {
				p.Slots[i] = slot
				p.UpdatedAt = s.now()
				return nil
			}
		}
		return ErrSlotNotFound
	})
}

// ClearSlot devuelve el slot a Unassigned (sin dosis, sin stock).
func (s *Service) ClearSlot(ctx context.Context, patientID string, slotID int) (Patient, error) {
	return s.repo.Update(ctx, patientID, func(p *Patient) error {
		for i := range p.Slots {
			if p.Slots[i].ID == slotID {
				p.Slots[i] = emptySlot(slotID)
				p.UpdatedAt = s.now()
				return nil
			}
		}
		return ErrSlotNotFound
	})
}

func (s *Service) UpdateLocation(ctx context.Context, patientID string, loc Location) (Patient, error) {
	if loc.Lat < -90 || loc.Lat > 90 || loc.Lng < -180 || loc.Lng > 180 {
		return Patient{}, ErrInvalidInput
	}
	return s.repo.Update(ctx, patientID, func(p *Patient) error {
		p.LastLocation = loc
		p.UpdatedAt = s.now()
		return nil
	})
}

// SetDevice empareja (deviceID != "") o desempareja (deviceID == "") el pastillero.
func (s *Service) SetDevice(ctx context.Context, patientID, deviceID string) (Patient, error) {
	deviceID = strings.TrimSpace(deviceID)
	return s.repo.Update(ctx, patientID, func(p *Patient) error {
		p.DeviceID = deviceID
		p.UpdatedAt = s.now()
		return nil
	})
}

func (s *Service) buildSlot(slotID int, in SlotInput) (Slot, error) {
	if slotID < 1 || slotID > s.slotCount {
		return Slot{}, ErrSlotNotFound
	}

	label := strings.TrimSpace(in.Label)
	medicine := strings.TrimSpace(in.MedicineName)
	if label == "" || medicine == "" || strings.EqualFold(label, UnassignedLabel) {
		return Slot{}, ErrInvalidInput
	}
	if in.PillCount < 1 {
		return Slot{}, ErrInvalidInput
	}

	times := lo.Compact(lo.Map(in.Schedule, func(t string, _ int) string { return strings.TrimSpace(t) }))
	if len(times) == 0 {
		times = []string{DefaultDoseTime}
	}
	for _, t := range times {
		if _, ok := schedule.ParseClock(t, time.Local); !ok {
			return Slot{}, ErrInvalidInput
		}
	}

	freq := in.FrequencyType
	if freq == "" {
		freq = FrequencyDaily
	}
	days := lo.Uniq(in.SelectedDays)
	switch freq {
	case FrequencyDaily:
		days = []int{}
	case FrequencyWeekly:
		if len(days) == 0 {
			return Slot{}, ErrInvalidInput
		}
		for _, d := range days {
			if d < 0 || d > 6 {
				return Slot{}, ErrInvalidInput
			}
		}
	default:
		return Slot{}, ErrInvalidInput
	}

	if in.IsShortTerm && in.DurationDays < 1 {
		return Slot{}, ErrInvalidInput
	}

	color := strings.TrimSpace(in.ColorTheme)
	if color == "" {
		color = palette[(slotID-1)%len(palette)]
	}
	perDay := in.TimesPerDay
	if perDay <= 0 {
		perDay = len(times)
	}

	return Slot{
		ID:            slotID,
		Label:         label,
		MedicineName:  medicine,
		PillCount:     in.PillCount,
		Schedule:      times,
		ColorTheme:    color,
		Dosage:        strings.TrimSpace(in.Dosage),
		IsShortTerm:   in.IsShortTerm,
		DurationDays:  lo.Ternary(in.IsShortTerm, in.DurationDays, 0),
		FrequencyType: freq,
		SelectedDays:  days,
		TimesPerDay:   perDay,
	}, nil
}

func (s *Service) emptySlots() []Slot {
	out := make([]Slot, 0, s.slotCount)
	for i := 1; i <= s.slotCount; i++ {
		out = append(out, emptySlot(i))
	}
	return out
}
