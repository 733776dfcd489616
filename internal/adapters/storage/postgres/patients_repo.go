package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"pillsync/internal/domain/patients"
)

type PatientsRepo struct {
	db *sql.DB
}

func NewPatientsRepo(db *sql.DB) *PatientsRepo {
	return &PatientsRepo{db: db}
}

const patientColumns = `
	id, owner_user_id,
	name, age, slots,
	last_lat, last_lng, risk_score,
	device_id,
	created_at, updated_at`

func (r *PatientsRepo) Create(ctx context.Context, p patients.Patient) error {
	slots, err := json.Marshal(toSlotRows(p.Slots))
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO patients (`+patientColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		p.ID,
		p.OwnerUserID,
		p.Name,
		p.Age,
		slots,
		p.LastLocation.Lat,
		p.LastLocation.Lng,
		p.RiskScore,
		p.DeviceID,
		p.CreatedAt,
		p.UpdatedAt,
	)
	return err
}

func (r *PatientsRepo) GetByID(ctx context.Context, id string) (patients.Patient, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return patients.Patient{}, patients.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return patients.Patient{}, patients.ErrNotFound
	}
	return p, err
}

func (r *PatientsRepo) ListByOwner(ctx context.Context, ownerUserID string) ([]patients.Patient, error) {
	ownerUserID = strings.TrimSpace(ownerUserID)
	if ownerUserID == "" {
		return nil, nil
	}
	return r.list(ctx, `SELECT `+patientColumns+` FROM patients WHERE owner_user_id = $1 ORDER BY created_at ASC`, ownerUserID)
}

func (r *PatientsRepo) ListPaired(ctx context.Context) ([]patients.Patient, error) {
	return r.list(ctx, `SELECT `+patientColumns+` FROM patients WHERE device_id <> '' ORDER BY created_at ASC`)
}

// Update toma el lock de fila (FOR UPDATE), el mismo que usa el ledger.
func (r *PatientsRepo) Update(ctx context.Context, id string, fn func(p *patients.Patient) error) (patients.Patient, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return patients.Patient{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return patients.Patient{}, patients.ErrNotFound
	}
	if err != nil {
		return patients.Patient{}, err
	}

	if err := fn(&p); err != nil {
		return patients.Patient{}, err
	}
	if err := savePatient(ctx, tx, p); err != nil {
		return patients.Patient{}, err
	}
	if err := tx.Commit(); err != nil {
		return patients.Patient{}, err
	}
	return p, nil
}

func (r *PatientsRepo) list(ctx context.Context, query string, args ...any) ([]patients.Patient, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]patients.Patient, 0)
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func savePatient(ctx context.Context, tx *sql.Tx, p patients.Patient) error {
	slots, err := json.Marshal(toSlotRows(p.Slots))
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE patients
		SET
			name = $2,
			age = $3,
			slots = $4,
			last_lat = $5,
			last_lng = $6,
			risk_score = $7,
			device_id = $8,
			updated_at = $9
		WHERE id = $1
	`,
		p.ID,
		p.Name,
		p.Age,
		slots,
		p.LastLocation.Lat,
		p.LastLocation.Lng,
		p.RiskScore,
		p.DeviceID,
		p.UpdatedAt,
	)
	return err
}

func scanPatient(s rowScanner) (patients.Patient, error) {
	var p patients.Patient
	var slots []byte
	if err := s.Scan(
		&p.ID,
		&p.OwnerUserID,
		&p.Name,
		&p.Age,
		&slots,
		&p.LastLocation.Lat,
		&p.LastLocation.Lng,
		&p.RiskScore,
		&p.DeviceID,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return patients.Patient{}, err
	}

	var rows []slotRow
	if err := json.Unmarshal(slots, &rows); err != nil {
		return patients.Patient{}, err
	}
	p.Slots = fromSlotRows(rows)
	return p, nil
}

// slotRow es la forma JSONB de un slot dentro de patients.slots.
type slotRow struct {
	ID            int      `json:"id"`
	Label         string   `json:"label"`
	MedicineName  string   `json:"medicine_name"`
	PillCount     int      `json:"pill_count"`
	Schedule      []string `json:"schedule"`
	ColorTheme    string   `json:"color_theme"`
	Dosage        string   `json:"dosage,omitempty"`
	IsShortTerm   bool     `json:"is_short_term,omitempty"`
	DurationDays  int      `json:"duration_days,omitempty"`
	FrequencyType string   `json:"frequency_type"`
	SelectedDays  []int    `json:"selected_days"`
	TimesPerDay   int      `json:"times_per_day,omitempty"`
}

func toSlotRows(in []patients.Slot) []slotRow {
	out := make([]slotRow, 0, len(in))
	for _, s := range in {
		out = append(out, slotRow{
			ID:            s.ID,
			Label:         s.Label,
			MedicineName:  s.MedicineName,
			PillCount:     s.PillCount,
			Schedule:      nonNilStrings(s.Schedule),
			ColorTheme:    s.ColorTheme,
			Dosage:        s.Dosage,
			IsShortTerm:   s.IsShortTerm,
			DurationDays:  s.DurationDays,
			FrequencyType: string(s.FrequencyType),
			SelectedDays:  nonNilInts(s.SelectedDays),
			TimesPerDay:   s.TimesPerDay,
		})
	}
	return out
}

func fromSlotRows(in []slotRow) []patients.Slot {
	out := make([]patients.Slot, 0, len(in))
	for _, r := range in {
		out = append(out, patients.Slot{
			ID:            r.ID,
			Label:         r.Label,
			MedicineName:  r.MedicineName,
			PillCount:     r.PillCount,
			Schedule:      nonNilStrings(r.Schedule),
			ColorTheme:    r.ColorTheme,
			Dosage:        r.Dosage,
			IsShortTerm:   r.IsShortTerm,
			DurationDays:  r.DurationDays,
			FrequencyType: patients.FrequencyType(r.FrequencyType),
			SelectedDays:  nonNilInts(r.SelectedDays),
			TimesPerDay:   r.TimesPerDay,
		})
	}
	return out
}

func nonNilStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func nonNilInts(in []int) []int {
	if in == nil {
		return []int{}
	}
	return in
}
