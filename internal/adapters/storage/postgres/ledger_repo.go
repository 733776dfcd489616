package postgres

import (
	"context"
	"database/sql"
	"errors"

	"pillsync/internal/domain/ledger"
	"pillsync/internal/domain/schedule"
)

type LedgerRepo struct {
	db *sql.DB
}

func NewLedgerRepo(db *sql.DB) *LedgerRepo {
	return &LedgerRepo{db: db}
}

// Mutate bloquea la fila del paciente, así una toma y una edición del slot
// no se pisan el pill count.
func (r *LedgerRepo) Mutate(ctx context.Context, patientID string, dose schedule.DoseID, fn func(s *ledger.Snapshot) error) (ledger.Snapshot, error) {
	day, slotID, _, err := dose.Parse()
	if err != nil {
		return ledger.Snapshot{}, ledger.ErrInvalidInput
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return ledger.Snapshot{}, err
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = $1 FOR UPDATE`, patientID)
	p, err := scanPatient(row)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger.Snapshot{}, ledger.ErrNotFound
	}
	if err != nil {
		return ledger.Snapshot{}, err
	}

	idx := -1
	for i := range p.Slots {
		if p.Slots[i].ID == slotID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ledger.Snapshot{}, ledger.ErrNotFound
	}
	date, err := dose.Day()
	if err != nil {
		return ledger.Snapshot{}, ledger.ErrInvalidInput
	}
	weekday := date.Weekday()

	var taken bool
	if err := tx.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM taken_doses WHERE patient_id = $1 AND dose_id = $2)
	`, patientID, string(dose)).Scan(&taken); err != nil {
		return ledger.Snapshot{}, err
	}

	slot := p.Slots[idx]
	snap := ledger.Snapshot{
		PatientID:   patientID,
		DoseID:      dose,
		SlotID:      slotID,
		Assigned:    slot.Assigned(),
		Scheduled:   slot.ActiveOn(weekday),
		ScheduleLen: len(slot.Schedule),
		PillCount:   slot.PillCount,
		Taken:       taken,
	}
	before := snap
	if err := fn(&snap); err != nil {
		return ledger.Snapshot{}, err
	}
	if snap == before {
		return snap, nil
	}

	p.Slots[idx].PillCount = snap.PillCount
	if err := savePatient(ctx, tx, p); err != nil {
		return ledger.Snapshot{}, err
	}

	if snap.Taken {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO taken_doses (patient_id, dose_id, day)
			VALUES ($1, $2, $3)
			ON CONFLICT (patient_id, dose_id) DO NOTHING
		`, patientID, string(dose), day)
	} else {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM taken_doses WHERE patient_id = $1 AND dose_id = $2
		`, patientID, string(dose))
	}
	if err != nil {
		return ledger.Snapshot{}, err
	}

	if err := tx.Commit(); err != nil {
		return ledger.Snapshot{}, err
	}
	return snap, nil
}

func (r *LedgerRepo) ListTaken(ctx context.Context, patientID string, day string) ([]schedule.DoseID, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT dose_id
		FROM taken_doses
		WHERE patient_id = $1 AND day = $2
		ORDER BY dose_id ASC
	`, patientID, day)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]schedule.DoseID, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, schedule.DoseID(id))
	}
	return out, rows.Err()
}
