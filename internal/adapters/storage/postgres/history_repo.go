package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"pillsync/internal/domain/history"
	"pillsync/internal/domain/schedule"
)

type HistoryRepo struct {
	db *sql.DB
}

func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

const eventColumns = `
	id, patient_id,
	type, slot_id, dose_id,
	occurred_at, recorded_at,
	notes,
	actor_type, actor_id,
	status`

func (r *HistoryRepo) Create(ctx context.Context, e history.Event) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO patient_events (`+eventColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`,
		e.ID,
		e.PatientID,
		string(e.Type),
		e.SlotID,
		string(e.DoseID),
		e.OccurredAt,
		e.RecordedAt,
		e.Notes,
		string(e.Actor.Type),
		e.Actor.ID,
		string(e.Status),
	)
	return err
}

func (r *HistoryRepo) GetByID(ctx context.Context, id string) (history.Event, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return history.Event{}, history.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM patient_events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return history.Event{}, history.ErrNotFound
	}
	return e, err
}

func (r *HistoryRepo) ListByPatient(ctx context.Context, patientID string, filter history.ListFilter) ([]history.Event, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, nil
	}

	sb := strings.Builder{}
	sb.WriteString(`SELECT ` + eventColumns + ` FROM patient_events WHERE patient_id = $1`)

	args := []any{patientID}
	argN := 2

	if len(filter.Types) > 0 {
		placeholders := make([]string, 0, len(filter.Types))
		for _, t := range filter.Types {
			placeholders = append(placeholders, fmt.Sprintf("$%d", argN))
			args = append(args, string(t))
			argN++
		}
		sb.WriteString(" AND type IN (" + strings.Join(placeholders, ",") + ")")
	}
	if filter.SlotID > 0 {
		sb.WriteString(fmt.Sprintf(" AND slot_id = $%d", argN))
		args = append(args, filter.SlotID)
		argN++
	}
	if filter.From != nil {
		sb.WriteString(fmt.Sprintf(" AND occurred_at >= $%d", argN))
		args = append(args, *filter.From)
		argN++
	}
	if filter.To != nil {
		sb.WriteString(fmt.Sprintf(" AND occurred_at <= $%d", argN))
		args = append(args, *filter.To)
		argN++
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}

	sb.WriteString(" ORDER BY occurred_at DESC, recorded_at DESC")
	sb.WriteString(fmt.Sprintf(" LIMIT $%d", argN))
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]history.Event, 0)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *HistoryRepo) Void(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return history.ErrNotFound
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE patient_events
		SET status = 'voided'
		WHERE id = $1
	`, id)
	if err != nil {
		return err
	}

	n, _ := res.RowsAffected()
	if n == 0 {
		return history.ErrNotFound
	}
	return nil
}

func scanEvent(s rowScanner) (history.Event, error) {
	var e history.Event
	var typ, doseID, actorType, status string
	if err := s.Scan(
		&e.ID,
		&e.PatientID,
		&typ,
		&e.SlotID,
		&doseID,
		&e.OccurredAt,
		&e.RecordedAt,
		&e.Notes,
		&actorType,
		&e.Actor.ID,
		&status,
	); err != nil {
		return history.Event{}, err
	}

	e.Type = history.EventType(typ)
	e.DoseID = schedule.DoseID(doseID)
	e.Actor.Type = history.ActorType(actorType)
	e.Status = history.EventStatus(status)
	return e, nil
}
