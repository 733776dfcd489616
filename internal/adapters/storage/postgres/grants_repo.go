package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"pillsync/internal/domain/caregivers"
)

type GrantsRepo struct {
	db *sql.DB
}

func NewGrantsRepo(db *sql.DB) *GrantsRepo {
	return &GrantsRepo{db: db}
}

const grantColumns = `
	id, patient_id, owner_user_id, grantee_user_id, label,
	code, expires_at,
	scopes, status,
	created_at, updated_at, revoked_at`

func (r *GrantsRepo) Create(ctx context.Context, g caregivers.Grant) error {
	scopes, err := json.Marshal(nonNilScopes(g.Scopes))
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO caregiver_grants (`+grantColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
	`,
		g.ID,
		g.PatientID,
		g.OwnerUserID,
		g.GranteeUserID,
		g.Label,
		g.Code,
		g.ExpiresAt,
		scopes,
		string(g.Status),
		g.CreatedAt,
		g.UpdatedAt,
		toNullTime(g.RevokedAt),
	)
	return err
}

func (r *GrantsRepo) Update(ctx context.Context, g caregivers.Grant) error {
	scopes, err := json.Marshal(nonNilScopes(g.Scopes))
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE caregiver_grants
		SET
			grantee_user_id = $2,
			scopes = $3,
			status = $4,
			updated_at = $5,
			revoked_at = $6
		WHERE id = $1
	`,
		g.ID,
		g.GranteeUserID,
		scopes,
		string(g.Status),
		g.UpdatedAt,
		toNullTime(g.RevokedAt),
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return caregivers.ErrNotFound
	}
	return nil
}

func (r *GrantsRepo) GetByID(ctx context.Context, id string) (caregivers.Grant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return caregivers.Grant{}, caregivers.ErrNotFound
	}
	return r.one(ctx, `SELECT `+grantColumns+` FROM caregiver_grants WHERE id = $1`, id)
}

func (r *GrantsRepo) GetByCode(ctx context.Context, code string) (caregivers.Grant, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return caregivers.Grant{}, caregivers.ErrNotFound
	}
	return r.one(ctx, `SELECT `+grantColumns+` FROM caregiver_grants WHERE code = $1`, code)
}

func (r *GrantsRepo) ListByPatient(ctx context.Context, patientID string) ([]caregivers.Grant, error) {
	patientID = strings.TrimSpace(patientID)
	if patientID == "" {
		return nil, nil
	}
	return r.list(ctx, `SELECT `+grantColumns+` FROM caregiver_grants WHERE patient_id = $1 ORDER BY created_at ASC`, patientID)
}

func (r *GrantsRepo) ListByGrantee(ctx context.Context, granteeUserID string) ([]caregivers.Grant, error) {
	granteeUserID = strings.TrimSpace(granteeUserID)
	if granteeUserID == "" {
		return nil, nil
	}
	return r.list(ctx, `SELECT `+grantColumns+` FROM caregiver_grants WHERE grantee_user_id = $1 ORDER BY updated_at DESC`, granteeUserID)
}

func (r *GrantsRepo) GetActiveGrant(ctx context.Context, patientID, granteeUserID string) (caregivers.Grant, error) {
	patientID = strings.TrimSpace(patientID)
	granteeUserID = strings.TrimSpace(granteeUserID)
	if patientID == "" || granteeUserID == "" {
		return caregivers.Grant{}, caregivers.ErrNotFound
	}
	return r.one(ctx, `
		SELECT `+grantColumns+`
		FROM caregiver_grants
		WHERE patient_id = $1
		  AND grantee_user_id = $2
		  AND status = 'active'
		ORDER BY updated_at DESC, created_at DESC
		LIMIT 1
	`, patientID, granteeUserID)
}

func (r *GrantsRepo) one(ctx context.Context, query string, args ...any) (caregivers.Grant, error) {
	g, err := scanGrant(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return caregivers.Grant{}, caregivers.ErrNotFound
	}
	return g, err
}

func (r *GrantsRepo) list(ctx context.Context, query string, args ...any) ([]caregivers.Grant, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]caregivers.Grant, 0)
	for rows.Next() {
		g, err := scanGrant(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func scanGrant(s rowScanner) (caregivers.Grant, error) {
	var g caregivers.Grant
	var status string
	var scopes []byte
	var revokedAt sql.NullTime

	if err := s.Scan(
		&g.ID,
		&g.PatientID,
		&g.OwnerUserID,
		&g.GranteeUserID,
		&g.Label,
		&g.Code,
		&g.ExpiresAt,
		&scopes,
		&status,
		&g.CreatedAt,
		&g.UpdatedAt,
		&revokedAt,
	); err != nil {
		return caregivers.Grant{}, err
	}

	g.Status = caregivers.Status(status)
	if err := json.Unmarshal(scopes, &g.Scopes); err != nil {
		return caregivers.Grant{}, err
	}
	g.Scopes = nonNilScopes(g.Scopes)
	if revokedAt.Valid {
		t := revokedAt.Time
		g.RevokedAt = &t
	}
	return g, nil
}

func nonNilScopes(in []caregivers.Scope) []caregivers.Scope {
	if in == nil {
		return []caregivers.Scope{}
	}
	return in
}
