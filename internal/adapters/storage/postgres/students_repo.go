package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"pillsync/internal/domain/learning"
)

type StudentsRepo struct {
	db *sql.DB
}

func NewStudentsRepo(db *sql.DB) *StudentsRepo {
	return &StudentsRepo{db: db}
}

func (r *StudentsRepo) Create(ctx context.Context, s learning.Student) error {
	mods, err := json.Marshal(nonNilStrings(s.ModuleIDs))
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO students (
			id, name, school, grade, quarter, subject,
			module_ids, created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`,
		s.ID,
		s.Name,
		s.School,
		s.Grade,
		s.Quarter,
		s.Subject,
		mods,
		s.CreatedAt,
		s.UpdatedAt,
	)
	return err
}

func (r *StudentsRepo) GetByID(ctx context.Context, id string) (learning.Student, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return learning.Student{}, learning.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, name, school, grade, quarter, subject,
			module_ids, created_at, updated_at
		FROM students
		WHERE id = $1
	`, id)

	var s learning.Student
	var mods []byte
	if err := row.Scan(
		&s.ID,
		&s.Name,
		&s.School,
		&s.Grade,
		&s.Quarter,
		&s.Subject,
		&mods,
		&s.CreatedAt,
		&s.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return learning.Student{}, learning.ErrNotFound
		}
		return learning.Student{}, err
	}
	if err := json.Unmarshal(mods, &s.ModuleIDs); err != nil {
		return learning.Student{}, err
	}
	s.ModuleIDs = nonNilStrings(s.ModuleIDs)
	return s, nil
}

func (r *StudentsRepo) Update(ctx context.Context, s learning.Student) error {
	mods, err := json.Marshal(nonNilStrings(s.ModuleIDs))
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE students
		SET
			name = $2,
			school = $3,
			grade = $4,
			quarter = $5,
			subject = $6,
			module_ids = $7,
			updated_at = $8
		WHERE id = $1
	`,
		s.ID,
		s.Name,
		s.School,
		s.Grade,
		s.Quarter,
		s.Subject,
		mods,
		s.UpdatedAt,
	)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return learning.ErrNotFound
	}
	return nil
}
