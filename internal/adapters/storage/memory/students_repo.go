package memory

import (
	"context"
	"errors"

	"pillsync/internal/domain/learning"
)

type studentRepo struct {
	s *Store
}

func NewStudentRepo(s *Store) learning.StudentRepository {
	return &studentRepo{s: s}
}

func (r *studentRepo) Create(ctx context.Context, st learning.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if st.ID == "" {
		return errors.New("student id required")
	}
	if _, exists := r.s.students[st.ID]; exists {
		return errors.New("student already exists")
	}
	st.ModuleIDs = append([]string(nil), st.ModuleIDs...)
	r.s.students[st.ID] = st
	return nil
}

func (r *studentRepo) GetByID(ctx context.Context, id string) (learning.Student, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	st, ok := r.s.students[id]
	if !ok {
		return learning.Student{}, learning.ErrNotFound
	}
	st.ModuleIDs = append([]string(nil), st.ModuleIDs...)
	return st, nil
}

func (r *studentRepo) Update(ctx context.Context, st learning.Student) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, exists := r.s.students[st.ID]; !exists {
		return learning.ErrNotFound
	}
	st.ModuleIDs = append([]string(nil), st.ModuleIDs...)
	r.s.students[st.ID] = st
	return nil
}
