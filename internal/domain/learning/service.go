// Package learning sirve el companion de aprendizaje offline: catálogo,
// onboarding del estudiante, módulos, lecciones y quizzes.
package learning

import (
	"context"
	"errors"
	"strings"
	"time"

	"pillsync/internal/platform/logger"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("not found")
)

type Service struct {
	repo   StudentRepository
	remote ContentSource
	log    logger.Logger
	now    func() time.Time
}

// NewService: remote puede ser nil (solo contenido embebido).
func NewService(repo StudentRepository, remote ContentSource, log logger.Logger) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:   repo,
		remote: remote,
		log:    log.With(map[string]any{"component": "learning"}),
		now:    time.Now,
	}
}

func (s *Service) Catalog() Catalog {
	return Catalog{
		Schools:  append([]string(nil), catalog.Schools...),
		Grades:   append([]string(nil), catalog.Grades...),
		Quarters: append([]string(nil), catalog.Quarters...),
		Subjects: append([]string(nil), catalog.Subjects...),
	}
}

func (s *Service) Modules() []Module {
	return append([]Module(nil), modules...)
}

type OnboardInput struct {
	Name    string
	School  string
	Grade   string
	Quarter string
	Subject string
}

// Onboard registra al estudiante. Todos los campos son obligatorios y los de
// catálogo tienen que ser valores del catálogo.
func (s *Service) Onboard(ctx context.Context, in OnboardInput) (Student, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return Student{}, ErrInvalidInput
	}
	if !lo.Contains(catalog.Schools, in.School) ||
		!lo.Contains(catalog.Grades, in.Grade) ||
		!lo.Contains(catalog.Quarters, in.Quarter) ||
		!lo.Contains(catalog.Subjects, in.Subject) {
		return Student{}, ErrInvalidInput
	}

	now := s.now()
	st := Student{
		ID:        uuid.NewString(),
		Name:      name,
		School:    in.School,
		Grade:     in.Grade,
		Quarter:   in.Quarter,
		Subject:   in.Subject,
		ModuleIDs: append([]string(nil), defaultModules...),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, st); err != nil {
		return Student{}, err
	}
	return st, nil
}

func (s *Service) GetStudent(ctx context.Context, id string) (Student, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Student{}, ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}

// SelectModules reemplaza la selección del estudiante. Ids desconocidos se rechazan.
func (s *Service) SelectModules(ctx context.Context, studentID string, moduleIDs []string) (Student, error) {
	st, err := s.GetStudent(ctx, studentID)
	if err != nil {
		return Student{}, err
	}

	known := lo.Map(modules, func(m Module, _ int) string { return m.ID })
	ids := lo.Uniq(lo.Compact(lo.Map(moduleIDs, func(id string, _ int) string { return strings.TrimSpace(id) })))
	for _, id := range ids {
		if !lo.Contains(known, id) {
			return Student{}, ErrInvalidInput
		}
	}

	st.ModuleIDs = ids
	st.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, st); err != nil {
		return Student{}, err
	}
	return st, nil
}

// SelectedModules devuelve los módulos elegidos en el orden del catálogo.
func (s *Service) SelectedModules(st Student) []Module {
	return lo.Filter(modules, func(m Module, _ int) bool { return lo.Contains(st.ModuleIDs, m.ID) })
}

// Lesson devuelve la lección. Si hay fuente remota, sus campos no vacíos
// pisan los embebidos; si falla, se sirve lo embebido.
func (s *Service) Lesson(ctx context.Context, id string) (Lesson, error) {
	l, canned := lessons[id]
	if canned {
		l.Paragraphs = append([]string(nil), l.Paragraphs...)
	} else {
		l = Lesson{ID: id}
	}

	if s.remote != nil {
		r, err := s.remote.Lesson(ctx, id)
		if err != nil {
			s.log.Warn("remote lesson unavailable, using embedded content", map[string]any{"lesson_id": id, "err": err})
		} else {
			if t := strings.TrimSpace(r.Title); t != "" {
				l.Title = t
			}
			if paras := lo.Compact(r.Paragraphs); len(paras) > 0 {
				l.Paragraphs = paras
			}
		}
	}

	if l.Title == "" || len(l.Paragraphs) == 0 {
		return Lesson{}, ErrNotFound
	}
	return l, nil
}

func (s *Service) Quiz(lessonID string) (Quiz, error) {
	q, ok := quizzes[lessonID]
	if !ok {
		return Quiz{}, ErrNotFound
	}
	return q, nil
}
