package learning

import "context"

type StudentRepository interface {
	Create(ctx context.Context, s Student) error
	GetByID(ctx context.Context, id string) (Student, error)
	Update(ctx context.Context, s Student) error
}

// RemoteLesson es lo que trae el documento remoto. Campos vacíos = usar el
// contenido embebido.
type RemoteLesson struct {
	Title      string
	Paragraphs []string
}

// ContentSource lee lecciones de un documento remoto.
type ContentSource interface {
	Lesson(ctx context.Context, id string) (RemoteLesson, error)
}
