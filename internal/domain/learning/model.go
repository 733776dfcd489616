package learning

import "time"

// Catalog son las opciones del onboarding del estudiante.
type Catalog struct {
	Schools  []string
	Grades   []string
	Quarters []string
	Subjects []string
}

type Module struct {
	ID       string
	Title    string
	Subtitle string
}

type Lesson struct {
	ID         string
	Title      string
	Paragraphs []string
}

// Tier agrupa preguntas por dificultad.
type Tier string

const (
	TierEasy   Tier = "Easy"
	TierMedium Tier = "Medium"
	TierHard   Tier = "Hard"
)

type Question struct {
	Number  int
	Prompt  string
	Options []string // vacío = respuesta libre
	Hint    string
}

type QuizSection struct {
	Tier      Tier
	Label     string
	Questions []Question
}

// AnswerKey: el estudiante manda Code por SMS a Number y recibe las respuestas.
type AnswerKey struct {
	Code   string
	Number string
}

type Quiz struct {
	LessonID     string
	Title        string
	Instructions string
	Sections     []QuizSection
	AnswerKey    AnswerKey
}

type Student struct {
	ID        string
	Name      string
	School    string
	Grade     string
	Quarter   string
	Subject   string
	ModuleIDs []string
	CreatedAt time.Time
	UpdatedAt time.Time
}
