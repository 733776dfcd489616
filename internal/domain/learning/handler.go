package learning

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func RegisterRoutes(r chi.Router, svc *Service) {
	r.Route("/learning", func(lr chi.Router) {
		lr.Get("/catalog", catalogHandler(svc))
		lr.Get("/modules", modulesHandler(svc))
		lr.Get("/lessons/{lessonID}", lessonHandler(svc))
		lr.Get("/lessons/{lessonID}/quiz", quizHandler(svc))

		lr.Post("/students", onboardHandler(svc))
		lr.Get("/students/{studentID}", getStudentHandler(svc))
		lr.Put("/students/{studentID}/modules", selectModulesHandler(svc))
	})
}

type catalogResponse struct {
	Schools  []string `json:"schools"`
	Grades   []string `json:"grades"`
	Quarters []string `json:"quarters"`
	Subjects []string `json:"subjects"`
}

type moduleResponse struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

type lessonResponse struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
}

type questionResponse struct {
	Number  int      `json:"number"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options,omitempty"`
	Hint    string   `json:"hint,omitempty"`
}

type sectionResponse struct {
	Tier      Tier               `json:"tier" enums:"Easy,Medium,Hard"`
	Label     string             `json:"label"`
	Questions []questionResponse `json:"questions"`
}

type quizResponse struct {
	LessonID     string            `json:"lesson_id"`
	Title        string            `json:"title"`
	Instructions string            `json:"instructions"`
	Sections     []sectionResponse `json:"sections"`
	AnswerKey    struct {
		Code   string `json:"code"`
		Number string `json:"number"`
	} `json:"answer_key"`
}

type onboardRequest struct {
	Name    string `json:"name"`
	School  string `json:"school"`
	Grade   string `json:"grade" example:"Grade 5"`
	Quarter string `json:"quarter" example:"Quarter 2"`
	Subject string `json:"subject" example:"Biology"`
}

type selectModulesRequest struct {
	ModuleIDs []string `json:"module_ids"`
}

type studentResponse struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	School    string           `json:"school"`
	Grade     string           `json:"grade"`
	Quarter   string           `json:"quarter"`
	Subject   string           `json:"subject"`
	Modules   []moduleResponse `json:"modules"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// catalogHandler godoc
// @Summary Catálogo del onboarding
// @Tags learning
// @Produce json
// @Success 200 {object} catalogResponse
// @Router /learning/catalog [get]
func catalogHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := svc.Catalog()
		writeJSON(w, http.StatusOK, catalogResponse{
			Schools:  c.Schools,
			Grades:   c.Grades,
			Quarters: c.Quarters,
			Subjects: c.Subjects,
		})
	}
}

func modulesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, toModuleResponses(svc.Modules()))
	}
}

// lessonHandler godoc
// @Summary Lección
// @Description Contenido embebido; si hay documento remoto configurado, lo pisa campo a campo.
// @Tags learning
// @Produce json
// @Param lessonID path string true "ID de la lección"
// @Success 200 {object} lessonResponse
// @Failure 404 {string} string "not found"
// @Router /learning/lessons/{lessonID} [get]
func lessonHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := svc.Lesson(r.Context(), chi.URLParam(r, "lessonID"))
		if err != nil {
			http.Error(w, "lesson not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, lessonResponse{ID: l.ID, Title: l.Title, Paragraphs: l.Paragraphs})
	}
}

// quizHandler godoc
// @Summary Quiz de autoevaluación
// @Tags learning
// @Produce json
// @Param lessonID path string true "ID de la lección"
// @Success 200 {object} quizResponse
// @Failure 404 {string} string "not found"
// @Router /learning/lessons/{lessonID}/quiz [get]
func quizHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := svc.Quiz(chi.URLParam(r, "lessonID"))
		if err != nil {
			http.Error(w, "quiz not found", http.StatusNotFound)
			return
		}

		out := quizResponse{
			LessonID:     q.LessonID,
			Title:        q.Title,
			Instructions: q.Instructions,
			Sections:     make([]sectionResponse, 0, len(q.Sections)),
		}
		out.AnswerKey.Code = q.AnswerKey.Code
		out.AnswerKey.Number = q.AnswerKey.Number
		for _, sec := range q.Sections {
			sr := sectionResponse{Tier: sec.Tier, Label: sec.Label, Questions: make([]questionResponse, 0, len(sec.Questions))}
			for _, qq := range sec.Questions {
				sr.Questions = append(sr.Questions, questionResponse{Number: qq.Number, Prompt: qq.Prompt, Options: qq.Options, Hint: qq.Hint})
			}
			out.Sections = append(out.Sections, sr)
		}
		writeJSON(w, http.StatusOK, out)
	}
}

// onboardHandler godoc
// @Summary Registrar estudiante
// @Description Todos los campos son obligatorios; school/grade/quarter/subject tienen que salir del catálogo.
// @Tags learning
// @Accept json
// @Produce json
// @Param payload body onboardRequest true "Datos del estudiante"
// @Success 201 {object} studentResponse
// @Failure 400 {string} string "invalid json / invalid input"
// @Router /learning/students [post]
func onboardHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req onboardRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		st, err := svc.Onboard(r.Context(), OnboardInput{
			Name:    req.Name,
			School:  req.School,
			Grade:   req.Grade,
			Quarter: req.Quarter,
			Subject: req.Subject,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, toStudentResponse(svc, st))
	}
}

func getStudentHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.GetStudent(r.Context(), chi.URLParam(r, "studentID"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toStudentResponse(svc, st))
	}
}

func selectModulesHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req selectModulesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		st, err := svc.SelectModules(r.Context(), chi.URLParam(r, "studentID"), req.ModuleIDs)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toStudentResponse(svc, st))
	}
}

func writeServiceError(w http.ResponseWriter, err error) {
	switch err {
	case ErrInvalidInput:
		http.Error(w, err.Error(), http.StatusBadRequest)
	case ErrNotFound:
		http.Error(w, "student not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func toModuleResponses(ms []Module) []moduleResponse {
	out := make([]moduleResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, moduleResponse{ID: m.ID, Title: m.Title, Subtitle: m.Subtitle})
	}
	return out
}

func toStudentResponse(svc *Service, st Student) studentResponse {
	return studentResponse{
		ID:        st.ID,
		Name:      st.Name,
		School:    st.School,
		Grade:     st.Grade,
		Quarter:   st.Quarter,
		Subject:   st.Subject,
		Modules:   toModuleResponses(svc.SelectedModules(st)),
		CreatedAt: st.CreatedAt,
		UpdatedAt: st.UpdatedAt,
	}
}

// writeJSON está duplicado a propósito en cada módulo; extraerlo recién si aparece en más lugares.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
