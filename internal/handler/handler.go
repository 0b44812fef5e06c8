// Package handler exposes the quiz engine as a JSON API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/quizdeck/internal/apperr"
	appI18n "github.com/pavelanni/quizdeck/internal/i18n"
	"github.com/pavelanni/quizdeck/internal/model"
	"github.com/pavelanni/quizdeck/internal/quiz"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	svc    *quiz.Service
	config model.AppConfig
}

// New creates a new Handler.
func New(svc *quiz.Service, cfg model.AppConfig) *Handler {
	return &Handler{svc: svc, config: cfg}
}

// Routes registers all HTTP routes. Student routes are public; teacher
// routes require a bearer token.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/quizzes", func(r chi.Router) {
		r.Get("/launched/{id}", h.handleGetLaunchedQuiz)
		r.Get("/verify-access/{id}/{accessCode}", h.handleVerifyAccess)
		r.Post("/grade", h.handleGrade)

		r.Group(func(r chi.Router) {
			r.Use(h.requireTeacher)
			r.Post("/", h.handleGenerate)
			r.Get("/launched", h.handleListSessions)
			r.Get("/launched/{id}/overview", h.handleOverview)
			r.Get("/{id}", h.handleGetQuiz)
			r.Post("/{id}/launch", h.handleLaunch)
			r.Post("/{id}/status", h.handleSetStatus)
		})
	})
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var in quiz.GenerateInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	q, err := h.svc.Generate(r.Context(), model.TeacherFromContext(r.Context()), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"quiz": q})
}

func (h *Handler) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q, err := h.svc.GetQuiz(r.Context(), id)
	if err == nil && q.TeacherID != model.TeacherFromContext(r.Context()) {
		err = &apperr.NotFoundError{Kind: "quiz", ID: id}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quiz": q})
}

type launchResponse struct {
	Message string `json:"message"`
	model.LaunchResult
}

func (h *Handler) handleLaunch(w http.ResponseWriter, r *http.Request) {
	var in quiz.LaunchInput
	if err := decodeJSON(w, r, &in); err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.svc.Launch(r.Context(), model.TeacherFromContext(r.Context()), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, launchResponse{
		Message:      appI18n.T(r.Context(), "QuizLaunched"),
		LaunchResult: res,
	})
}

func (h *Handler) handleGetLaunchedQuiz(w http.ResponseWriter, r *http.Request) {
	lq, err := h.svc.GetLaunchedQuiz(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": appI18n.T(r.Context(), "QuizRetrieved"),
		"quiz":    lq,
	})
}

func (h *Handler) handleVerifyAccess(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	ok, err := h.svc.VerifyAccess(r.Context(), sessionID, chi.URLParam(r, "accessCode"))
	if err == nil && !ok {
		err = &apperr.AccessDeniedError{SessionID: sessionID}
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": appI18n.T(r.Context(), "AccessVerified")})
}

func (h *Handler) handleGrade(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sub, err := quiz.DecodeSubmission(body)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	graded, err := h.svc.Grade(r.Context(), sub)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"gradedAnswers": graded})
}

func (h *Handler) handleSetStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		h.writeError(w, r, err)
		return
	}

	change, err := h.svc.SetStatus(r.Context(), model.TeacherFromContext(r.Context()), chi.URLParam(r, "id"), body.Status)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":       appI18n.Td(r.Context(), "StatusUpdated", map[string]any{"Status": change.Status}),
		"status":        change.Status,
		"smartInsights": change.SmartInsights,
	})
}

func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := h.svc.Overview(r.Context(), model.TeacherFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"quiz": ov})
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListSessions(r.Context(), model.TeacherFromContext(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}
