package quiz

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/pavelanni/quizdeck/internal/apperr"
	"github.com/pavelanni/quizdeck/internal/model"
)

// GetQuiz returns a stored quiz.
func (s *Service) GetQuiz(ctx context.Context, id string) (model.Quiz, error) {
	q, err := s.repo.GetQuiz(ctx, id)
	if err != nil {
		return model.Quiz{}, repoErr("get quiz", "quiz", id, err)
	}
	return q, nil
}

// GetLaunchedQuiz returns the session and quiz a student opens from a link.
func (s *Service) GetLaunchedQuiz(ctx context.Context, sessionID string) (model.LaunchedQuiz, error) {
	lq, err := s.repo.GetLaunchedQuiz(ctx, sessionID)
	if err != nil {
		return model.LaunchedQuiz{}, repoErr("get launched quiz", "session", sessionID, err)
	}
	return lq, nil
}

// ListSessions returns the teacher's sessions, newest first.
func (s *Service) ListSessions(ctx context.Context, teacherID string) ([]model.SessionSummary, error) {
	if teacherID == "" {
		return nil, apperr.NewValidationError("teacher id is required")
	}
	list, err := s.repo.ListSessions(ctx, teacherID)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "list sessions", Err: err}
	}
	return list, nil
}

// Overview reports a teacher's session with per-student rows.
func (s *Service) Overview(ctx context.Context, teacherID, sessionID string) (model.SessionOverview, error) {
	b, err := s.ownedBundle(ctx, teacherID, sessionID)
	if err != nil {
		return model.SessionOverview{}, err
	}
	return s.overview(b), nil
}

// SetStatus moves a session to status. Closing an active session generates
// and stores smart insights; closing a closed session returns the stored
// insights. Closed sessions cannot be reopened.
func (s *Service) SetStatus(ctx context.Context, teacherID, sessionID, status string) (model.StatusChange, error) {
	want := model.SessionStatus(strings.ToLower(strings.TrimSpace(status)))
	if want != model.StatusActive && want != model.StatusClosed {
		return model.StatusChange{}, apperr.NewValidationError("invalid session status "+status,
			apperr.FieldError{Field: "status", Error: "must be active or closed"})
	}

	ls, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return model.StatusChange{}, repoErr("get session", "session", sessionID, err)
	}
	if ls.TeacherID != teacherID {
		return model.StatusChange{}, &apperr.NotFoundError{Kind: "session", ID: sessionID}
	}

	switch {
	case ls.Status == want:
		return model.StatusChange{Status: ls.Status, SmartInsights: ls.SmartInsights}, nil
	case want == model.StatusActive:
		return model.StatusChange{}, apperr.NewValidationError("session " + sessionID + " is closed and cannot be reopened")
	}

	insights := s.Summarize(ctx, sessionID)
	if err := s.repo.UpdateSessionStatus(ctx, sessionID, model.StatusClosed, &insights); err != nil {
		return model.StatusChange{}, repoErr("close session", "session", sessionID, err)
	}
	slog.Info("session closed", "session_id", sessionID, "teacher_id", teacherID)
	return model.StatusChange{Status: model.StatusClosed, SmartInsights: &insights}, nil
}

// Export collects the overview, questions and raw results of a session.
func (s *Service) Export(ctx context.Context, sessionID string) (model.SessionExport, error) {
	b, err := s.repo.LoadSessionBundle(ctx, sessionID)
	if err != nil {
		return model.SessionExport{}, repoErr("load session", "session", sessionID, err)
	}
	return model.SessionExport{
		ExportedAt:    time.Now().UTC(),
		PromptVariant: s.cfg.PromptVariant,
		Session:       s.overview(b),
		Questions:     b.Quiz.Questions,
		Results:       b.Results,
	}, nil
}

func (s *Service) ownedBundle(ctx context.Context, teacherID, sessionID string) (model.SessionBundle, error) {
	b, err := s.repo.LoadSessionBundle(ctx, sessionID)
	if err != nil {
		return model.SessionBundle{}, repoErr("load session", "session", sessionID, err)
	}
	if b.Session.TeacherID != teacherID {
		return model.SessionBundle{}, &apperr.NotFoundError{Kind: "session", ID: sessionID}
	}
	return b, nil
}

func (s *Service) overview(b model.SessionBundle) model.SessionOverview {
	ls := b.Session
	qr, err := s.qr(ls.DistributionURL)
	if err != nil {
		slog.Warn("overview: QR encoding failed", "session_id", ls.ID, "error", err)
	}

	students := make([]model.StudentOverview, 0, len(b.Results))
	for _, r := range b.Results {
		correct := r.CorrectCount()
		students = append(students, model.StudentOverview{
			ID:        r.ID,
			Name:      r.StudentName,
			Score:     r.ScorePercentage,
			Correct:   correct,
			Incorrect: len(r.GradedAnswers) - correct,
			Status:    "Completed",
		})
	}

	return model.SessionOverview{
		ID:             ls.ID,
		QuizID:         ls.QuizID,
		Title:          b.Quiz.Title,
		ClassName:      ls.ClassName,
		LaunchDate:     ls.CreatedAt,
		StudentsTaken:  ls.StudentsCompleted,
		AverageScore:   ls.AverageScore,
		Status:         ls.Status,
		LaunchURL:      ls.DistributionURL,
		QRCodeData:     qr,
		AccessCode:     ls.AccessCode,
		TotalQuestions: b.Quiz.NumberOfQuestions,
		SmartInsights:  ls.SmartInsights,
		Students:       students,
	}
}
