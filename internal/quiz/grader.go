package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"

	"github.com/pavelanni/quizdeck/internal/apperr"
	"github.com/pavelanni/quizdeck/internal/llm"
	"github.com/pavelanni/quizdeck/internal/llm/prompts"
	"github.com/pavelanni/quizdeck/internal/model"
	"github.com/pavelanni/quizdeck/internal/retry"
	"github.com/pavelanni/quizdeck/internal/validation"
)

// GradingFailedMessage is the GradingError message when no attempt succeeded.
const GradingFailedMessage = "AI failed to grade after multiple attempts"

// Grade grades one submission, stores the result and refreshes the
// session aggregates. Storage and aggregation failures after a successful
// grade are logged and do not fail the call.
func (s *Service) Grade(ctx context.Context, sub model.Submission) ([]model.GradedAnswer, error) {
	sub.StudentName = strings.TrimSpace(sub.StudentName)
	sub.SessionID = strings.TrimSpace(sub.SessionID)
	if err := validation.Struct(sub); err != nil {
		return nil, err
	}

	ls, err := s.repo.GetSession(ctx, sub.SessionID)
	if err != nil {
		return nil, repoErr("get session", "session", sub.SessionID, err)
	}
	if ls.Status != model.StatusActive {
		return nil, apperr.NewValidationError("session " + sub.SessionID + " is closed")
	}
	s.applyCanonicalAnswers(ctx, ls.QuizID, &sub)

	prompt, err := prompts.BuildGradePrompt(prompts.PromptVariant(s.cfg.PromptVariant), sub)
	if err != nil {
		return nil, &apperr.InternalError{Msg: "build grading prompt: " + err.Error()}
	}

	logAttempt := func(attempt int, err error) {
		slog.Warn("grading attempt failed",
			"session_id", sub.SessionID, "attempt", attempt, "of", s.cfg.GradeAttempts, "error", err)
	}
	graded, err := retry.Do(ctx, s.cfg.GradeAttempts, func(ctx context.Context, _ int) ([]model.GradedAnswer, error) {
		raw, err := s.provider.GenerateJSON(ctx, prompt)
		if err != nil {
			if errors.Is(err, llm.ErrTimeout) {
				return nil, retry.Permanent(err)
			}
			return nil, err
		}
		return decodeGraded(raw, len(sub.Answers))
	}, logAttempt)
	if err != nil {
		slog.Error("grading failed", "session_id", sub.SessionID, "student", sub.StudentName, "error", err)
		return nil, &apperr.GradingError{Msg: GradingFailedMessage, Err: err}
	}

	result := model.StudentResult{
		SessionID:       sub.SessionID,
		StudentName:     sub.StudentName,
		GradedAnswers:   graded,
		ScorePercentage: model.ScorePercentage(graded),
	}
	if err := s.repo.InsertResult(ctx, &result); err != nil {
		slog.Error("failed to save graded result", "session_id", sub.SessionID, "student", sub.StudentName, "error", err)
		return graded, nil
	}
	if err := s.Recompute(ctx, sub.SessionID); err != nil {
		slog.Error("failed to update session stats", "session_id", sub.SessionID, "error", err)
	}
	slog.Info("submission graded", "session_id", sub.SessionID, "result_id", result.ID, "score", result.ScorePercentage)
	return graded, nil
}

// applyCanonicalAnswers replaces the submitted correct answers and types
// with the stored quiz's values for every question it recognizes.
func (s *Service) applyCanonicalAnswers(ctx context.Context, quizID string, sub *model.Submission) {
	q, err := s.repo.GetQuiz(ctx, quizID)
	if err != nil {
		slog.Warn("could not load quiz for grading, using submitted answers", "quiz_id", quizID, "error", err)
		return
	}
	byText := make(map[string]model.QuizQuestion, len(q.Questions))
	for _, qq := range q.Questions {
		byText[strings.TrimSpace(qq.Question)] = qq
	}
	answers := make([]model.SubmissionAnswer, len(sub.Answers))
	for i, a := range sub.Answers {
		if qq, ok := byText[strings.TrimSpace(a.Question)]; ok {
			a.CorrectAnswer = qq.CorrectAnswer
			a.Type = qq.Type
		}
		answers[i] = a
	}
	sub.Answers = answers
}

// rawSubmission accepts the student client's field names.
type rawSubmission struct {
	StudentName  string                   `json:"studentName"`
	SessionID    string                   `json:"sessionId"`
	DeploymentID string                   `json:"deploymentId"`
	Answers      []model.SubmissionAnswer `json:"answers"`
}

// DecodeSubmission parses a submission body. The session may be named
// by either sessionId or deploymentId.
func DecodeSubmission(b []byte) (model.Submission, error) {
	var raw rawSubmission
	if err := json.Unmarshal(b, &raw); err != nil {
		return model.Submission{}, apperr.NewValidationError("malformed submission: " + err.Error())
	}
	sub := model.Submission{
		StudentName: raw.StudentName,
		SessionID:   raw.SessionID,
		Answers:     raw.Answers,
	}
	if sub.SessionID == "" {
		sub.SessionID = raw.DeploymentID
	}
	return sub, nil
}
