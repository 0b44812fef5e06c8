package quiz

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/google/uuid"

	"github.com/pavelanni/quizdeck/internal/apperr"
	"github.com/pavelanni/quizdeck/internal/model"
	"github.com/pavelanni/quizdeck/internal/validation"
)

// LaunchInput names the class a quiz is launched to.
type LaunchInput struct {
	ClassName string `json:"className" validate:"required"`
	Notes     string `json:"notes"`
}

// Launch creates an active session for one of the teacher's quizzes.
func (s *Service) Launch(ctx context.Context, teacherID, quizID string, in LaunchInput) (model.LaunchResult, error) {
	in.ClassName = strings.TrimSpace(in.ClassName)
	in.Notes = strings.TrimSpace(in.Notes)
	if err := validation.Struct(in); err != nil {
		return model.LaunchResult{}, err
	}

	q, err := s.repo.GetQuiz(ctx, quizID)
	if err != nil {
		return model.LaunchResult{}, repoErr("get quiz", "quiz", quizID, err)
	}
	if q.TeacherID != teacherID {
		return model.LaunchResult{}, &apperr.NotFoundError{Kind: "quiz", ID: quizID}
	}

	id := uuid.NewString()
	link, err := distributionURL(s.cfg.PublicURL, id)
	if err != nil {
		return model.LaunchResult{}, err
	}
	qr, err := s.qr(link)
	if err != nil {
		return model.LaunchResult{}, &apperr.InternalError{Msg: err.Error()}
	}
	code, err := newAccessCode()
	if err != nil {
		return model.LaunchResult{}, &apperr.InternalError{Msg: "generate access code: " + err.Error()}
	}

	ls := model.LaunchedSession{
		ID:              id,
		QuizID:          quizID,
		TeacherID:       teacherID,
		ClassName:       in.ClassName,
		Notes:           in.Notes,
		DistributionURL: link,
		AccessCode:      code,
		Status:          model.StatusActive,
	}
	if err := s.repo.CreateSession(ctx, &ls); err != nil {
		return model.LaunchResult{}, &apperr.PersistenceError{Op: "save session", Err: err}
	}
	slog.Info("quiz launched", "session_id", id, "quiz_id", quizID, "class", in.ClassName)

	return model.LaunchResult{
		SessionID:       id,
		DistributionURL: link,
		QRImage:         qr,
		AccessCode:      code,
	}, nil
}

func distributionURL(base, sessionID string) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", &apperr.InternalError{Msg: "public URL is not configured"}
	}
	return base + "/quiz/" + sessionID, nil
}

var accessCodeSpan = big.NewInt(900000)

// newAccessCode draws a code uniformly from [100000, 999999].
func newAccessCode() (string, error) {
	n, err := rand.Int(rand.Reader, accessCodeSpan)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d", n.Int64()+100000), nil
}
