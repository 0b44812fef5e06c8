package quiz

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pavelanni/quizdeck/internal/apperr"
	"github.com/pavelanni/quizdeck/internal/llm/prompts"
	"github.com/pavelanni/quizdeck/internal/model"
	"github.com/pavelanni/quizdeck/internal/validation"
)

// GenerateInput is the teacher's request for a new quiz.
type GenerateInput struct {
	Subject            string   `json:"subject" validate:"required"`
	Topic              string   `json:"topic" validate:"required"`
	GradeLevel         string   `json:"gradeLevel" validate:"required"`
	NumberOfQuestions  int      `json:"numberOfQuestions" validate:"required,min=1,max=50"`
	QuestionTypes      []string `json:"questionTypes" validate:"required,min=1,dive,required"`
	CustomInstructions string   `json:"customInstructions"`
	IncludeHints       bool     `json:"includeHints"`
}

func (in *GenerateInput) trim() {
	in.Subject = strings.TrimSpace(in.Subject)
	in.Topic = strings.TrimSpace(in.Topic)
	in.GradeLevel = strings.TrimSpace(in.GradeLevel)
	in.CustomInstructions = strings.TrimSpace(in.CustomInstructions)
}

// questionTypes normalizes and deduplicates the requested types.
func (in GenerateInput) questionTypes() ([]model.QuestionType, error) {
	var types []model.QuestionType
	seen := make(map[model.QuestionType]bool)
	for _, raw := range in.QuestionTypes {
		t := NormalizeQuestionType(raw)
		if !t.IsValid() {
			return nil, apperr.NewValidationError("unknown question type "+raw,
				apperr.FieldError{Field: "questionTypes", Error: "unknown question type " + raw})
		}
		if !seen[t] {
			seen[t] = true
			types = append(types, t)
		}
	}
	return types, nil
}

// Generate asks the provider for a quiz, validates the response and
// persists it. The provider is called once.
func (s *Service) Generate(ctx context.Context, teacherID string, in GenerateInput) (model.Quiz, error) {
	if teacherID == "" {
		return model.Quiz{}, apperr.NewValidationError("teacher id is required")
	}
	in.trim()
	if err := validation.Struct(in); err != nil {
		return model.Quiz{}, err
	}
	types, err := in.questionTypes()
	if err != nil {
		return model.Quiz{}, err
	}

	prompt, err := prompts.BuildQuizPrompt(prompts.QuizData{
		Subject:            in.Subject,
		Topic:              in.Topic,
		GradeLevel:         in.GradeLevel,
		NumberOfQuestions:  in.NumberOfQuestions,
		Types:              types,
		IncludeHints:       in.IncludeHints,
		CustomInstructions: in.CustomInstructions,
	})
	if err != nil {
		return model.Quiz{}, &apperr.InternalError{Msg: "build quiz prompt: " + err.Error()}
	}

	raw, err := s.provider.GenerateJSON(ctx, prompt)
	if err != nil {
		slog.Error("quiz generation failed", "topic", in.Topic, "error", err)
		return model.Quiz{}, &apperr.GenerationError{Msg: "content provider failed", Err: err}
	}
	questions, insights, err := decodeQuiz(raw, in.NumberOfQuestions, types)
	if err != nil {
		slog.Error("quiz response rejected", "topic", in.Topic, "error", err)
		return model.Quiz{}, &apperr.GenerationError{Msg: "provider response failed the quiz schema", Err: err}
	}

	q := model.Quiz{
		TeacherID:         teacherID,
		Title:             "Quiz on " + in.Topic,
		GradeLevel:        in.GradeLevel,
		Subject:           in.Subject,
		Topic:             in.Topic,
		NumberOfQuestions: in.NumberOfQuestions,
		QuestionTypes:     types,
		Questions:         questions,
		TeachingInsights:  insights,
	}
	if in.CustomInstructions != "" {
		ci := in.CustomInstructions
		q.CustomInstructions = &ci
	}
	if err := s.repo.CreateQuiz(ctx, &q); err != nil {
		return model.Quiz{}, &apperr.PersistenceError{Op: "save quiz", Err: err}
	}
	slog.Info("quiz generated", "quiz_id", q.ID, "teacher_id", teacherID, "questions", len(q.Questions))
	return q, nil
}
