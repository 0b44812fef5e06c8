// Package quiz implements the quiz lifecycle: generating a quiz from a
// content provider, launching it to a class, verifying access codes,
// grading student submissions, aggregating results and summarizing them
// into teaching insights when the session closes.
//
// Provider output is untrusted. Every structured response is decoded
// against an explicit schema before it reaches the repository.
package quiz

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pavelanni/quizdeck/internal/apperr"
	"github.com/pavelanni/quizdeck/internal/model"
	"github.com/pavelanni/quizdeck/internal/store"
)

// ContentProvider is the part of llm.Provider the engine needs.
type ContentProvider interface {
	GenerateJSON(ctx context.Context, prompt string) (json.RawMessage, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// Repository persists quizzes, sessions and results. Lookups that match
// nothing return store.ErrNotFound.
type Repository interface {
	CreateQuiz(ctx context.Context, q *model.Quiz) error
	GetQuiz(ctx context.Context, id string) (model.Quiz, error)
	CreateSession(ctx context.Context, ls *model.LaunchedSession) error
	GetSession(ctx context.Context, id string) (model.LaunchedSession, error)
	GetLaunchedQuiz(ctx context.Context, sessionID string) (model.LaunchedQuiz, error)
	ListSessions(ctx context.Context, teacherID string) ([]model.SessionSummary, error)
	InsertResult(ctx context.Context, r *model.StudentResult) error
	ListResults(ctx context.Context, sessionID string) ([]model.StudentResult, error)
	RecomputeStats(ctx context.Context, sessionID string) error
	UpdateSessionStatus(ctx context.Context, sessionID string, status model.SessionStatus, insights *string) error
	LoadSessionBundle(ctx context.Context, sessionID string) (model.SessionBundle, error)
}

// DefaultGradeAttempts is the number of provider calls a grading request may use.
const DefaultGradeAttempts = 2

// Service wires the engine components to a repository and a provider.
type Service struct {
	repo     Repository
	provider ContentProvider
	cfg      model.AppConfig
	qr       func(content string) (string, error)
}

// NewService creates a Service. Zero config values fall back to defaults.
func NewService(repo Repository, provider ContentProvider, cfg model.AppConfig) *Service {
	if cfg.GradeAttempts < 1 {
		cfg.GradeAttempts = DefaultGradeAttempts
	}
	if cfg.PromptVariant == "" {
		cfg.PromptVariant = "standard"
	}
	return &Service{
		repo:     repo,
		provider: provider,
		cfg:      cfg,
		qr:       EncodeQR,
	}
}

// repoErr converts a repository error into the engine's error taxonomy.
func repoErr(op, kind, id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return &apperr.NotFoundError{Kind: kind, ID: id}
	}
	return &apperr.PersistenceError{Op: op, Err: err}
}
