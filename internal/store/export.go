package store

import (
	"context"
	"fmt"

	"github.com/pavelanni/quizdeck/internal/model"
)

// LoadSessionBundle reads a session together with its quiz and all
// student results, as needed for overviews and exports.
func (s *Store) LoadSessionBundle(ctx context.Context, sessionID string) (model.SessionBundle, error) {
	sess, err := s.GetSession(ctx, sessionID)
	if err != nil {
		return model.SessionBundle{}, err
	}

	quiz, err := s.GetQuiz(ctx, sess.QuizID)
	if err != nil {
		return model.SessionBundle{}, fmt.Errorf("get quiz %s: %w", sess.QuizID, err)
	}

	results, err := s.ListResults(ctx, sessionID)
	if err != nil {
		return model.SessionBundle{}, fmt.Errorf("list results: %w", err)
	}

	return model.SessionBundle{
		Session: sess,
		Quiz:    quiz,
		Results: results,
	}, nil
}
