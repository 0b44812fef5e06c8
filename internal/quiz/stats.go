package quiz

import "context"

// Recompute refreshes students_completed and average_score for a session
// from all of its stored results. Running it again without new results
// leaves the aggregates unchanged.
func (s *Service) Recompute(ctx context.Context, sessionID string) error {
	if err := s.repo.RecomputeStats(ctx, sessionID); err != nil {
		return repoErr("recompute stats", "session", sessionID, err)
	}
	return nil
}
