package quiz

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pavelanni/quizdeck/internal/apperr"
)

// VerifyAccess reports whether code matches the session's access code.
// A mismatch is not an error.
func (s *Service) VerifyAccess(ctx context.Context, sessionID, code string) (bool, error) {
	ls, err := s.repo.GetSession(ctx, sessionID)
	if err != nil {
		return false, repoErr("get session", "session", sessionID, err)
	}
	stored := strings.TrimSpace(ls.AccessCode)
	if stored == "" {
		return false, &apperr.InternalError{Msg: "access code is missing for session " + sessionID}
	}
	if stored != strings.TrimSpace(code) {
		slog.Warn("access code mismatch", "session_id", sessionID)
		return false, nil
	}
	return true, nil
}
