package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/pavelanni/quizdeck/internal/model"
)

// requireTeacher is middleware that accepts an HS256 bearer token and stores
// its subject as the teacher id.
func (h *Handler) requireTeacher(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			h.unauthorized(w, r)
			return
		}

		teacherID, err := parseTeacherID(token, h.config.JWTSecret)
		if err != nil {
			slog.Warn("rejected bearer token", "path", r.URL.Path, "error", err)
			h.unauthorized(w, r)
			return
		}

		ctx := model.ContextWithTeacher(r.Context(), teacherID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(auth, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// parseTeacherID verifies token against secret and returns its subject.
func parseTeacherID(token, secret string) (string, error) {
	if secret == "" {
		return "", fmt.Errorf("no signing secret configured")
	}
	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", fmt.Errorf("invalid token")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}
