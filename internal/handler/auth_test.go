package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func TestRequireTeacher(t *testing.T) {
	env := newTestEnv(t)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{Subject: "teacher-1"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"valid token", "Bearer " + teacherToken(t, "teacher-1"), http.StatusOK},
		{"lowercase scheme", "bearer " + teacherToken(t, "teacher-1"), http.StatusOK},
		{"no header", "", http.StatusUnauthorized},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized},
		{"garbage token", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", jwt.RegisteredClaims{Subject: "teacher-1"}), http.StatusUnauthorized},
		{"no subject", "Bearer " + signToken(t, testSecret, jwt.RegisteredClaims{}), http.StatusUnauthorized},
		{"expired", "Bearer " + signToken(t, testSecret, jwt.RegisteredClaims{
			Subject:   "teacher-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}), http.StatusUnauthorized},
		{"alg none", "Bearer " + noneToken, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/quizzes/launched", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}
}

func TestParseTeacherIDWithoutSecret(t *testing.T) {
	token := signToken(t, testSecret, jwt.RegisteredClaims{Subject: "teacher-1"})
	if _, err := parseTeacherID(token, ""); err == nil {
		t.Error("expected an error when no secret is configured")
	}
}

func TestStudentRoutesArePublic(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/quizzes/launched/unknown-session", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 (not 401)", rec.Code)
	}
	if msg := decode[errorResponse](t, rec).Message; msg != "The requested session was not found." {
		t.Errorf("message = %q", msg)
	}
}
