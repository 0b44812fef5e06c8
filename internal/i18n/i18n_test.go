package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "AccessVerified")
	if got != "Access code verified successfully" {
		t.Errorf("T(AccessVerified) = %q", got)
	}

	got = T(ctx, "ErrInvalidAccessCode")
	if got != "Invalid access code." {
		t.Errorf("T(ErrInvalidAccessCode) = %q", got)
	}
}

func TestTranslateSpanish(t *testing.T) {
	ctx := initLang(t, "es")

	got := T(ctx, "ErrInvalidAccessCode")
	if got != "Código de acceso no válido." {
		t.Errorf("T(ErrInvalidAccessCode) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "en")

	got := Td(ctx, "StatusUpdated", map[string]any{"Status": "closed"})
	if got != "Quiz successfully updated to closed" {
		t.Errorf("Td(StatusUpdated) = %q", got)
	}
}

func TestMissingKey(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "NonExistentKey")
	if got != "NonExistentKey" {
		t.Errorf("T(NonExistentKey) = %q, want 'NonExistentKey'", got)
	}
}

func TestMiddlewareAcceptLanguage(t *testing.T) {
	if err := Init("en"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	tests := []struct {
		name   string
		accept string
		want   string
	}{
		{"no header uses fallback", "", "Invalid access code."},
		{"spanish", "es-ES,es;q=0.9", "Código de acceso no válido."},
		{"unsupported falls back", "de", "Invalid access code."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			h := Middleware("en")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = T(r.Context(), "ErrInvalidAccessCode")
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.accept != "" {
				req.Header.Set("Accept-Language", tt.accept)
			}
			h.ServeHTTP(httptest.NewRecorder(), req)
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
