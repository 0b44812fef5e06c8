package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/pavelanni/quizdeck/internal/apperr"
	appI18n "github.com/pavelanni/quizdeck/internal/i18n"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

type errorBody struct {
	StatusCode int                 `json:"statusCode"`
	Message    string              `json:"message"`
	Fields     []apperr.FieldError `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// readBody returns the request body, bounded by maxBodyBytes.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	b, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, apperr.NewValidationError("read request body: " + err.Error())
	}
	return b, nil
}

// decodeJSON decodes the request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	b, err := readBody(w, r)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return apperr.NewValidationError("malformed request body: " + err.Error())
	}
	return nil
}

// writeError maps an engine error to a status code. Only validation
// messages reach the client verbatim; everything else is logged and
// answered with a localized message.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var (
		ve *apperr.ValidationError
		nf *apperr.NotFoundError
		ad *apperr.AccessDeniedError
	)
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{
			StatusCode: http.StatusBadRequest,
			Message:    ve.Msg,
			Fields:     ve.Fields,
		})
	case errors.As(err, &nf):
		writeJSON(w, http.StatusNotFound, errorBody{
			StatusCode: http.StatusNotFound,
			Message:    appI18n.Td(ctx, "ErrNotFound", map[string]any{"Kind": nf.Kind}),
		})
	case errors.As(err, &ad):
		writeJSON(w, http.StatusUnauthorized, errorBody{
			StatusCode: http.StatusUnauthorized,
			Message:    appI18n.T(ctx, "ErrInvalidAccessCode"),
		})
	default:
		msgID := "ErrInternal"
		switch {
		case apperr.IsGeneration(err):
			msgID = "ErrGenerationFailed"
		case apperr.IsGrading(err):
			msgID = "ErrGradingFailed"
		}
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			StatusCode: http.StatusInternalServerError,
			Message:    appI18n.T(ctx, msgID),
		})
	}
}

func (h *Handler) unauthorized(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusUnauthorized, errorBody{
		StatusCode: http.StatusUnauthorized,
		Message:    appI18n.T(r.Context(), "ErrUnauthorized"),
	})
}
