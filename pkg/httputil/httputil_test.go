package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/meridianshop/reviews-service/pkg/errors"
	"github.com/meridianshop/reviews-service/pkg/validator"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- WriteJSON ---

func TestWriteJSON_SetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, Response{Data: "hello"})

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestWriteJSON_ErrorPayload(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: "INVALID_INPUT", Message: "bad input"},
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp Response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "INVALID_INPUT", resp.Error.Code)
	assert.Equal(t, "bad input", resp.Error.Message)
}

// --- WriteError ---

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) *ErrorResponse {
	t.Helper()
	var resp Response
	err := json.NewDecoder(rec.Body).Decode(&resp)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	return resp.Error
}

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reviews/42", nil)

	WriteError(rec, req, apperrors.NotFound("review", "42"), testLogger())

	assert.Equal(t, http.StatusNotFound, rec.Code)
	errResp := decodeError(t, rec)
	assert.Equal(t, "NOT_FOUND", errResp.Code)
	assert.Contains(t, errResp.Message, "review")
}

func TestWriteError_WrappedSentinel(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reviews", nil)

	err := fmt.Errorf("list reviews: %w", apperrors.ErrNotFound)
	WriteError(rec, req, err, testLogger())

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeError(t, rec).Code)
}

func TestWriteError_Forbidden(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodDelete, "/reviews/42", nil)

	WriteError(rec, req, apperrors.ErrForbidden, testLogger())

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "FORBIDDEN", decodeError(t, rec).Code)
}

func TestWriteError_UnknownErrorIs500Generic(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/reviews", nil)

	WriteError(rec, req, errors.New("pq: connection refused"), testLogger())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	errResp := decodeError(t, rec)
	assert.Equal(t, "INTERNAL_ERROR", errResp.Code)
	// Internal details never leak to the client.
	assert.NotContains(t, errResp.Message, "connection refused")
}

// --- WriteValidationError ---

type gradeRequest struct {
	Grade int `validate:"required,min=1,max=5"`
}

func TestWriteValidationError_FieldMap(t *testing.T) {
	rec := httptest.NewRecorder()

	err := validator.Validate(gradeRequest{Grade: 9})
	require.Error(t, err)

	WriteValidationError(rec, err)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decodeError(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", errResp.Code)
	assert.Contains(t, errResp.Fields, "Grade")
}

func TestWriteValidationError_PlainError(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteValidationError(rec, errors.New("malformed body"))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	errResp := decodeError(t, rec)
	assert.Equal(t, "INVALID_INPUT", errResp.Code)
	assert.Equal(t, "malformed body", errResp.Message)
}
