package http

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFieldError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteFieldError(rec, 400, "bad_request", "must be a valid email address", "email")

	assert.Equal(t, 400, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "bad_request", resp.Error)
	assert.Equal(t, "email", resp.Field)
}

func TestWriteError_OmitsEmptyField(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteUnauthorized(rec, "invalid login or password")

	assert.Equal(t, 401, rec.Code)
	assert.NotContains(t, rec.Body.String(), "field")
}
