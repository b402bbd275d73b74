package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sakif/streamhub/internal/apperror"
)

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"validation", apperror.ValidationFailed("email", "email is required"), http.StatusBadRequest},
		{"conflict", apperror.Conflict("username or email already exists"), http.StatusConflict},
		{"unauthenticated", apperror.Unauthenticated("invalid access token"), http.StatusUnauthorized},
		{"invalid credential", apperror.InvalidCredential("invalid password"), http.StatusUnauthorized},
		{"not found", apperror.NotFound("user", "u1"), http.StatusNotFound},
		{"upstream", apperror.Upstream("media upload failed", errors.New("boom")), http.StatusInternalServerError},
		{"untyped", errors.New("sql: connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			writeError(rr, tt.err)

			assert.Equal(t, tt.wantStatus, rr.Code)

			var body errorResponse
			assert.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
			assert.Equal(t, tt.wantStatus, body.Status)
			assert.False(t, body.Success)
			assert.NotEmpty(t, body.Message)
			assert.NotNil(t, body.Errors)
		})
	}
}

func TestWriteError_NeverLeaksInternals(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	assert.NotContains(t, rr.Body.String(), "10.0.0.5")
	assert.Contains(t, rr.Body.String(), "An internal error occurred")
}

func TestWriteError_UpstreamMessageIsGeneric(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, apperror.Upstream("uploading avatar", errors.New("secret-bucket denied")))

	assert.NotContains(t, rr.Body.String(), "secret-bucket")
}

func TestWriteData_Envelope(t *testing.T) {
	rr := httptest.NewRecorder()
	writeData(rr, http.StatusCreated, map[string]string{"id": "u1"}, "created")

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var body map[string]any
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	assert.Equal(t, float64(http.StatusCreated), body["status"])
	assert.Equal(t, "created", body["message"])
	assert.Equal(t, "u1", body["data"].(map[string]any)["id"])
}

func TestCheckStruct_FieldMessages(t *testing.T) {
	req := changePasswordRequest{OldPassword: "", NewPassword: ""}
	fields := checkStruct(req)

	assert.Len(t, fields, 2)
	assert.Equal(t, "oldPassword", fields[0].Field)
	assert.Equal(t, "oldPassword is required", fields[0].Message)
}

func TestLoginRequest_IdentifierFallback(t *testing.T) {
	assert.Equal(t, "ada", loginRequest{Identifier: "ada", Username: "x"}.identifier())
	assert.Equal(t, "ada", loginRequest{Username: "ada"}.identifier())
	assert.Equal(t, "ada@x.com", loginRequest{Email: "ada@x.com"}.identifier())
	assert.Equal(t, "", loginRequest{}.identifier())
}

func TestCheckStruct_EmailTag(t *testing.T) {
	req := registerRequest{Username: "ada", Email: "not-an-email", FullName: "Ada", Password: "p@ss"}
	fields := checkStruct(req)

	assert.Len(t, fields, 1)
	assert.Equal(t, "email", fields[0].Field)
	assert.Equal(t, "email must be a valid email address", fields[0].Message)
}
