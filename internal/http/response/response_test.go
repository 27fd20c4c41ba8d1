package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/EL-KENDEH-TEAM/EK-SMS/internal/common"
)

func TestError_StatusMapping(t *testing.T) {
	cases := []struct {
		code common.Code
		want int
	}{
		{common.CodeValidation, http.StatusBadRequest},
		{common.CodeInvalidToken, http.StatusBadRequest},
		{common.CodeTokenExpired, http.StatusBadRequest},
		{common.CodeUnauthorized, http.StatusUnauthorized},
		{common.CodeForbidden, http.StatusForbidden},
		{common.CodeInvalidEmail, http.StatusForbidden},
		{common.CodeNotFound, http.StatusNotFound},
		{common.CodeDuplicateApplication, http.StatusConflict},
		{common.CodeTokenAlreadyUsed, http.StatusConflict},
		{common.CodeInvalidApplicationState, http.StatusConflict},
		{common.CodeAlreadyVerified, http.StatusConflict},
		{common.CodeCannotReview, http.StatusConflict},
		{common.CodeCannotDecide, http.StatusConflict},
		{common.CodeRateLimited, http.StatusTooManyRequests},
		{common.CodeProvisioningFailed, http.StatusInternalServerError},
		{common.CodeServiceUnavailable, http.StatusServiceUnavailable},
		{common.CodeInternal, http.StatusInternalServerError},
	}
	for _, c := range cases {
		rec := httptest.NewRecorder()
		Error(rec, common.NewError(c.code, "boom", nil))
		if rec.Code != c.want {
			t.Errorf("code %s: expected status %d, got %d", c.code, c.want, rec.Code)
		}
	}
}

func TestError_EnvelopeAndInternalMasking(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, common.NewError(common.CodeValidation, "school.name is required", nil))

	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %v", err)
	}
	if body.Error != string(common.CodeValidation) {
		t.Fatalf("unexpected error code %q", body.Error)
	}
	if body.Message != "school.name is required" {
		t.Fatalf("expected message passthrough, got %q", body.Message)
	}

	rec = httptest.NewRecorder()
	Error(rec, common.NewError(common.CodeInternal, "pq: connection refused", nil))
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("expected JSON body, got %v", err)
	}
	if body.Message == "pq: connection refused" {
		t.Fatal("internal details must not leak to clients")
	}
}

func TestError_RetryAfterHeader(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, common.NewRateLimitedError("Too many resend requests.", 120))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "120" {
		t.Fatalf("expected Retry-After 120, got %q", got)
	}
}

func TestError_UncodedErrorBecomesInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, http.ErrBodyNotAllowed)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for uncoded error, got %d", rec.Code)
	}
}

func TestJSON_SetsContentType(t *testing.T) {
	rec := httptest.NewRecorder()
	JSON(rec, http.StatusCreated, map[string]string{"id": "abc"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected application/json, got %q", got)
	}
}
