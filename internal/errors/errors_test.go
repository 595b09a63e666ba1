package errors

import (
	"fmt"
	"net/http"
	"testing"
)

func TestGetServiceError_Wrapped(t *testing.T) {
	base := NotFound("Post")
	wrapped := fmt.Errorf("load: %w", base)

	se := GetServiceError(wrapped)
	if se == nil {
		t.Fatal("GetServiceError returned nil for wrapped ServiceError")
	}
	if se.Code != CodeNotFound {
		t.Errorf("Code = %s, want %s", se.Code, CodeNotFound)
	}
	if se.Message != "Post not found" {
		t.Errorf("Message = %q", se.Message)
	}
}

func TestGetServiceError_Plain(t *testing.T) {
	if GetServiceError(fmt.Errorf("boom")) != nil {
		t.Error("plain error should not be a ServiceError")
	}
}

func TestIs_MatchesByCode(t *testing.T) {
	if !Is(Forbidden("x"), Forbidden("y")) {
		t.Error("errors with the same code should match")
	}
	if Is(Forbidden("x"), NotFound("y")) {
		t.Error("errors with different codes should not match")
	}
}

func TestWithDetails_DoesNotMutate(t *testing.T) {
	base := Validation("bad")
	withField := base.WithDetails("field", "email")

	if len(base.Details) != 0 {
		t.Error("WithDetails mutated the receiver")
	}
	ext := withField.Extensions()
	if ext["code"] != "VALIDATION_ERROR" || ext["field"] != "email" {
		t.Errorf("Extensions = %v", ext)
	}
}

func TestConstructors_Status(t *testing.T) {
	tests := []struct {
		err    *ServiceError
		status int
	}{
		{Unauthenticated(""), http.StatusUnauthorized},
		{Forbidden(""), http.StatusForbidden},
		{NotFound("Chat"), http.StatusNotFound},
		{Validation("x"), http.StatusBadRequest},
		{RateLimitExceeded(5, "1h"), http.StatusTooManyRequests},
		{Unavailable("x"), http.StatusServiceUnavailable},
		{Internal("x", nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if tt.err.HTTPStatus != tt.status {
			t.Errorf("%s: status = %d, want %d", tt.err.Code, tt.err.HTTPStatus, tt.status)
		}
	}
}

func TestHasCode(t *testing.T) {
	err := fmt.Errorf("verify: %w", ExpiredCredential(nil))
	if !HasCode(err, CodeExpiredCredential) {
		t.Error("HasCode should find wrapped code")
	}
	if HasCode(err, CodeInvalidCredential) {
		t.Error("HasCode matched the wrong code")
	}
}
