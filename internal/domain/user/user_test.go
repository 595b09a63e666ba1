package user

import (
	"strings"
	"testing"
	"time"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/errors"
)

func validRegistration() Registration {
	return Registration{
		Email:    " Alice@Example.com ",
		Username: "alice_1",
		Password: "secret1",
		FullName: "Alice Liddell",
	}.Normalize()
}

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Registration)
		field  string
	}{
		{"valid", func(*Registration) {}, ""},
		{"bad email", func(r *Registration) { r.Email = "not-an-email" }, "email"},
		{"short username", func(r *Registration) { r.Username = "ab" }, "username"},
		{"username charset", func(r *Registration) { r.Username = "alice!" }, "username"},
		{"short password", func(r *Registration) { r.Password = "12345" }, "password"},
		{"missing name", func(r *Registration) { r.FullName = "" }, "fullName"},
		{"long bio", func(r *Registration) { r.Bio = strings.Repeat("x", MaxBioLength+1) }, "bio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRegistration()
			tt.mutate(&r)
			err := ValidateRegistration(r)
			if tt.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			se := errors.GetServiceError(err)
			if se == nil || se.Code != errors.CodeValidation {
				t.Fatalf("error = %v, want VALIDATION_ERROR", err)
			}
			if se.Details["field"] != tt.field {
				t.Errorf("field = %v, want %s", se.Details["field"], tt.field)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	r := validRegistration()
	if r.Email != "alice@example.com" {
		t.Errorf("Email = %q", r.Email)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !CheckPassword(hash, "secret1") {
		t.Error("CheckPassword rejected the right password")
	}
	if CheckPassword(hash, "secret2") {
		t.Error("CheckPassword accepted the wrong password")
	}
}

func TestApplyProfile(t *testing.T) {
	now := time.Now()
	u := New(validRegistration(), "hash", "tok", now.Add(-time.Hour))

	same := u.FullName
	if _, intent := ApplyProfile(u, ProfileUpdate{FullName: &same}, now); intent != domain.NoChange {
		t.Errorf("unchanged profile intent = %v, want none", intent)
	}

	bio := "  hello  "
	updated, intent := ApplyProfile(u, ProfileUpdate{Bio: &bio}, now)
	if intent != domain.Update {
		t.Fatalf("intent = %v, want update", intent)
	}
	if updated.Bio != "hello" || !updated.UpdatedAt.Equal(now) {
		t.Errorf("updated = %+v", updated)
	}
	if u.Bio != "" {
		t.Error("ApplyProfile mutated its input")
	}
}

func TestResetFlow(t *testing.T) {
	now := time.Now()
	u := New(validRegistration(), "old", "", now)

	u, _ = IssueReset(u, "reset-token", now)
	if !ResetValid(u, "reset-token", now.Add(30*time.Minute)) {
		t.Error("token should be valid within the hour")
	}
	if ResetValid(u, "reset-token", now.Add(2*time.Hour)) {
		t.Error("token should expire after an hour")
	}
	if ResetValid(u, "other", now) {
		t.Error("wrong token accepted")
	}

	u, intent := CompleteReset(u, "new", now)
	if intent != domain.Update || u.PasswordHash != "new" || u.ResetPasswordToken != "" || u.ResetPasswordExpires != nil {
		t.Errorf("CompleteReset = %+v, %v", u, intent)
	}
}

func TestMarkVerified(t *testing.T) {
	now := time.Now()
	u := New(validRegistration(), "h", "verify-me", now)

	u, intent := MarkVerified(u, now)
	if intent != domain.Update || !u.IsVerified || u.VerificationToken != "" {
		t.Fatalf("MarkVerified = %+v, %v", u, intent)
	}
	if _, intent := MarkVerified(u, now); intent != domain.NoChange {
		t.Errorf("second MarkVerified intent = %v, want none", intent)
	}
}

func TestNewSecretToken(t *testing.T) {
	a, err := NewSecretToken()
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewSecretToken()
	if len(a) != 64 || a == b {
		t.Errorf("tokens %q %q", a, b)
	}
}

func TestRedact(t *testing.T) {
	now := time.Now()
	u := New(validRegistration(), "hash", "verify-me", now)
	u, _ = IssueReset(u, "reset", now)

	r := Redact(u)
	if r.PasswordHash != "" || r.VerificationToken != "" || r.ResetPasswordToken != "" || r.ResetPasswordExpires != nil {
		t.Errorf("Redact left secrets: %+v", r)
	}
	if r.Username != u.Username || r.Email != u.Email {
		t.Errorf("Redact dropped profile fields: %+v", r)
	}
}
