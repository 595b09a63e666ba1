package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/threadsclone/backend/internal/errors"
)

func TestNewCodec_EmptySecret(t *testing.T) {
	_, err := NewCodec("  ", time.Hour)
	if !errors.HasCode(err, errors.CodeConfig) {
		t.Fatalf("NewCodec(empty) error = %v, want CONFIG_ERROR", err)
	}
}

func TestNewCodec_DefaultTTL(t *testing.T) {
	c, err := NewCodec("secret", 0)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	if c.TTL() != DefaultTTL {
		t.Errorf("TTL = %v, want %v", c.TTL(), DefaultTTL)
	}
}

func TestIssueVerify_RoundTrip(t *testing.T) {
	c, _ := NewCodec("secret", time.Hour)

	tok, err := c.Issue("user-42")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	claims, err := c.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.ID != "user-42" {
		t.Errorf("ID = %s, want user-42", claims.ID)
	}
	if claims.ExpiresAt.Sub(claims.IssuedAt) != time.Hour {
		t.Errorf("exp-iat = %v, want 1h", claims.ExpiresAt.Sub(claims.IssuedAt))
	}
}

func TestVerify_Expired(t *testing.T) {
	c, _ := NewCodec("secret", time.Hour)
	issued := time.Now().Add(-2 * time.Hour)
	c.now = func() time.Time { return issued }
	tok, err := c.Issue("user-1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	c.now = time.Now
	_, err = c.Verify(tok)
	if !errors.HasCode(err, errors.CodeExpiredCredential) {
		t.Fatalf("Verify(expired) error = %v, want EXPIRED_CREDENTIAL", err)
	}
}

func TestVerify_Invalid(t *testing.T) {
	c, _ := NewCodec("secret", time.Hour)
	other, _ := NewCodec("other-secret", time.Hour)
	foreign, _ := other.Issue("user-1")

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"id":  "user-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none token: %v", err)
	}

	noID, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id": "user-1",
	}).SignedString([]byte("secret"))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"empty", ""},
		{"wrong secret", foreign},
		{"alg none", none},
		{"missing id", noID},
		{"missing exp", noExp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Verify(tt.token)
			if !errors.HasCode(err, errors.CodeInvalidCredential) {
				t.Errorf("Verify() error = %v, want INVALID_CREDENTIAL", err)
			}
		})
	}
}
