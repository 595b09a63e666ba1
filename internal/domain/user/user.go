// Package user models accounts, credentials and profile rules.
package user

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/threadsclone/backend/internal/domain"
	"github.com/threadsclone/backend/internal/errors"
)

const (
	MinPasswordLength = 6
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MaxFullNameLength = 50
	MaxBioLength      = 160

	// ResetTokenTTL is how long a password reset link stays valid.
	ResetTokenTTL = time.Hour
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// User is an account record.
type User struct {
	ID                   string
	Email                string
	Username             string
	PasswordHash         string
	FullName             string
	Bio                  string
	Avatar               string
	IsVerified           bool
	VerificationToken    string
	ResetPasswordToken   string
	ResetPasswordExpires *time.Time
	LastActive           time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// Registration is the register mutation input.
type Registration struct {
	Email    string
	Username string
	Password string
	FullName string
	Bio      string
	Avatar   string
}

// ProfileUpdate carries the optional fields of updateProfile.
type ProfileUpdate struct {
	Email    *string
	Username *string
	FullName *string
	Bio      *string
	Avatar   *string
}

// Normalize trims whitespace and lowercases the email.
func (r Registration) Normalize() Registration {
	r.Email = NormalizeEmail(r.Email)
	r.Username = strings.TrimSpace(r.Username)
	r.FullName = strings.TrimSpace(r.FullName)
	r.Bio = strings.TrimSpace(r.Bio)
	r.Avatar = strings.TrimSpace(r.Avatar)
	return r
}

// NormalizeEmail is applied to every email before storage or lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateRegistration checks a normalized registration.
func ValidateRegistration(r Registration) error {
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if err := ValidateUsername(r.Username); err != nil {
		return err
	}
	if err := ValidatePassword(r.Password); err != nil {
		return err
	}
	if r.FullName == "" {
		return errors.Validation("Full name is required").WithDetails("field", "fullName")
	}
	if utf8.RuneCountInString(r.FullName) > MaxFullNameLength {
		return errors.Validation(fmt.Sprintf("Full name must be at most %d characters", MaxFullNameLength)).WithDetails("field", "fullName")
	}
	if utf8.RuneCountInString(r.Bio) > MaxBioLength {
		return errors.Validation(fmt.Sprintf("Bio must be at most %d characters", MaxBioLength)).WithDetails("field", "bio")
	}
	return nil
}

// ValidateProfile checks the fields present in an update.
func ValidateProfile(p ProfileUpdate) error {
	if p.Email != nil {
		if err := ValidateEmail(NormalizeEmail(*p.Email)); err != nil {
			return err
		}
	}
	if p.Username != nil {
		if err := ValidateUsername(strings.TrimSpace(*p.Username)); err != nil {
			return err
		}
	}
	if p.FullName != nil {
		name := strings.TrimSpace(*p.FullName)
		if name == "" || utf8.RuneCountInString(name) > MaxFullNameLength {
			return errors.Validation(fmt.Sprintf("Full name must be 1-%d characters", MaxFullNameLength)).WithDetails("field", "fullName")
		}
	}
	if p.Bio != nil && utf8.RuneCountInString(strings.TrimSpace(*p.Bio)) > MaxBioLength {
		return errors.Validation(fmt.Sprintf("Bio must be at most %d characters", MaxBioLength)).WithDetails("field", "bio")
	}
	return nil
}

// ValidateEmail checks email syntax.
func ValidateEmail(email string) error {
	if email == "" {
		return errors.Validation("Email is required").WithDetails("field", "email")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email, ".") {
		return errors.Validation("Invalid email address").WithDetails("field", "email")
	}
	return nil
}

// ValidateUsername checks length and charset.
func ValidateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < MinUsernameLength || n > MaxUsernameLength {
		return errors.Validation(fmt.Sprintf("Username must be %d-%d characters", MinUsernameLength, MaxUsernameLength)).WithDetails("field", "username")
	}
	if !usernamePattern.MatchString(username) {
		return errors.Validation("Username may only contain letters, numbers and underscores").WithDetails("field", "username")
	}
	return nil
}

// ValidatePassword enforces the minimum length.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.Validation(fmt.Sprintf("Password must be at least %d characters", MinPasswordLength)).WithDetails("field", "password")
	}
	return nil
}

// HashPassword returns a bcrypt hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// NewSecretToken returns 32 random bytes hex encoded, used for verification
// and reset links.
func NewSecretToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// New builds a record from a normalized registration.
func New(r Registration, passwordHash, verificationToken string, now time.Time) User {
	return User{
		Email:             r.Email,
		Username:          r.Username,
		PasswordHash:      passwordHash,
		FullName:          r.FullName,
		Bio:               r.Bio,
		Avatar:            r.Avatar,
		VerificationToken: verificationToken,
		LastActive:        now,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// ApplyProfile copies the set fields of p onto u.
func ApplyProfile(u User, p ProfileUpdate, now time.Time) (User, domain.Intent) {
	changed := false
	set := func(dst *string, src *string, norm func(string) string) {
		if src == nil {
			return
		}
		v := norm(*src)
		if v != *dst {
			*dst = v
			changed = true
		}
	}
	set(&u.Email, p.Email, NormalizeEmail)
	set(&u.Username, p.Username, strings.TrimSpace)
	set(&u.FullName, p.FullName, strings.TrimSpace)
	set(&u.Bio, p.Bio, strings.TrimSpace)
	set(&u.Avatar, p.Avatar, strings.TrimSpace)

	if !changed {
		return u, domain.NoChange
	}
	u.UpdatedAt = now
	return u, domain.Update
}

// MarkVerified consumes the verification token.
func MarkVerified(u User, now time.Time) (User, domain.Intent) {
	if u.IsVerified && u.VerificationToken == "" {
		return u, domain.NoChange
	}
	u.IsVerified = true
	u.VerificationToken = ""
	u.UpdatedAt = now
	return u, domain.Update
}

// IssueReset stores a reset token valid for ResetTokenTTL.
func IssueReset(u User, token string, now time.Time) (User, domain.Intent) {
	expires := now.Add(ResetTokenTTL)
	u.ResetPasswordToken = token
	u.ResetPasswordExpires = &expires
	u.UpdatedAt = now
	return u, domain.Update
}

// ResetValid reports whether token is the user's unexpired reset token.
func ResetValid(u User, token string, now time.Time) bool {
	return token != "" &&
		u.ResetPasswordToken == token &&
		u.ResetPasswordExpires != nil &&
		now.Before(*u.ResetPasswordExpires)
}

// CompleteReset installs the new hash and clears the token.
func CompleteReset(u User, passwordHash string, now time.Time) (User, domain.Intent) {
	u.PasswordHash = passwordHash
	u.ResetPasswordToken = ""
	u.ResetPasswordExpires = nil
	u.UpdatedAt = now
	return u, domain.Update
}

// Touch records activity at login.
func Touch(u User, now time.Time) (User, domain.Intent) {
	u.LastActive = now
	return u, domain.Update
}

// Redact strips credentials and one-time tokens before a record leaves the
// service in an event payload.
func Redact(u User) User {
	u.PasswordHash = ""
	u.VerificationToken = ""
	u.ResetPasswordToken = ""
	u.ResetPasswordExpires = nil
	return u
}
