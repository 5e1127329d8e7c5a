// Package users holds the user account model: credentials, email addresses
// and the verification codes mailed out when an address is added.
package users

import (
	"fmt"
	"regexp"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type User struct {
	ID            int64     `json:"id,omitempty"`
	Username      string    `json:"username,omitempty"`
	Email         string    `json:"email,omitempty"`          // Primary email address
	EmailVerified bool      `json:"email_verified,omitempty"` // Whether the primary address was confirmed
	PasswordHash  string    `json:"-"`                        // Never serialize
	Blocked       bool      `json:"blocked,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// Email is an address attached to a user account. ConfirmedAt is nil until
// the owner follows the verification link mailed to it.
type Email struct {
	ID          int64      `json:"id,omitempty"`
	UserID      int64      `json:"user_id,omitempty"`
	Address     string     `json:"address,omitempty"`
	CreatedAt   time.Time  `json:"created_at,omitempty"`
	ConfirmedAt *time.Time `json:"confirmed_at,omitempty"`
}

// Confirmed reports whether the address has been verified.
func (e Email) Confirmed() bool { return e.ConfirmedAt != nil }

// Verification is a single-use code mailed to an address. It is spent the
// first time it is used and ignored after ExpiresAt.
type Verification struct {
	Code      string
	EmailID   int64
	CreatedAt time.Time
	ExpiresAt time.Time
	UsedAt    *time.Time
}

// Usable reports whether the code can still confirm its address at time now.
func (v Verification) Usable(now time.Time) bool {
	return v.UsedAt == nil && !now.After(v.ExpiresAt)
}

// NewVerificationCode returns a fresh unguessable code for a verification
// link.
func NewVerificationCode() string {
	return uuid.NewString()
}

var usernameRe = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,31}$`)

// ValidateUsername checks the username against the registration policy:
// lowercase letters, digits, '.', '_' and '-', starting with a letter or
// digit, 3 to 32 characters.
func ValidateUsername(username string) error {
	if !usernameRe.MatchString(username) {
		return fmt.Errorf("username must be 3-32 lowercase letters, digits, '.', '_' or '-'")
	}
	return nil
}

// ValidatePasswordStrength checks if password meets security requirements:
// - At least 8 characters long
// - Contains uppercase and lowercase letters
// - Contains at least one number
func ValidatePasswordStrength(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters long")
	}

	var (
		hasUpper  bool
		hasLower  bool
		hasNumber bool
	)

	for _, char := range password {
		if unicode.IsUpper(char) {
			hasUpper = true
		} else if unicode.IsLower(char) {
			hasLower = true
		} else if unicode.IsDigit(char) {
			hasNumber = true
		}
	}

	if !hasUpper {
		return fmt.Errorf("password must contain at least one uppercase letter")
	}
	if !hasLower {
		return fmt.Errorf("password must contain at least one lowercase letter")
	}
	if !hasNumber {
		return fmt.Errorf("password must contain at least one number")
	}

	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// CheckPassword checks a candidate password against the user's stored hash.
func (u *User) CheckPassword(password string) bool {
	return CheckPasswordHash(password, u.PasswordHash)
}
