// Package identity manages user accounts and authentication for the
// medication log: patients who log their own doses, and clinicians and
// carers who act on patients' behalf.
package identity

import (
	"errors"
	"time"
)

var (
	ErrDuplicateHandle    = errors.New("handle already taken")
	ErrInvalidCredentials = errors.New("invalid handle or password")
	ErrInvalidRole        = errors.New("invalid role")
	ErrBadAccessCode      = errors.New("invalid clinic access code")
	ErrUserNotFound       = errors.New("user not found")
)

// User is an account in the system. Handle is the primary key; there are
// no numeric user IDs.
type User struct {
	Handle         string    `json:"handle"`
	CredentialHash string    `json:"-"`
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// RegisterRequest is the payload for account creation. AccessCode is
// required for Clinician and Carer roles and ignored for patients.
type RegisterRequest struct {
	Handle     string `json:"handle"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	AccessCode string `json:"access_code,omitempty"`
}

// LoginRequest is the payload for token issuance.
type LoginRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

// TokenResponse carries a signed bearer token back to the client.
type TokenResponse struct {
	Token  string `json:"token"`
	Handle string `json:"handle"`
	Role   string `json:"role"`
}

// Validate checks structural requirements on a registration request.
func (r *RegisterRequest) Validate() error {
	if r.Handle == "" {
		return errors.New("handle is required")
	}
	if len(r.Password) < 8 {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
