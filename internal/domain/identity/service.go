package identity

import (
	"context"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/medlog/medlog/internal/platform/auth"
)

// Recorder receives audit events. Implementations must not fail the calling
// operation; recording is best-effort.
type Recorder interface {
	Record(ctx context.Context, actor, patientHandle, action, details string)
}

type Service struct {
	users      UserRepository
	clinicCode string
	audit      Recorder
}

func NewService(users UserRepository, clinicCode string, audit Recorder) *Service {
	return &Service{users: users, clinicCode: clinicCode, audit: audit}
}

// Register creates a new account. Clinician and Carer signups must present
// the clinic access code; patient signups never need one.
func (s *Service) Register(ctx context.Context, req *RegisterRequest) (*User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if !auth.ValidRole(req.Role) {
		return nil, ErrInvalidRole
	}
	if req.Role == auth.RoleClinician || req.Role == auth.RoleCarer {
		if req.AccessCode != s.clinicCode {
			return nil, ErrBadAccessCode
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{
		Handle:         req.Handle,
		CredentialHash: string(hash),
		Role:           req.Role,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}

	if s.audit != nil {
		s.audit.Record(ctx, u.Handle, "", "register", fmt.Sprintf("role=%s", u.Role))
	}
	return u, nil
}

// Authenticate verifies a handle/password pair. It returns
// ErrInvalidCredentials for both unknown handles and wrong passwords so
// callers cannot probe for account existence.
func (s *Service) Authenticate(ctx context.Context, handle, password string) (*User, error) {
	u, err := s.users.GetByHandle(ctx, handle)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.CredentialHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// GetUser looks up an account by handle.
func (s *Service) GetUser(ctx context.Context, handle string) (*User, error) {
	return s.users.GetByHandle(ctx, handle)
}

// ListPatients returns patient accounts, paged. Clinicians and carers use
// this to pick whose ledger to act on.
func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*User, int, error) {
	return s.users.ListByRole(ctx, auth.RolePatient, limit, offset)
}
