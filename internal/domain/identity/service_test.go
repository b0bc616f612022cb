package identity

import (
	"context"
	"errors"
	"sort"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/medlog/medlog/internal/platform/auth"
)

type mockUserRepo struct {
	users map[string]*User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*User)}
}

func (m *mockUserRepo) Create(_ context.Context, u *User) error {
	if _, ok := m.users[u.Handle]; ok {
		return ErrDuplicateHandle
	}
	cp := *u
	m.users[u.Handle] = &cp
	return nil
}

func (m *mockUserRepo) GetByHandle(_ context.Context, handle string) (*User, error) {
	u, ok := m.users[handle]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockUserRepo) ListByRole(_ context.Context, role string, limit, offset int) ([]*User, int, error) {
	var matched []*User
	for _, u := range m.users {
		if u.Role == role {
			matched = append(matched, u)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Handle < matched[j].Handle })
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

type recordedEvent struct {
	Actor   string
	Patient string
	Action  string
	Details string
}

type mockRecorder struct {
	events []recordedEvent
}

func (m *mockRecorder) Record(_ context.Context, actor, patient, action, details string) {
	m.events = append(m.events, recordedEvent{actor, patient, action, details})
}

const clinicCode = "test-clinic-code"

func newTestService() (*Service, *mockUserRepo, *mockRecorder) {
	repo := newMockUserRepo()
	rec := &mockRecorder{}
	return NewService(repo, clinicCode, rec), repo, rec
}

func TestRegisterPatient(t *testing.T) {
	svc, repo, rec := newTestService()

	u, err := svc.Register(context.Background(), &RegisterRequest{
		Handle:   "alice",
		Password: "correct horse",
		Role:     auth.RolePatient,
	})
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if u.Handle != "alice" || u.Role != auth.RolePatient {
		t.Errorf("user = %+v", u)
	}
	if u.CredentialHash == "correct horse" {
		t.Error("password stored in clear")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(repo.users["alice"].CredentialHash), []byte("correct horse")); err != nil {
		t.Errorf("stored hash does not verify: %v", err)
	}
	if len(rec.events) != 1 || rec.events[0].Action != "register" {
		t.Errorf("audit events = %+v", rec.events)
	}
}

func TestRegisterPatientNoAccessCodeNeeded(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Register(context.Background(), &RegisterRequest{
		Handle:   "alice",
		Password: "longenough",
		Role:     auth.RolePatient,
		// no access code
	})
	if err != nil {
		t.Fatalf("patient registration should not need access code: %v", err)
	}
}

func TestRegisterClinicianRequiresAccessCode(t *testing.T) {
	svc, _, _ := newTestService()

	_, err := svc.Register(context.Background(), &RegisterRequest{
		Handle:   "dr-jones",
		Password: "longenough",
		Role:     auth.RoleClinician,
		AccessCode: "wrong",
	})
	if !errors.Is(err, ErrBadAccessCode) {
		t.Fatalf("err = %v, want ErrBadAccessCode", err)
	}

	_, err = svc.Register(context.Background(), &RegisterRequest{
		Handle:     "dr-jones",
		Password:   "longenough",
		Role:       auth.RoleClinician,
		AccessCode: clinicCode,
	})
	if err != nil {
		t.Fatalf("with correct code: %v", err)
	}
}

func TestRegisterCarerRequiresAccessCode(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Register(context.Background(), &RegisterRequest{
		Handle:   "bob",
		Password: "longenough",
		Role:     auth.RoleCarer,
	})
	if !errors.Is(err, ErrBadAccessCode) {
		t.Fatalf("err = %v, want ErrBadAccessCode", err)
	}
}

func TestRegisterRejectsInvalidRole(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Register(context.Background(), &RegisterRequest{
		Handle:   "alice",
		Password: "longenough",
		Role:     "Superuser",
	})
	if !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("err = %v, want ErrInvalidRole", err)
	}
}

func TestRegisterRejectsShortPassword(t *testing.T) {
	svc, _, _ := newTestService()
	_, err := svc.Register(context.Background(), &RegisterRequest{
		Handle:   "alice",
		Password: "short",
		Role:     auth.RolePatient,
	})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestRegisterDuplicateHandle(t *testing.T) {
	svc, _, _ := newTestService()
	req := &RegisterRequest{Handle: "alice", Password: "longenough", Role: auth.RolePatient}
	if _, err := svc.Register(context.Background(), req); err != nil {
		t.Fatalf("first register: %v", err)
	}
	_, err := svc.Register(context.Background(), req)
	if !errors.Is(err, ErrDuplicateHandle) {
		t.Fatalf("err = %v, want ErrDuplicateHandle", err)
	}
}

func TestAuthenticate(t *testing.T) {
	svc, _, _ := newTestService()
	_, _ = svc.Register(context.Background(), &RegisterRequest{
		Handle: "alice", Password: "correct horse", Role: auth.RolePatient,
	})

	u, err := svc.Authenticate(context.Background(), "alice", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if u.Handle != "alice" {
		t.Errorf("handle = %q", u.Handle)
	}

	if _, err := svc.Authenticate(context.Background(), "alice", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password err = %v", err)
	}
	if _, err := svc.Authenticate(context.Background(), "nobody", "x"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown handle err = %v", err)
	}
}

func TestListPatientsOnlyPatients(t *testing.T) {
	svc, _, _ := newTestService()
	_, _ = svc.Register(context.Background(), &RegisterRequest{Handle: "alice", Password: "longenough", Role: auth.RolePatient})
	_, _ = svc.Register(context.Background(), &RegisterRequest{Handle: "zoe", Password: "longenough", Role: auth.RolePatient})
	_, _ = svc.Register(context.Background(), &RegisterRequest{Handle: "dr-jones", Password: "longenough", Role: auth.RoleClinician, AccessCode: clinicCode})

	patients, total, err := svc.ListPatients(context.Background(), 20, 0)
	if err != nil {
		t.Fatalf("ListPatients: %v", err)
	}
	if total != 2 || len(patients) != 2 {
		t.Fatalf("total = %d, len = %d", total, len(patients))
	}
	if patients[0].Handle != "alice" || patients[1].Handle != "zoe" {
		t.Errorf("patients = %v, %v", patients[0].Handle, patients[1].Handle)
	}
}
