package identity

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medlog/medlog/internal/platform/auth"
)

func testJWTConfig() auth.JWTConfig {
	return auth.JWTConfig{Issuer: "medlog-test", SigningKey: []byte("test-signing-key")}
}

func newTestHandler() *Handler {
	svc, _, _ := newTestService()
	return NewHandler(svc, testJWTConfig())
}

func postJSON(t *testing.T, h echo.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestRegisterHandler(t *testing.T) {
	h := newTestHandler()

	rec := postJSON(t, h.Register, "/api/v1/auth/register",
		`{"handle":"alice","password":"longenough","role":"Patient"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var u User
	if err := json.Unmarshal(rec.Body.Bytes(), &u); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if u.Handle != "alice" {
		t.Errorf("handle = %q", u.Handle)
	}
	if strings.Contains(rec.Body.String(), "credential_hash") {
		t.Error("response leaks credential hash")
	}
}

func TestRegisterHandlerDuplicate(t *testing.T) {
	h := newTestHandler()
	body := `{"handle":"alice","password":"longenough","role":"Patient"}`
	postJSON(t, h.Register, "/api/v1/auth/register", body)
	rec := postJSON(t, h.Register, "/api/v1/auth/register", body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestRegisterHandlerBadAccessCode(t *testing.T) {
	h := newTestHandler()
	rec := postJSON(t, h.Register, "/api/v1/auth/register",
		`{"handle":"dr-jones","password":"longenough","role":"Clinician","access_code":"nope"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestLoginHandler(t *testing.T) {
	h := newTestHandler()
	postJSON(t, h.Register, "/api/v1/auth/register",
		`{"handle":"alice","password":"longenough","role":"Patient"}`)

	rec := postJSON(t, h.Login, "/api/v1/auth/login",
		`{"handle":"alice","password":"longenough"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp TokenResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("empty token")
	}
	if resp.Role != auth.RolePatient {
		t.Errorf("role = %q", resp.Role)
	}
}

func TestLoginHandlerWrongPassword(t *testing.T) {
	h := newTestHandler()
	postJSON(t, h.Register, "/api/v1/auth/register",
		`{"handle":"alice","password":"longenough","role":"Patient"}`)

	rec := postJSON(t, h.Login, "/api/v1/auth/login",
		`{"handle":"alice","password":"wrong-password"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestListPatientsHandler(t *testing.T) {
	svc, _, _ := newTestService()
	h := NewHandler(svc, testJWTConfig())
	postJSON(t, h.Register, "/api/v1/auth/register",
		`{"handle":"alice","password":"longenough","role":"Patient"}`)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if err := h.ListPatients(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"alice"`) {
		t.Errorf("body = %s", rec.Body.String())
	}
}
