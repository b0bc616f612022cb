package ledger

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/medlog/medlog/internal/platform/auth"
)

type mockSafety struct {
	allow bool
	err   error
}

func (m *mockSafety) CanLog(_ context.Context, _, _ string) (bool, error) {
	return m.allow, m.err
}

type mockNotifier struct {
	doseLogged int
	capReached int
}

func (m *mockNotifier) DoseLogged(_ context.Context, _ *DoseRecord) { m.doseLogged++ }
func (m *mockNotifier) CapReached(_ context.Context, _, _ string)   { m.capReached++ }

func doRequest(t *testing.T, h echo.HandlerFunc, method, target, body, asHandle, asRole string, params map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	ctx := req.Context()
	ctx = context.WithValue(ctx, auth.HandleKey, asHandle)
	ctx = context.WithValue(ctx, auth.RoleKey, asRole)
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	names := make([]string, 0, len(params))
	values := make([]string, 0, len(params))
	for k, v := range params {
		names = append(names, k)
		values = append(values, v)
	}
	c.SetParamNames(names...)
	c.SetParamValues(values...)
	if err := h(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}
	return rec
}

func TestLogDoseHandler(t *testing.T) {
	svc, _, doses, _ := newTestService()
	notifier := &mockNotifier{}
	h := NewHandler(svc, &mockSafety{allow: true}, notifier)

	rec := doRequest(t, h.LogDose, http.MethodPost, "/api/v1/patients/alice/doses",
		`{"medication":"Oxycodone","dose_amount":"5ml"}`, "bob", auth.RoleCarer,
		map[string]string{"handle": "alice"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var d DoseRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.PatientHandle != "alice" || d.LoggedBy != "bob" {
		t.Errorf("record = %+v, proxy identity must come from auth context", d)
	}
	if len(doses.records) != 1 {
		t.Errorf("records = %d", len(doses.records))
	}
	if notifier.doseLogged != 1 {
		t.Errorf("doseLogged notifications = %d", notifier.doseLogged)
	}
}

func TestLogDoseHandlerBlocked(t *testing.T) {
	svc, _, doses, _ := newTestService()
	h := NewHandler(svc, &mockSafety{allow: false}, &mockNotifier{})

	rec := doRequest(t, h.LogDose, http.MethodPost, "/api/v1/patients/alice/doses",
		`{"medication":"Oxycodone","dose_amount":"5ml"}`, "alice", auth.RolePatient,
		map[string]string{"handle": "alice"})

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409 when blocked", rec.Code)
	}
	if len(doses.records) != 0 {
		t.Error("blocked request must not write a record")
	}
}

func TestLogDoseHandlerCapReachedNotification(t *testing.T) {
	svc, _, _, _ := newTestService()
	// Allow the write, then report blocked on the post-write re-check.
	safety := &mockSafety{allow: true}
	notifier := &mockNotifier{}
	h := NewHandler(svc, safety, notifier)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/patients/alice/doses",
		strings.NewReader(`{"medication":"Oxycodone","dose_amount":"25ml"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	ctx := context.WithValue(req.Context(), auth.HandleKey, "alice")
	ctx = context.WithValue(ctx, auth.RoleKey, auth.RolePatient)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("handle")
	c.SetParamValues("alice")

	// Flip after the pre-check by wrapping CanLog through a counter.
	flipping := &flipSafety{first: true}
	h.safety = flipping
	if err := h.LogDose(c); err != nil {
		e.HTTPErrorHandler(err, c)
	}

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if notifier.capReached != 1 {
		t.Errorf("capReached notifications = %d, want 1", notifier.capReached)
	}
}

// flipSafety permits the first check and blocks every later one, modelling a
// dose that lands exactly on the cap.
type flipSafety struct {
	first bool
}

func (f *flipSafety) CanLog(_ context.Context, _, _ string) (bool, error) {
	if f.first {
		f.first = false
		return true, nil
	}
	return false, nil
}

func TestUpsertPrescriptionHandler(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc, &mockSafety{allow: true}, nil)

	rec := doRequest(t, h.UpsertPrescription, http.MethodPut,
		"/api/v1/patients/alice/prescriptions/Oxycodone",
		`{"dose_amount":"5ml"}`, "dr-jones", auth.RoleClinician,
		map[string]string{"handle": "alice", "medication": "Oxycodone"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var p Prescription
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if p.PrescribedBy != "dr-jones" {
		t.Errorf("prescribed_by = %q", p.PrescribedBy)
	}
}

func TestListPrescriptionsHandlerEmpty(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc, &mockSafety{allow: true}, nil)

	rec := doRequest(t, h.ListPrescriptions, http.MethodGet,
		"/api/v1/patients/alice/prescriptions", "", "alice", auth.RolePatient,
		map[string]string{"handle": "alice"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want empty JSON array", rec.Body.String())
	}
}

func TestHistoryHandler(t *testing.T) {
	svc, _, _, _ := newTestService()
	h := NewHandler(svc, &mockSafety{allow: true}, nil)

	_ = svc.LogDose(context.Background(), &DoseRecord{PatientHandle: "alice", Medication: "Oxycodone", DoseAmount: "5ml", LoggedBy: "alice"})

	rec := doRequest(t, h.History, http.MethodGet,
		"/api/v1/patients/alice/doses", "", "alice", auth.RolePatient,
		map[string]string{"handle": "alice"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var records []DoseRecord
	if err := json.Unmarshal(rec.Body.Bytes(), &records); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("records = %d", len(records))
	}
}
