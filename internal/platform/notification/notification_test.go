package notification

import (
	"context"
	"strings"
	"testing"
)

func TestTemplateRender(t *testing.T) {
	e := NewTemplateEngine()

	subject, body, err := e.Render("dose-logged", map[string]string{
		"patient":    "alice",
		"medication": "Oxycodone",
		"dose":       "5 ml",
		"logged_by":  "bob",
		"time":       "2025-01-02 10:00",
	})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if subject != "Dose recorded for alice" {
		t.Errorf("subject = %q", subject)
	}
	if !strings.Contains(body, "Oxycodone (5 ml)") {
		t.Errorf("body missing medication/dose: %q", body)
	}
	if !strings.Contains(body, "by bob") {
		t.Errorf("body missing logger: %q", body)
	}
}

func TestTemplateRenderUnknown(t *testing.T) {
	e := NewTemplateEngine()
	if _, _, err := e.Render("no-such-template", nil); err == nil {
		t.Fatal("expected error for unknown template")
	}
}

func TestTemplateRenderMissingKeysLeftIntact(t *testing.T) {
	e := NewTemplateEngine()
	_, body, err := e.Render("cap-reached", map[string]string{"patient": "alice"})
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	if !strings.Contains(body, "{{medication}}") {
		t.Errorf("unfilled placeholder should remain: %q", body)
	}
}

func TestManagerSendEmail(t *testing.T) {
	email := &MockEmailSender{}
	sms := &MockSMSSender{}
	m := NewManager(email, sms, NewTemplateEngine())

	n := &Notification{
		Type:      TypeEmail,
		Recipient: "carer@example.com",
		Subject:   "hi",
		Body:      "hello",
	}
	if err := m.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if n.Status != "sent" {
		t.Errorf("status = %q, want sent", n.Status)
	}
	if n.SentAt == nil {
		t.Error("SentAt not set")
	}
	calls := email.Calls()
	if len(calls) != 1 || calls[0].To != "carer@example.com" {
		t.Errorf("unexpected email calls: %+v", calls)
	}
}

func TestManagerSendFailure(t *testing.T) {
	email := &MockEmailSender{ShouldFail: true, FailError: "smtp unavailable"}
	m := NewManager(email, &MockSMSSender{}, NewTemplateEngine())

	n := &Notification{Type: TypeEmail, Recipient: "x@example.com", Body: "b"}
	if err := m.Send(context.Background(), n); err == nil {
		t.Fatal("expected send error")
	}
	if n.Status != "failed" {
		t.Errorf("status = %q, want failed", n.Status)
	}
	if n.Error != "smtp unavailable" {
		t.Errorf("error = %q", n.Error)
	}
}

func TestManagerSendFromTemplate(t *testing.T) {
	email := &MockEmailSender{}
	sms := &MockSMSSender{}
	m := NewManager(email, sms, NewTemplateEngine())

	n, err := m.SendFromTemplate(context.Background(), "cap-reached", map[string]string{
		"patient":    "alice",
		"medication": "Oxycodone",
	}, "+15551234567")
	if err != nil {
		t.Fatalf("SendFromTemplate: %v", err)
	}
	if n.Type != TypeSMS {
		t.Errorf("type = %q, want sms", n.Type)
	}
	calls := sms.Calls()
	if len(calls) != 1 {
		t.Fatalf("sms calls = %d, want 1", len(calls))
	}
	if !strings.Contains(calls[0].Body, "safety cap for Oxycodone") {
		t.Errorf("body = %q", calls[0].Body)
	}
}

func TestManagerRetry(t *testing.T) {
	email := &MockEmailSender{ShouldFail: true, FailError: "down"}
	m := NewManager(email, &MockSMSSender{}, NewTemplateEngine())

	n := &Notification{Type: TypeEmail, Recipient: "x@example.com", Body: "b"}
	_ = m.Send(context.Background(), n)

	email.ShouldFail = false
	if err := m.Retry(context.Background(), n.ID); err != nil {
		t.Fatalf("Retry: %v", err)
	}

	got, err := m.Get(context.Background(), n.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != "sent" {
		t.Errorf("status = %q after retry, want sent", got.Status)
	}
	if got.Error != "" {
		t.Errorf("error = %q, want cleared", got.Error)
	}
}

func TestManagerRetryOnlyFailed(t *testing.T) {
	m := NewManager(&MockEmailSender{}, &MockSMSSender{}, NewTemplateEngine())
	n := &Notification{Type: TypeEmail, Recipient: "x@example.com", Body: "b"}
	_ = m.Send(context.Background(), n)

	if err := m.Retry(context.Background(), n.ID); err == nil {
		t.Fatal("expected error retrying a sent notification")
	}
}

func TestManagerStats(t *testing.T) {
	email := &MockEmailSender{}
	m := NewManager(email, &MockSMSSender{}, NewTemplateEngine())

	_ = m.Send(context.Background(), &Notification{Type: TypeEmail, Recipient: "a", Body: "1"})
	email.ShouldFail = true
	email.FailError = "boom"
	_ = m.Send(context.Background(), &Notification{Type: TypeEmail, Recipient: "b", Body: "2"})

	stats := m.Stats(context.Background())
	if stats["sent"] != 1 || stats["failed"] != 1 {
		t.Errorf("stats = %v", stats)
	}
}
