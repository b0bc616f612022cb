package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPEmailSender posts email payloads to a relay endpoint (an SMTP
// gateway exposed over HTTP).
type HTTPEmailSender struct {
	endpoint string
	client   *http.Client
}

func NewHTTPEmailSender(endpoint string) *HTTPEmailSender {
	return &HTTPEmailSender{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPEmailSender) SendEmail(ctx context.Context, to, subject, body string) error {
	return postJSON(ctx, s.client, s.endpoint, map[string]string{
		"to":      to,
		"subject": subject,
		"body":    body,
	})
}

// HTTPSMSSender posts SMS payloads to a relay endpoint.
type HTTPSMSSender struct {
	endpoint string
	client   *http.Client
}

func NewHTTPSMSSender(endpoint string) *HTTPSMSSender {
	return &HTTPSMSSender{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *HTTPSMSSender) SendSMS(ctx context.Context, to, body string) error {
	return postJSON(ctx, s.client, s.endpoint, map[string]string{
		"to":   to,
		"body": body,
	})
}

func postJSON(ctx context.Context, client *http.Client, endpoint string, payload map[string]string) error {
	buf, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("relay returned status %d", resp.StatusCode)
	}
	return nil
}
