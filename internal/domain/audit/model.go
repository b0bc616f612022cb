// Package audit keeps an append-only trail of who changed what: dose
// logging, prescription changes, and threshold overrides.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Entry is a single audit-trail record. PatientHandle is empty for events
// that are not about a specific patient (e.g. account registration).
type Entry struct {
	ID            uuid.UUID `json:"id"`
	Actor         string    `json:"actor"`
	PatientHandle string    `json:"patient_handle,omitempty"`
	Action        string    `json:"action"`
	Details       string    `json:"details,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
}
