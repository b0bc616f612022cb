// Package ledger owns the append-only record of administered doses and the
// prescriptions they are logged against. It stores and retrieves; safety
// policy lives in the safety package.
package ledger

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// Prescription is the current standard dose for a (patient, medication)
// pair. A new prescription for the same pair replaces the prior one; there
// is no prescription history.
type Prescription struct {
	PatientHandle string    `json:"patient_handle"`
	Medication    string    `json:"medication"`
	DoseAmount    string    `json:"dose_amount"`
	PrescribedBy  string    `json:"prescribed_by"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// DoseRecord is one administration event. Records are immutable once
// written; LoggedBy may differ from PatientHandle when a clinician or carer
// logs on the patient's behalf.
type DoseRecord struct {
	ID            uuid.UUID `json:"id"`
	PatientHandle string    `json:"patient_handle"`
	Medication    string    `json:"medication"`
	DoseAmount    string    `json:"dose_amount"`
	LoggedBy      string    `json:"logged_by"`
	TakenAt       time.Time `json:"taken_at"`
}

// Amount is the structured form of a dose-amount string, offered at the API
// boundary as a migration path away from free text.
type Amount struct {
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// ParseDoseAmount extracts the leading numeric portion of a free-text dose
// string: digits and at most one decimal point, with surrounding whitespace
// and unit suffixes ignored. Strings with no numeric prefix contribute 0.0.
// This lenient-by-contract parse never returns an error; callers log
// unparseable input as a warning rather than rejecting it.
func ParseDoseAmount(s string) float64 {
	return ParseAmount(s).Quantity
}

// ParseAmount splits a dose string into its numeric prefix and the
// remainder as the unit (e.g. "2.5mg" -> {2.5, "mg"}).
func ParseAmount(s string) Amount {
	s = strings.TrimSpace(s)

	i := 0
	sawDot := false
	for i < len(s) {
		c := s[i]
		if c >= '0' && c <= '9' {
			i++
			continue
		}
		if c == '.' && !sawDot {
			sawDot = true
			i++
			continue
		}
		break
	}

	prefix := strings.TrimSuffix(s[:i], ".")
	unit := strings.TrimLeftFunc(s[i:], unicode.IsSpace)

	qty, err := strconv.ParseFloat(prefix, 64)
	if err != nil {
		return Amount{Quantity: 0, Unit: unit}
	}
	return Amount{Quantity: qty, Unit: unit}
}
