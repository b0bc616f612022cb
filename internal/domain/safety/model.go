// Package safety derives block/warn decisions from the dose ledger:
// rolling 24-hour totals against caps, and time-since-last-dose against
// minimum re-dosing intervals. It reads the ledger, never writes it;
// refusing a write when CanLog is false is the caller's contract.
package safety

import (
	"errors"
	"time"
)

// ErrOverrideRequired is returned when a clinician sets a cap above the
// built-in guideline ceiling without the explicit acknowledgment flag.
// Nothing is written.
var ErrOverrideRequired = errors.New("cap exceeds guideline ceiling: override acknowledgment required")

// Threshold is a per-(patient, medication) override of the 24-hour cap.
type Threshold struct {
	PatientHandle string    `json:"patient_handle"`
	Medication    string    `json:"medication"`
	Max24h        float64   `json:"max_24h"`
	SetBy         string    `json:"set_by"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Status is the safety picture for one (patient, medication), recomputed on
// every read. IsOverCap and IsDue are independent axes: a medication can be
// both blocked and due.
type Status struct {
	Medication         string   `json:"medication"`
	RollingTotal       float64  `json:"rolling_total"`
	Cap                float64  `json:"cap"`
	IsOverCap          bool     `json:"is_over_cap"`
	HoursSinceLastDose *float64 `json:"hours_since_last_dose"`
	IsDue              bool     `json:"is_due"`
}

// guidelineCaps are the built-in per-medication 24-hour ceilings. A
// clinician setting a patient cap above these values must acknowledge the
// override explicitly.
var guidelineCaps = map[string]float64{
	"Oxycodone": 40.0,
	"Oxycontin": 80.0,
	"CBD Oil":   5.0,
}

// minIntervals are the minimum safe re-dosing intervals. Medications not
// listed here are never flagged "due".
var minIntervals = map[string]time.Duration{
	"Oxycodone": 4 * time.Hour,
	"Oxycontin": 12 * time.Hour,
}

// GuidelineCap returns the built-in ceiling for a medication, if any.
func GuidelineCap(medication string) (float64, bool) {
	cap, ok := guidelineCaps[medication]
	return cap, ok
}

// MinInterval returns the minimum re-dosing interval for a medication, if
// any.
func MinInterval(medication string) (time.Duration, bool) {
	iv, ok := minIntervals[medication]
	return iv, ok
}
