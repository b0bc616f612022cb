package safety

import (
	"context"
	"fmt"
	"time"
)

// Ledger is the slice of the dose ledger the evaluator reads. Implemented
// by ledger.Service.
type Ledger interface {
	LastDoseTime(ctx context.Context, patientHandle, medication string) (time.Time, bool, error)
	CumulativeAmount(ctx context.Context, patientHandle, medication string, windowStart time.Time) (float64, error)
}

// Recorder receives audit events for threshold changes. Best-effort.
type Recorder interface {
	Record(ctx context.Context, actor, patientHandle, action, details string)
}

// Evaluator is stateless decision logic over ledger reads. The clock is
// injected so interval and cap math is testable against a fixed "now".
// Timestamps are compared at minute resolution, matching the original
// minute-granular record format; sub-minute differences never change a
// decision.
type Evaluator struct {
	ledger     Ledger
	thresholds ThresholdRepository
	audit      Recorder
	defaultCap float64
	clock      func() time.Time
}

func NewEvaluator(ledger Ledger, thresholds ThresholdRepository, audit Recorder, defaultCap float64) *Evaluator {
	if defaultCap <= 0 {
		defaultCap = 100.0
	}
	return &Evaluator{
		ledger:     ledger,
		thresholds: thresholds,
		audit:      audit,
		defaultCap: defaultCap,
		clock:      time.Now,
	}
}

func (e *Evaluator) now() time.Time {
	return e.clock().UTC().Truncate(time.Minute)
}

// RollingTotal is the sum of parsed dose amounts for the medication in the
// trailing 24-hour window.
func (e *Evaluator) RollingTotal(ctx context.Context, patientHandle, medication string) (float64, error) {
	windowStart := e.now().Add(-24 * time.Hour)
	return e.ledger.CumulativeAmount(ctx, patientHandle, medication, windowStart)
}

// EffectiveCap resolves the cap in precedence order: patient-specific
// override, then the built-in guideline ceiling, then the default.
func (e *Evaluator) EffectiveCap(ctx context.Context, patientHandle, medication string) (float64, error) {
	t, err := e.thresholds.Get(ctx, patientHandle, medication)
	if err != nil {
		return 0, err
	}
	if t != nil {
		return t.Max24h, nil
	}
	if cap, ok := GuidelineCap(medication); ok {
		return cap, nil
	}
	return e.defaultCap, nil
}

// IsOverCap reports whether the rolling total has reached the effective
// cap. Reaching the cap exactly blocks further logging.
func (e *Evaluator) IsOverCap(ctx context.Context, patientHandle, medication string) (bool, error) {
	total, err := e.RollingTotal(ctx, patientHandle, medication)
	if err != nil {
		return false, err
	}
	cap, err := e.EffectiveCap(ctx, patientHandle, medication)
	if err != nil {
		return false, err
	}
	return total >= cap, nil
}

// HoursSinceLastDose returns the hours elapsed since the most recent dose,
// at minute resolution. The bool is false when the patient has no history
// for the medication.
func (e *Evaluator) HoursSinceLastDose(ctx context.Context, patientHandle, medication string) (float64, bool, error) {
	last, found, err := e.ledger.LastDoseTime(ctx, patientHandle, medication)
	if err != nil || !found {
		return 0, false, err
	}
	elapsed := e.now().Sub(last.UTC().Truncate(time.Minute))
	return elapsed.Hours(), true, nil
}

// IsDue reports whether the minimum re-dosing interval has elapsed.
// Advisory only: it never blocks a write. Medications without a listed
// interval, and patients with no dose history, are never due.
func (e *Evaluator) IsDue(ctx context.Context, patientHandle, medication string) (bool, error) {
	interval, ok := MinInterval(medication)
	if !ok {
		return false, nil
	}
	hours, found, err := e.HoursSinceLastDose(ctx, patientHandle, medication)
	if err != nil || !found {
		return false, err
	}
	return hours >= interval.Hours(), nil
}

// CanLog reports whether another dose may be logged right now. Enforcement
// is the caller's responsibility: the evaluator never touches the ledger.
func (e *Evaluator) CanLog(ctx context.Context, patientHandle, medication string) (bool, error) {
	over, err := e.IsOverCap(ctx, patientHandle, medication)
	if err != nil {
		return false, err
	}
	return !over, nil
}

// Status assembles the full safety picture for display. Recomputed on every
// call; nothing is persisted.
func (e *Evaluator) Status(ctx context.Context, patientHandle, medication string) (*Status, error) {
	total, err := e.RollingTotal(ctx, patientHandle, medication)
	if err != nil {
		return nil, err
	}
	cap, err := e.EffectiveCap(ctx, patientHandle, medication)
	if err != nil {
		return nil, err
	}

	st := &Status{
		Medication:   medication,
		RollingTotal: total,
		Cap:          cap,
		IsOverCap:    total >= cap,
	}

	hours, found, err := e.HoursSinceLastDose(ctx, patientHandle, medication)
	if err != nil {
		return nil, err
	}
	if found {
		st.HoursSinceLastDose = &hours
		if interval, ok := MinInterval(medication); ok {
			st.IsDue = hours >= interval.Hours()
		}
	}
	return st, nil
}

// SetThreshold records a patient-specific cap override. A cap above the
// built-in guideline ceiling is rejected with ErrOverrideRequired unless
// the acknowledgment flag is set; nothing is written on rejection.
func (e *Evaluator) SetThreshold(ctx context.Context, actor, patientHandle, medication string, newCap float64, overrideAcknowledged bool) (*Threshold, error) {
	if newCap <= 0 {
		return nil, fmt.Errorf("cap must be positive")
	}
	if guideline, ok := GuidelineCap(medication); ok && newCap > guideline && !overrideAcknowledged {
		return nil, ErrOverrideRequired
	}

	t := &Threshold{
		PatientHandle: patientHandle,
		Medication:    medication,
		Max24h:        newCap,
		SetBy:         actor,
	}
	if err := e.thresholds.Upsert(ctx, t); err != nil {
		return nil, err
	}
	if e.audit != nil {
		e.audit.Record(ctx, actor, patientHandle, "set_threshold",
			fmt.Sprintf("%s max_24h=%g acknowledged=%t", medication, newCap, overrideAcknowledged))
	}
	return t, nil
}
