package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Recorder receives audit events. Recording is best-effort and must not
// fail the operation being audited.
type Recorder interface {
	Record(ctx context.Context, actor, patientHandle, action, details string)
}

type Service struct {
	prescriptions PrescriptionRepository
	doses         DoseRepository
	audit         Recorder
	logger        zerolog.Logger
}

func NewService(prescriptions PrescriptionRepository, doses DoseRepository, audit Recorder, logger zerolog.Logger) *Service {
	return &Service{prescriptions: prescriptions, doses: doses, audit: audit, logger: logger}
}

// UpsertPrescription replaces the prescription for (patient, medication).
// Calling it twice with the same pair leaves exactly one row.
func (s *Service) UpsertPrescription(ctx context.Context, p *Prescription) error {
	if p.PatientHandle == "" || p.Medication == "" {
		return fmt.Errorf("patient handle and medication are required")
	}
	if err := s.prescriptions.Upsert(ctx, p); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.Record(ctx, p.PrescribedBy, p.PatientHandle, "upsert_prescription",
			fmt.Sprintf("%s %s", p.Medication, p.DoseAmount))
	}
	return nil
}

// ListPrescriptions returns the patient's current prescriptions.
func (s *Service) ListPrescriptions(ctx context.Context, patientHandle string) ([]*Prescription, error) {
	return s.prescriptions.ListByPatient(ctx, patientHandle)
}

// LogDose appends an administration record. The caller is responsible for
// consulting the safety evaluator first; this method only stores. A dose
// string with no parseable numeric prefix is still stored (it contributes
// zero to rolling totals) and logged as a warning.
func (s *Service) LogDose(ctx context.Context, d *DoseRecord) error {
	if d.PatientHandle == "" || d.Medication == "" {
		return fmt.Errorf("patient handle and medication are required")
	}
	if d.LoggedBy == "" {
		return fmt.Errorf("logged_by is required")
	}

	if ParseDoseAmount(d.DoseAmount) == 0 {
		s.logger.Warn().
			Str("patient", d.PatientHandle).
			Str("medication", d.Medication).
			Str("dose_amount", d.DoseAmount).
			Msg("dose amount has no parseable numeric prefix, contributes zero to totals")
	}

	if err := s.doses.Append(ctx, d); err != nil {
		return err
	}
	if s.audit != nil {
		s.audit.Record(ctx, d.LoggedBy, d.PatientHandle, "log_dose",
			fmt.Sprintf("%s %s", d.Medication, d.DoseAmount))
	}
	return nil
}

// History returns the patient's dose records, most recent first. limit <= 0
// returns the full history; per-patient volumes are small enough that full
// materialization is the documented default.
func (s *Service) History(ctx context.Context, patientHandle string, limit int) ([]*DoseRecord, error) {
	return s.doses.History(ctx, patientHandle, limit)
}

// LastDoseTime reports the most recent administration for the patient,
// optionally filtered to one medication ("" means any).
func (s *Service) LastDoseTime(ctx context.Context, patientHandle, medication string) (time.Time, bool, error) {
	return s.doses.LastDoseTime(ctx, patientHandle, medication)
}

// CumulativeAmount sums parsed dose amounts recorded at or after
// windowStart. The safety evaluator uses this for rolling 24h totals.
func (s *Service) CumulativeAmount(ctx context.Context, patientHandle, medication string, windowStart time.Time) (float64, error) {
	return s.doses.CumulativeAmount(ctx, patientHandle, medication, windowStart)
}
