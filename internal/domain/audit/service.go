package audit

import (
	"context"

	"github.com/rs/zerolog"
)

type Service struct {
	entries EntryRepository
	logger  zerolog.Logger
}

func NewService(entries EntryRepository, logger zerolog.Logger) *Service {
	return &Service{entries: entries, logger: logger}
}

// Record appends an audit entry. Recording is best-effort: a storage failure
// is logged and swallowed so it never fails the operation being audited.
func (s *Service) Record(ctx context.Context, actor, patientHandle, action, details string) {
	e := &Entry{
		Actor:         actor,
		PatientHandle: patientHandle,
		Action:        action,
		Details:       details,
	}
	if err := s.entries.Create(ctx, e); err != nil {
		s.logger.Warn().
			Err(err).
			Str("actor", actor).
			Str("patient", patientHandle).
			Str("action", action).
			Msg("audit entry dropped")
	}
}

// ListByPatient returns the audit trail for a patient, most recent first.
func (s *Service) ListByPatient(ctx context.Context, patientHandle string, limit, offset int) ([]*Entry, int, error) {
	return s.entries.ListByPatient(ctx, patientHandle, limit, offset)
}
