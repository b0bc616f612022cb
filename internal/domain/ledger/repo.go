package ledger

import (
	"context"
	"time"
)

type PrescriptionRepository interface {
	// Upsert replaces any existing prescription for the (patient,
	// medication) pair.
	Upsert(ctx context.Context, p *Prescription) error
	ListByPatient(ctx context.Context, patientHandle string) ([]*Prescription, error)
	Get(ctx context.Context, patientHandle, medication string) (*Prescription, error)
}

type DoseRepository interface {
	// Append writes a new immutable record. There is no update or delete.
	Append(ctx context.Context, d *DoseRecord) error
	// History returns a patient's records ordered by taken_at descending.
	// limit <= 0 fetches the full history.
	History(ctx context.Context, patientHandle string, limit int) ([]*DoseRecord, error)
	// LastDoseTime reports the most recent taken_at for the patient,
	// filtered to one medication when medication is non-empty. The bool is
	// false when the patient has no matching records.
	LastDoseTime(ctx context.Context, patientHandle, medication string) (time.Time, bool, error)
	// CumulativeAmount sums the parsed numeric portion of every matching
	// dose recorded at or after windowStart.
	CumulativeAmount(ctx context.Context, patientHandle, medication string, windowStart time.Time) (float64, error)
}
