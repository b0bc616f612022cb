package safety

import "context"

type ThresholdRepository interface {
	// Upsert replaces any existing threshold for the (patient, medication)
	// pair.
	Upsert(ctx context.Context, t *Threshold) error
	// Get returns the threshold for the pair, or (nil, nil) when no
	// override is set.
	Get(ctx context.Context, patientHandle, medication string) (*Threshold, error)
}
