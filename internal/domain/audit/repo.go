package audit

import "context"

type EntryRepository interface {
	Create(ctx context.Context, e *Entry) error
	ListByPatient(ctx context.Context, patientHandle string, limit, offset int) ([]*Entry, int, error)
}
