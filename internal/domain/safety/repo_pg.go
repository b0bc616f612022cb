package safety

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medlog/medlog/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type thresholdRepoPG struct{ pool *pgxpool.Pool }

func NewThresholdRepoPG(pool *pgxpool.Pool) ThresholdRepository {
	return &thresholdRepoPG{pool: pool}
}

func (r *thresholdRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *thresholdRepoPG) Upsert(ctx context.Context, t *Threshold) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO safety_limits (patient_handle, medication, max_24h, set_by, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (patient_handle, medication)
		DO UPDATE SET max_24h = EXCLUDED.max_24h,
		              set_by = EXCLUDED.set_by,
		              updated_at = NOW()
		RETURNING updated_at`,
		t.PatientHandle, t.Medication, t.Max24h, t.SetBy).Scan(&t.UpdatedAt)
}

func (r *thresholdRepoPG) Get(ctx context.Context, patientHandle, medication string) (*Threshold, error) {
	var t Threshold
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT patient_handle, medication, max_24h, set_by, updated_at
		FROM safety_limits
		WHERE patient_handle = $1 AND medication = $2`, patientHandle, medication).
		Scan(&t.PatientHandle, &t.Medication, &t.Max24h, &t.SetBy, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
