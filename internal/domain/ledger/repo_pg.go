package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medlog/medlog/internal/platform/db"
)

var ErrPrescriptionNotFound = errors.New("prescription not found")

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

// =========== Prescription Repository ===========

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *prescriptionRepoPG) Upsert(ctx context.Context, p *Prescription) error {
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (patient_handle, medication, dose_amount, prescribed_by, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (patient_handle, medication)
		DO UPDATE SET dose_amount = EXCLUDED.dose_amount,
		              prescribed_by = EXCLUDED.prescribed_by,
		              updated_at = NOW()
		RETURNING updated_at`,
		p.PatientHandle, p.Medication, p.DoseAmount, p.PrescribedBy).Scan(&p.UpdatedAt)
}

func (r *prescriptionRepoPG) ListByPatient(ctx context.Context, patientHandle string) ([]*Prescription, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT patient_handle, medication, dose_amount, prescribed_by, updated_at
		FROM prescriptions
		WHERE patient_handle = $1
		ORDER BY medication`, patientHandle)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prescriptions []*Prescription
	for rows.Next() {
		var p Prescription
		if err := rows.Scan(&p.PatientHandle, &p.Medication, &p.DoseAmount, &p.PrescribedBy, &p.UpdatedAt); err != nil {
			return nil, err
		}
		prescriptions = append(prescriptions, &p)
	}
	return prescriptions, rows.Err()
}

func (r *prescriptionRepoPG) Get(ctx context.Context, patientHandle, medication string) (*Prescription, error) {
	var p Prescription
	err := r.conn(ctx).QueryRow(ctx, `
		SELECT patient_handle, medication, dose_amount, prescribed_by, updated_at
		FROM prescriptions
		WHERE patient_handle = $1 AND medication = $2`, patientHandle, medication).
		Scan(&p.PatientHandle, &p.Medication, &p.DoseAmount, &p.PrescribedBy, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrPrescriptionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// =========== Dose Repository ===========

type doseRepoPG struct{ pool *pgxpool.Pool }

func NewDoseRepoPG(pool *pgxpool.Pool) DoseRepository {
	return &doseRepoPG{pool: pool}
}

func (r *doseRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

func (r *doseRepoPG) Append(ctx context.Context, d *DoseRecord) error {
	d.ID = uuid.New()
	if d.TakenAt.IsZero() {
		d.TakenAt = time.Now().UTC()
	}
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO dose_records (id, patient_handle, medication, dose_amount, logged_by, taken_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		d.ID, d.PatientHandle, d.Medication, d.DoseAmount, d.LoggedBy, d.TakenAt)
	return err
}

func (r *doseRepoPG) History(ctx context.Context, patientHandle string, limit int) ([]*DoseRecord, error) {
	q := `
		SELECT id, patient_handle, medication, dose_amount, logged_by, taken_at
		FROM dose_records
		WHERE patient_handle = $1
		ORDER BY taken_at DESC`
	args := []interface{}{patientHandle}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.conn(ctx).Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*DoseRecord
	for rows.Next() {
		var d DoseRecord
		if err := rows.Scan(&d.ID, &d.PatientHandle, &d.Medication, &d.DoseAmount, &d.LoggedBy, &d.TakenAt); err != nil {
			return nil, err
		}
		records = append(records, &d)
	}
	return records, rows.Err()
}

func (r *doseRepoPG) LastDoseTime(ctx context.Context, patientHandle, medication string) (time.Time, bool, error) {
	q := `SELECT MAX(taken_at) FROM dose_records WHERE patient_handle = $1`
	args := []interface{}{patientHandle}
	if medication != "" {
		q += ` AND medication = $2`
		args = append(args, medication)
	}

	var last *time.Time
	if err := r.conn(ctx).QueryRow(ctx, q, args...).Scan(&last); err != nil {
		return time.Time{}, false, err
	}
	if last == nil {
		return time.Time{}, false, nil
	}
	return *last, true, nil
}

// CumulativeAmount fetches matching dose strings and sums their parsed
// numeric portions in Go, so the lenient parsing rule has exactly one
// implementation.
func (r *doseRepoPG) CumulativeAmount(ctx context.Context, patientHandle, medication string, windowStart time.Time) (float64, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT dose_amount
		FROM dose_records
		WHERE patient_handle = $1 AND medication = $2 AND taken_at >= $3`,
		patientHandle, medication, windowStart)
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	var total float64
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return 0, err
		}
		total += ParseDoseAmount(amount)
	}
	return total, rows.Err()
}
