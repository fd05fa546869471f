package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/scribe/internal/model"
	"github.com/jwalitptl/scribe/internal/repository"
	apperrors "github.com/jwalitptl/scribe/pkg/errors"
	"github.com/jwalitptl/scribe/pkg/metrics"
)

const patientColumns = `id, name, age, gender, date_of_birth, phone, email, address,
	medical_history, allergies, current_medications, blood_type, insurance_number,
	emergency_contact, observations, created_at, updated_at`

type patientRepository struct {
	db      *sqlx.DB
	metrics *metrics.Metrics
}

func NewPatientRepository(db *sqlx.DB, m *metrics.Metrics) repository.PatientRepository {
	return &patientRepository{db: db, metrics: m}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) (err error) {
	defer r.observe("create", time.Now(), &err)

	query := `
		INSERT INTO patients (` + patientColumns + `)
		VALUES (:id, :name, :age, :gender, :date_of_birth, :phone, :email, :address,
			:medical_history, :allergies, :current_medications, :blood_type, :insurance_number,
			:emergency_contact, :observations, :created_at, :updated_at)
	`
	if _, err = r.db.NamedExecContext(ctx, query, patient); err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (_ *model.Patient, err error) {
	defer r.observe("get", time.Now(), &err)

	var patient model.Patient
	err = r.db.GetContext(ctx, &patient, `SELECT `+patientColumns+` FROM patients WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperrors.NotFound("Patient", nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) (err error) {
	defer r.observe("update", time.Now(), &err)

	query := `
		UPDATE patients SET
			name = :name, age = :age, gender = :gender, date_of_birth = :date_of_birth,
			phone = :phone, email = :email, address = :address,
			medical_history = :medical_history, allergies = :allergies,
			current_medications = :current_medications, blood_type = :blood_type,
			insurance_number = :insurance_number, emergency_contact = :emergency_contact,
			observations = :observations, updated_at = :updated_at
		WHERE id = :id
	`
	res, err := r.db.NamedExecContext(ctx, query, patient)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return expectRow(res)
}

func (r *patientRepository) Delete(ctx context.Context, id uuid.UUID) (err error) {
	defer r.observe("delete", time.Now(), &err)

	res, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return expectRow(res)
}

func (r *patientRepository) List(ctx context.Context) (_ []*model.Patient, err error) {
	defer r.observe("list", time.Now(), &err)

	patients := []*model.Patient{}
	if err = r.db.SelectContext(ctx, &patients, `SELECT `+patientColumns+` FROM patients ORDER BY created_at, id`); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *patientRepository) observe(op string, start time.Time, err *error) {
	status := metrics.Status(*err)
	if apperrors.IsCode(*err, apperrors.ErrNotFound) {
		status = "not_found"
	}
	r.metrics.DatabaseOperations.WithLabelValues(op, status).Inc()
	r.metrics.DatabaseLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func expectRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return apperrors.NotFound("Patient", nil)
	}
	return nil
}
