package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/stitchworks/garment-docs-api/internal/models"
)

// InspectionRepository provides database access for QC inspections.
type InspectionRepository struct {
	db *sqlx.DB
}

// NewInspectionRepository creates a new instance of InspectionRepository.
func NewInspectionRepository(db *sqlx.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

// GetByID returns an inspection by identifier.
func (r *InspectionRepository) GetByID(ctx context.Context, id string) (*models.Inspection, error) {
	const query = `SELECT id, document_id, phase, master_tolerance, measurement_table, defects, thresholds, overall_result, created_at, updated_at FROM inspections WHERE id = $1 LIMIT 1`
	var insp models.Inspection
	if err := r.db.GetContext(ctx, &insp, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get inspection: %w", err)
	}
	return &insp, nil
}

// ListByDocument returns all inspection phases of a document, oldest
// first.
func (r *InspectionRepository) ListByDocument(ctx context.Context, documentID string) ([]models.Inspection, error) {
	const query = `SELECT id, document_id, phase, master_tolerance, measurement_table, defects, thresholds, overall_result, created_at, updated_at FROM inspections WHERE document_id = $1 ORDER BY created_at ASC`
	var inspections []models.Inspection
	if err := r.db.SelectContext(ctx, &inspections, query, documentID); err != nil {
		return nil, fmt.Errorf("list inspections: %w", err)
	}
	return inspections, nil
}

// Create inserts a new inspection with generated defaults.
func (r *InspectionRepository) Create(ctx context.Context, insp *models.Inspection) error {
	if insp.ID == "" {
		insp.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if insp.CreatedAt.IsZero() {
		insp.CreatedAt = now
	}
	insp.UpdatedAt = now
	if insp.OverallResult == "" {
		insp.OverallResult = models.ResultPending
	}

	const query = `INSERT INTO inspections (id, document_id, phase, master_tolerance, measurement_table, defects, thresholds, overall_result, created_at, updated_at) VALUES (:id, :document_id, :phase, :master_tolerance, :measurement_table, :defects, :thresholds, :overall_result, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, insp); err != nil {
		return fmt.Errorf("create inspection: %w", err)
	}
	return nil
}

// UpdateTable replaces the measurement table snapshot.
func (r *InspectionRepository) UpdateTable(ctx context.Context, id string, table models.MeasurementTable, updatedAt time.Time) error {
	const query = `UPDATE inspections SET measurement_table = $2, updated_at = $3 WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id, table, updatedAt)
	if err != nil {
		return fmt.Errorf("update measurement table: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateTolerance replaces the master tolerance of the inspection.
func (r *InspectionRepository) UpdateTolerance(ctx context.Context, id, tolerance string, updatedAt time.Time) error {
	const query = `UPDATE inspections SET master_tolerance = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, tolerance, updatedAt); err != nil {
		return fmt.Errorf("update master tolerance: %w", err)
	}
	return nil
}

// UpdateDefects replaces the defect sheet, thresholds, and derived
// verdict in one write.
func (r *InspectionRepository) UpdateDefects(ctx context.Context, id string, defects models.DefectRows, thresholds models.Thresholds, result models.OverallResult, updatedAt time.Time) error {
	const query = `UPDATE inspections SET defects = $2, thresholds = $3, overall_result = $4, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, defects, thresholds, result, updatedAt)
	if err != nil {
		return fmt.Errorf("update defects: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateResult replaces the overall verdict.
func (r *InspectionRepository) UpdateResult(ctx context.Context, id string, result models.OverallResult, updatedAt time.Time) error {
	const query = `UPDATE inspections SET overall_result = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, result, updatedAt)
	if err != nil {
		return fmt.Errorf("update overall result: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an inspection phase.
func (r *InspectionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM inspections WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete inspection: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
