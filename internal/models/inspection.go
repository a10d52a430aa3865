package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// OverallResult is the derived verdict of an inspection.
type OverallResult string

const (
	ResultAccepted OverallResult = "ACCEPTED"
	ResultRejected OverallResult = "REJECTED"
	ResultPending  OverallResult = "PENDING"
)

// DefectRow records defect counts per severity for one finding.
type DefectRow struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Critical    int    `json:"critical"`
	Major       int    `json:"major"`
	Minor       int    `json:"minor"`
}

// DefectThresholds holds the maximum allowed defect counts per severity.
type DefectThresholds struct {
	CriticalMaxAllowed int `json:"criticalMaxAllowed"`
	MajorMaxAllowed    int `json:"maxAllowed"`
	MinorMaxAllowed    int `json:"minorMaxAllowed"`
}

// DefectTotals aggregates defect counts across all rows.
type DefectTotals struct {
	Critical int `json:"critical"`
	Major    int `json:"major"`
	Minor    int `json:"minor"`
}

// Inspection is one QC inspection phase attached to a document.
type Inspection struct {
	ID              string           `db:"id" json:"id"`
	DocumentID      string           `db:"document_id" json:"document_id"`
	Phase           string           `db:"phase" json:"phase"`
	MasterTolerance string           `db:"master_tolerance" json:"master_tolerance"`
	Table           MeasurementTable `db:"measurement_table" json:"table"`
	Defects         DefectRows       `db:"defects" json:"defects"`
	Thresholds      Thresholds       `db:"thresholds" json:"thresholds"`
	OverallResult   OverallResult    `db:"overall_result" json:"overall_result"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// DefectRows is a JSONB-persisted slice of defect rows.
type DefectRows []DefectRow

// Value marshals the rows for persistence.
func (d DefectRows) Value() (driver.Value, error) {
	if d == nil {
		d = DefectRows{}
	}
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal defect rows: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the slice.
func (d *DefectRows) Scan(value interface{}) error {
	if value == nil {
		*d = DefectRows{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for DefectRows", value)
	}
	if len(data) == 0 {
		*d = DefectRows{}
		return nil
	}
	if err := json.Unmarshal(data, d); err != nil {
		return fmt.Errorf("unmarshal defect rows: %w", err)
	}
	return nil
}

// Thresholds is a JSONB-persisted DefectThresholds.
type Thresholds DefectThresholds

// Value marshals the thresholds for persistence.
func (t Thresholds) Value() (driver.Value, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal thresholds: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the thresholds.
func (t *Thresholds) Scan(value interface{}) error {
	if value == nil {
		*t = Thresholds{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for Thresholds", value)
	}
	if len(data) == 0 {
		*t = Thresholds{}
		return nil
	}
	if err := json.Unmarshal(data, t); err != nil {
		return fmt.Errorf("unmarshal thresholds: %w", err)
	}
	return nil
}
