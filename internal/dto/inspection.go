package dto

import "github.com/stitchworks/garment-docs-api/internal/models"

// CreateInspectionRequest payload for opening an inspection phase.
type CreateInspectionRequest struct {
	DocumentID      string `json:"documentId" validate:"required"`
	Phase           string `json:"phase" validate:"required"`
	MasterTolerance string `json:"masterTolerance"`
}

// TableOpRequest captures one structural edit of the measurement grid.
type TableOpRequest struct {
	Kind        string `json:"kind" validate:"required"`
	Size        string `json:"size,omitempty"`
	GroupID     string `json:"groupId,omitempty"`
	Color       string `json:"color,omitempty"`
	ColumnIndex int    `json:"columnIndex,omitempty"`
	Point       string `json:"point,omitempty"`
	Name        string `json:"name,omitempty"`
	TolPlus     string `json:"tolPlus,omitempty"`
	TolMinus    string `json:"tolMinus,omitempty"`
	RowID       string `json:"rowId,omitempty"`
}

// SetDefectsRequest replaces the defect rows of an inspection.
type SetDefectsRequest struct {
	Defects []models.DefectRow `json:"defects"`
}

// SetThresholdsRequest replaces the acceptance thresholds.
type SetThresholdsRequest struct {
	Thresholds models.DefectThresholds `json:"thresholds"`
}

// SetResultRequest records a manual overall verdict.
type SetResultRequest struct {
	Result models.OverallResult `json:"result" validate:"required"`
}

// CloneInspectionRequest copies an inspection into a new phase.
type CloneInspectionRequest struct {
	Phase string `json:"phase" validate:"required"`
}

// AQLEvaluateRequest asks for a sampling verdict against a lot size.
type AQLEvaluateRequest struct {
	LotSize int `json:"lotSize" validate:"required,min=2"`
}
