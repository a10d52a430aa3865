package dto

import "github.com/stitchworks/garment-docs-api/internal/models"

// ExportRequest captures POST /exports payload.
type ExportRequest struct {
	Type         models.ExportType   `json:"type"`
	DocumentID   string              `json:"documentId"`
	InspectionID *string             `json:"inspectionId,omitempty"`
	Format       models.ExportFormat `json:"format"`
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ExportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ExportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"resultUrl,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
