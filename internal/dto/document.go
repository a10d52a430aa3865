package dto

import "github.com/stitchworks/garment-docs-api/internal/models"

// CreateDocumentRequest payload for creating a document section.
type CreateDocumentRequest struct {
	Name    string           `json:"name" validate:"required"`
	Style   string           `json:"style"`
	Season  string           `json:"season"`
	Buyer   string           `json:"buyer"`
	Section models.SectionID `json:"section" validate:"required"`
}

// UpdateDocumentRequest payload for metadata updates. Nil fields are
// left untouched.
type UpdateDocumentRequest struct {
	Name   *string `json:"name,omitempty"`
	Style  *string `json:"style,omitempty"`
	Season *string `json:"season,omitempty"`
	Buyer  *string `json:"buyer,omitempty"`
}

// TransitionRequest captures a workflow action attempt.
type TransitionRequest struct {
	Action   models.WorkflowActionType `json:"action" validate:"required"`
	Comments string                    `json:"comments"`
}

// AvailableActionsResponse lists the transitions the caller may attempt.
type AvailableActionsResponse struct {
	Status  models.WorkflowStatus       `json:"status"`
	Actions []models.WorkflowActionType `json:"actions"`
}
