package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// WorkflowStatus enumerates the approval lifecycle states.
type WorkflowStatus string

const (
	WorkflowDraft     WorkflowStatus = "DRAFT"
	WorkflowSubmitted WorkflowStatus = "SUBMITTED"
	WorkflowApproved  WorkflowStatus = "APPROVED"
	WorkflowRejected  WorkflowStatus = "REJECTED"
)

// WorkflowActionType enumerates the transitions a user can attempt.
type WorkflowActionType string

const (
	ActionSubmit          WorkflowActionType = "SUBMIT"
	ActionRecall          WorkflowActionType = "RECALL"
	ActionApprove         WorkflowActionType = "APPROVE"
	ActionReject          WorkflowActionType = "REJECT"
	ActionRequestRevision WorkflowActionType = "REQUEST_REVISION"
)

// WorkflowAction is one entry of the append-only approval history.
type WorkflowAction struct {
	ID        string             `json:"id"`
	Action    WorkflowActionType `json:"action"`
	UserID    string             `json:"userId"`
	UserName  string             `json:"userName"`
	UserRole  UserRole           `json:"userRole"`
	Timestamp time.Time          `json:"timestamp"`
	Comments  string             `json:"comments,omitempty"`
}

// WorkflowState tracks the approval lifecycle of a document section.
// The optional actor fields are set only by their transition and cleared
// by the transitions that supersede them. History is append-only.
type WorkflowState struct {
	Status           WorkflowStatus   `json:"status"`
	SubmittedBy      string           `json:"submittedBy,omitempty"`
	SubmittedAt      *time.Time       `json:"submittedAt,omitempty"`
	ApprovedBy       string           `json:"approvedBy,omitempty"`
	ApprovedAt       *time.Time       `json:"approvedAt,omitempty"`
	RejectedBy       string           `json:"rejectedBy,omitempty"`
	RejectedAt       *time.Time       `json:"rejectedAt,omitempty"`
	RejectionComment string           `json:"rejectionComment,omitempty"`
	History          []WorkflowAction `json:"history"`
}

// NewWorkflowState returns the initial state for a freshly created section.
func NewWorkflowState() WorkflowState {
	return WorkflowState{Status: WorkflowDraft, History: []WorkflowAction{}}
}

// Locked reports whether content edits on the governed section are refused.
func (w WorkflowState) Locked() bool {
	return w.Status == WorkflowSubmitted || w.Status == WorkflowApproved
}

// Clone returns a deep copy; the history slice is freshly allocated so
// appends on the copy never alias the original.
func (w WorkflowState) Clone() WorkflowState {
	clone := w
	clone.SubmittedAt = cloneTime(w.SubmittedAt)
	clone.ApprovedAt = cloneTime(w.ApprovedAt)
	clone.RejectedAt = cloneTime(w.RejectedAt)
	clone.History = make([]WorkflowAction, len(w.History))
	copy(clone.History, w.History)
	return clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Value marshals the workflow state for JSONB persistence.
func (w WorkflowState) Value() (driver.Value, error) {
	data, err := json.Marshal(w)
	if err != nil {
		return nil, fmt.Errorf("marshal workflow state: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads into the workflow state.
func (w *WorkflowState) Scan(value interface{}) error {
	if value == nil {
		*w = NewWorkflowState()
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for WorkflowState", value)
	}
	if len(data) == 0 {
		*w = NewWorkflowState()
		return nil
	}
	if err := json.Unmarshal(data, w); err != nil {
		return fmt.Errorf("unmarshal workflow state: %w", err)
	}
	if w.History == nil {
		w.History = []WorkflowAction{}
	}
	return nil
}
