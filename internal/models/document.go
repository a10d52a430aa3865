package models

import "time"

// Document is a garment-manufacturing document whose section lifecycle is
// governed by a workflow state.
type Document struct {
	ID        string        `db:"id" json:"id"`
	Name      string        `db:"name" json:"name"`
	Style     string        `db:"style" json:"style"`
	Season    string        `db:"season" json:"season"`
	Buyer     string        `db:"buyer" json:"buyer"`
	Section   SectionID     `db:"section" json:"section"`
	Workflow  WorkflowState `db:"workflow" json:"workflow"`
	CreatedBy string        `db:"created_by" json:"created_by"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

// DocumentFilter captures filtering criteria for document listings.
type DocumentFilter struct {
	Section   SectionID
	Sections  []SectionID
	Status    WorkflowStatus
	Buyer     string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
