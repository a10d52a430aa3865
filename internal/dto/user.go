package dto

import "github.com/stitchworks/garment-docs-api/internal/models"

// UpdateAccessRequest replaces a user's per-section access override.
// An empty map clears the override.
type UpdateAccessRequest struct {
	Override models.SectionAccessMap `json:"override"`
}
