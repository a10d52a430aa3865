package models

import "time"

// UserRole represents the available roles for the access control system.
type UserRole string

const (
	RoleSuperAdmin   UserRole = "super_admin"
	RoleAdmin        UserRole = "admin"
	RoleDirector     UserRole = "director"
	RoleMerchandiser UserRole = "merchandiser"
	RoleQC           UserRole = "qc"
	RoleViewer       UserRole = "viewer"
)

// AllRoles lists every known role.
var AllRoles = []UserRole{
	RoleSuperAdmin,
	RoleAdmin,
	RoleDirector,
	RoleMerchandiser,
	RoleQC,
	RoleViewer,
}

// ValidRole reports whether the role is one of the closed set.
func ValidRole(role UserRole) bool {
	switch role {
	case RoleSuperAdmin, RoleAdmin, RoleDirector, RoleMerchandiser, RoleQC, RoleViewer:
		return true
	default:
		return false
	}
}

// User represents an application user stored in the users table.
// SectionOverride holds the per-user access override merged over the
// role defaults when resolving effective access.
type User struct {
	ID              string           `db:"id" json:"id"`
	Email           string           `db:"email" json:"email"`
	PasswordHash    string           `db:"password_hash" json:"-"`
	FullName        string           `db:"full_name" json:"full_name"`
	Role            UserRole         `db:"role" json:"role"`
	SectionOverride SectionAccessMap `db:"section_override" json:"section_override,omitempty"`
	Active          bool             `db:"active" json:"active"`
	LastLogin       *time.Time       `db:"last_login" json:"last_login,omitempty"`
	CreatedAt       time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time        `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
