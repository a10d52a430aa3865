package service

import (
	"github.com/stitchworks/garment-docs-api/internal/models"
)

// roleDefaults is the closed table of per-role section access. Adding a
// section or role means extending this table; resolution never falls
// through to an implicit default other than none.
var roleDefaults = map[models.UserRole]models.SectionAccessMap{
	models.RoleSuperAdmin: {
		models.SectionDashboard:      models.AccessFull,
		models.SectionSummary:        models.AccessFull,
		models.SectionTechPack:       models.AccessFull,
		models.SectionOrderSheet:     models.AccessFull,
		models.SectionConsumption:    models.AccessFull,
		models.SectionPPMeeting:      models.AccessFull,
		models.SectionMQControl:      models.AccessFull,
		models.SectionCommercial:     models.AccessFull,
		models.SectionQCInspect:      models.AccessFull,
		models.SectionUserManagement: models.AccessFull,
		models.SectionRoleManagement: models.AccessFull,
	},
	models.RoleAdmin: {
		models.SectionDashboard:      models.AccessFull,
		models.SectionSummary:        models.AccessFull,
		models.SectionTechPack:       models.AccessFull,
		models.SectionOrderSheet:     models.AccessFull,
		models.SectionConsumption:    models.AccessFull,
		models.SectionPPMeeting:      models.AccessFull,
		models.SectionMQControl:      models.AccessFull,
		models.SectionCommercial:     models.AccessFull,
		models.SectionQCInspect:      models.AccessFull,
		models.SectionUserManagement: models.AccessFull,
		models.SectionRoleManagement: models.AccessNone,
	},
	models.RoleDirector: {
		models.SectionDashboard:      models.AccessFull,
		models.SectionSummary:        models.AccessFull,
		models.SectionTechPack:       models.AccessFull,
		models.SectionOrderSheet:     models.AccessFull,
		models.SectionConsumption:    models.AccessFull,
		models.SectionPPMeeting:      models.AccessFull,
		models.SectionMQControl:      models.AccessFull,
		models.SectionCommercial:     models.AccessFull,
		models.SectionQCInspect:      models.AccessFull,
		models.SectionUserManagement: models.AccessNone,
		models.SectionRoleManagement: models.AccessNone,
	},
	models.RoleMerchandiser: {
		models.SectionDashboard:      models.AccessFull,
		models.SectionSummary:        models.AccessFull,
		models.SectionTechPack:       models.AccessFull,
		models.SectionOrderSheet:     models.AccessFull,
		models.SectionConsumption:    models.AccessFull,
		models.SectionPPMeeting:      models.AccessFull,
		models.SectionMQControl:      models.AccessNone,
		models.SectionCommercial:     models.AccessFull,
		models.SectionQCInspect:      models.AccessNone,
		models.SectionUserManagement: models.AccessNone,
		models.SectionRoleManagement: models.AccessNone,
	},
	models.RoleQC: {
		models.SectionDashboard:      models.AccessFull,
		models.SectionSummary:        models.AccessFull,
		models.SectionTechPack:       models.AccessNone,
		models.SectionOrderSheet:     models.AccessNone,
		models.SectionConsumption:    models.AccessNone,
		models.SectionPPMeeting:      models.AccessFull,
		models.SectionMQControl:      models.AccessFull,
		models.SectionCommercial:     models.AccessNone,
		models.SectionQCInspect:      models.AccessFull,
		models.SectionUserManagement: models.AccessNone,
		models.SectionRoleManagement: models.AccessNone,
	},
	models.RoleViewer: {
		models.SectionDashboard:      models.AccessFull,
		models.SectionSummary:        models.AccessFull,
		models.SectionTechPack:       models.AccessView,
		models.SectionOrderSheet:     models.AccessView,
		models.SectionConsumption:    models.AccessView,
		models.SectionPPMeeting:      models.AccessView,
		models.SectionMQControl:      models.AccessView,
		models.SectionCommercial:     models.AccessView,
		models.SectionQCInspect:      models.AccessView,
		models.SectionUserManagement: models.AccessNone,
		models.SectionRoleManagement: models.AccessNone,
	},
}

// RoleDefaults returns a copy of the default access map for the role.
// Unknown roles resolve to an empty map, which fails closed.
func RoleDefaults(role models.UserRole) models.SectionAccessMap {
	defaults, ok := roleDefaults[role]
	if !ok {
		return models.SectionAccessMap{}
	}
	return defaults.Clone()
}

// EffectiveAccess shallow-merges the per-user override over the role
// defaults; the override wins key by key. A nil override yields the pure
// role defaults.
func EffectiveAccess(role models.UserRole, override models.SectionAccessMap) models.SectionAccessMap {
	access := RoleDefaults(role)
	for section, level := range override {
		access[section] = level
	}
	return access
}

// HasAccess reports whether the resolved access satisfies the required
// level. Full access satisfies everything; view satisfies only a view
// requirement; none and missing entries never satisfy anything.
func HasAccess(access models.SectionAccessMap, section models.SectionID, required models.AccessLevel) bool {
	level, ok := access[section]
	if !ok {
		return false
	}
	if level == models.AccessFull {
		return true
	}
	return required == models.AccessView && level == models.AccessView
}

// IsViewOnly reports whether the section is readable but not editable.
func IsViewOnly(access models.SectionAccessMap, section models.SectionID) bool {
	return access[section] == models.AccessView
}
