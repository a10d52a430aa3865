package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchworks/garment-docs-api/internal/models"
)

func TestRoleDefaultsMatrix(t *testing.T) {
	cases := []struct {
		role    models.UserRole
		section models.SectionID
		want    models.AccessLevel
	}{
		{models.RoleSuperAdmin, models.SectionRoleManagement, models.AccessFull},
		{models.RoleAdmin, models.SectionRoleManagement, models.AccessNone},
		{models.RoleAdmin, models.SectionUserManagement, models.AccessFull},
		{models.RoleDirector, models.SectionUserManagement, models.AccessNone},
		{models.RoleDirector, models.SectionQCInspect, models.AccessFull},
		{models.RoleMerchandiser, models.SectionTechPack, models.AccessFull},
		{models.RoleMerchandiser, models.SectionQCInspect, models.AccessNone},
		{models.RoleMerchandiser, models.SectionMQControl, models.AccessNone},
		{models.RoleQC, models.SectionQCInspect, models.AccessFull},
		{models.RoleQC, models.SectionTechPack, models.AccessNone},
		{models.RoleViewer, models.SectionDashboard, models.AccessFull},
		{models.RoleViewer, models.SectionTechPack, models.AccessView},
		{models.RoleViewer, models.SectionUserManagement, models.AccessNone},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RoleDefaults(tc.role)[tc.section], "%s/%s", tc.role, tc.section)
	}
}

func TestRoleDefaultsCoverAllSections(t *testing.T) {
	for _, role := range models.AllRoles {
		defaults := RoleDefaults(role)
		require.Len(t, defaults, len(models.AllSections), "role %s", role)
		for _, section := range models.AllSections {
			_, ok := defaults[section]
			assert.True(t, ok, "role %s missing %s", role, section)
		}
	}
}

func TestFullAccessImpliesViewAccess(t *testing.T) {
	for _, role := range models.AllRoles {
		defaults := RoleDefaults(role)
		for _, section := range models.AllSections {
			if HasAccess(defaults, section, models.AccessFull) {
				assert.True(t, HasAccess(defaults, section, models.AccessView),
					"role %s section %s: full must imply view", role, section)
			}
		}
	}
}

func TestEffectiveAccessOverrideWins(t *testing.T) {
	override := models.SectionAccessMap{
		models.SectionTechPack:  models.AccessNone,
		models.SectionQCInspect: models.AccessFull,
	}
	access := EffectiveAccess(models.RoleMerchandiser, override)

	assert.Equal(t, models.AccessNone, access[models.SectionTechPack])
	assert.Equal(t, models.AccessFull, access[models.SectionQCInspect])
	// untouched keys keep the role default
	assert.Equal(t, models.AccessFull, access[models.SectionOrderSheet])
}

func TestEffectiveAccessNoOverrideEqualsDefaults(t *testing.T) {
	for _, role := range models.AllRoles {
		assert.Equal(t, RoleDefaults(role), EffectiveAccess(role, nil), "role %s", role)
	}
}

func TestHasAccessFailsClosed(t *testing.T) {
	empty := models.SectionAccessMap{}
	for _, section := range models.AllSections {
		assert.False(t, HasAccess(empty, section, models.AccessView))
		assert.False(t, HasAccess(empty, section, models.AccessFull))
	}

	// unknown role resolves to no access at all
	access := EffectiveAccess(models.UserRole("intern"), nil)
	assert.False(t, HasAccess(access, models.SectionDashboard, models.AccessView))
}

func TestViewNeverSatisfiesFull(t *testing.T) {
	access := models.SectionAccessMap{models.SectionTechPack: models.AccessView}
	assert.True(t, HasAccess(access, models.SectionTechPack, models.AccessView))
	assert.False(t, HasAccess(access, models.SectionTechPack, models.AccessFull))
	assert.True(t, IsViewOnly(access, models.SectionTechPack))
}

func TestIsViewOnly(t *testing.T) {
	access := EffectiveAccess(models.RoleViewer, nil)
	assert.True(t, IsViewOnly(access, models.SectionOrderSheet))
	assert.False(t, IsViewOnly(access, models.SectionDashboard))
	assert.False(t, IsViewOnly(access, models.SectionUserManagement))
}
