package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// SectionID identifies a functional area of a document subject to
// independent access control.
type SectionID string

const (
	SectionDashboard      SectionID = "dashboard"
	SectionSummary        SectionID = "summary"
	SectionTechPack       SectionID = "tech_pack"
	SectionOrderSheet     SectionID = "order_sheet"
	SectionConsumption    SectionID = "consumption"
	SectionPPMeeting      SectionID = "pp_meeting"
	SectionMQControl      SectionID = "mq_control"
	SectionCommercial     SectionID = "commercial"
	SectionQCInspect      SectionID = "qc_inspect"
	SectionUserManagement SectionID = "user_management"
	SectionRoleManagement SectionID = "role_management"
)

// AllSections lists every known section in display order.
var AllSections = []SectionID{
	SectionDashboard,
	SectionSummary,
	SectionTechPack,
	SectionOrderSheet,
	SectionConsumption,
	SectionPPMeeting,
	SectionMQControl,
	SectionCommercial,
	SectionQCInspect,
	SectionUserManagement,
	SectionRoleManagement,
}

// AccessLevel is the permission granted for a section.
type AccessLevel string

const (
	AccessNone AccessLevel = "none"
	AccessView AccessLevel = "view"
	AccessFull AccessLevel = "full"
)

// SectionAccessMap maps sections to access levels. Persisted as JSONB on
// the users table and carried inside JWT claims as the per-user override.
type SectionAccessMap map[SectionID]AccessLevel

// Value marshals the map for persistence.
func (m SectionAccessMap) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal section access: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the map.
func (m *SectionAccessMap) Scan(value interface{}) error {
	if value == nil {
		*m = SectionAccessMap{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for SectionAccessMap", value)
	}
	if len(data) == 0 {
		*m = SectionAccessMap{}
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshal section access: %w", err)
	}
	return nil
}

// Clone returns a copy safe for independent mutation.
func (m SectionAccessMap) Clone() SectionAccessMap {
	clone := make(SectionAccessMap, len(m))
	for k, v := range m {
		clone[k] = v
	}
	return clone
}
