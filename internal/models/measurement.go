package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// ColorColumn is one color variant inside a size group.
type ColorColumn struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

// SizeGroup heads one block of columns in the measurement grid.
type SizeGroup struct {
	ID           string        `json:"id"`
	Size         string        `json:"size"`
	ColorColumns []ColorColumn `json:"colorCols"`
}

// SubColumn carries the standard value for one color of a row cell.
// SubColumns align positionally with the parent group's ColorColumns.
type SubColumn struct {
	ID            string `json:"id"`
	Color         string `json:"color"`
	StandardValue string `json:"standardValue"`
}

// RowGroupCell is the slice of a measurement row under one size group.
type RowGroupCell struct {
	ID          string      `json:"id"`
	Size        string      `json:"size"`
	ActualValue string      `json:"actualValue"`
	SubColumns  []SubColumn `json:"subColumns"`
}

// MeasurementRow is one measurement point across all size groups.
type MeasurementRow struct {
	ID             string                  `json:"id"`
	Point          string                  `json:"point"`
	Name           string                  `json:"name"`
	TolerancePlus  string                  `json:"tolerancePlus"`
	ToleranceMinus string                  `json:"toleranceMinus"`
	Groups         map[string]RowGroupCell `json:"groups"`
	Remarks        string                  `json:"remarks,omitempty"`
}

// MeasurementTable is the size-group by color-column measurement grid.
// Invariant: every row carries exactly one cell per group, and each
// cell's sub-columns match the group's color columns in count and order.
type MeasurementTable struct {
	Groups []SizeGroup      `json:"groups"`
	Rows   []MeasurementRow `json:"rows"`
}

// NewMeasurementTable returns an empty table with allocated slices.
func NewMeasurementTable() MeasurementTable {
	return MeasurementTable{Groups: []SizeGroup{}, Rows: []MeasurementRow{}}
}

// Clone deep-copies the table. Every nested slice and map is freshly
// allocated so edits on the copy never alias the original.
func (t MeasurementTable) Clone() MeasurementTable {
	clone := MeasurementTable{
		Groups: make([]SizeGroup, len(t.Groups)),
		Rows:   make([]MeasurementRow, len(t.Rows)),
	}
	for i, g := range t.Groups {
		cols := make([]ColorColumn, len(g.ColorColumns))
		copy(cols, g.ColorColumns)
		clone.Groups[i] = SizeGroup{ID: g.ID, Size: g.Size, ColorColumns: cols}
	}
	for i, row := range t.Rows {
		groups := make(map[string]RowGroupCell, len(row.Groups))
		for gid, cell := range row.Groups {
			subs := make([]SubColumn, len(cell.SubColumns))
			copy(subs, cell.SubColumns)
			groups[gid] = RowGroupCell{ID: cell.ID, Size: cell.Size, ActualValue: cell.ActualValue, SubColumns: subs}
		}
		clone.Rows[i] = MeasurementRow{
			ID:             row.ID,
			Point:          row.Point,
			Name:           row.Name,
			TolerancePlus:  row.TolerancePlus,
			ToleranceMinus: row.ToleranceMinus,
			Groups:         groups,
			Remarks:        row.Remarks,
		}
	}
	return clone
}

// Value marshals the table for JSONB persistence.
func (t MeasurementTable) Value() (driver.Value, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal measurement table: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads into the table.
func (t *MeasurementTable) Scan(value interface{}) error {
	if value == nil {
		*t = NewMeasurementTable()
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for MeasurementTable", value)
	}
	if len(data) == 0 {
		*t = NewMeasurementTable()
		return nil
	}
	if err := json.Unmarshal(data, t); err != nil {
		return fmt.Errorf("unmarshal measurement table: %w", err)
	}
	if t.Groups == nil {
		t.Groups = []SizeGroup{}
	}
	if t.Rows == nil {
		t.Rows = []MeasurementRow{}
	}
	return nil
}
