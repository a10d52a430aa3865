package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stitchworks/garment-docs-api/internal/models"
	appErrors "github.com/stitchworks/garment-docs-api/pkg/errors"
)

// defaultColorName is the color column created with every new size group.
const defaultColorName = "Standard"

// ToleranceResult reports the evaluation of one measured cell.
type ToleranceResult struct {
	HasData        bool    `json:"has_data"`
	OutOfTolerance bool    `json:"out_of_tolerance"`
	Diff           float64 `json:"diff"`
}

// DiffDisplay renders the deviation rounded to two decimal places.
func (r ToleranceResult) DiffDisplay() string {
	if !r.HasData {
		return ""
	}
	return fmt.Sprintf("%.2f", r.Diff)
}

// CheckTolerance evaluates an actual measurement against its standard
// value and tolerance band. A per-row tolerance that is empty or does
// not parse falls back to the global default (and to 0 when the global
// does not parse either); an explicit "0" is honored as zero. When the
// actual or standard value does not parse the cell has no data and is
// neither in nor out of tolerance.
func CheckTolerance(actual, standard, tolPlus, tolMinus, globalDefault string) ToleranceResult {
	actualVal, err := parseMeasure(actual)
	if err != nil {
		return ToleranceResult{}
	}
	standardVal, err := parseMeasure(standard)
	if err != nil {
		return ToleranceResult{}
	}

	plus := resolveTolerance(tolPlus, globalDefault)
	minus := resolveTolerance(tolMinus, globalDefault)

	diff := actualVal - standardVal
	return ToleranceResult{
		HasData:        true,
		OutOfTolerance: diff > plus || diff < -minus,
		Diff:           diff,
	}
}

func parseMeasure(raw string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(raw), 64)
}

func resolveTolerance(raw, globalDefault string) float64 {
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return v
		}
	}
	if v, err := strconv.ParseFloat(strings.TrimSpace(globalDefault), 64); err == nil {
		return v
	}
	return 0
}

// AddSizeGroup appends a size group with one default color column and
// cascades a matching empty cell to every existing row.
func AddSizeGroup(table models.MeasurementTable, size string) models.MeasurementTable {
	next := table.Clone()
	group := models.SizeGroup{
		ID:   uuid.NewString(),
		Size: size,
		ColorColumns: []models.ColorColumn{
			{ID: uuid.NewString(), Color: defaultColorName},
		},
	}
	next.Groups = append(next.Groups, group)
	for i := range next.Rows {
		if next.Rows[i].Groups == nil {
			next.Rows[i].Groups = make(map[string]models.RowGroupCell)
		}
		next.Rows[i].Groups[group.ID] = emptyCell(group)
	}
	return next
}

// RemoveSizeGroup deletes the group and its key from every row.
func RemoveSizeGroup(table models.MeasurementTable, groupID string) (models.MeasurementTable, error) {
	idx := groupIndex(table, groupID)
	if idx < 0 {
		return table, appErrors.Clone(appErrors.ErrNotFound, "size group not found")
	}
	next := table.Clone()
	next.Groups = append(next.Groups[:idx], next.Groups[idx+1:]...)
	for i := range next.Rows {
		delete(next.Rows[i].Groups, groupID)
	}
	return next, nil
}

// AddColorColumn appends a color column to the group and a positionally
// matching empty sub-column to every row's corresponding cell.
func AddColorColumn(table models.MeasurementTable, groupID, color string) (models.MeasurementTable, error) {
	idx := groupIndex(table, groupID)
	if idx < 0 {
		return table, appErrors.Clone(appErrors.ErrNotFound, "size group not found")
	}
	next := table.Clone()
	column := models.ColorColumn{ID: uuid.NewString(), Color: color}
	next.Groups[idx].ColorColumns = append(next.Groups[idx].ColorColumns, column)
	for i := range next.Rows {
		cell, ok := next.Rows[i].Groups[groupID]
		if !ok {
			return table, appErrors.Clone(appErrors.ErrStructuralInvariant,
				fmt.Sprintf("row %s has no cell for group %s", next.Rows[i].ID, groupID))
		}
		cell.SubColumns = append(cell.SubColumns, models.SubColumn{ID: uuid.NewString(), Color: color})
		next.Rows[i].Groups[groupID] = cell
	}
	return next, nil
}

// RemoveColorColumn removes the column at the given index and the
// positionally matching sub-column from every row. Removing the last
// column of a group is refused.
func RemoveColorColumn(table models.MeasurementTable, groupID string, columnIndex int) (models.MeasurementTable, error) {
	idx := groupIndex(table, groupID)
	if idx < 0 {
		return table, appErrors.Clone(appErrors.ErrNotFound, "size group not found")
	}
	group := table.Groups[idx]
	if len(group.ColorColumns) <= 1 {
		return table, appErrors.ErrLastColorColumn
	}
	if columnIndex < 0 || columnIndex >= len(group.ColorColumns) {
		return table, appErrors.Clone(appErrors.ErrValidation, "color column index out of range")
	}
	next := table.Clone()
	cols := next.Groups[idx].ColorColumns
	next.Groups[idx].ColorColumns = append(cols[:columnIndex], cols[columnIndex+1:]...)
	for i := range next.Rows {
		cell, ok := next.Rows[i].Groups[groupID]
		if !ok || columnIndex >= len(cell.SubColumns) {
			return table, appErrors.Clone(appErrors.ErrStructuralInvariant,
				fmt.Sprintf("row %s sub-columns out of sync with group %s", next.Rows[i].ID, groupID))
		}
		cell.SubColumns = append(cell.SubColumns[:columnIndex], cell.SubColumns[columnIndex+1:]...)
		next.Rows[i].Groups[groupID] = cell
	}
	return next, nil
}

// AddMeasurementRow creates a row with one empty cell per existing
// group. Absent tolerances default to the supplied global tolerance.
func AddMeasurementRow(table models.MeasurementTable, point, name, tolPlus, tolMinus, defaultTolerance string) models.MeasurementTable {
	next := table.Clone()
	if tolPlus == "" {
		tolPlus = defaultTolerance
	}
	if tolMinus == "" {
		tolMinus = defaultTolerance
	}
	row := models.MeasurementRow{
		ID:             uuid.NewString(),
		Point:          point,
		Name:           name,
		TolerancePlus:  tolPlus,
		ToleranceMinus: tolMinus,
		Groups:         make(map[string]models.RowGroupCell, len(next.Groups)),
	}
	for _, group := range next.Groups {
		row.Groups[group.ID] = emptyCell(group)
	}
	next.Rows = append(next.Rows, row)
	return next
}

// RemoveMeasurementRow deletes the row.
func RemoveMeasurementRow(table models.MeasurementTable, rowID string) (models.MeasurementTable, error) {
	for i, row := range table.Rows {
		if row.ID == rowID {
			next := table.Clone()
			next.Rows = append(next.Rows[:i], next.Rows[i+1:]...)
			return next, nil
		}
	}
	return table, appErrors.Clone(appErrors.ErrNotFound, "measurement row not found")
}

// ValidateTable checks that every row carries exactly one cell per group
// with sub-columns matching the group's color columns in count. A
// violation is a programming error, not a user-facing condition.
func ValidateTable(table models.MeasurementTable) error {
	for _, row := range table.Rows {
		if len(row.Groups) != len(table.Groups) {
			return appErrors.Clone(appErrors.ErrStructuralInvariant,
				fmt.Sprintf("row %s has %d cells for %d groups", row.ID, len(row.Groups), len(table.Groups)))
		}
		for _, group := range table.Groups {
			cell, ok := row.Groups[group.ID]
			if !ok {
				return appErrors.Clone(appErrors.ErrStructuralInvariant,
					fmt.Sprintf("row %s missing cell for group %s", row.ID, group.ID))
			}
			if len(cell.SubColumns) != len(group.ColorColumns) {
				return appErrors.Clone(appErrors.ErrStructuralInvariant,
					fmt.Sprintf("row %s has %d sub-columns for %d color columns in group %s",
						row.ID, len(cell.SubColumns), len(group.ColorColumns), group.ID))
			}
		}
	}
	return nil
}

func emptyCell(group models.SizeGroup) models.RowGroupCell {
	subs := make([]models.SubColumn, 0, len(group.ColorColumns))
	for _, col := range group.ColorColumns {
		subs = append(subs, models.SubColumn{ID: uuid.NewString(), Color: col.Color})
	}
	return models.RowGroupCell{
		ID:         uuid.NewString(),
		Size:       group.Size,
		SubColumns: subs,
	}
}

func groupIndex(table models.MeasurementTable, groupID string) int {
	for i, group := range table.Groups {
		if group.ID == groupID {
			return i
		}
	}
	return -1
}

type inspectionTableStore interface {
	GetByID(ctx context.Context, id string) (*models.Inspection, error)
	UpdateTable(ctx context.Context, id string, table models.MeasurementTable, updatedAt time.Time) error
}

// MeasurementService applies structural table edits to persisted
// inspections, refusing edits while the governing workflow is locked.
type MeasurementService struct {
	inspections inspectionTableStore
	docs        workflowDocumentStore
	defaultTol  string
	logger      *zap.Logger
}

// NewMeasurementService constructs the service.
func NewMeasurementService(inspections inspectionTableStore, docs workflowDocumentStore, defaultTolerance string, logger *zap.Logger) *MeasurementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MeasurementService{inspections: inspections, docs: docs, defaultTol: defaultTolerance, logger: logger}
}

// TableOp is one structural edit applied through ApplyTableOp.
type TableOp struct {
	Kind        string
	Size        string
	GroupID     string
	Color       string
	ColumnIndex int
	Point       string
	Name        string
	TolPlus     string
	TolMinus    string
	RowID       string
}

// Table op kinds.
const (
	OpAddGroup          = "add_group"
	OpRemoveGroup       = "remove_group"
	OpAddColorColumn    = "add_color_column"
	OpRemoveColorColumn = "remove_color_column"
	OpAddRow            = "add_row"
	OpRemoveRow         = "remove_row"
)

// ApplyTableOp loads the inspection, verifies the governing workflow is
// not locked, applies the whole-table transform, and persists the new
// snapshot. The stored table is only replaced when the transform and the
// structural validation both succeed.
func (s *MeasurementService) ApplyTableOp(ctx context.Context, inspectionID string, op TableOp) (*models.Inspection, error) {
	insp, err := s.loadUnlocked(ctx, inspectionID)
	if err != nil {
		return nil, err
	}

	next, err := s.applyOp(insp, op)
	if err != nil {
		return nil, err
	}
	if err := ValidateTable(next); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.inspections.UpdateTable(ctx, insp.ID, next, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist measurement table")
	}
	insp.Table = next
	insp.UpdatedAt = now
	return insp, nil
}

// EvaluateTable runs the tolerance check over every cell of the
// inspection's table, keyed by row and group with one result per color
// sub-column in column order.
func (s *MeasurementService) EvaluateTable(ctx context.Context, inspectionID string) (map[string]map[string][]ToleranceResult, error) {
	insp, err := s.inspections.GetByID(ctx, inspectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inspection")
	}
	global := insp.MasterTolerance
	if strings.TrimSpace(global) == "" {
		global = s.defaultTol
	}

	results := make(map[string]map[string][]ToleranceResult, len(insp.Table.Rows))
	for _, row := range insp.Table.Rows {
		perGroup := make(map[string][]ToleranceResult, len(row.Groups))
		for groupID, cell := range row.Groups {
			perColumn := make([]ToleranceResult, len(cell.SubColumns))
			for i, sub := range cell.SubColumns {
				perColumn[i] = CheckTolerance(cell.ActualValue, sub.StandardValue, row.TolerancePlus, row.ToleranceMinus, global)
			}
			perGroup[groupID] = perColumn
		}
		results[row.ID] = perGroup
	}
	return results, nil
}

func (s *MeasurementService) applyOp(insp *models.Inspection, op TableOp) (models.MeasurementTable, error) {
	switch op.Kind {
	case OpAddGroup:
		if strings.TrimSpace(op.Size) == "" {
			return insp.Table, appErrors.Clone(appErrors.ErrValidation, "size is required")
		}
		return AddSizeGroup(insp.Table, op.Size), nil
	case OpRemoveGroup:
		return RemoveSizeGroup(insp.Table, op.GroupID)
	case OpAddColorColumn:
		if strings.TrimSpace(op.Color) == "" {
			return insp.Table, appErrors.Clone(appErrors.ErrValidation, "color is required")
		}
		return AddColorColumn(insp.Table, op.GroupID, op.Color)
	case OpRemoveColorColumn:
		return RemoveColorColumn(insp.Table, op.GroupID, op.ColumnIndex)
	case OpAddRow:
		if strings.TrimSpace(op.Name) == "" {
			return insp.Table, appErrors.Clone(appErrors.ErrValidation, "name is required")
		}
		tol := insp.MasterTolerance
		if strings.TrimSpace(tol) == "" {
			tol = s.defaultTol
		}
		return AddMeasurementRow(insp.Table, op.Point, op.Name, op.TolPlus, op.TolMinus, tol), nil
	case OpRemoveRow:
		return RemoveMeasurementRow(insp.Table, op.RowID)
	default:
		return insp.Table, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported table operation %q", op.Kind))
	}
}

func (s *MeasurementService) loadUnlocked(ctx context.Context, inspectionID string) (*models.Inspection, error) {
	insp, err := s.inspections.GetByID(ctx, inspectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inspection")
	}
	doc, err := s.docs.GetByID(ctx, insp.DocumentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.Workflow.Locked() {
		return nil, appErrors.ErrSectionLocked
	}
	return insp, nil
}
