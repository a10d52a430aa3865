package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stitchworks/garment-docs-api/internal/models"
	appErrors "github.com/stitchworks/garment-docs-api/pkg/errors"
)

// ComputeDefectTotals sums defect counts per severity across all rows.
func ComputeDefectTotals(rows []models.DefectRow) models.DefectTotals {
	var totals models.DefectTotals
	for _, row := range rows {
		totals.Critical += row.Critical
		totals.Major += row.Major
		totals.Minor += row.Minor
	}
	return totals
}

// JudgeDefects derives the verdict from the totals: exceeding any
// severity's maximum rejects the lot, otherwise it is accepted.
func JudgeDefects(totals models.DefectTotals, thresholds models.DefectThresholds) models.OverallResult {
	if totals.Critical > thresholds.CriticalMaxAllowed ||
		totals.Major > thresholds.MajorMaxAllowed ||
		totals.Minor > thresholds.MinorMaxAllowed {
		return models.ResultRejected
	}
	return models.ResultAccepted
}

type inspectionStore interface {
	GetByID(ctx context.Context, id string) (*models.Inspection, error)
	ListByDocument(ctx context.Context, documentID string) ([]models.Inspection, error)
	Create(ctx context.Context, inspection *models.Inspection) error
	UpdateDefects(ctx context.Context, id string, defects models.DefectRows, thresholds models.Thresholds, result models.OverallResult, updatedAt time.Time) error
	UpdateResult(ctx context.Context, id string, result models.OverallResult, updatedAt time.Time) error
	Delete(ctx context.Context, id string) error
}

// InspectionService manages QC inspection phases, their defect sheets,
// and the derived accept/reject judgement.
type InspectionService struct {
	inspections inspectionStore
	docs        workflowDocumentStore
	audit       auditLogger
	metrics     *MetricsService
	defaults    models.DefectThresholds
	defaultTol  string
	logger      *zap.Logger
}

// NewInspectionService constructs the service. The default thresholds
// and tolerance seed newly created inspections.
func NewInspectionService(inspections inspectionStore, docs workflowDocumentStore, audit auditLogger, metrics *MetricsService, defaults models.DefectThresholds, defaultTolerance string, logger *zap.Logger) *InspectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InspectionService{
		inspections: inspections,
		docs:        docs,
		audit:       audit,
		metrics:     metrics,
		defaults:    defaults,
		defaultTol:  defaultTolerance,
		logger:      logger,
	}
}

// Create opens a new inspection phase on the document, seeded with the
// configured thresholds and an empty measurement table.
func (s *InspectionService) Create(ctx context.Context, documentID, phase, masterTolerance string, claims *models.JWTClaims) (*models.Inspection, error) {
	if strings.TrimSpace(phase) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "phase is required")
	}
	if _, err := s.loadUnlockedDocument(ctx, documentID); err != nil {
		return nil, err
	}
	if strings.TrimSpace(masterTolerance) == "" {
		masterTolerance = s.defaultTol
	}

	now := time.Now().UTC()
	inspection := &models.Inspection{
		ID:              uuid.NewString(),
		DocumentID:      documentID,
		Phase:           phase,
		MasterTolerance: masterTolerance,
		Table:           models.NewMeasurementTable(),
		Defects:         models.DefectRows{},
		Thresholds:      models.Thresholds(s.defaults),
		OverallResult:   models.ResultPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.inspections.Create(ctx, inspection); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create inspection")
	}
	return inspection, nil
}

// GetByID loads one inspection.
func (s *InspectionService) GetByID(ctx context.Context, id string) (*models.Inspection, error) {
	return s.load(ctx, id)
}

// ListByDocument lists all inspection phases of a document.
func (s *InspectionService) ListByDocument(ctx context.Context, documentID string) ([]models.Inspection, error) {
	inspections, err := s.inspections.ListByDocument(ctx, documentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list inspections")
	}
	return inspections, nil
}

// SetDefects replaces the defect sheet and recomputes the judgement in
// the same write. The automatic verdict overwrites any manual result.
func (s *InspectionService) SetDefects(ctx context.Context, id string, rows []models.DefectRow, claims *models.JWTClaims) (*models.Inspection, error) {
	insp, err := s.loadUnlocked(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		if rows[i].Critical < 0 || rows[i].Major < 0 || rows[i].Minor < 0 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "defect counts must not be negative")
		}
		if rows[i].ID == "" {
			rows[i].ID = uuid.NewString()
		}
	}

	totals := ComputeDefectTotals(rows)
	result := JudgeDefects(totals, models.DefectThresholds(insp.Thresholds))

	now := time.Now().UTC()
	if err := s.inspections.UpdateDefects(ctx, id, models.DefectRows(rows), insp.Thresholds, result, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist defects")
	}
	if s.metrics != nil {
		s.metrics.RecordJudgement(string(result))
	}
	insp.Defects = models.DefectRows(rows)
	insp.OverallResult = result
	insp.UpdatedAt = now
	s.emitJudgementAudit(ctx, claims, insp, totals)
	return insp, nil
}

// SetThresholds replaces the severity limits and recomputes the
// judgement against the existing defect sheet.
func (s *InspectionService) SetThresholds(ctx context.Context, id string, thresholds models.DefectThresholds, claims *models.JWTClaims) (*models.Inspection, error) {
	if thresholds.CriticalMaxAllowed < 0 || thresholds.MajorMaxAllowed < 0 || thresholds.MinorMaxAllowed < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "thresholds must not be negative")
	}
	insp, err := s.loadUnlocked(ctx, id)
	if err != nil {
		return nil, err
	}

	totals := ComputeDefectTotals(insp.Defects)
	result := JudgeDefects(totals, thresholds)

	now := time.Now().UTC()
	if err := s.inspections.UpdateDefects(ctx, id, insp.Defects, models.Thresholds(thresholds), result, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist thresholds")
	}
	if s.metrics != nil {
		s.metrics.RecordJudgement(string(result))
	}
	insp.Thresholds = models.Thresholds(thresholds)
	insp.OverallResult = result
	insp.UpdatedAt = now
	s.emitJudgementAudit(ctx, claims, insp, totals)
	return insp, nil
}

// SetManualResult records a hand-entered verdict. It is only available
// while the defect sheet is empty; once defect rows exist the verdict
// is derived from them and must go through RecomputeJudgement.
func (s *InspectionService) SetManualResult(ctx context.Context, id string, result models.OverallResult, claims *models.JWTClaims) (*models.Inspection, error) {
	switch result {
	case models.ResultAccepted, models.ResultRejected, models.ResultPending:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown overall result")
	}
	insp, err := s.loadUnlocked(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(insp.Defects) > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "verdict is derived from the defect sheet while defect rows exist")
	}

	now := time.Now().UTC()
	if err := s.inspections.UpdateResult(ctx, id, result, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist result")
	}
	insp.OverallResult = result
	insp.UpdatedAt = now
	return insp, nil
}

// RecomputeJudgement re-derives the verdict from the stored defect
// sheet. It refuses to run while the governing workflow is locked.
func (s *InspectionService) RecomputeJudgement(ctx context.Context, id string, claims *models.JWTClaims) (*models.Inspection, error) {
	insp, err := s.loadUnlocked(ctx, id)
	if err != nil {
		return nil, err
	}

	totals := ComputeDefectTotals(insp.Defects)
	result := JudgeDefects(totals, models.DefectThresholds(insp.Thresholds))

	now := time.Now().UTC()
	if err := s.inspections.UpdateResult(ctx, id, result, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist result")
	}
	if s.metrics != nil {
		s.metrics.RecordJudgement(string(result))
	}
	insp.OverallResult = result
	insp.UpdatedAt = now
	s.emitJudgementAudit(ctx, claims, insp, totals)
	return insp, nil
}

// CloneForPhase starts a new phase from an existing inspection. The
// measurement structure and standards carry over with actuals cleared;
// the defect sheet starts empty and the verdict resets to pending. The
// clone shares no nested structure with its source.
func (s *InspectionService) CloneForPhase(ctx context.Context, id, newPhase string, claims *models.JWTClaims) (*models.Inspection, error) {
	if strings.TrimSpace(newPhase) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "phase is required")
	}
	source, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadUnlockedDocument(ctx, source.DocumentID); err != nil {
		return nil, err
	}

	table := source.Table.Clone()
	for i := range table.Rows {
		for gid, cell := range table.Rows[i].Groups {
			cell.ActualValue = ""
			table.Rows[i].Groups[gid] = cell
		}
	}

	now := time.Now().UTC()
	clone := &models.Inspection{
		ID:              uuid.NewString(),
		DocumentID:      source.DocumentID,
		Phase:           newPhase,
		MasterTolerance: source.MasterTolerance,
		Table:           table,
		Defects:         models.DefectRows{},
		Thresholds:      source.Thresholds,
		OverallResult:   models.ResultPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.inspections.Create(ctx, clone); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clone inspection")
	}
	return clone, nil
}

// Delete removes an inspection phase while the workflow is open.
func (s *InspectionService) Delete(ctx context.Context, id string) error {
	if _, err := s.loadUnlocked(ctx, id); err != nil {
		return err
	}
	if err := s.inspections.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete inspection")
	}
	return nil
}

func (s *InspectionService) load(ctx context.Context, id string) (*models.Inspection, error) {
	insp, err := s.inspections.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inspection")
	}
	return insp, nil
}

func (s *InspectionService) loadUnlocked(ctx context.Context, id string) (*models.Inspection, error) {
	insp, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.loadUnlockedDocument(ctx, insp.DocumentID); err != nil {
		return nil, err
	}
	return insp, nil
}

func (s *InspectionService) loadUnlockedDocument(ctx context.Context, documentID string) (*models.Document, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if doc.Workflow.Locked() {
		return nil, appErrors.ErrSectionLocked
	}
	return doc, nil
}

func (s *InspectionService) emitJudgementAudit(ctx context.Context, claims *models.JWTClaims, insp *models.Inspection, totals models.DefectTotals) {
	if s.audit == nil || claims == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"totals": totals,
		"result": insp.OverallResult,
	})
	log := &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionJudgementRecompute,
		Resource:   "inspections",
		ResourceID: &insp.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "inspection-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}
