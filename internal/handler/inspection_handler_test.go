package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchworks/garment-docs-api/internal/dto"
	"github.com/stitchworks/garment-docs-api/internal/middleware"
	"github.com/stitchworks/garment-docs-api/internal/models"
	"github.com/stitchworks/garment-docs-api/internal/service"
)

type inspStoreStub struct {
	insps map[string]*models.Inspection
}

func newInspStoreStub() *inspStoreStub {
	return &inspStoreStub{insps: map[string]*models.Inspection{}}
}

func (s *inspStoreStub) GetByID(ctx context.Context, id string) (*models.Inspection, error) {
	insp, ok := s.insps[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *insp
	clone.Table = insp.Table.Clone()
	return &clone, nil
}

func (s *inspStoreStub) ListByDocument(ctx context.Context, documentID string) ([]models.Inspection, error) {
	var out []models.Inspection
	for _, insp := range s.insps {
		if insp.DocumentID == documentID {
			out = append(out, *insp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *inspStoreStub) Create(ctx context.Context, inspection *models.Inspection) error {
	s.insps[inspection.ID] = inspection
	return nil
}

func (s *inspStoreStub) UpdateTable(ctx context.Context, id string, table models.MeasurementTable, updatedAt time.Time) error {
	insp, ok := s.insps[id]
	if !ok {
		return sql.ErrNoRows
	}
	insp.Table = table
	insp.UpdatedAt = updatedAt
	return nil
}

func (s *inspStoreStub) UpdateDefects(ctx context.Context, id string, defects models.DefectRows, thresholds models.Thresholds, result models.OverallResult, updatedAt time.Time) error {
	insp, ok := s.insps[id]
	if !ok {
		return sql.ErrNoRows
	}
	insp.Defects = defects
	insp.Thresholds = thresholds
	insp.OverallResult = result
	insp.UpdatedAt = updatedAt
	return nil
}

func (s *inspStoreStub) UpdateResult(ctx context.Context, id string, result models.OverallResult, updatedAt time.Time) error {
	insp, ok := s.insps[id]
	if !ok {
		return sql.ErrNoRows
	}
	insp.OverallResult = result
	insp.UpdatedAt = updatedAt
	return nil
}

func (s *inspStoreStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.insps[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.insps, id)
	return nil
}

func newInspectionHandlerForTest(t *testing.T) (*InspectionHandler, *inspStoreStub, *docStoreStub) {
	t.Helper()
	inspStore := newInspStoreStub()
	docStore := newDocStoreStub()
	docStore.docs["doc-1"] = &models.Document{
		ID:       "doc-1",
		Name:     "SS26 Hoodie",
		Section:  models.SectionQCInspect,
		Workflow: models.NewWorkflowState(),
	}

	defaults := models.DefectThresholds{CriticalMaxAllowed: 0, MajorMaxAllowed: 2, MinorMaxAllowed: 4}
	inspections := service.NewInspectionService(inspStore, docStore, nil, nil, defaults, "1.0", nil)
	measurements := service.NewMeasurementService(inspStore, docStore, "1.0", nil)
	aql := service.NewAQLService(inspStore)
	return NewInspectionHandler(inspections, measurements, aql), inspStore, docStore
}

func seedInspection(store *inspStoreStub) *models.Inspection {
	table := service.AddSizeGroup(models.NewMeasurementTable(), "M")
	table = service.AddMeasurementRow(table, "A", "Chest width", "0.5", "0.5", "1.0")
	insp := &models.Inspection{
		ID:              "insp-1",
		DocumentID:      "doc-1",
		Phase:           "inline",
		MasterTolerance: "1.0",
		Table:           table,
		Defects:         models.DefectRows{},
		Thresholds:      models.Thresholds{CriticalMaxAllowed: 0, MajorMaxAllowed: 2, MinorMaxAllowed: 4},
		OverallResult:   models.ResultPending,
	}
	store.insps[insp.ID] = insp
	return insp
}

func TestInspectionHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, store, _ := newInspectionHandlerForTest(t)

	payload, _ := json.Marshal(dto.CreateInspectionRequest{DocumentID: "doc-1", Phase: "inline"})
	c, w := newGinContext(http.MethodPost, "/inspections", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-qc", Role: models.RoleQC})

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.insps, 1)
}

func TestInspectionHandlerApplyTableOp(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, store, _ := newInspectionHandlerForTest(t)
	seedInspection(store)

	payload, _ := json.Marshal(dto.TableOpRequest{Kind: service.OpAddGroup, Size: "L"})
	c, w := newGinContext(http.MethodPost, "/inspections/insp-1/table", payload)
	c.Params = gin.Params{{Key: "id", Value: "insp-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-qc", Role: models.RoleQC})

	handler.ApplyTableOp(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, store.insps["insp-1"].Table.Groups, 2)
}

func TestInspectionHandlerTableOpRefusedWhileLocked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, store, docs := newInspectionHandlerForTest(t)
	seedInspection(store)
	wf := models.NewWorkflowState()
	wf.Status = models.WorkflowSubmitted
	docs.docs["doc-1"].Workflow = wf

	payload, _ := json.Marshal(dto.TableOpRequest{Kind: service.OpAddGroup, Size: "L"})
	c, w := newGinContext(http.MethodPost, "/inspections/insp-1/table", payload)
	c.Params = gin.Params{{Key: "id", Value: "insp-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-qc", Role: models.RoleQC})

	handler.ApplyTableOp(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Len(t, store.insps["insp-1"].Table.Groups, 1)
}

func TestInspectionHandlerSetDefects(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, store, _ := newInspectionHandlerForTest(t)
	seedInspection(store)

	payload, _ := json.Marshal(dto.SetDefectsRequest{Defects: []models.DefectRow{
		{Description: "Broken stitch", Critical: 1},
	}})
	c, w := newGinContext(http.MethodPut, "/inspections/insp-1/defects", payload)
	c.Params = gin.Params{{Key: "id", Value: "insp-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-qc", Role: models.RoleQC})

	handler.SetDefects(c)
	require.Equal(t, http.StatusOK, w.Code)
	// one critical defect breaches the zero-tolerance threshold
	assert.Equal(t, models.ResultRejected, store.insps["insp-1"].OverallResult)
}

func TestInspectionHandlerEvaluateAQL(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, store, _ := newInspectionHandlerForTest(t)
	insp := seedInspection(store)
	insp.Defects = models.DefectRows{{Description: "Loose thread", Minor: 2}}

	payload, _ := json.Marshal(dto.AQLEvaluateRequest{LotSize: 500})
	c, w := newGinContext(http.MethodPost, "/inspections/insp-1/aql", payload)
	c.Params = gin.Params{{Key: "id", Value: "insp-1"}}

	handler.EvaluateAQL(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data service.AQLEvaluation `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, service.AQLPassed, envelope.Data.Result)
	assert.Equal(t, 50, envelope.Data.Standard.SampleSize)
}

func TestInspectionHandlerClone(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, store, _ := newInspectionHandlerForTest(t)
	seedInspection(store)

	payload, _ := json.Marshal(dto.CloneInspectionRequest{Phase: "final"})
	c, w := newGinContext(http.MethodPost, "/inspections/insp-1/clone", payload)
	c.Params = gin.Params{{Key: "id", Value: "insp-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-qc", Role: models.RoleQC})

	handler.Clone(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.insps, 2)
}
