package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
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

type docStoreStub struct {
	docs map[string]*models.Document
}

func newDocStoreStub() *docStoreStub {
	return &docStoreStub{docs: map[string]*models.Document{}}
}

func (s *docStoreStub) GetByID(ctx context.Context, id string) (*models.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *doc
	clone.Workflow = doc.Workflow.Clone()
	return &clone, nil
}

func (s *docStoreStub) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	var out []models.Document
	for _, doc := range s.docs {
		out = append(out, *doc)
	}
	return out, len(out), nil
}

func (s *docStoreStub) Create(ctx context.Context, doc *models.Document) error {
	s.docs[doc.ID] = doc
	return nil
}

func (s *docStoreStub) Update(ctx context.Context, doc *models.Document) error {
	if _, ok := s.docs[doc.ID]; !ok {
		return sql.ErrNoRows
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *docStoreStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.docs, id)
	return nil
}

func (s *docStoreStub) UpdateWorkflow(ctx context.Context, id string, workflow models.WorkflowState, updatedAt time.Time) error {
	doc, ok := s.docs[id]
	if !ok {
		return sql.ErrNoRows
	}
	doc.Workflow = workflow
	doc.UpdatedAt = updatedAt
	return nil
}

func newDocumentHandlerForTest(store *docStoreStub) *DocumentHandler {
	documents := service.NewDocumentService(store, nil, nil, nil)
	workflow := service.NewWorkflowService(store, nil, nil, nil, nil)
	return NewDocumentHandler(documents, workflow)
}

func TestDocumentHandlerCreate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newDocStoreStub()
	handler := newDocumentHandlerForTest(store)

	payload, _ := json.Marshal(dto.CreateDocumentRequest{
		Name:    "SS26 Hoodie",
		Style:   "ST-1042",
		Section: models.SectionTechPack,
	})
	c, w := newGinContext(http.MethodPost, "/documents", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-merch", FullName: "Mira", Role: models.RoleMerchandiser})

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.Len(t, store.docs, 1)
}

func TestDocumentHandlerCreateInvalidSection(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := newDocumentHandlerForTest(newDocStoreStub())

	payload, _ := json.Marshal(dto.CreateDocumentRequest{Name: "Doc", Section: "warehouse"})
	c, w := newGinContext(http.MethodPost, "/documents", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-merch", Role: models.RoleMerchandiser})

	handler.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDocumentHandlerTransition(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newDocStoreStub()
	store.docs["doc-1"] = &models.Document{
		ID:       "doc-1",
		Name:     "SS26 Hoodie",
		Section:  models.SectionTechPack,
		Workflow: models.NewWorkflowState(),
	}
	handler := newDocumentHandlerForTest(store)

	payload, _ := json.Marshal(dto.TransitionRequest{Action: models.ActionSubmit})
	c, w := newGinContext(http.MethodPost, "/documents/doc-1/workflow", payload)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-merch", FullName: "Mira", Role: models.RoleMerchandiser})

	handler.Transition(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.WorkflowSubmitted, store.docs["doc-1"].Workflow.Status)
}

func TestDocumentHandlerTransitionRejectNeedsComment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newDocStoreStub()
	wf := models.NewWorkflowState()
	wf.Status = models.WorkflowSubmitted
	store.docs["doc-1"] = &models.Document{ID: "doc-1", Name: "Doc", Section: models.SectionTechPack, Workflow: wf}
	handler := newDocumentHandlerForTest(store)

	payload, _ := json.Marshal(dto.TransitionRequest{Action: models.ActionReject, Comments: "   "})
	c, w := newGinContext(http.MethodPost, "/documents/doc-1/workflow", payload)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-dir", FullName: "Dian", Role: models.RoleDirector})

	handler.Transition(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, models.WorkflowSubmitted, store.docs["doc-1"].Workflow.Status)
}

func TestDocumentHandlerAvailableActions(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newDocStoreStub()
	wf := models.NewWorkflowState()
	wf.Status = models.WorkflowSubmitted
	store.docs["doc-1"] = &models.Document{ID: "doc-1", Name: "Doc", Section: models.SectionQCInspect, Workflow: wf}
	handler := newDocumentHandlerForTest(store)

	c, w := newGinContext(http.MethodGet, "/documents/doc-1/workflow/actions", nil)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-qc", Role: models.RoleQC})

	handler.AvailableActions(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data dto.AvailableActionsResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, models.WorkflowSubmitted, envelope.Data.Status)
	// qc can recall its own submission but never approve
	assert.Contains(t, envelope.Data.Actions, models.ActionRecall)
	assert.NotContains(t, envelope.Data.Actions, models.ActionApprove)
}

func TestDocumentHandlerUpdateLocked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := newDocStoreStub()
	wf := models.NewWorkflowState()
	wf.Status = models.WorkflowApproved
	store.docs["doc-1"] = &models.Document{ID: "doc-1", Name: "Doc", Section: models.SectionTechPack, Workflow: wf}
	handler := newDocumentHandlerForTest(store)

	name := "renamed"
	payload, _ := json.Marshal(dto.UpdateDocumentRequest{Name: &name})
	c, w := newGinContext(http.MethodPut, "/documents/doc-1", payload)
	c.Params = gin.Params{{Key: "id", Value: "doc-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-merch", Role: models.RoleMerchandiser})

	handler.Update(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Doc", store.docs["doc-1"].Name)
}
