package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchworks/garment-docs-api/internal/models"
	appErrors "github.com/stitchworks/garment-docs-api/pkg/errors"
)

type documentStoreStub struct {
	docs    map[string]*models.Document
	updates int
	deletes int
}

func newDocumentStoreStub() *documentStoreStub {
	return &documentStoreStub{docs: make(map[string]*models.Document)}
}

func (s *documentStoreStub) GetByID(ctx context.Context, id string) (*models.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *doc
	clone.Workflow = doc.Workflow.Clone()
	return &clone, nil
}

func (s *documentStoreStub) List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error) {
	var out []models.Document
	for _, doc := range s.docs {
		if filter.Section != "" && doc.Section != filter.Section {
			continue
		}
		if len(filter.Sections) > 0 && !containsSection(filter.Sections, doc.Section) {
			continue
		}
		out = append(out, *doc)
	}
	return out, len(out), nil
}

func containsSection(sections []models.SectionID, section models.SectionID) bool {
	for _, s := range sections {
		if s == section {
			return true
		}
	}
	return false
}

func (s *documentStoreStub) Create(ctx context.Context, doc *models.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	s.docs[doc.ID] = doc
	return nil
}

func (s *documentStoreStub) Update(ctx context.Context, doc *models.Document) error {
	if _, ok := s.docs[doc.ID]; !ok {
		return sql.ErrNoRows
	}
	s.docs[doc.ID] = doc
	s.updates++
	return nil
}

func (s *documentStoreStub) Delete(ctx context.Context, id string) error {
	if _, ok := s.docs[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.docs, id)
	s.deletes++
	return nil
}

func merchClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "u-merch", FullName: "Mira", Role: models.RoleMerchandiser}
}

func TestDocumentCreate(t *testing.T) {
	store := newDocumentStoreStub()
	audit := &auditStub{}
	svc := NewDocumentService(store, audit, nil, nil)

	doc, err := svc.Create(context.Background(), CreateDocumentInput{
		Name:    "SS26 Hoodie",
		Style:   "ST-1042",
		Season:  "SS26",
		Buyer:   "Northwind",
		Section: models.SectionTechPack,
	}, merchClaims())
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
	assert.Equal(t, models.WorkflowDraft, doc.Workflow.Status)
	assert.Equal(t, "u-merch", doc.CreatedBy)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionDocumentCreate, audit.logs[0].Action)
}

func TestDocumentCreateValidation(t *testing.T) {
	svc := NewDocumentService(newDocumentStoreStub(), nil, nil, nil)

	_, err := svc.Create(context.Background(), CreateDocumentInput{Name: " ", Section: models.SectionTechPack}, merchClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), CreateDocumentInput{Name: "Doc", Section: "warehouse"}, merchClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Create(context.Background(), CreateDocumentInput{Name: "Doc", Section: models.SectionTechPack}, nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestDocumentUpdate(t *testing.T) {
	store := newDocumentStoreStub()
	store.docs["doc-1"] = &models.Document{
		ID:       "doc-1",
		Name:     "SS26 Hoodie",
		Section:  models.SectionTechPack,
		Workflow: models.NewWorkflowState(),
	}
	svc := NewDocumentService(store, nil, nil, nil)

	name := "SS26 Hoodie rev B"
	doc, err := svc.Update(context.Background(), "doc-1", UpdateDocumentInput{Name: &name}, merchClaims())
	require.NoError(t, err)
	assert.Equal(t, "SS26 Hoodie rev B", doc.Name)
	assert.Equal(t, 1, store.updates)
}

func TestDocumentUpdateRefusedWhileLocked(t *testing.T) {
	for _, status := range []models.WorkflowStatus{models.WorkflowSubmitted, models.WorkflowApproved} {
		store := newDocumentStoreStub()
		wf := models.NewWorkflowState()
		wf.Status = status
		store.docs["doc-1"] = &models.Document{ID: "doc-1", Name: "Doc", Section: models.SectionTechPack, Workflow: wf}
		svc := NewDocumentService(store, nil, nil, nil)

		name := "renamed"
		_, err := svc.Update(context.Background(), "doc-1", UpdateDocumentInput{Name: &name}, merchClaims())
		require.Error(t, err, "status %s", status)
		assert.Equal(t, appErrors.ErrSectionLocked.Code, appErrors.FromError(err).Code)
		assert.Equal(t, 0, store.updates)

		err = svc.Delete(context.Background(), "doc-1", merchClaims())
		require.Error(t, err)
		assert.Equal(t, appErrors.ErrSectionLocked.Code, appErrors.FromError(err).Code)
		assert.Equal(t, 0, store.deletes)
	}
}

func TestDocumentDelete(t *testing.T) {
	store := newDocumentStoreStub()
	store.docs["doc-1"] = &models.Document{ID: "doc-1", Name: "Doc", Section: models.SectionTechPack, Workflow: models.NewWorkflowState()}
	audit := &auditStub{}
	svc := NewDocumentService(store, audit, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "doc-1", merchClaims()))
	assert.Equal(t, 1, store.deletes)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionDocumentDelete, audit.logs[0].Action)

	err := svc.Delete(context.Background(), "doc-1", merchClaims())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestDocumentList(t *testing.T) {
	store := newDocumentStoreStub()
	store.docs["doc-1"] = &models.Document{ID: "doc-1", Name: "A", Section: models.SectionTechPack, Workflow: models.NewWorkflowState()}
	store.docs["doc-2"] = &models.Document{ID: "doc-2", Name: "B", Section: models.SectionOrderSheet, Workflow: models.NewWorkflowState()}
	svc := NewDocumentService(store, nil, nil, nil)

	docs, pagination, err := svc.List(context.Background(), models.DocumentFilter{Section: models.SectionTechPack}, merchClaims())
	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 1, pagination.Page)
	assert.Equal(t, 20, pagination.PageSize)
}

func TestDocumentListHidesInaccessibleSections(t *testing.T) {
	store := newDocumentStoreStub()
	store.docs["doc-1"] = &models.Document{ID: "doc-1", Name: "A", Section: models.SectionTechPack, Workflow: models.NewWorkflowState()}
	store.docs["doc-2"] = &models.Document{ID: "doc-2", Name: "B", Section: models.SectionQCInspect, Workflow: models.NewWorkflowState()}
	svc := NewDocumentService(store, nil, nil, nil)

	qc := &models.JWTClaims{UserID: "u-qc", FullName: "Qori", Role: models.RoleQC}
	docs, pagination, err := svc.List(context.Background(), models.DocumentFilter{}, qc)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, models.SectionQCInspect, docs[0].Section)
	assert.Equal(t, 1, pagination.TotalCount)

	_, _, err = svc.List(context.Background(), models.DocumentFilter{Section: models.SectionTechPack}, qc)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDocumentMutationsRequireSectionAccess(t *testing.T) {
	store := newDocumentStoreStub()
	store.docs["doc-1"] = &models.Document{ID: "doc-1", Name: "SS26 Hoodie", Section: models.SectionTechPack, Workflow: models.NewWorkflowState()}
	svc := NewDocumentService(store, nil, nil, nil)

	viewer := &models.JWTClaims{UserID: "u-view", FullName: "Vina", Role: models.RoleViewer}
	name := "renamed by viewer"
	_, err := svc.Update(context.Background(), "doc-1", UpdateDocumentInput{Name: &name}, viewer)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "SS26 Hoodie", store.docs["doc-1"].Name)
	assert.Equal(t, 0, store.updates)

	err = svc.Delete(context.Background(), "doc-1", viewer)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, store.deletes)

	qc := &models.JWTClaims{UserID: "u-qc", FullName: "Qori", Role: models.RoleQC}
	_, err = svc.Create(context.Background(), CreateDocumentInput{Name: "Doc", Section: models.SectionTechPack}, qc)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestDocumentGetRequiresViewAccess(t *testing.T) {
	store := newDocumentStoreStub()
	store.docs["doc-1"] = &models.Document{ID: "doc-1", Name: "SS26 Hoodie", Section: models.SectionTechPack, Workflow: models.NewWorkflowState()}
	svc := NewDocumentService(store, nil, nil, nil)

	viewer := &models.JWTClaims{UserID: "u-view", FullName: "Vina", Role: models.RoleViewer}
	doc, _, err := svc.GetByID(context.Background(), "doc-1", viewer)
	require.NoError(t, err)
	assert.Equal(t, "SS26 Hoodie", doc.Name)

	qc := &models.JWTClaims{UserID: "u-qc", FullName: "Qori", Role: models.RoleQC}
	_, _, err = svc.GetByID(context.Background(), "doc-1", qc)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}
