package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/stitchworks/garment-docs-api/internal/models"
	appErrors "github.com/stitchworks/garment-docs-api/pkg/errors"
)

type documentStore interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context, filter models.DocumentFilter) ([]models.Document, int, error)
	Create(ctx context.Context, doc *models.Document) error
	Update(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) error
}

// DocumentService manages document metadata. Edits are refused while the
// embedded workflow is locked; workflow transitions themselves go
// through WorkflowService.
type DocumentService struct {
	docs   documentStore
	audit  auditLogger
	cache  *CacheService
	logger *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(docs documentStore, audit auditLogger, cache *CacheService, logger *zap.Logger) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{docs: docs, audit: audit, cache: cache, logger: logger}
}

// CreateDocumentInput carries the fields accepted on creation.
type CreateDocumentInput struct {
	Name    string
	Style   string
	Season  string
	Buyer   string
	Section models.SectionID
}

// Create inserts a document starting in DRAFT.
func (s *DocumentService) Create(ctx context.Context, input CreateDocumentInput, claims *models.JWTClaims) (*models.Document, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if strings.TrimSpace(input.Name) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "name is required")
	}
	if !validSection(input.Section) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown section %q", input.Section))
	}
	if err := requireSectionAccess(claims, input.Section, models.AccessFull); err != nil {
		return nil, err
	}

	doc := &models.Document{
		Name:      strings.TrimSpace(input.Name),
		Style:     strings.TrimSpace(input.Style),
		Season:    strings.TrimSpace(input.Season),
		Buyer:     strings.TrimSpace(input.Buyer),
		Section:   input.Section,
		Workflow:  models.NewWorkflowState(),
		CreatedBy: claims.UserID,
	}
	if err := s.docs.Create(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}
	s.invalidateListCache(ctx)
	s.emitAudit(ctx, claims, models.AuditActionDocumentCreate, doc)
	return doc, nil
}

// GetByID loads a document, serving repeat reads from cache. The bool
// reports whether the cache answered. Callers need at least view access
// on the document's section.
func (s *DocumentService) GetByID(ctx context.Context, id string, claims *models.JWTClaims) (*models.Document, bool, error) {
	cacheKey := "documents:" + id
	if s.cache.Enabled() {
		var cached models.Document
		if hit, _ := s.cache.Get(ctx, cacheKey, &cached); hit {
			if err := requireSectionAccess(claims, cached.Section, models.AccessView); err != nil {
				return nil, false, err
			}
			return &cached, true, nil
		}
	}

	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.ErrNotFound
		}
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if err := requireSectionAccess(claims, doc.Section, models.AccessView); err != nil {
		return nil, false, err
	}
	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, doc, 0); err != nil {
			s.logger.Warn("failed to cache document", zap.String("document_id", id), zap.Error(err))
		}
	}
	return doc, false, nil
}

// List returns documents matching the filter with pagination metadata.
// Results are restricted to sections the caller may at least view.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter, claims *models.JWTClaims) ([]models.Document, *models.Pagination, error) {
	if claims == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	access := EffectiveAccess(claims.Role, claims.SectionOverride)
	if filter.Section != "" {
		if !HasAccess(access, filter.Section, models.AccessView) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "insufficient section access")
		}
	} else {
		filter.Sections = viewableSections(access)
		if len(filter.Sections) == 0 {
			return []models.Document{}, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 0}, nil
		}
	}

	docs, total, err := s.docs.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return docs, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// UpdateDocumentInput carries the mutable metadata fields. Nil pointers
// leave the stored value untouched.
type UpdateDocumentInput struct {
	Name   *string
	Style  *string
	Season *string
	Buyer  *string
}

// Update edits document metadata while the workflow is open.
func (s *DocumentService) Update(ctx context.Context, id string, input UpdateDocumentInput, claims *models.JWTClaims) (*models.Document, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if err := requireSectionAccess(claims, doc.Section, models.AccessFull); err != nil {
		return nil, err
	}
	if doc.Workflow.Locked() {
		return nil, appErrors.ErrSectionLocked
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, appErrors.Clone(appErrors.ErrValidation, "name must not be empty")
		}
		doc.Name = strings.TrimSpace(*input.Name)
	}
	if input.Style != nil {
		doc.Style = strings.TrimSpace(*input.Style)
	}
	if input.Season != nil {
		doc.Season = strings.TrimSpace(*input.Season)
	}
	if input.Buyer != nil {
		doc.Buyer = strings.TrimSpace(*input.Buyer)
	}

	if err := s.docs.Update(ctx, doc); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update document")
	}
	s.invalidateDocumentCache(ctx, id)
	s.emitAudit(ctx, claims, models.AuditActionDocumentUpdate, doc)
	return doc, nil
}

// Delete removes a document while its workflow is open.
func (s *DocumentService) Delete(ctx context.Context, id string, claims *models.JWTClaims) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	doc, err := s.docs.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	if err := requireSectionAccess(claims, doc.Section, models.AccessFull); err != nil {
		return err
	}
	if doc.Workflow.Locked() {
		return appErrors.ErrSectionLocked
	}
	if err := s.docs.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.ErrNotFound
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete document")
	}
	s.invalidateDocumentCache(ctx, id)
	s.emitAudit(ctx, claims, models.AuditActionDocumentDelete, doc)
	return nil
}

func (s *DocumentService) invalidateDocumentCache(ctx context.Context, id string) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, documentCachePattern(id)); err != nil {
		s.logger.Warn("failed to invalidate document cache", zap.String("document_id", id), zap.Error(err))
	}
}

func (s *DocumentService) invalidateListCache(ctx context.Context) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Invalidate(ctx, "documents:*"); err != nil {
		s.logger.Warn("failed to invalidate document list cache", zap.Error(err))
	}
}

func (s *DocumentService) emitAudit(ctx context.Context, claims *models.JWTClaims, action string, doc *models.Document) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"name":    doc.Name,
		"style":   doc.Style,
		"section": doc.Section,
	})
	log := &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     action,
		Resource:   "documents",
		ResourceID: &doc.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "document-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

// requireSectionAccess enforces the caller's effective access against a
// document section. Missing claims fail closed.
func requireSectionAccess(claims *models.JWTClaims, section models.SectionID, required models.AccessLevel) error {
	if claims == nil {
		return appErrors.ErrUnauthorized
	}
	if !HasAccess(EffectiveAccess(claims.Role, claims.SectionOverride), section, required) {
		return appErrors.Clone(appErrors.ErrForbidden, "insufficient section access")
	}
	return nil
}

// viewableSections lists the sections an access map grants at least
// view on, in the canonical section order.
func viewableSections(access models.SectionAccessMap) []models.SectionID {
	var sections []models.SectionID
	for _, section := range models.AllSections {
		if HasAccess(access, section, models.AccessView) {
			sections = append(sections, section)
		}
	}
	return sections
}

func validSection(section models.SectionID) bool {
	for _, s := range models.AllSections {
		if s == section {
			return true
		}
	}
	return false
}
