package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stitchworks/garment-docs-api/internal/models"
	appErrors "github.com/stitchworks/garment-docs-api/pkg/errors"
)

// Actor identifies who performs a workflow transition.
type Actor struct {
	ID   string
	Name string
	Role models.UserRole
}

var submitterRoles = map[models.UserRole]struct{}{
	models.RoleSuperAdmin:   {},
	models.RoleAdmin:        {},
	models.RoleDirector:     {},
	models.RoleMerchandiser: {},
	models.RoleQC:           {},
}

var approverRoles = map[models.UserRole]struct{}{
	models.RoleSuperAdmin: {},
	models.RoleAdmin:      {},
	models.RoleDirector:   {},
}

// CanSubmit reports whether the role belongs to the submitter set.
func CanSubmit(role models.UserRole) bool {
	_, ok := submitterRoles[role]
	return ok
}

// CanApprove reports whether the role belongs to the approver set.
func CanApprove(role models.UserRole) bool {
	_, ok := approverRoles[role]
	return ok
}

// transitionRule describes one legal edge of the state machine.
type transitionRule struct {
	from      []models.WorkflowStatus
	to        models.WorkflowStatus
	roleCheck func(models.UserRole) bool
	needsNote bool
}

var transitionRules = map[models.WorkflowActionType]transitionRule{
	models.ActionSubmit: {
		from:      []models.WorkflowStatus{models.WorkflowDraft, models.WorkflowRejected},
		to:        models.WorkflowSubmitted,
		roleCheck: CanSubmit,
	},
	models.ActionRecall: {
		from:      []models.WorkflowStatus{models.WorkflowSubmitted},
		to:        models.WorkflowDraft,
		roleCheck: func(r models.UserRole) bool { return CanSubmit(r) || CanApprove(r) },
	},
	models.ActionApprove: {
		from:      []models.WorkflowStatus{models.WorkflowSubmitted},
		to:        models.WorkflowApproved,
		roleCheck: CanApprove,
	},
	models.ActionReject: {
		from:      []models.WorkflowStatus{models.WorkflowSubmitted},
		to:        models.WorkflowRejected,
		roleCheck: CanApprove,
		needsNote: true,
	},
	models.ActionRequestRevision: {
		from:      []models.WorkflowStatus{models.WorkflowApproved},
		to:        models.WorkflowDraft,
		roleCheck: CanSubmit,
	},
}

// AttemptTransition validates and applies a workflow action, returning a
// new state with one appended history entry. Checks run in order: the
// action must be legal from the current status, the actor's role must be
// permitted, and REJECT requires a comment that is non-empty after
// trimming. A failed attempt returns the typed error and leaves the
// input state untouched.
func AttemptTransition(state models.WorkflowState, action models.WorkflowActionType, actor Actor, comment string) (models.WorkflowState, error) {
	rule, ok := transitionRules[action]
	if !ok {
		return state, appErrors.Clone(appErrors.ErrIllegalTransition, fmt.Sprintf("unknown workflow action %s", action))
	}
	if !statusIn(state.Status, rule.from) {
		return state, appErrors.Clone(appErrors.ErrIllegalTransition,
			fmt.Sprintf("%s is not valid while %s", action, state.Status))
	}
	if rule.roleCheck != nil && !rule.roleCheck(actor.Role) {
		return state, appErrors.Clone(appErrors.ErrForbidden,
			fmt.Sprintf("role %s may not %s", actor.Role, action))
	}
	trimmed := strings.TrimSpace(comment)
	if rule.needsNote && trimmed == "" {
		return state, appErrors.ErrMissingRequiredComment
	}

	next := state.Clone()
	now := time.Now().UTC()
	next.Status = rule.to

	switch action {
	case models.ActionSubmit:
		next.SubmittedBy = actor.Name
		next.SubmittedAt = &now
		next.RejectedBy = ""
		next.RejectedAt = nil
		next.RejectionComment = ""
	case models.ActionRecall:
		next.SubmittedBy = ""
		next.SubmittedAt = nil
	case models.ActionApprove:
		next.ApprovedBy = actor.Name
		next.ApprovedAt = &now
	case models.ActionReject:
		next.RejectedBy = actor.Name
		next.RejectedAt = &now
		next.RejectionComment = trimmed
		next.ApprovedBy = ""
		next.ApprovedAt = nil
	case models.ActionRequestRevision:
		next.ApprovedBy = ""
		next.ApprovedAt = nil
	}

	next.History = append(next.History, models.WorkflowAction{
		ID:        uuid.NewString(),
		Action:    action,
		UserID:    actor.ID,
		UserName:  actor.Name,
		UserRole:  actor.Role,
		Timestamp: now,
		Comments:  trimmed,
	})

	return next, nil
}

// LegalActions lists the transitions the role may currently attempt.
func LegalActions(state models.WorkflowState, role models.UserRole) []models.WorkflowActionType {
	ordered := []models.WorkflowActionType{
		models.ActionSubmit,
		models.ActionRecall,
		models.ActionApprove,
		models.ActionReject,
		models.ActionRequestRevision,
	}
	legal := make([]models.WorkflowActionType, 0, len(ordered))
	for _, action := range ordered {
		rule := transitionRules[action]
		if statusIn(state.Status, rule.from) && rule.roleCheck(role) {
			legal = append(legal, action)
		}
	}
	return legal
}

func statusIn(status models.WorkflowStatus, set []models.WorkflowStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

type workflowDocumentStore interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	UpdateWorkflow(ctx context.Context, id string, workflow models.WorkflowState, updatedAt time.Time) error
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// WorkflowService applies approval transitions to persisted documents.
type WorkflowService struct {
	docs    workflowDocumentStore
	audit   auditLogger
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
}

// NewWorkflowService constructs the service.
func NewWorkflowService(docs workflowDocumentStore, audit auditLogger, cache *CacheService, metrics *MetricsService, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{docs: docs, audit: audit, cache: cache, metrics: metrics, logger: logger}
}

// Transition loads the document, applies the action, and persists the
// resulting workflow state. Nothing is written on a rejected attempt.
func (s *WorkflowService) Transition(ctx context.Context, documentID string, action models.WorkflowActionType, claims *models.JWTClaims, comment string) (*models.Document, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}

	actor := Actor{ID: claims.UserID, Name: claims.FullName, Role: claims.Role}
	next, err := AttemptTransition(doc.Workflow, action, actor, comment)
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordWorkflowTransition(string(action), false)
		}
		return nil, err
	}

	now := time.Now().UTC()
	if err := s.docs.UpdateWorkflow(ctx, doc.ID, next, now); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist workflow state")
	}
	doc.Workflow = next
	doc.UpdatedAt = now

	if s.metrics != nil {
		s.metrics.RecordWorkflowTransition(string(action), true)
	}
	if s.cache.Enabled() {
		if err := s.cache.Invalidate(ctx, documentCachePattern(doc.ID)); err != nil {
			s.logger.Warn("failed to invalidate document cache", zap.String("document_id", doc.ID), zap.Error(err))
		}
	}
	s.emitAudit(ctx, claims, doc, action, comment)

	return doc, nil
}

// History returns the append-only action trail for a document.
func (s *WorkflowService) History(ctx context.Context, documentID string) ([]models.WorkflowAction, error) {
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return doc.Workflow.History, nil
}

// AvailableActions resolves the transitions the actor may attempt now.
func (s *WorkflowService) AvailableActions(ctx context.Context, documentID string, claims *models.JWTClaims) ([]models.WorkflowActionType, error) {
	if claims == nil {
		return nil, appErrors.ErrUnauthorized
	}
	doc, err := s.docs.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return LegalActions(doc.Workflow, claims.Role), nil
}

func (s *WorkflowService) emitAudit(ctx context.Context, claims *models.JWTClaims, doc *models.Document, action models.WorkflowActionType, comment string) {
	if s.audit == nil {
		return
	}
	payload, _ := json.Marshal(map[string]interface{}{
		"action":  action,
		"status":  doc.Workflow.Status,
		"comment": strings.TrimSpace(comment),
	})
	log := &models.AuditLog{
		UserID:     &claims.UserID,
		Action:     models.AuditActionWorkflowTransition,
		Resource:   string(doc.Section),
		ResourceID: &doc.ID,
		NewValues:  payload,
		IPAddress:  "system",
		UserAgent:  "workflow-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to persist audit log", zap.Error(err))
	}
}

func documentCachePattern(id string) string {
	return "documents:" + id + "*"
}
