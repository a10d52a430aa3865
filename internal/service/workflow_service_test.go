package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchworks/garment-docs-api/internal/models"
	appErrors "github.com/stitchworks/garment-docs-api/pkg/errors"
)

var (
	merch    = Actor{ID: "u-merch", Name: "Mira", Role: models.RoleMerchandiser}
	director = Actor{ID: "u-dir", Name: "Dewi", Role: models.RoleDirector}
	viewer   = Actor{ID: "u-view", Name: "Vina", Role: models.RoleViewer}
)

func TestSubmitFromDraft(t *testing.T) {
	state := models.NewWorkflowState()

	next, err := AttemptTransition(state, models.ActionSubmit, merch, "")
	require.NoError(t, err)

	assert.Equal(t, models.WorkflowSubmitted, next.Status)
	assert.Equal(t, merch.Name, next.SubmittedBy)
	require.NotNil(t, next.SubmittedAt)
	require.Len(t, next.History, 1)
	assert.Equal(t, models.ActionSubmit, next.History[0].Action)
	assert.Equal(t, merch.ID, next.History[0].UserID)

	// the input state is untouched
	assert.Equal(t, models.WorkflowDraft, state.Status)
	assert.Empty(t, state.History)
}

func TestIllegalTransitionsLeaveStateUnchanged(t *testing.T) {
	cases := []struct {
		status models.WorkflowStatus
		action models.WorkflowActionType
	}{
		{models.WorkflowDraft, models.ActionApprove},
		{models.WorkflowDraft, models.ActionReject},
		{models.WorkflowDraft, models.ActionRecall},
		{models.WorkflowDraft, models.ActionRequestRevision},
		{models.WorkflowSubmitted, models.ActionSubmit},
		{models.WorkflowSubmitted, models.ActionRequestRevision},
		{models.WorkflowApproved, models.ActionApprove},
		{models.WorkflowApproved, models.ActionSubmit},
		{models.WorkflowApproved, models.ActionReject},
		{models.WorkflowRejected, models.ActionApprove},
		{models.WorkflowRejected, models.ActionReject},
	}
	for _, tc := range cases {
		state := models.NewWorkflowState()
		state.Status = tc.status

		result, err := AttemptTransition(state, tc.action, director, "note")
		require.Error(t, err, "%s from %s", tc.action, tc.status)
		appErr := appErrors.FromError(err)
		assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErr.Code)
		assert.Equal(t, tc.status, result.Status)
		assert.Len(t, result.History, len(state.History))
	}
}

func TestTransitionRoleGuards(t *testing.T) {
	submitted := models.NewWorkflowState()
	submitted.Status = models.WorkflowSubmitted

	_, err := AttemptTransition(submitted, models.ActionApprove, merch, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = AttemptTransition(models.NewWorkflowState(), models.ActionSubmit, viewer, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	// recall is open to submitters and approvers alike
	_, err = AttemptTransition(submitted, models.ActionRecall, merch, "")
	require.NoError(t, err)
	_, err = AttemptTransition(submitted, models.ActionRecall, director, "")
	require.NoError(t, err)
}

func TestRejectRequiresComment(t *testing.T) {
	state := models.NewWorkflowState()
	state.Status = models.WorkflowSubmitted

	result, err := AttemptTransition(state, models.ActionReject, director, "   ")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrMissingRequiredComment.Code, appErrors.FromError(err).Code)
	assert.Equal(t, models.WorkflowSubmitted, result.Status)
	assert.Empty(t, result.History)

	next, err := AttemptTransition(state, models.ActionReject, director, "too short")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowRejected, next.Status)
	assert.Equal(t, "too short", next.RejectionComment)
}

func TestRejectClearsApproval(t *testing.T) {
	now := time.Now().UTC()
	state := models.NewWorkflowState()
	state.Status = models.WorkflowSubmitted
	state.ApprovedBy = "someone"
	state.ApprovedAt = &now

	next, err := AttemptTransition(state, models.ActionReject, director, "fix seams")
	require.NoError(t, err)
	assert.Empty(t, next.ApprovedBy)
	assert.Nil(t, next.ApprovedAt)
	assert.Equal(t, director.Name, next.RejectedBy)
}

func TestRecallClearsSubmission(t *testing.T) {
	state := models.NewWorkflowState()
	submitted, err := AttemptTransition(state, models.ActionSubmit, merch, "")
	require.NoError(t, err)

	recalled, err := AttemptTransition(submitted, models.ActionRecall, merch, "")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowDraft, recalled.Status)
	assert.Empty(t, recalled.SubmittedBy)
	assert.Nil(t, recalled.SubmittedAt)
	assert.Len(t, recalled.History, 2)
}

func TestRequestRevisionReopensApproved(t *testing.T) {
	state := models.NewWorkflowState()
	state.Status = models.WorkflowApproved
	state.ApprovedBy = "Dewi"
	now := time.Now().UTC()
	state.ApprovedAt = &now

	next, err := AttemptTransition(state, models.ActionRequestRevision, merch, "")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowDraft, next.Status)
	assert.Empty(t, next.ApprovedBy)
	assert.Nil(t, next.ApprovedAt)
}

func TestSubmitRejectResubmitScenario(t *testing.T) {
	state := models.NewWorkflowState()

	submitted, err := AttemptTransition(state, models.ActionSubmit, merch, "")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowSubmitted, submitted.Status)
	assert.Equal(t, merch.Name, submitted.SubmittedBy)
	require.Len(t, submitted.History, 1)

	rejected, err := AttemptTransition(submitted, models.ActionReject, director, "fix seams")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowRejected, rejected.Status)
	assert.Equal(t, "fix seams", rejected.RejectionComment)
	assert.Empty(t, rejected.ApprovedBy)
	require.Len(t, rejected.History, 2)

	resubmitted, err := AttemptTransition(rejected, models.ActionSubmit, merch, "")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowSubmitted, resubmitted.Status)
	assert.Empty(t, resubmitted.RejectedBy)
	assert.Empty(t, resubmitted.RejectionComment)
	assert.Nil(t, resubmitted.RejectedAt)
	require.Len(t, resubmitted.History, 3)
}

func TestLockedStates(t *testing.T) {
	state := models.NewWorkflowState()
	assert.False(t, state.Locked())

	state.Status = models.WorkflowSubmitted
	assert.True(t, state.Locked())
	state.Status = models.WorkflowApproved
	assert.True(t, state.Locked())
	state.Status = models.WorkflowRejected
	assert.False(t, state.Locked())
}

func TestLegalActions(t *testing.T) {
	draft := models.NewWorkflowState()
	assert.Equal(t, []models.WorkflowActionType{models.ActionSubmit}, LegalActions(draft, models.RoleMerchandiser))
	assert.Empty(t, LegalActions(draft, models.RoleViewer))

	submitted := models.NewWorkflowState()
	submitted.Status = models.WorkflowSubmitted
	assert.Equal(t, []models.WorkflowActionType{models.ActionRecall}, LegalActions(submitted, models.RoleQC))
	assert.Equal(t,
		[]models.WorkflowActionType{models.ActionRecall, models.ActionApprove, models.ActionReject},
		LegalActions(submitted, models.RoleDirector))
}

type auditStub struct {
	logs []*models.AuditLog
}

func (a *auditStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

type workflowDocStub struct {
	docs    map[string]*models.Document
	updates int
}

func newWorkflowDocStub() *workflowDocStub {
	return &workflowDocStub{docs: make(map[string]*models.Document)}
}

func (s *workflowDocStub) GetByID(ctx context.Context, id string) (*models.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *doc
	clone.Workflow = doc.Workflow.Clone()
	return &clone, nil
}

func (s *workflowDocStub) UpdateWorkflow(ctx context.Context, id string, workflow models.WorkflowState, updatedAt time.Time) error {
	doc, ok := s.docs[id]
	if !ok {
		return sql.ErrNoRows
	}
	doc.Workflow = workflow
	doc.UpdatedAt = updatedAt
	s.updates++
	return nil
}

func TestWorkflowServiceTransitionPersists(t *testing.T) {
	store := newWorkflowDocStub()
	store.docs["doc-1"] = &models.Document{
		ID:       "doc-1",
		Section:  models.SectionQCInspect,
		Workflow: models.NewWorkflowState(),
	}
	audit := &auditStub{}
	svc := NewWorkflowService(store, audit, nil, nil, nil)
	claims := &models.JWTClaims{UserID: "u-merch", FullName: "Mira", Role: models.RoleMerchandiser}

	doc, err := svc.Transition(context.Background(), "doc-1", models.ActionSubmit, claims, "")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowSubmitted, doc.Workflow.Status)
	assert.Equal(t, 1, store.updates)
	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionWorkflowTransition, audit.logs[0].Action)
}

func TestWorkflowServiceRejectedAttemptWritesNothing(t *testing.T) {
	store := newWorkflowDocStub()
	store.docs["doc-1"] = &models.Document{
		ID:       "doc-1",
		Section:  models.SectionQCInspect,
		Workflow: models.NewWorkflowState(),
	}
	audit := &auditStub{}
	svc := NewWorkflowService(store, audit, nil, nil, nil)
	claims := &models.JWTClaims{UserID: "u-dir", FullName: "Dewi", Role: models.RoleDirector}

	_, err := svc.Transition(context.Background(), "doc-1", models.ActionApprove, claims, "")
	require.Error(t, err)
	assert.Equal(t, 0, store.updates)
	assert.Empty(t, audit.logs)
	assert.Equal(t, models.WorkflowDraft, store.docs["doc-1"].Workflow.Status)
}

func TestWorkflowServiceTransitionNotFound(t *testing.T) {
	svc := NewWorkflowService(newWorkflowDocStub(), nil, nil, nil, nil)
	claims := &models.JWTClaims{UserID: "u", FullName: "U", Role: models.RoleAdmin}

	_, err := svc.Transition(context.Background(), "missing", models.ActionSubmit, claims, "")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
