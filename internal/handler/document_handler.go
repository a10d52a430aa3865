package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/stitchworks/garment-docs-api/internal/dto"
	"github.com/stitchworks/garment-docs-api/internal/middleware"
	"github.com/stitchworks/garment-docs-api/internal/models"
	"github.com/stitchworks/garment-docs-api/internal/service"
	appErrors "github.com/stitchworks/garment-docs-api/pkg/errors"
	"github.com/stitchworks/garment-docs-api/pkg/response"
)

// DocumentHandler exposes document CRUD and workflow endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
	workflow  *service.WorkflowService
}

// NewDocumentHandler builds a new handler.
func NewDocumentHandler(documents *service.DocumentService, workflow *service.WorkflowService) *DocumentHandler {
	return &DocumentHandler{documents: documents, workflow: workflow}
}

// List godoc
// @Summary List documents
// @Tags Documents
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param section query string false "Section filter"
// @Param status query string false "Workflow status filter"
// @Param buyer query string false "Buyer filter"
// @Param search query string false "Search in name and style"
// @Success 200 {object} response.Envelope
// @Router /documents [get]
func (h *DocumentHandler) List(c *gin.Context) {
	var filter models.DocumentFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	filter.Section = models.SectionID(c.Query("section"))
	filter.Status = models.WorkflowStatus(c.Query("status"))
	filter.Buyer = c.Query("buyer")
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	docs, pagination, err := h.documents.List(c.Request.Context(), filter, claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, docs, pagination)
}

// Get godoc
// @Summary Get document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /documents/{id} [get]
func (h *DocumentHandler) Get(c *gin.Context) {
	doc, cacheHit, err := h.documents.GetByID(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, doc, nil, middleware.ExtractMeta(c))
}

// Create godoc
// @Summary Create document
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body dto.CreateDocumentRequest true "Document payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	var req dto.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid document payload"))
		return
	}

	doc, err := h.documents.Create(c.Request.Context(), service.CreateDocumentInput{
		Name:    req.Name,
		Style:   req.Style,
		Season:  req.Season,
		Buyer:   req.Buyer,
		Section: req.Section,
	}, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, doc)
}

// Update godoc
// @Summary Update document metadata
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.UpdateDocumentRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id} [put]
func (h *DocumentHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	var req dto.UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}

	doc, err := h.documents.Update(c.Request.Context(), c.Param("id"), service.UpdateDocumentInput{
		Name:   req.Name,
		Style:  req.Style,
		Season: req.Season,
		Buyer:  req.Buyer,
	}, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// Delete godoc
// @Summary Delete document
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 204 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id} [delete]
func (h *DocumentHandler) Delete(c *gin.Context) {
	claims := claimsFromContext(c)
	if err := h.documents.Delete(c.Request.Context(), c.Param("id"), claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Transition godoc
// @Summary Attempt a workflow transition
// @Tags Workflow
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body dto.TransitionRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /documents/{id}/workflow [post]
func (h *DocumentHandler) Transition(c *gin.Context) {
	claims := claimsFromContext(c)
	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transition payload"))
		return
	}

	doc, err := h.workflow.Transition(c.Request.Context(), c.Param("id"), req.Action, claims, req.Comments)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, doc, nil)
}

// History godoc
// @Summary Workflow history
// @Tags Workflow
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/workflow/history [get]
func (h *DocumentHandler) History(c *gin.Context) {
	history, err := h.workflow.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history, nil)
}

// AvailableActions godoc
// @Summary Transitions available to the caller
// @Tags Workflow
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/workflow/actions [get]
func (h *DocumentHandler) AvailableActions(c *gin.Context) {
	claims := claimsFromContext(c)
	actions, err := h.workflow.AvailableActions(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}

	doc, _, err := h.documents.GetByID(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.AvailableActionsResponse{
		Status:  doc.Workflow.Status,
		Actions: actions,
	}, nil)
}
