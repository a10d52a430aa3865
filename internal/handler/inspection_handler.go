package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/stitchworks/garment-docs-api/internal/dto"
	"github.com/stitchworks/garment-docs-api/internal/service"
	appErrors "github.com/stitchworks/garment-docs-api/pkg/errors"
	"github.com/stitchworks/garment-docs-api/pkg/response"
)

// InspectionHandler exposes QC inspection endpoints.
type InspectionHandler struct {
	inspections  *service.InspectionService
	measurements *service.MeasurementService
	aql          *service.AQLService
}

// NewInspectionHandler builds a new handler.
func NewInspectionHandler(inspections *service.InspectionService, measurements *service.MeasurementService, aql *service.AQLService) *InspectionHandler {
	return &InspectionHandler{inspections: inspections, measurements: measurements, aql: aql}
}

// Create godoc
// @Summary Open an inspection phase
// @Tags Inspections
// @Accept json
// @Produce json
// @Param payload body dto.CreateInspectionRequest true "Inspection payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /inspections [post]
func (h *InspectionHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	var req dto.CreateInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid inspection payload"))
		return
	}

	insp, err := h.inspections.Create(c.Request.Context(), req.DocumentID, req.Phase, req.MasterTolerance, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, insp)
}

// Get godoc
// @Summary Get inspection
// @Tags Inspections
// @Produce json
// @Param id path string true "Inspection ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /inspections/{id} [get]
func (h *InspectionHandler) Get(c *gin.Context) {
	insp, err := h.inspections.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insp, nil)
}

// ListByDocument godoc
// @Summary List inspections of a document
// @Tags Inspections
// @Produce json
// @Param documentId query string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /inspections [get]
func (h *InspectionHandler) ListByDocument(c *gin.Context) {
	documentID := c.Query("documentId")
	if documentID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "documentId required"))
		return
	}
	inspections, err := h.inspections.ListByDocument(c.Request.Context(), documentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, inspections, nil)
}

// ApplyTableOp godoc
// @Summary Apply a structural edit to the measurement grid
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.TableOpRequest true "Table operation"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /inspections/{id}/table [post]
func (h *InspectionHandler) ApplyTableOp(c *gin.Context) {
	var req dto.TableOpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid table operation"))
		return
	}

	insp, err := h.measurements.ApplyTableOp(c.Request.Context(), c.Param("id"), service.TableOp{
		Kind:        req.Kind,
		Size:        req.Size,
		GroupID:     req.GroupID,
		Color:       req.Color,
		ColumnIndex: req.ColumnIndex,
		Point:       req.Point,
		Name:        req.Name,
		TolPlus:     req.TolPlus,
		TolMinus:    req.TolMinus,
		RowID:       req.RowID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insp, nil)
}

// EvaluateTable godoc
// @Summary Evaluate tolerance for every measurement cell
// @Tags Inspections
// @Produce json
// @Param id path string true "Inspection ID"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/table/evaluation [get]
func (h *InspectionHandler) EvaluateTable(c *gin.Context) {
	results, err := h.measurements.EvaluateTable(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, results, nil)
}

// SetDefects godoc
// @Summary Replace defect rows
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.SetDefectsRequest true "Defect rows"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /inspections/{id}/defects [put]
func (h *InspectionHandler) SetDefects(c *gin.Context) {
	claims := claimsFromContext(c)
	var req dto.SetDefectsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid defects payload"))
		return
	}

	insp, err := h.inspections.SetDefects(c.Request.Context(), c.Param("id"), req.Defects, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insp, nil)
}

// SetThresholds godoc
// @Summary Replace acceptance thresholds
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.SetThresholdsRequest true "Thresholds"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/thresholds [put]
func (h *InspectionHandler) SetThresholds(c *gin.Context) {
	claims := claimsFromContext(c)
	var req dto.SetThresholdsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid thresholds payload"))
		return
	}

	insp, err := h.inspections.SetThresholds(c.Request.Context(), c.Param("id"), req.Thresholds, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insp, nil)
}

// SetResult godoc
// @Summary Record a manual overall verdict
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.SetResultRequest true "Verdict"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/result [put]
func (h *InspectionHandler) SetResult(c *gin.Context) {
	claims := claimsFromContext(c)
	var req dto.SetResultRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid result payload"))
		return
	}

	insp, err := h.inspections.SetManualResult(c.Request.Context(), c.Param("id"), req.Result, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insp, nil)
}

// Recompute godoc
// @Summary Recompute the defect judgement
// @Tags Inspections
// @Produce json
// @Param id path string true "Inspection ID"
// @Success 200 {object} response.Envelope
// @Router /inspections/{id}/judgement [post]
func (h *InspectionHandler) Recompute(c *gin.Context) {
	claims := claimsFromContext(c)
	insp, err := h.inspections.RecomputeJudgement(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insp, nil)
}

// Clone godoc
// @Summary Clone an inspection into a new phase
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Source inspection ID"
// @Param payload body dto.CloneInspectionRequest true "Target phase"
// @Success 201 {object} response.Envelope
// @Router /inspections/{id}/clone [post]
func (h *InspectionHandler) Clone(c *gin.Context) {
	claims := claimsFromContext(c)
	var req dto.CloneInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid clone payload"))
		return
	}

	insp, err := h.inspections.CloneForPhase(c.Request.Context(), c.Param("id"), req.Phase, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, insp)
}

// Delete godoc
// @Summary Delete inspection
// @Tags Inspections
// @Produce json
// @Param id path string true "Inspection ID"
// @Success 204 {object} response.Envelope
// @Router /inspections/{id} [delete]
func (h *InspectionHandler) Delete(c *gin.Context) {
	if err := h.inspections.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// EvaluateAQL godoc
// @Summary Evaluate defects against the AQL sampling plan
// @Tags Inspections
// @Accept json
// @Produce json
// @Param id path string true "Inspection ID"
// @Param payload body dto.AQLEvaluateRequest true "Lot size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /inspections/{id}/aql [post]
func (h *InspectionHandler) EvaluateAQL(c *gin.Context) {
	var req dto.AQLEvaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid aql payload"))
		return
	}

	evaluation, err := h.aql.Evaluate(c.Request.Context(), c.Param("id"), req.LotSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, evaluation, nil)
}
