package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/stitchworks/garment-docs-api/internal/models"
	appErrors "github.com/stitchworks/garment-docs-api/pkg/errors"
)

// AQLResult is the verdict of an AQL sampling inspection.
type AQLResult string

// AQL verdicts.
const (
	AQLPassed AQLResult = "PASSED"
	AQLFailed AQLResult = "FAILED"
)

// AcceptReject is an accept/reject number pair from the sampling plan.
type AcceptReject struct {
	Accept int `json:"accept"`
	Reject int `json:"reject"`
}

// AQLStandard is one lot-size bracket of the General Inspection Level II
// single sampling plan, with accept/reject numbers at AQL 2.5 for major
// defects and AQL 4.0 for minor defects.
type AQLStandard struct {
	MinLot     int          `json:"min_lot"`
	MaxLot     int          `json:"max_lot"`
	SampleSize int          `json:"sample_size"`
	Major      AcceptReject `json:"major"`
	Minor      AcceptReject `json:"minor"`
}

var aqlTable = []AQLStandard{
	{MinLot: 2, MaxLot: 8, SampleSize: 2, Major: AcceptReject{0, 1}, Minor: AcceptReject{0, 1}},
	{MinLot: 9, MaxLot: 15, SampleSize: 3, Major: AcceptReject{0, 1}, Minor: AcceptReject{0, 1}},
	{MinLot: 16, MaxLot: 25, SampleSize: 5, Major: AcceptReject{0, 1}, Minor: AcceptReject{0, 1}},
	{MinLot: 26, MaxLot: 50, SampleSize: 8, Major: AcceptReject{0, 1}, Minor: AcceptReject{1, 2}},
	{MinLot: 51, MaxLot: 90, SampleSize: 13, Major: AcceptReject{1, 2}, Minor: AcceptReject{1, 2}},
	{MinLot: 91, MaxLot: 150, SampleSize: 20, Major: AcceptReject{1, 2}, Minor: AcceptReject{2, 3}},
	{MinLot: 151, MaxLot: 280, SampleSize: 32, Major: AcceptReject{2, 3}, Minor: AcceptReject{3, 4}},
	{MinLot: 281, MaxLot: 500, SampleSize: 50, Major: AcceptReject{3, 4}, Minor: AcceptReject{5, 6}},
	{MinLot: 501, MaxLot: 1200, SampleSize: 80, Major: AcceptReject{5, 6}, Minor: AcceptReject{7, 8}},
	{MinLot: 1201, MaxLot: 3200, SampleSize: 125, Major: AcceptReject{7, 8}, Minor: AcceptReject{10, 11}},
	{MinLot: 3201, MaxLot: 10000, SampleSize: 200, Major: AcceptReject{10, 11}, Minor: AcceptReject{14, 15}},
	{MinLot: 10001, MaxLot: 35000, SampleSize: 315, Major: AcceptReject{14, 15}, Minor: AcceptReject{21, 22}},
}

// AQLStandardForLot resolves the sampling bracket for a lot size. Lots
// beyond the last bracket use the last bracket's plan.
func AQLStandardForLot(lotSize int) AQLStandard {
	for _, standard := range aqlTable {
		if lotSize >= standard.MinLot && lotSize <= standard.MaxLot {
			return standard
		}
	}
	return aqlTable[len(aqlTable)-1]
}

// EvaluateAQL judges sampled defect counts against the lot's plan. Any
// critical defect fails the lot; major and minor counts fail when they
// exceed the bracket's accept number.
func EvaluateAQL(lotSize int, totals models.DefectTotals) AQLResult {
	standard := AQLStandardForLot(lotSize)
	if totals.Critical > 0 {
		return AQLFailed
	}
	if totals.Major > standard.Major.Accept {
		return AQLFailed
	}
	if totals.Minor > standard.Minor.Accept {
		return AQLFailed
	}
	return AQLPassed
}

// AQLEvaluation bundles the plan and verdict returned to callers.
type AQLEvaluation struct {
	LotSize  int                 `json:"lot_size"`
	Standard AQLStandard         `json:"standard"`
	Totals   models.DefectTotals `json:"totals"`
	Result   AQLResult           `json:"result"`
}

// AQLService exposes the sampling plan lookup over inspections.
type AQLService struct {
	inspections inspectionStore
}

// NewAQLService constructs the service.
func NewAQLService(inspections inspectionStore) *AQLService {
	return &AQLService{inspections: inspections}
}

// Evaluate runs the AQL judgement over an inspection's defect sheet for
// the given lot size.
func (s *AQLService) Evaluate(ctx context.Context, inspectionID string, lotSize int) (*AQLEvaluation, error) {
	if lotSize < 2 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "lot size must be at least 2")
	}
	insp, err := s.inspections.GetByID(ctx, inspectionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load inspection")
	}
	totals := ComputeDefectTotals(insp.Defects)
	return &AQLEvaluation{
		LotSize:  lotSize,
		Standard: AQLStandardForLot(lotSize),
		Totals:   totals,
		Result:   EvaluateAQL(lotSize, totals),
	}, nil
}
