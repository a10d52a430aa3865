package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitchworks/garment-docs-api/internal/models"
	appErrors "github.com/stitchworks/garment-docs-api/pkg/errors"
)

func TestAQLStandardForLot(t *testing.T) {
	cases := []struct {
		lot        int
		sampleSize int
	}{
		{2, 2},
		{8, 2},
		{9, 3},
		{50, 8},
		{51, 13},
		{150, 20},
		{500, 50},
		{1200, 80},
		{3200, 125},
		{10000, 200},
		{35000, 315},
		// beyond the table, the largest plan applies
		{100000, 315},
	}
	for _, tc := range cases {
		standard := AQLStandardForLot(tc.lot)
		assert.Equal(t, tc.sampleSize, standard.SampleSize, "lot %d", tc.lot)
	}
}

func TestEvaluateAQL(t *testing.T) {
	cases := []struct {
		name   string
		lot    int
		totals models.DefectTotals
		want   AQLResult
	}{
		{"clean lot passes", 500, models.DefectTotals{}, AQLPassed},
		{"any critical fails", 500, models.DefectTotals{Critical: 1}, AQLFailed},
		{"major at accept passes", 500, models.DefectTotals{Major: 3}, AQLPassed},
		{"major over accept fails", 500, models.DefectTotals{Major: 4}, AQLFailed},
		{"minor at accept passes", 500, models.DefectTotals{Minor: 5}, AQLPassed},
		{"minor over accept fails", 500, models.DefectTotals{Minor: 6}, AQLFailed},
		{"small lot has zero acceptance", 10, models.DefectTotals{Major: 1}, AQLFailed},
		{"large lot tolerates more", 20000, models.DefectTotals{Major: 14, Minor: 21}, AQLPassed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, EvaluateAQL(tc.lot, tc.totals))
		})
	}
}

func TestAQLServiceEvaluate(t *testing.T) {
	store := newInspectionStub()
	store.inspections["insp-1"] = &models.Inspection{
		ID:         "insp-1",
		DocumentID: "doc-1",
		Phase:      "final",
		Table:      models.NewMeasurementTable(),
		Defects: models.DefectRows{
			{ID: "d1", Description: "loose thread", Major: 2, Minor: 3},
		},
	}
	svc := NewAQLService(store)

	eval, err := svc.Evaluate(context.Background(), "insp-1", 280)
	require.NoError(t, err)
	assert.Equal(t, 32, eval.Standard.SampleSize)
	assert.Equal(t, models.DefectTotals{Major: 2, Minor: 3}, eval.Totals)
	assert.Equal(t, AQLPassed, eval.Result)

	eval, err = svc.Evaluate(context.Background(), "insp-1", 90)
	require.NoError(t, err)
	assert.Equal(t, AQLFailed, eval.Result)

	_, err = svc.Evaluate(context.Background(), "insp-1", 1)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Evaluate(context.Background(), "missing", 100)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
