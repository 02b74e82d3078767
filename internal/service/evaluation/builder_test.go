package evaluation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/investigation"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/values"
)

func scoreWithLabel(t *testing.T, invID uuid.UUID, label investigation.PredictedLabel) *investigation.TransactionScore {
	t.Helper()
	return investigation.NewTransactionScore(
		invID, uuid.New(),
		values.MustNewRiskScore(0.5), nil, values.MustNewRiskScore(0.5),
		investigation.MethodHeuristicOnly, label,
	)
}

func boolPtr(b bool) *bool { return &b }

func TestBuilder_Build(t *testing.T) {
	builder := NewBuilder(zaptest.NewLogger(t))
	invID := uuid.New()

	tp := scoreWithLabel(t, invID, investigation.LabelFraud)
	fp := scoreWithLabel(t, invID, investigation.LabelFraud)
	tn := scoreWithLabel(t, invID, investigation.LabelNotFraud)
	fn := scoreWithLabel(t, invID, investigation.LabelNotFraud)

	truth := map[uuid.UUID]*bool{
		tp.TransactionID: boolPtr(true),
		fp.TransactionID: boolPtr(false),
		tn.TransactionID: boolPtr(false),
		fn.TransactionID: boolPtr(true),
	}

	matrix := builder.Build(invID, "acct-1", []*investigation.TransactionScore{tp, fp, tn, fn}, truth)

	assert.Equal(t, 1, matrix.TruePositives)
	assert.Equal(t, 1, matrix.FalsePositives)
	assert.Equal(t, 1, matrix.TrueNegatives)
	assert.Equal(t, 1, matrix.FalseNegatives)
	assert.Equal(t, 0, matrix.ExcludedCount)

	// Matrix total equals the labeled transaction count
	assert.Equal(t, 4, matrix.Total())
}

func TestBuilder_NullGroundTruthExcluded(t *testing.T) {
	builder := NewBuilder(zaptest.NewLogger(t))
	invID := uuid.New()

	labeled := scoreWithLabel(t, invID, investigation.LabelNotFraud)
	nullLabel := scoreWithLabel(t, invID, investigation.LabelNotFraud)
	missing := scoreWithLabel(t, invID, investigation.LabelFraud)

	truth := map[uuid.UUID]*bool{
		labeled.TransactionID:   boolPtr(false),
		nullLabel.TransactionID: nil,
		// missing has no entry at all
	}

	matrix := builder.Build(invID, "acct-1",
		[]*investigation.TransactionScore{labeled, nullLabel, missing}, truth)

	assert.Equal(t, 2, matrix.ExcludedCount, "null and missing lookups are both excluded")
	assert.Equal(t, 1, matrix.TrueNegatives, "only the explicitly labeled transaction counts")
	assert.Equal(t, 1, matrix.Total())
}

func TestBuilder_Aggregate(t *testing.T) {
	builder := NewBuilder(zaptest.NewLogger(t))
	invID := uuid.New()

	var scoresA []*investigation.TransactionScore
	truthA := make(map[uuid.UUID]*bool)
	for i := 0; i < 48; i++ {
		s := scoreWithLabel(t, invID, investigation.LabelFraud)
		truthA[s.TransactionID] = boolPtr(true)
		scoresA = append(scoresA, s)
	}
	for i := 0; i < 36; i++ {
		s := scoreWithLabel(t, invID, investigation.LabelFraud)
		truthA[s.TransactionID] = boolPtr(false)
		scoresA = append(scoresA, s)
	}

	var scoresB []*investigation.TransactionScore
	truthB := make(map[uuid.UUID]*bool)
	for i := 0; i < 40; i++ {
		s := scoreWithLabel(t, invID, investigation.LabelFraud)
		truthB[s.TransactionID] = boolPtr(true)
		scoresB = append(scoresB, s)
	}
	for i := 0; i < 152; i++ {
		s := scoreWithLabel(t, invID, investigation.LabelFraud)
		truthB[s.TransactionID] = boolPtr(false)
		scoresB = append(scoresB, s)
	}

	matrixA := builder.Build(invID, "acct-a", scoresA, truthA)
	matrixB := builder.Build(uuid.New(), "acct-b", scoresB, truthB)

	precisionA, ok := matrixA.Precision()
	require.True(t, ok)
	assert.InDelta(t, 0.571, precisionA, 0.001)

	precisionB, ok := matrixB.Precision()
	require.True(t, ok)
	assert.InDelta(t, 0.208, precisionB, 0.001)

	agg := builder.Aggregate([]*investigation.ConfusionMatrix{matrixA, matrixB})
	assert.Equal(t, 88, agg.TruePositives)
	assert.Equal(t, 188, agg.FalsePositives)
	assert.Equal(t, 0, agg.TrueNegatives)
	assert.Equal(t, 0, agg.FalseNegatives)
}
