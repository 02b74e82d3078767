package investigation

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matrixWithCells(tp, fp, tn, fn int) *ConfusionMatrix {
	m := NewConfusionMatrix(uuid.New(), "acct-1")
	m.TruePositives = tp
	m.FalsePositives = fp
	m.TrueNegatives = tn
	m.FalseNegatives = fn
	return m
}

func TestConfusionMatrix_Record(t *testing.T) {
	m := NewConfusionMatrix(uuid.New(), "acct-1")

	m.Record(true, true)   // TP
	m.Record(true, false)  // FP
	m.Record(false, false) // TN
	m.Record(false, true)  // FN
	m.RecordExcluded()

	assert.Equal(t, 1, m.TruePositives)
	assert.Equal(t, 1, m.FalsePositives)
	assert.Equal(t, 1, m.TrueNegatives)
	assert.Equal(t, 1, m.FalseNegatives)
	assert.Equal(t, 1, m.ExcludedCount)
	assert.Equal(t, 4, m.Total())
}

// 84 transactions, 48 fraud, 36 not, every score past threshold.
func TestConfusionMatrix_AllFlaggedMixedPopulation(t *testing.T) {
	m := NewConfusionMatrix(uuid.New(), "acct-1")
	for i := 0; i < 48; i++ {
		m.Record(true, true)
	}
	for i := 0; i < 36; i++ {
		m.Record(true, false)
	}

	assert.Equal(t, 48, m.TruePositives)
	assert.Equal(t, 36, m.FalsePositives)
	assert.Equal(t, 0, m.TrueNegatives)
	assert.Equal(t, 0, m.FalseNegatives)

	precision, ok := m.Precision()
	require.True(t, ok)
	assert.InDelta(t, 0.571, precision, 0.001)

	recall, ok := m.Recall()
	require.True(t, ok)
	assert.Equal(t, 1.0, recall)

	assert.Equal(t, 48, m.ActualFraudCount())
}

// 192 transactions, 40 fraud, 152 not, all classified fraud.
func TestConfusionMatrix_AllFlaggedLowPrevalence(t *testing.T) {
	m := NewConfusionMatrix(uuid.New(), "acct-2")
	for i := 0; i < 40; i++ {
		m.Record(true, true)
	}
	for i := 0; i < 152; i++ {
		m.Record(true, false)
	}

	assert.Equal(t, 40, m.TruePositives)
	assert.Equal(t, 152, m.FalsePositives)

	precision, ok := m.Precision()
	require.True(t, ok)
	assert.InDelta(t, 0.208, precision, 0.001)

	recall, ok := m.Recall()
	require.True(t, ok)
	assert.Equal(t, 1.0, recall)
}

func TestConfusionMatrix_UndefinedMetrics(t *testing.T) {
	empty := NewConfusionMatrix(uuid.New(), "acct-1")

	_, ok := empty.Precision()
	assert.False(t, ok, "precision undefined when TP+FP=0")
	_, ok = empty.Recall()
	assert.False(t, ok, "recall undefined when TP+FN=0")
	_, ok = empty.F1()
	assert.False(t, ok)
	_, ok = empty.Accuracy()
	assert.False(t, ok, "accuracy undefined for empty matrix")

	// All true negatives: recall undefined, precision undefined, accuracy defined
	allTN := matrixWithCells(0, 0, 10, 0)
	_, ok = allTN.Precision()
	assert.False(t, ok)
	acc, ok := allTN.Accuracy()
	require.True(t, ok)
	assert.Equal(t, 1.0, acc)
}

func TestConfusionMatrix_F1(t *testing.T) {
	m := matrixWithCells(40, 152, 0, 0)

	f1, ok := m.F1()
	require.True(t, ok)
	// p=0.2083, r=1.0 -> f1 = 2pr/(p+r)
	assert.InDelta(t, 0.3448, f1, 0.001)
}

func TestAggregateMatrices_CellWiseSum(t *testing.T) {
	a := matrixWithCells(48, 36, 0, 0)
	b := matrixWithCells(40, 152, 0, 0)
	a.ExcludedCount = 3
	b.ExcludedCount = 2

	agg := AggregateMatrices([]*ConfusionMatrix{a, b})

	assert.Equal(t, 88, agg.TruePositives)
	assert.Equal(t, 188, agg.FalsePositives)
	assert.Equal(t, 0, agg.TrueNegatives)
	assert.Equal(t, 0, agg.FalseNegatives)
	assert.Equal(t, 5, agg.ExcludedCount)

	// Aggregate equals sum of parts, per cell
	assert.Equal(t, a.Total()+b.Total(), agg.Total())
}

func TestGradeConfidence(t *testing.T) {
	assert.Equal(t, ConfidenceLow, GradeConfidence(0))
	assert.Equal(t, ConfidenceLow, GradeConfidence(9))
	assert.Equal(t, ConfidenceMedium, GradeConfidence(10))
	assert.Equal(t, ConfidenceMedium, GradeConfidence(99))
	assert.Equal(t, ConfidenceHigh, GradeConfidence(100))
	assert.Equal(t, ConfidenceHigh, GradeConfidence(5000))
}
