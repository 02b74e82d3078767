package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/meridianrisk/fraud-impact-engine/internal/domain/errors"
)

// uniformBatch builds vectors with small amount variation plus one
// extreme outlier at the end when withOutlier is set.
func uniformBatch(n int, withOutlier bool) []*FeatureVector {
	batch := make([]*FeatureVector, 0, n+1)
	gap := 45 * time.Minute
	for i := 0; i < n; i++ {
		batch = append(batch, &FeatureVector{
			Amount:            50 + float64(i%7),
			TimeGap:           &gap,
			HourOfDay:         12,
			DayOfWeek:         2,
			AmountZ:           0.1,
			TrailingHourCount: 1,
			WithinActiveHours: true,
		})
	}
	if withOutlier {
		batch = append(batch, &FeatureVector{
			Amount:            25000,
			TimeGap:           &gap,
			HourOfDay:         3,
			DayOfWeek:         2,
			AmountZ:           9.5,
			TrailingHourCount: 14,
			WithinActiveHours: false,
		})
	}
	return batch
}

func TestAnomalyScorer_InsufficientSample(t *testing.T) {
	scorer := NewAnomalyScorer(5, 0.1, 42)

	_, err := scorer.Score(uniformBatch(4, false))
	require.Error(t, err)
	assert.True(t, domainerrors.IsType(err, domainerrors.ErrorTypeInsufficientSample))
}

func TestAnomalyScorer_OutlierScoresHighest(t *testing.T) {
	scorer := NewAnomalyScorer(5, 0.1, 42)
	batch := uniformBatch(50, true)

	scores, err := scorer.Score(batch)
	require.NoError(t, err)
	require.Len(t, scores, len(batch))

	outlier := scores[len(scores)-1].Value()
	for i := 0; i < len(scores)-1; i++ {
		assert.Less(t, scores[i].Value(), outlier,
			"ordinary transaction %d must score below the outlier", i)
	}
	assert.Greater(t, outlier, 0.5)
}

func TestAnomalyScorer_Deterministic(t *testing.T) {
	batch := uniformBatch(40, true)

	first, err := NewAnomalyScorer(5, 0.1, 7).Score(batch)
	require.NoError(t, err)
	second, err := NewAnomalyScorer(5, 0.1, 7).Score(batch)
	require.NoError(t, err)

	for i := range first {
		assert.Equal(t, first[i].Value(), second[i].Value(),
			"same seed and batch must reproduce score %d exactly", i)
	}
}

func TestAnomalyScorer_ScoresWithinUnitInterval(t *testing.T) {
	scores, err := NewAnomalyScorer(5, 0.1, 99).Score(uniformBatch(30, true))
	require.NoError(t, err)

	for i, s := range scores {
		assert.GreaterOrEqual(t, s.Value(), 0.0, "score %d", i)
		assert.LessOrEqual(t, s.Value(), 1.0, "score %d", i)
	}
}

func TestAnomalyScorer_ImputesUnavailableFeatures(t *testing.T) {
	batch := uniformBatch(20, false)
	// First transaction of a history has no gap or speed; must not panic
	// or read as an extreme value
	batch[0].TimeGap = nil
	batch[0].ImpliedSpeedKmh = nil

	scores, err := NewAnomalyScorer(5, 0.1, 3).Score(batch)
	require.NoError(t, err)
	assert.Len(t, scores, len(batch))
}

func TestIsolationForest_NormalizesBySubsampleSize(t *testing.T) {
	rows := [][]float64{
		{50, 1}, {51, 1}, {49, 1}, {52, 1}, {50, 2},
		{48, 1}, {53, 1}, {50, 1}, {25000, 14},
	}

	// Nine rows under a 256 cap and an exact-size cap draw the same
	// subsample, so the scores must be identical. A forest that
	// normalizes with the configured cap instead of the fitted size
	// deflates the capped variant.
	capped := NewIsolationForest(50, 256, 11)
	require.NoError(t, capped.Fit(rows))
	cappedScores, err := capped.DecisionScores(rows)
	require.NoError(t, err)

	exact := NewIsolationForest(50, len(rows), 11)
	require.NoError(t, exact.Fit(rows))
	exactScores, err := exact.DecisionScores(rows)
	require.NoError(t, err)

	for i := range rows {
		assert.Equal(t, exactScores[i], cappedScores[i], "row %d", i)
	}
}

func TestIsolationForest_FitValidation(t *testing.T) {
	forest := NewIsolationForest(10, 32, 1)

	assert.Error(t, forest.Fit(nil))
	assert.Error(t, forest.Fit([][]float64{{1, 2}, {1}}))

	_, err := NewIsolationForest(10, 32, 1).DecisionScores([][]float64{{1, 2}})
	assert.Error(t, err, "scoring before fit must fail")
}
