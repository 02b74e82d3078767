package scoring

import (
	"math"
	"sort"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/errors"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/values"
)

// AnomalyScorer fits an isolation forest on one scoring batch and scores
// every transaction in it. One scorer instance is entity- and batch-scoped;
// it is constructed, used, and discarded within one investigation.
type AnomalyScorer struct {
	minSamples    int
	contamination float64
	seed          int64
}

// NewAnomalyScorer creates a batch-scoped anomaly scorer. The seed makes
// scoring deterministic for identical batches.
func NewAnomalyScorer(minSamples int, contamination float64, seed int64) *AnomalyScorer {
	return &AnomalyScorer{
		minSamples:    minSamples,
		contamination: contamination,
		seed:          seed,
	}
}

// Score fits the model on the batch's feature vectors and returns one
// normalized anomaly score per vector, in batch order. Returns an
// InsufficientSampleError when the batch is below the minimum; callers
// fall back to heuristic-only scoring.
func (s *AnomalyScorer) Score(batch []*FeatureVector) ([]values.RiskScore, error) {
	if len(batch) < s.minSamples {
		return nil, errors.NewInsufficientSampleError(len(batch), s.minSamples)
	}

	samples := s.toMatrix(batch)

	forest := NewIsolationForest(DefaultNumTrees, DefaultSampleSize, s.seed)
	if err := forest.Fit(samples); err != nil {
		return nil, errors.NewInternalError("anomaly model fit failed").WithCause(err)
	}

	raw, err := forest.DecisionScores(samples)
	if err != nil {
		return nil, errors.NewInternalError("anomaly scoring failed").WithCause(err)
	}

	return normalize(raw, s.contamination), nil
}

// toMatrix builds the numeric training matrix. Unavailable optional
// features are imputed with the batch mean so they read as neutral to the
// model instead of as extreme zeros.
func (s *AnomalyScorer) toMatrix(batch []*FeatureVector) [][]float64 {
	gapMean, speedMean := optionalFeatureMeans(batch)

	samples := make([][]float64, len(batch))
	for i, fv := range batch {
		gap := gapMean
		if fv.TimeGap != nil {
			gap = fv.TimeGap.Minutes()
		}
		speed := speedMean
		if fv.ImpliedSpeedKmh != nil {
			speed = *fv.ImpliedSpeedKmh
		}

		samples[i] = []float64{
			fv.Amount,
			gap,
			speed,
			float64(fv.HourOfDay),
			float64(fv.DayOfWeek),
			fv.AmountZ,
			float64(fv.TrailingHourCount),
		}
	}
	return samples
}

func optionalFeatureMeans(batch []*FeatureVector) (gapMean, speedMean float64) {
	var gapSum, speedSum float64
	var gapN, speedN int
	for _, fv := range batch {
		if fv.TimeGap != nil {
			gapSum += fv.TimeGap.Minutes()
			gapN++
		}
		if fv.ImpliedSpeedKmh != nil {
			speedSum += *fv.ImpliedSpeedKmh
			speedN++
		}
	}
	if gapN > 0 {
		gapMean = gapSum / float64(gapN)
	}
	if speedN > 0 {
		speedMean = speedSum / float64(speedN)
	}
	return gapMean, speedMean
}

// normalize maps the raw decision scores into [0, 1] per batch, centered
// on the contamination quantile: the batch's top contamination fraction
// lands above 0.5, everything else below. A degenerate batch where every
// score is identical maps to 0.5 across the board.
func normalize(raw []float64, contamination float64) []values.RiskScore {
	min, max := raw[0], raw[0]
	for _, v := range raw {
		min = math.Min(min, v)
		max = math.Max(max, v)
	}

	scores := make([]values.RiskScore, len(raw))
	if max-min < 1e-12 {
		for i := range raw {
			scores[i] = values.MustNewRiskScore(0.5)
		}
		return scores
	}

	offset := quantile(raw, 1-contamination)

	for i, v := range raw {
		var norm float64
		switch {
		case v >= offset && max > offset:
			norm = 0.5 + 0.5*(v-offset)/(max-offset)
		case v >= offset:
			norm = 0.5
		case offset > min:
			norm = 0.5 * (v - min) / (offset - min)
		default:
			norm = 0.5
		}
		scores[i] = values.ClampRiskScore(norm)
	}
	return scores
}

func quantile(raw []float64, q float64) float64 {
	sorted := make([]float64, len(raw))
	copy(sorted, raw)
	sort.Float64s(sorted)

	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}

	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
