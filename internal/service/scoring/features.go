package scoring

import (
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/transaction"
)

// FeatureVector is the per-transaction derived input to the scorers.
// It is ephemeral: recomputed each run, never persisted on its own.
// Optional features are nil when the data to derive them does not exist;
// nil means "unavailable", which downstream scorers treat as neutral.
type FeatureVector struct {
	TransactionID uuid.UUID
	Amount        float64
	// TimeGap is the interval since the entity's previous transaction.
	// Nil for the first transaction in the history.
	TimeGap *time.Duration
	// ImpliedSpeedKmh is the travel speed implied by consecutive
	// geolocated transactions. Nil when either location or the gap is
	// missing, or the gap is zero.
	ImpliedSpeedKmh *float64
	HourOfDay       int
	DayOfWeek       int
	// AmountZ is the amount's z-score against the entity's prior
	// transactions. Zero when fewer than 2 priors exist (stddev undefined).
	AmountZ float64
	// TrailingHourCount is the number of transactions in the hour
	// preceding this one, this one excluded.
	TrailingHourCount int
	// WithinActiveHours reports whether the hour of day falls inside the
	// entity's historically observed active hours. True (neutral) when
	// the history is too thin to establish a pattern.
	WithinActiveHours bool
}

// Minimum prior transactions before an hour-of-day activity profile is
// considered established.
const minHistoryForActiveHours = 5

// FeatureExtractor converts an entity's ordered transaction history into
// feature vectors. One extractor instance serves one entity's run.
type FeatureExtractor struct{}

// NewFeatureExtractor creates a feature extractor
func NewFeatureExtractor() *FeatureExtractor {
	return &FeatureExtractor{}
}

// Extract computes feature vectors for every transaction in the history.
// The input must be ordered oldest-first; each vector only sees the
// transactions before it.
func (e *FeatureExtractor) Extract(txns []*transaction.Transaction) []*FeatureVector {
	vectors := make([]*FeatureVector, 0, len(txns))

	var amountSum, amountSumSq float64
	activeHours := make(map[int]int)

	for i, txn := range txns {
		fv := &FeatureVector{
			TransactionID: txn.ID,
			Amount:        txn.Amount.ToFloat64(),
			HourOfDay:     txn.Timestamp.Hour(),
			DayOfWeek:     int(txn.Timestamp.Weekday()),
		}

		if i > 0 {
			prev := txns[i-1]
			gap := txn.Timestamp.Sub(prev.Timestamp)
			fv.TimeGap = &gap
			fv.ImpliedSpeedKmh = impliedSpeed(prev, txn, gap)
		}

		fv.AmountZ = amountZScore(fv.Amount, i, amountSum, amountSumSq)
		fv.TrailingHourCount = trailingHourCount(txns, i)
		fv.WithinActiveHours = withinActiveHours(activeHours, i, fv.HourOfDay)

		vectors = append(vectors, fv)

		amountSum += fv.Amount
		amountSumSq += fv.Amount * fv.Amount
		activeHours[fv.HourOfDay]++
	}

	return vectors
}

func impliedSpeed(prev, curr *transaction.Transaction, gap time.Duration) *float64 {
	if prev.Location == nil || curr.Location == nil || gap <= 0 {
		return nil
	}

	distanceKm := prev.Location.DistanceKm(*curr.Location)
	speed := distanceKm / gap.Hours()
	if math.IsInf(speed, 0) || math.IsNaN(speed) {
		return nil
	}
	return &speed
}

// amountZScore computes (amount - mean) / stddev over the n prior
// amounts. Guards the undefined stddev explicitly: fewer than 2 priors
// yields zero, as does a degenerate zero-variance history.
func amountZScore(amount float64, n int, sum, sumSq float64) float64 {
	if n < 2 {
		return 0
	}

	mean := sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance <= 0 {
		return 0
	}

	return (amount - mean) / math.Sqrt(variance)
}

func trailingHourCount(txns []*transaction.Transaction, i int) int {
	cutoff := txns[i].Timestamp.Add(-time.Hour)
	count := 0
	for j := i - 1; j >= 0; j-- {
		if txns[j].Timestamp.Before(cutoff) {
			break
		}
		count++
	}
	return count
}

func withinActiveHours(activeHours map[int]int, priorCount, hour int) bool {
	if priorCount < minHistoryForActiveHours {
		return true
	}
	return activeHours[hour] > 0
}
