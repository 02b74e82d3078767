package investigation

import (
	"time"

	"github.com/google/uuid"
)

// ConfusionMatrix compares predicted labels against ground truth for one
// investigation, or for a whole batch when aggregated. Transactions with
// no ground-truth label are counted in ExcludedCount and appear in no cell.
type ConfusionMatrix struct {
	ID              uuid.UUID
	InvestigationID uuid.UUID
	EntityID        string
	TruePositives   int
	FalsePositives  int
	TrueNegatives   int
	FalseNegatives  int
	ExcludedCount   int
	CreatedAt       time.Time
}

// NewConfusionMatrix creates an empty matrix owned by an investigation
func NewConfusionMatrix(investigationID uuid.UUID, entityID string) *ConfusionMatrix {
	return &ConfusionMatrix{
		ID:              uuid.New(),
		InvestigationID: investigationID,
		EntityID:        entityID,
		CreatedAt:       time.Now().UTC(),
	}
}

// Record increments the cell for one labeled transaction
func (m *ConfusionMatrix) Record(predictedFraud, actualFraud bool) {
	switch {
	case predictedFraud && actualFraud:
		m.TruePositives++
	case predictedFraud && !actualFraud:
		m.FalsePositives++
	case !predictedFraud && !actualFraud:
		m.TrueNegatives++
	default:
		m.FalseNegatives++
	}
}

// RecordExcluded counts a transaction whose ground truth was unavailable
func (m *ConfusionMatrix) RecordExcluded() {
	m.ExcludedCount++
}

// Total returns the number of labeled transactions in the matrix
func (m *ConfusionMatrix) Total() int {
	return m.TruePositives + m.FalsePositives + m.TrueNegatives + m.FalseNegatives
}

// ActualFraudCount returns the number of labeled fraud transactions.
// Invariant: equals TP + FN.
func (m *ConfusionMatrix) ActualFraudCount() int {
	return m.TruePositives + m.FalseNegatives
}

// Precision returns TP/(TP+FP). The second return is false when the
// denominator is zero: the metric is undefined, not an error and not 0.
func (m *ConfusionMatrix) Precision() (float64, bool) {
	denom := m.TruePositives + m.FalsePositives
	if denom == 0 {
		return 0, false
	}
	return float64(m.TruePositives) / float64(denom), true
}

// Recall returns TP/(TP+FN), undefined when the denominator is zero
func (m *ConfusionMatrix) Recall() (float64, bool) {
	denom := m.TruePositives + m.FalseNegatives
	if denom == 0 {
		return 0, false
	}
	return float64(m.TruePositives) / float64(denom), true
}

// F1 returns the harmonic mean of precision and recall, undefined when
// either component is undefined or both are zero
func (m *ConfusionMatrix) F1() (float64, bool) {
	p, pOK := m.Precision()
	r, rOK := m.Recall()
	if !pOK || !rOK || p+r == 0 {
		return 0, false
	}
	return 2 * p * r / (p + r), true
}

// Accuracy returns (TP+TN)/total, undefined for an empty matrix
func (m *ConfusionMatrix) Accuracy() (float64, bool) {
	total := m.Total()
	if total == 0 {
		return 0, false
	}
	return float64(m.TruePositives+m.TrueNegatives) / float64(total), true
}

// Merge adds another matrix cell-wise. Aggregation across entities is a
// pure sum: sum(per-entity TP) == aggregate TP, and likewise per cell.
func (m *ConfusionMatrix) Merge(other *ConfusionMatrix) {
	m.TruePositives += other.TruePositives
	m.FalsePositives += other.FalsePositives
	m.TrueNegatives += other.TrueNegatives
	m.FalseNegatives += other.FalseNegatives
	m.ExcludedCount += other.ExcludedCount
}

// AggregateMatrices produces a batch-level matrix as the cell-wise sum of
// the given per-entity matrices
func AggregateMatrices(matrices []*ConfusionMatrix) *ConfusionMatrix {
	agg := &ConfusionMatrix{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
	}
	for _, m := range matrices {
		agg.Merge(m)
	}
	return agg
}
