package investigation

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/values"
)

// Confidence grades the reliability of a financial estimate from its
// supporting sample size.
type Confidence string

const (
	ConfidenceHigh   Confidence = "HIGH"
	ConfidenceMedium Confidence = "MEDIUM"
	ConfidenceLow    Confidence = "LOW"
)

// Supporting-sample thresholds for confidence grading
const (
	ConfidenceHighMinSamples   = 100
	ConfidenceMediumMinSamples = 10
)

// GradeConfidence maps a supporting transaction count to a confidence grade
func GradeConfidence(supportingCount int) Confidence {
	switch {
	case supportingCount >= ConfidenceHighMinSamples:
		return ConfidenceHigh
	case supportingCount >= ConfidenceMediumMinSamples:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// FinancialImpactReport translates investigation outcomes into dollar
// terms over a forward-looking window: what blocking the entity would have
// saved versus the legitimate revenue it would have cost.
type FinancialImpactReport struct {
	ID              uuid.UUID
	InvestigationID uuid.UUID
	EntityID        string
	Merchant        string
	SavedFraudGMV   values.Money
	LostRevenues    values.Money
	NetValue        values.Money
	Confidence      Confidence
	// SavedTxnCount and LostTxnCount back the two monetary figures.
	SavedTxnCount int
	LostTxnCount  int
	// BasisTxnCount is the count the confidence grade was derived from,
	// per the configured confidence basis.
	BasisTxnCount int
	WindowStart   time.Time
	WindowEnd     time.Time
	CreatedAt     time.Time
}

// AggregateImpact is a grouped rollup of impact reports, keyed by merchant
// or any other grouping label.
type AggregateImpact struct {
	GroupKey      string
	SavedFraudGMV values.Money
	LostRevenues  values.Money
	NetValue      values.Money
	ReportCount   int
}

// AggregateImpactsBy groups reports by the given key function and sums
// their monetary figures. Reports with mismatched currencies are skipped;
// the engine operates on single-currency populations.
func AggregateImpactsBy(reports []*FinancialImpactReport, keyFn func(*FinancialImpactReport) string) []*AggregateImpact {
	groups := make(map[string]*AggregateImpact)
	var order []string

	for _, r := range reports {
		key := keyFn(r)
		agg, ok := groups[key]
		if !ok {
			agg = &AggregateImpact{
				GroupKey:      key,
				SavedFraudGMV: values.Zero(r.SavedFraudGMV.Currency()),
				LostRevenues:  values.Zero(r.LostRevenues.Currency()),
				NetValue:      values.Zero(r.NetValue.Currency()),
			}
			groups[key] = agg
			order = append(order, key)
		}

		saved, err := agg.SavedFraudGMV.Add(r.SavedFraudGMV)
		if err != nil {
			continue
		}
		lost, err := agg.LostRevenues.Add(r.LostRevenues)
		if err != nil {
			continue
		}
		net, err := agg.NetValue.Add(r.NetValue)
		if err != nil {
			continue
		}

		agg.SavedFraudGMV = saved
		agg.LostRevenues = lost
		agg.NetValue = net
		agg.ReportCount++
	}

	result := make([]*AggregateImpact, 0, len(order))
	for _, key := range order {
		result = append(result, groups[key])
	}
	return result
}
