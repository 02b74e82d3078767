package impact

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/errors"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/investigation"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/transaction"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/values"
)

// Calculator translates an investigation's outcome into dollar terms.
// The scoring window looked backward to find fraud patterns; the impact
// window looks forward and asks what blocking the entity would have
// saved, and what legitimate revenue it would have cost.
type Calculator struct {
	takeRate           float64
	lifetimeMultiplier float64
	basis              investigation.ConfidenceBasis
	logger             *zap.Logger
}

// NewCalculator creates an impact calculator from required parameters
func NewCalculator(takeRate, lifetimeMultiplier float64, basis investigation.ConfidenceBasis, logger *zap.Logger) (*Calculator, error) {
	if takeRate <= 0 || takeRate > 1 {
		return nil, errors.NewConfigurationError("take_rate",
			"take_rate is required and must be in (0, 1]")
	}
	if lifetimeMultiplier <= 0 {
		return nil, errors.NewConfigurationError("lifetime_multiplier",
			"lifetime_multiplier is required and must be positive")
	}
	if !basis.IsValid() {
		return nil, errors.NewConfigurationError("confidence_basis",
			"confidence_basis is required and must be impact_window or scoring_window")
	}

	return &Calculator{
		takeRate:           takeRate,
		lifetimeMultiplier: lifetimeMultiplier,
		basis:              basis,
		logger:             logger,
	}, nil
}

// Input carries the impact-window transaction population plus the scoring
// run context needed for confidence grading.
type Input struct {
	InvestigationID uuid.UUID
	EntityID        string
	// ImpactTxns is the entity's transaction population over the
	// forward-looking impact window, not the scoring window.
	ImpactTxns []*transaction.Transaction
	// ScoringTxnCount is the size of the scoring-window population,
	// used when the confidence basis is scoring_window.
	ScoringTxnCount int
	WindowStart     time.Time
	WindowEnd       time.Time
}

// Calculate produces the entity's financial impact report
func (c *Calculator) Calculate(in Input) (*investigation.FinancialImpactReport, error) {
	currency := values.USD
	if len(in.ImpactTxns) > 0 {
		currency = in.ImpactTxns[0].Amount.Currency()
	}

	saved := values.Zero(currency)
	lostBase := values.Zero(currency)
	savedCount, lostCount := 0, 0
	merchantCounts := make(map[string]int)

	for _, txn := range in.ImpactTxns {
		merchantCounts[txn.Merchant]++

		if !txn.HasGroundTruth() {
			continue
		}

		switch {
		case txn.ApprovalDecision == transaction.DecisionApproved && txn.IsKnownFraud():
			sum, err := saved.Add(txn.Amount)
			if err != nil {
				return nil, errors.NewInternalError("mixed currencies in impact window").WithCause(err)
			}
			saved = sum
			savedCount++

		case txn.ApprovalDecision.IsDeclined() && !txn.IsKnownFraud():
			sum, err := lostBase.Add(txn.Amount)
			if err != nil {
				return nil, errors.NewInternalError("mixed currencies in impact window").WithCause(err)
			}
			lostBase = sum
			lostCount++
		}
	}

	// Lost revenue is the platform's take on the declined legitimate
	// volume, projected over the customer lifetime
	lost := lostBase.MulFloat(c.takeRate).MulFloat(c.lifetimeMultiplier)

	net, err := saved.Sub(lost)
	if err != nil {
		return nil, errors.NewInternalError("impact net value computation failed").WithCause(err)
	}

	basisCount := savedCount + lostCount
	if c.basis == investigation.ConfidenceBasisScoringWindow {
		basisCount = in.ScoringTxnCount
	}

	report := &investigation.FinancialImpactReport{
		ID:              uuid.New(),
		InvestigationID: in.InvestigationID,
		EntityID:        in.EntityID,
		Merchant:        dominantMerchant(merchantCounts),
		SavedFraudGMV:   saved.Round(2),
		LostRevenues:    lost.Round(2),
		NetValue:        net.Round(2),
		Confidence:      investigation.GradeConfidence(basisCount),
		SavedTxnCount:   savedCount,
		LostTxnCount:    lostCount,
		BasisTxnCount:   basisCount,
		WindowStart:     in.WindowStart,
		WindowEnd:       in.WindowEnd,
		CreatedAt:       time.Now().UTC(),
	}

	c.logger.Info("financial impact computed",
		zap.String("entity_id", in.EntityID),
		zap.String("saved_fraud_gmv", report.SavedFraudGMV.String()),
		zap.String("lost_revenues", report.LostRevenues.String()),
		zap.String("net_value", report.NetValue.String()),
		zap.String("confidence", string(report.Confidence)))

	return report, nil
}

func dominantMerchant(counts map[string]int) string {
	best, bestCount := "", 0
	for merchant, count := range counts {
		if count > bestCount || (count == bestCount && merchant < best) {
			best, bestCount = merchant, count
		}
	}
	return best
}
