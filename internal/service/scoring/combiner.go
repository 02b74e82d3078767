package scoring

import (
	"strings"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/investigation"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/values"
)

// Blend weights for hybrid scoring
const (
	HeuristicWeight = 0.6
	AnomalyWeight   = 0.4

	// AgreementBoost applies when both scorers independently exceed 0.5
	AgreementBoost          = 0.1
	AgreementBoostThreshold = 0.5

	// DigitViolationBoost applies when the entity's amounts fail the
	// first-digit conformance check
	DigitViolationBoost = 0.1
)

// MerchantAdjustment shifts a combined score for a specific merchant.
// The multiplier applies first, then the additive offset. Loaded from
// configuration, never hardcoded per merchant.
type MerchantAdjustment struct {
	Multiplier float64 `koanf:"multiplier"`
	Additive   float64 `koanf:"additive"`
}

// Combiner blends heuristic and anomaly risk into the final combined
// score and applies entity-level and merchant-level adjustments.
type Combiner struct {
	adjustments map[string]MerchantAdjustment
}

// NewCombiner creates a combiner with the given merchant adjustment table.
// Keys are matched case-insensitively.
func NewCombiner(adjustments map[string]MerchantAdjustment) *Combiner {
	table := make(map[string]MerchantAdjustment, len(adjustments))
	for merchant, adj := range adjustments {
		table[strings.ToLower(merchant)] = adj
	}
	return &Combiner{adjustments: table}
}

// CombineInput carries everything the combiner needs for one transaction
type CombineInput struct {
	Heuristic values.RiskScore
	// Anomaly is nil under heuristic-only scoring; absent is not zero.
	Anomaly        *values.RiskScore
	DigitViolation bool
	Merchant       string
}

// CombineResult is the final blended score with its method
type CombineResult struct {
	Risk   values.RiskScore
	Method investigation.ScoringMethod
}

// Combine produces the final clamped score for one transaction
func (c *Combiner) Combine(in CombineInput) CombineResult {
	var risk float64
	method := investigation.MethodHeuristicOnly

	if in.Anomaly != nil {
		method = investigation.MethodHybrid
		risk = in.Heuristic.Value()*HeuristicWeight + in.Anomaly.Value()*AnomalyWeight

		if in.Heuristic.Value() > AgreementBoostThreshold && in.Anomaly.Value() > AgreementBoostThreshold {
			risk += AgreementBoost
		}
	} else {
		risk = in.Heuristic.Value()
	}

	if in.DigitViolation {
		risk += DigitViolationBoost
	}

	if adj, ok := c.adjustments[strings.ToLower(in.Merchant)]; ok {
		if adj.Multiplier != 0 {
			risk *= adj.Multiplier
		}
		risk += adj.Additive
	}

	return CombineResult{
		Risk:   values.ClampRiskScore(risk),
		Method: method,
	}
}
