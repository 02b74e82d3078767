package scoring

import (
	"time"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/values"
)

// Heuristic rule weights. Rules contribute independently; the sum is
// capped at 1.0 before combination.
const (
	WeightRapidSuccession = 0.3
	WeightHighVelocity    = 0.2
	WeightAmountOutlier   = 0.25
	WeightOffHours        = 0.15

	// OverrideImpossibleTravel replaces the additive sum entirely when
	// the implied travel speed is physically implausible.
	OverrideImpossibleTravel = 0.9
)

// Heuristic rule trigger thresholds
const (
	RapidSuccessionGap  = 5 * time.Minute
	HighVelocityCount   = 5
	AmountOutlierZ      = 2.0
	ImpossibleTravelKmh = 800.0
)

// Rule names, recorded with each heuristic result
const (
	RuleRapidSuccession  = "rapid_succession"
	RuleHighVelocity     = "high_velocity"
	RuleAmountOutlier    = "amount_outlier"
	RuleOffHours         = "off_hours"
	RuleImpossibleTravel = "impossible_travel"
)

// HeuristicResult carries the rule-based risk contribution and the rules
// that fired.
type HeuristicResult struct {
	Risk           values.RiskScore
	TriggeredRules []string
}

// HeuristicScorer produces a rule-based risk score from a feature vector.
// Unavailable features (nil gap, nil speed) leave their rules untriggered
// rather than contributing anything.
type HeuristicScorer struct{}

// NewHeuristicScorer creates a heuristic scorer
func NewHeuristicScorer() *HeuristicScorer {
	return &HeuristicScorer{}
}

// Score evaluates all rules against one feature vector
func (s *HeuristicScorer) Score(fv *FeatureVector) HeuristicResult {
	// Impossible travel supersedes the additive rules outright
	if fv.ImpliedSpeedKmh != nil && *fv.ImpliedSpeedKmh > ImpossibleTravelKmh {
		return HeuristicResult{
			Risk:           values.MustNewRiskScore(OverrideImpossibleTravel),
			TriggeredRules: []string{RuleImpossibleTravel},
		}
	}

	risk := 0.0
	var triggered []string

	if fv.TimeGap != nil && *fv.TimeGap < RapidSuccessionGap {
		risk += WeightRapidSuccession
		triggered = append(triggered, RuleRapidSuccession)
	}

	if fv.TrailingHourCount > HighVelocityCount {
		risk += WeightHighVelocity
		triggered = append(triggered, RuleHighVelocity)
	}

	if fv.AmountZ > AmountOutlierZ {
		risk += WeightAmountOutlier
		triggered = append(triggered, RuleAmountOutlier)
	}

	if !fv.WithinActiveHours {
		risk += WeightOffHours
		triggered = append(triggered, RuleOffHours)
	}

	return HeuristicResult{
		Risk:           values.ClampRiskScore(risk),
		TriggeredRules: triggered,
	}
}
