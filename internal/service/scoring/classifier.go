package scoring

import (
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/errors"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/investigation"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/values"
)

// Classifier thresholds a combined risk score into a binary label. The
// threshold is a required parameter; there is no baked-in default.
type Classifier struct {
	threshold float64
}

// NewClassifier creates a classifier, rejecting an unset threshold
func NewClassifier(threshold float64) (*Classifier, error) {
	if threshold <= 0 || threshold > 1 {
		return nil, errors.NewConfigurationError("risk_threshold",
			"risk_threshold is required and must be in (0, 1]")
	}
	return &Classifier{threshold: threshold}, nil
}

// Classify labels a score: FRAUD when the score meets the threshold
func (c *Classifier) Classify(risk values.RiskScore) investigation.PredictedLabel {
	if risk.AtLeast(c.threshold) {
		return investigation.LabelFraud
	}
	return investigation.LabelNotFraud
}

// Threshold returns the configured decision threshold
func (c *Classifier) Threshold() float64 {
	return c.threshold
}
