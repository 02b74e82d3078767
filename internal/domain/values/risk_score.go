package values

import (
	"fmt"
	"math"
)

// RiskScore represents a normalized fraud risk score as a value object.
// Valid scores are always within [0.0, 1.0].
type RiskScore struct {
	value float64
}

// NewRiskScore creates a RiskScore, rejecting out-of-range or non-finite input
func NewRiskScore(value float64) (RiskScore, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return RiskScore{}, fmt.Errorf("risk score must be finite, got %v", value)
	}
	if value < 0.0 || value > 1.0 {
		return RiskScore{}, fmt.Errorf("risk score must be in [0.0, 1.0], got %v", value)
	}
	return RiskScore{value: value}, nil
}

// ClampRiskScore creates a RiskScore clamping the input into [0.0, 1.0].
// NaN clamps to zero.
func ClampRiskScore(value float64) RiskScore {
	if math.IsNaN(value) {
		return RiskScore{}
	}
	if value < 0.0 {
		return RiskScore{value: 0.0}
	}
	if value > 1.0 {
		return RiskScore{value: 1.0}
	}
	return RiskScore{value: value}
}

// MustNewRiskScore creates a RiskScore and panics on error (for constants/tests)
func MustNewRiskScore(value float64) RiskScore {
	s, err := NewRiskScore(value)
	if err != nil {
		panic(err)
	}
	return s
}

// Value returns the raw score
func (s RiskScore) Value() float64 {
	return s.value
}

// AtLeast reports whether the score meets the given threshold
func (s RiskScore) AtLeast(threshold float64) bool {
	return s.value >= threshold
}

// String returns the score formatted to 4 decimal places
func (s RiskScore) String() string {
	return fmt.Sprintf("%.4f", s.value)
}
