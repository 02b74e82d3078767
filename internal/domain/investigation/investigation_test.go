package investigation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/errors"
)

func validParams() Parameters {
	return Parameters{
		RiskThreshold:        0.35,
		MaxTransactions:      500,
		CapOrder:             CapOrderNewestFirst,
		ScoringBatchSize:     100,
		Timeout:              2 * time.Minute,
		TimeWindowDuration:   30 * 24 * time.Hour,
		LookbackOffset:       0,
		ImpactWindowDuration: 30 * 24 * time.Hour,
		MinAnomalySamples:    5,
		Contamination:        0.1,
		TakeRate:             0.025,
		LifetimeMultiplier:   3.0,
		ConfidenceBasis:      ConfidenceBasisImpactWindow,
	}
}

func TestParameters_Validate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Parameters)
		wantParam string
	}{
		{"valid", func(p *Parameters) {}, ""},
		{"missing threshold", func(p *Parameters) { p.RiskThreshold = 0 }, "risk_threshold"},
		{"threshold above one", func(p *Parameters) { p.RiskThreshold = 1.5 }, "risk_threshold"},
		{"missing max transactions", func(p *Parameters) { p.MaxTransactions = 0 }, "max_transactions"},
		{"missing cap order", func(p *Parameters) { p.CapOrder = "" }, "cap_order"},
		{"unknown cap order", func(p *Parameters) { p.CapOrder = "sideways" }, "cap_order"},
		{"missing batch size", func(p *Parameters) { p.ScoringBatchSize = 0 }, "scoring_batch_size"},
		{"missing timeout", func(p *Parameters) { p.Timeout = 0 }, "per_investigation_timeout"},
		{"missing scoring window", func(p *Parameters) { p.TimeWindowDuration = 0 }, "time_window_duration"},
		{"negative lookback", func(p *Parameters) { p.LookbackOffset = -time.Hour }, "lookback_offset"},
		{"missing impact window", func(p *Parameters) { p.ImpactWindowDuration = 0 }, "impact_window_duration"},
		{"missing min samples", func(p *Parameters) { p.MinAnomalySamples = 0 }, "min_anomaly_samples"},
		{"contamination too high", func(p *Parameters) { p.Contamination = 0.5 }, "contamination"},
		{"missing take rate", func(p *Parameters) { p.TakeRate = 0 }, "take_rate"},
		{"missing lifetime multiplier", func(p *Parameters) { p.LifetimeMultiplier = 0 }, "lifetime_multiplier"},
		{"missing confidence basis", func(p *Parameters) { p.ConfidenceBasis = "" }, "confidence_basis"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validParams()
			tt.mutate(&p)
			err := p.Validate()
			if tt.wantParam == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfiguration))
			appErr := err.(*errors.AppError)
			assert.Equal(t, tt.wantParam, appErr.Details["parameter"])
		})
	}
}

func TestNew_RejectsBadConfig(t *testing.T) {
	p := validParams()
	p.RiskThreshold = 0

	inv, err := New("acct-1", p)
	require.Error(t, err)
	assert.Nil(t, inv, "no investigation may exist when configuration is invalid")

	_, err = New("", validParams())
	assert.Error(t, err)
}

func TestInvestigation_StateMachine(t *testing.T) {
	inv, err := New("acct-1", validParams())
	require.NoError(t, err)
	assert.Equal(t, StatusPending, inv.Status)

	// Happy path is strictly sequential
	require.NoError(t, inv.TransitionTo(StatusFetching))
	require.NoError(t, inv.TransitionTo(StatusScoring))
	require.NoError(t, inv.TransitionTo(StatusClassified))
	require.NoError(t, inv.TransitionTo(StatusCompleted))

	assert.True(t, inv.IsCompleted())
	require.NotNil(t, inv.CompletedAt)

	// Terminal states admit nothing
	assert.Error(t, inv.TransitionTo(StatusFailed))
}

func TestInvestigation_SkippingStatesIsIllegal(t *testing.T) {
	inv, err := New("acct-1", validParams())
	require.NoError(t, err)

	assert.Error(t, inv.TransitionTo(StatusScoring))
	assert.Error(t, inv.TransitionTo(StatusCompleted))
	assert.Equal(t, StatusPending, inv.Status)
}

func TestInvestigation_FailFromAnyNonTerminalState(t *testing.T) {
	for _, from := range []Status{StatusPending, StatusFetching, StatusScoring, StatusClassified} {
		t.Run(string(from), func(t *testing.T) {
			inv, err := New("acct-1", validParams())
			require.NoError(t, err)
			inv.Status = from

			require.NoError(t, inv.Fail("store unreachable after retries"))
			assert.Equal(t, StatusFailed, inv.Status)
			assert.Equal(t, "store unreachable after retries", inv.FailureReason)
			assert.NotNil(t, inv.CompletedAt)
		})
	}
}
