package investigation

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/errors"
)

// Status represents the investigation lifecycle state
type Status string

const (
	StatusPending    Status = "pending"
	StatusFetching   Status = "fetching"
	StatusScoring    Status = "scoring"
	StatusClassified Status = "classified"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// String returns the string representation of Status
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the status allows no further transitions
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransitionTo reports whether the transition is legal. FAILED is
// reachable from any non-terminal state; the happy path is strictly
// sequential.
func (s Status) CanTransitionTo(next Status) bool {
	if s.IsTerminal() {
		return false
	}
	if next == StatusFailed {
		return true
	}
	switch s {
	case StatusPending:
		return next == StatusFetching
	case StatusFetching:
		return next == StatusScoring
	case StatusScoring:
		return next == StatusClassified
	case StatusClassified:
		return next == StatusCompleted
	default:
		return false
	}
}

// CapOrder selects which end of the history is kept when the transaction
// cap truncates an entity's population.
type CapOrder string

const (
	CapOrderNewestFirst CapOrder = "newest_first"
	CapOrderOldestFirst CapOrder = "oldest_first"
)

// IsValid checks if the cap order is a known value
func (c CapOrder) IsValid() bool {
	return c == CapOrderNewestFirst || c == CapOrderOldestFirst
}

// ConfidenceBasis selects the transaction count that grades the confidence
// of a financial impact estimate.
type ConfidenceBasis string

const (
	ConfidenceBasisImpactWindow  ConfidenceBasis = "impact_window"
	ConfidenceBasisScoringWindow ConfidenceBasis = "scoring_window"
)

// IsValid checks if the confidence basis is a known value
func (b ConfidenceBasis) IsValid() bool {
	return b == ConfidenceBasisImpactWindow || b == ConfidenceBasisScoringWindow
}

// Parameters is the per-investigation configuration snapshot. Every field
// is required; there are no code-level fallbacks.
type Parameters struct {
	RiskThreshold        float64
	MaxTransactions      int
	CapOrder             CapOrder
	ScoringBatchSize     int
	Timeout              time.Duration
	TimeWindowDuration   time.Duration
	LookbackOffset       time.Duration
	ImpactWindowDuration time.Duration
	MinAnomalySamples    int
	Contamination        float64
	TakeRate             float64
	LifetimeMultiplier   float64
	ConfidenceBasis      ConfidenceBasis
	ForceReinvestigate   bool
}

// Validate rejects parameter sets that would otherwise need silent
// defaults. A zero threshold is treated as unset: classifying everything
// as fraud by accident is worse than failing fast.
func (p Parameters) Validate() error {
	if p.RiskThreshold <= 0 || p.RiskThreshold > 1 {
		return errors.NewConfigurationError("risk_threshold",
			"risk_threshold is required and must be in (0, 1]")
	}
	if p.MaxTransactions <= 0 {
		return errors.NewConfigurationError("max_transactions",
			"max_transactions is required and must be positive")
	}
	if !p.CapOrder.IsValid() {
		return errors.NewConfigurationError("cap_order",
			"cap_order is required and must be newest_first or oldest_first")
	}
	if p.ScoringBatchSize <= 0 {
		return errors.NewConfigurationError("scoring_batch_size",
			"scoring_batch_size is required and must be positive")
	}
	if p.Timeout <= 0 {
		return errors.NewConfigurationError("per_investigation_timeout",
			"per_investigation_timeout is required and must be positive")
	}
	if p.TimeWindowDuration <= 0 {
		return errors.NewConfigurationError("time_window_duration",
			"time_window_duration is required and must be positive")
	}
	if p.LookbackOffset < 0 {
		return errors.NewConfigurationError("lookback_offset",
			"lookback_offset cannot be negative")
	}
	if p.ImpactWindowDuration <= 0 {
		return errors.NewConfigurationError("impact_window_duration",
			"impact_window_duration is required and must be positive")
	}
	if p.MinAnomalySamples <= 0 {
		return errors.NewConfigurationError("min_anomaly_samples",
			"min_anomaly_samples is required and must be positive")
	}
	if p.Contamination <= 0 || p.Contamination >= 0.5 {
		return errors.NewConfigurationError("contamination",
			"contamination is required and must be in (0, 0.5)")
	}
	if p.TakeRate <= 0 || p.TakeRate > 1 {
		return errors.NewConfigurationError("take_rate",
			"take_rate is required and must be in (0, 1]")
	}
	if p.LifetimeMultiplier <= 0 {
		return errors.NewConfigurationError("lifetime_multiplier",
			"lifetime_multiplier is required and must be positive")
	}
	if !p.ConfidenceBasis.IsValid() {
		return errors.NewConfigurationError("confidence_basis",
			"confidence_basis is required and must be impact_window or scoring_window")
	}
	return nil
}

// Investigation is one scoring run over one entity. It owns the
// TransactionScores it produces; re-running an entity creates a new
// Investigation rather than mutating this one.
type Investigation struct {
	ID            uuid.UUID
	EntityID      string
	Status        Status
	Parameters    Parameters
	FailureReason string
	// PartialResults marks scores persisted by a run that timed out or
	// was cancelled before finishing.
	PartialResults   bool
	TransactionCount int
	DroppedCount     int
	CreatedAt        time.Time
	CompletedAt      *time.Time
}

// New creates a pending investigation after validating parameters.
// A configuration error means no investigation exists at all.
func New(entityID string, params Parameters) (*Investigation, error) {
	if entityID == "" {
		return nil, errors.NewValidationError("INVALID_ENTITY_ID", "entity id cannot be empty")
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	return &Investigation{
		ID:         uuid.New(),
		EntityID:   entityID,
		Status:     StatusPending,
		Parameters: params,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// TransitionTo advances the state machine, rejecting illegal moves
func (inv *Investigation) TransitionTo(next Status) error {
	if !inv.Status.CanTransitionTo(next) {
		return errors.NewConflictError(
			"illegal investigation transition from " + inv.Status.String() + " to " + next.String())
	}
	inv.Status = next
	if next.IsTerminal() {
		now := time.Now().UTC()
		inv.CompletedAt = &now
	}
	return nil
}

// Fail moves the investigation to FAILED with a structured reason
func (inv *Investigation) Fail(reason string) error {
	if err := inv.TransitionTo(StatusFailed); err != nil {
		return err
	}
	inv.FailureReason = reason
	return nil
}

// IsCompleted reports whether the investigation finished successfully
func (inv *Investigation) IsCompleted() bool {
	return inv.Status == StatusCompleted
}
