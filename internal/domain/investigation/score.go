package investigation

import (
	"time"

	"github.com/google/uuid"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/values"
)

// ScoringMethod records which scorers contributed to a combined score
type ScoringMethod string

const (
	// MethodHybrid blends heuristic and anomaly scores
	MethodHybrid ScoringMethod = "hybrid"
	// MethodHeuristicOnly applies when the batch was too small to fit
	// the anomaly model
	MethodHeuristicOnly ScoringMethod = "heuristic_only"
)

// String returns the string representation of ScoringMethod
func (m ScoringMethod) String() string {
	return string(m)
}

// PredictedLabel is the binary classification outcome
type PredictedLabel string

const (
	LabelFraud    PredictedLabel = "FRAUD"
	LabelNotFraud PredictedLabel = "NOT_FRAUD"
)

// TransactionScore is the write-once scoring outcome for one transaction
// within one investigation run.
type TransactionScore struct {
	ID              uuid.UUID
	InvestigationID uuid.UUID
	TransactionID   uuid.UUID
	HeuristicRisk   values.RiskScore
	// AnomalyRisk is nil when the anomaly model was skipped; absence is
	// distinct from a zero anomaly score.
	AnomalyRisk    *values.RiskScore
	CombinedRisk   values.RiskScore
	ScoringMethod  ScoringMethod
	PredictedLabel PredictedLabel
	ScoredAt       time.Time
}

// NewTransactionScore creates a score record owned by the given investigation
func NewTransactionScore(
	investigationID, transactionID uuid.UUID,
	heuristic values.RiskScore,
	anomaly *values.RiskScore,
	combined values.RiskScore,
	method ScoringMethod,
	label PredictedLabel,
) *TransactionScore {
	return &TransactionScore{
		ID:              uuid.New(),
		InvestigationID: investigationID,
		TransactionID:   transactionID,
		HeuristicRisk:   heuristic,
		AnomalyRisk:     anomaly,
		CombinedRisk:    combined,
		ScoringMethod:   method,
		PredictedLabel:  label,
		ScoredAt:        time.Now().UTC(),
	}
}

// IsFraudPrediction reports whether the transaction was classified as fraud
func (s *TransactionScore) IsFraudPrediction() bool {
	return s.PredictedLabel == LabelFraud
}
