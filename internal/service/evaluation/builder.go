package evaluation

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/investigation"
)

// Builder compares predicted labels against ground truth and produces
// confusion matrices per entity and aggregated per batch.
type Builder struct {
	logger *zap.Logger
}

// NewBuilder creates a confusion matrix builder
func NewBuilder(logger *zap.Logger) *Builder {
	return &Builder{logger: logger}
}

// Build produces an entity's confusion matrix from its scores and the
// ground-truth lookup. Transactions whose lookup returned nil are
// excluded with an explicit count, never treated as true negatives.
func (b *Builder) Build(
	investigationID uuid.UUID,
	entityID string,
	scores []*investigation.TransactionScore,
	groundTruth map[uuid.UUID]*bool,
) *investigation.ConfusionMatrix {
	matrix := investigation.NewConfusionMatrix(investigationID, entityID)

	for _, score := range scores {
		actual, ok := groundTruth[score.TransactionID]
		if !ok || actual == nil {
			matrix.RecordExcluded()
			continue
		}
		matrix.Record(score.IsFraudPrediction(), *actual)
	}

	if matrix.ExcludedCount > 0 {
		b.logger.Warn("transactions excluded from confusion matrix",
			zap.String("entity_id", entityID),
			zap.String("investigation_id", investigationID.String()),
			zap.Int("excluded_count", matrix.ExcludedCount))
	}

	return matrix
}

// Aggregate sums per-entity matrices cell-wise into a batch matrix
func (b *Builder) Aggregate(matrices []*investigation.ConfusionMatrix) *investigation.ConfusionMatrix {
	return investigation.AggregateMatrices(matrices)
}
