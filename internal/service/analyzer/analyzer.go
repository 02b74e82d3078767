package analyzer

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/errors"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/transaction"
)

// WindowFetcher retrieves every transaction across all entities within a
// time window.
type WindowFetcher interface {
	FetchWindow(ctx context.Context, start, end time.Time) ([]*transaction.Transaction, error)
}

// Predicate decides whether a transaction counts toward flagging its entity.
type Predicate func(*transaction.Transaction) bool

// GroupKey extracts the grouping identifier a flagged entity is keyed on.
type GroupKey func(*transaction.Transaction) string

// ApprovedFraud is the standard flagging predicate: the transaction was
// approved and later confirmed fraudulent.
func ApprovedFraud(txn *transaction.Transaction) bool {
	return txn.ApprovalDecision == transaction.DecisionApproved && txn.IsKnownFraud()
}

// ByEntityID groups transactions by their owning entity.
func ByEntityID(txn *transaction.Transaction) string {
	return txn.EntityID
}

// FlaggedEntity is a work item for the investigation orchestrator.
type FlaggedEntity struct {
	EntityID   string
	FraudCount int
}

// Analyzer scans a time window for entities with confirmed fraud. It is
// the only producer of investigation work items; an entity with zero
// fraud transactions in the window is never investigated.
type Analyzer struct {
	fetcher   WindowFetcher
	predicate Predicate
	groupKey  GroupKey
	logger    *zap.Logger
}

// NewAnalyzer creates an analyzer with the given flagging predicate and
// grouping key. Nil predicate or groupKey fall back to ApprovedFraud and
// ByEntityID.
func NewAnalyzer(fetcher WindowFetcher, predicate Predicate, groupKey GroupKey, logger *zap.Logger) *Analyzer {
	if predicate == nil {
		predicate = ApprovedFraud
	}
	if groupKey == nil {
		groupKey = ByEntityID
	}
	return &Analyzer{
		fetcher:   fetcher,
		predicate: predicate,
		groupKey:  groupKey,
		logger:    logger,
	}
}

// FlaggedEntities returns the entities with at least one matching
// transaction in the window ending at lookbackOffset before now, ordered
// by match count descending. Ties break on entity ID for determinism.
func (a *Analyzer) FlaggedEntities(ctx context.Context, windowDuration, lookbackOffset time.Duration) ([]FlaggedEntity, error) {
	end := time.Now().UTC().Add(-lookbackOffset)
	start := end.Add(-windowDuration)
	return a.FlaggedEntitiesBetween(ctx, start, end)
}

// FlaggedEntitiesBetween is FlaggedEntities over an explicit time range.
func (a *Analyzer) FlaggedEntitiesBetween(ctx context.Context, start, end time.Time) ([]FlaggedEntity, error) {
	txns, err := a.fetcher.FetchWindow(ctx, start, end)
	if err != nil {
		return nil, errors.NewDataFetchError("window fetch failed").WithCause(err)
	}

	counts := make(map[string]int)
	for _, txn := range txns {
		if a.predicate(txn) {
			counts[a.groupKey(txn)]++
		}
	}

	flagged := make([]FlaggedEntity, 0, len(counts))
	for entityID, count := range counts {
		flagged = append(flagged, FlaggedEntity{EntityID: entityID, FraudCount: count})
	}
	sort.Slice(flagged, func(i, j int) bool {
		if flagged[i].FraudCount != flagged[j].FraudCount {
			return flagged[i].FraudCount > flagged[j].FraudCount
		}
		return flagged[i].EntityID < flagged[j].EntityID
	})

	a.logger.Info("entity analysis complete",
		zap.Time("window_start", start),
		zap.Time("window_end", end),
		zap.Int("transactions_scanned", len(txns)),
		zap.Int("entities_flagged", len(flagged)))

	return flagged, nil
}
