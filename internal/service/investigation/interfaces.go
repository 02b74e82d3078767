package investigation

import (
	"context"
	"time"

	"github.com/google/uuid"

	inv "github.com/meridianrisk/fraud-impact-engine/internal/domain/investigation"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/transaction"
)

// TransactionStore is the external, read-only source of transactions and
// ground-truth labels. Fetch may block; callers bound it with a context.
type TransactionStore interface {
	// Fetch returns the entity's transactions with timestamps in
	// [start, end), in no guaranteed order.
	Fetch(ctx context.Context, entityID string, start, end time.Time) ([]*transaction.Transaction, error)

	// FetchGroundTruth resolves fraud labels for the given transactions.
	// A nil map value means the label does not exist yet; a missing key
	// means the transaction is unknown to the label store.
	FetchGroundTruth(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*bool, error)
}

// ResultStore persists investigation outcomes
type ResultStore interface {
	SaveInvestigation(ctx context.Context, investigation *inv.Investigation) error
	UpdateInvestigation(ctx context.Context, investigation *inv.Investigation) error
	SaveScores(ctx context.Context, scores []*inv.TransactionScore) error
	SaveConfusionMatrix(ctx context.Context, matrix *inv.ConfusionMatrix) error
	SaveImpactReport(ctx context.Context, report *inv.FinancialImpactReport) error

	// LatestCompleted returns the most recent COMPLETED investigation for
	// the entity, or a not-found error when none exists.
	LatestCompleted(ctx context.Context, entityID string) (*inv.Investigation, error)
}

// CompletionCache is the fast path for the re-investigation skip check.
// A miss is never authoritative; the orchestrator falls through to the
// ResultStore.
type CompletionCache interface {
	WasCompleted(ctx context.Context, entityID string) (bool, error)
	MarkCompleted(ctx context.Context, entityID string) error
}
