package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	domainerrors "github.com/meridianrisk/fraud-impact-engine/internal/domain/errors"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/transaction"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/values"
)

// TransactionRepository reads the external transaction and ground-truth
// label store. The engine never writes to these tables.
type TransactionRepository struct {
	db *pgxpool.Pool
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *pgxpool.Pool) *TransactionRepository {
	return &TransactionRepository{db: db}
}

const transactionColumns = `
	id, entity_id, timestamp, amount, currency, merchant,
	approval_decision, ground_truth_fraud, latitude, longitude`

// Fetch returns one entity's transactions with timestamps in [start, end)
func (r *TransactionRepository) Fetch(ctx context.Context, entityID string, start, end time.Time) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE entity_id = $1 AND timestamp >= $2 AND timestamp < $3
		ORDER BY timestamp ASC`

	rows, err := r.db.Query(ctx, query, entityID, start, end)
	if err != nil {
		return nil, domainerrors.NewDataFetchError("querying transactions").WithCause(err)
	}
	defer rows.Close()

	var txns []*transaction.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, domainerrors.NewDataFetchError("reading transaction rows").WithCause(err)
	}

	return txns, nil
}

// FetchWindow returns all transactions across entities in [start, end).
// The entity analyzer uses this to find flagged entities.
func (r *TransactionRepository) FetchWindow(ctx context.Context, start, end time.Time) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE timestamp >= $1 AND timestamp < $2
		ORDER BY timestamp ASC`

	rows, err := r.db.Query(ctx, query, start, end)
	if err != nil {
		return nil, domainerrors.NewDataFetchError("querying transaction window").WithCause(err)
	}
	defer rows.Close()

	var txns []*transaction.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txns = append(txns, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, domainerrors.NewDataFetchError("reading transaction rows").WithCause(err)
	}

	return txns, nil
}

// FetchGroundTruth resolves fraud labels for the given transactions. A
// transaction absent from the result is unknown to the label store; a nil
// value means it exists but has no label yet.
func (r *TransactionRepository) FetchGroundTruth(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*bool, error) {
	query := `SELECT id, ground_truth_fraud FROM transactions WHERE id = ANY($1)`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, domainerrors.NewDataFetchError("querying ground truth").WithCause(err)
	}
	defer rows.Close()

	labels := make(map[uuid.UUID]*bool, len(ids))
	for rows.Next() {
		var id uuid.UUID
		var label *bool
		if err := rows.Scan(&id, &label); err != nil {
			return nil, domainerrors.NewDataFetchError("scanning ground truth").WithCause(err)
		}
		labels[id] = label
	}
	if err := rows.Err(); err != nil {
		return nil, domainerrors.NewDataFetchError("reading ground truth rows").WithCause(err)
	}

	return labels, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*transaction.Transaction, error) {
	var (
		txn       transaction.Transaction
		amount    string
		currency  string
		latitude  *float64
		longitude *float64
	)

	err := row.Scan(
		&txn.ID, &txn.EntityID, &txn.Timestamp, &amount, &currency,
		&txn.Merchant, &txn.ApprovalDecision, &txn.GroundTruthFraud,
		&latitude, &longitude,
	)
	if err != nil {
		return nil, domainerrors.NewDataFetchError("scanning transaction").WithCause(err)
	}

	txn.Amount, err = values.NewMoneyFromString(amount, currency)
	if err != nil {
		return nil, domainerrors.Wrap(err, "parsing stored amount")
	}

	if latitude != nil && longitude != nil {
		txn.Location = &transaction.GeoPoint{Latitude: *latitude, Longitude: *longitude}
	}

	return &txn, nil
}
