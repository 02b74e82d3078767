package repository

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	inv "github.com/meridianrisk/fraud-impact-engine/internal/domain/investigation"
)

// ResultRepository persists investigation outcomes: the investigation
// rows themselves, transaction scores, confusion matrices, and financial
// impact reports.
type ResultRepository struct {
	db *pgxpool.Pool
}

// NewResultRepository creates a new result repository
func NewResultRepository(db *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{db: db}
}

// SaveInvestigation inserts a new investigation row
func (r *ResultRepository) SaveInvestigation(ctx context.Context, investigation *inv.Investigation) error {
	params, err := json.Marshal(investigation.Parameters)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO investigations (id, entity_id, status, parameters, failure_reason,
			partial_results, transaction_count, dropped_count, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err = r.db.Exec(ctx, query,
		investigation.ID, investigation.EntityID, investigation.Status, params,
		investigation.FailureReason, investigation.PartialResults,
		investigation.TransactionCount, investigation.DroppedCount,
		investigation.CreatedAt, investigation.CompletedAt)
	return err
}

// UpdateInvestigation persists state machine progress for an existing row
func (r *ResultRepository) UpdateInvestigation(ctx context.Context, investigation *inv.Investigation) error {
	query := `
		UPDATE investigations
		SET status = $2, failure_reason = $3, partial_results = $4,
			transaction_count = $5, dropped_count = $6, completed_at = $7
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		investigation.ID, investigation.Status, investigation.FailureReason,
		investigation.PartialResults, investigation.TransactionCount,
		investigation.DroppedCount, investigation.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveScores batch-inserts transaction scores
func (r *ResultRepository) SaveScores(ctx context.Context, scores []*inv.TransactionScore) error {
	if len(scores) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	query := `
		INSERT INTO transaction_scores (id, investigation_id, transaction_id,
			heuristic_risk, anomaly_risk, combined_risk, scoring_method,
			predicted_label, scored_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, score := range scores {
		var anomaly *float64
		if score.AnomalyRisk != nil {
			v := score.AnomalyRisk.Value()
			anomaly = &v
		}
		batch.Queue(query,
			score.ID, score.InvestigationID, score.TransactionID,
			score.HeuristicRisk.Value(), anomaly, score.CombinedRisk.Value(),
			score.ScoringMethod, score.PredictedLabel, score.ScoredAt)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()
	for range scores {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}

// SaveConfusionMatrix inserts a per-investigation confusion matrix
func (r *ResultRepository) SaveConfusionMatrix(ctx context.Context, matrix *inv.ConfusionMatrix) error {
	query := `
		INSERT INTO confusion_matrices (id, investigation_id, entity_id,
			true_positives, false_positives, true_negatives, false_negatives,
			excluded_count, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := r.db.Exec(ctx, query,
		matrix.ID, matrix.InvestigationID, matrix.EntityID,
		matrix.TruePositives, matrix.FalsePositives,
		matrix.TrueNegatives, matrix.FalseNegatives,
		matrix.ExcludedCount, matrix.CreatedAt)
	return err
}

// SaveImpactReport inserts a financial impact report
func (r *ResultRepository) SaveImpactReport(ctx context.Context, report *inv.FinancialImpactReport) error {
	query := `
		INSERT INTO financial_impact_reports (id, investigation_id, entity_id,
			merchant, saved_fraud_gmv, lost_revenues, net_value, currency,
			confidence, saved_txn_count, lost_txn_count, basis_txn_count,
			window_start, window_end, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	_, err := r.db.Exec(ctx, query,
		report.ID, report.InvestigationID, report.EntityID, report.Merchant,
		report.SavedFraudGMV.Amount(), report.LostRevenues.Amount(),
		report.NetValue.Amount(), report.SavedFraudGMV.Currency(),
		report.Confidence, report.SavedTxnCount, report.LostTxnCount,
		report.BasisTxnCount, report.WindowStart, report.WindowEnd,
		report.CreatedAt)
	return err
}

// LatestCompleted returns the entity's most recent completed investigation
func (r *ResultRepository) LatestCompleted(ctx context.Context, entityID string) (*inv.Investigation, error) {
	query := `
		SELECT id, entity_id, status, parameters, failure_reason, partial_results,
			transaction_count, dropped_count, created_at, completed_at
		FROM investigations
		WHERE entity_id = $1 AND status = $2
		ORDER BY created_at DESC
		LIMIT 1`

	return r.scanInvestigation(r.db.QueryRow(ctx, query, entityID, inv.StatusCompleted))
}

// GetInvestigation returns an investigation by ID
func (r *ResultRepository) GetInvestigation(ctx context.Context, id uuid.UUID) (*inv.Investigation, error) {
	query := `
		SELECT id, entity_id, status, parameters, failure_reason, partial_results,
			transaction_count, dropped_count, created_at, completed_at
		FROM investigations
		WHERE id = $1`

	return r.scanInvestigation(r.db.QueryRow(ctx, query, id))
}

func (r *ResultRepository) scanInvestigation(row pgx.Row) (*inv.Investigation, error) {
	var (
		investigation inv.Investigation
		params        []byte
	)

	err := row.Scan(
		&investigation.ID, &investigation.EntityID, &investigation.Status,
		&params, &investigation.FailureReason, &investigation.PartialResults,
		&investigation.TransactionCount, &investigation.DroppedCount,
		&investigation.CreatedAt, &investigation.CompletedAt)
	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(params, &investigation.Parameters); err != nil {
		return nil, err
	}

	return &investigation, nil
}
