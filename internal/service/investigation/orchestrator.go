package investigation

import (
	"context"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/errors"
	inv "github.com/meridianrisk/fraud-impact-engine/internal/domain/investigation"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/transaction"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/values"
	"github.com/meridianrisk/fraud-impact-engine/internal/metrics"
	"github.com/meridianrisk/fraud-impact-engine/internal/service/evaluation"
	"github.com/meridianrisk/fraud-impact-engine/internal/service/impact"
	"github.com/meridianrisk/fraud-impact-engine/internal/service/scoring"
)

// Failure reason labels shared by logs, metrics, and persisted state
const (
	failureFetch     = "fetch"
	failureTimeout   = "timeout"
	failureCancelled = "cancelled"
	failureInternal  = "internal"
)

// Options bound the orchestrator's resource usage. These are
// infrastructure knobs, not engine parameters; they carry defaults.
type Options struct {
	Concurrency      int
	FetchMaxAttempts int
	FetchBackoffBase time.Duration
	StoreRateLimit   rate.Limit
	StoreRateBurst   int
}

// DefaultOptions returns conservative resource bounds
func DefaultOptions() Options {
	return Options{
		Concurrency:      4,
		FetchMaxAttempts: 3,
		FetchBackoffBase: 100 * time.Millisecond,
		StoreRateLimit:   rate.Limit(50),
		StoreRateBurst:   10,
	}
}

// Orchestrator runs investigations end to end: fetch, score, classify,
// evaluate, and translate into financial impact. Investigations for
// different entities are independent; nothing mutable is shared between
// concurrent runs.
type Orchestrator struct {
	txnStore    TransactionStore
	results     ResultStore
	cache       CompletionCache
	adjustments map[string]scoring.MerchantAdjustment
	limiter     *rate.Limiter
	metrics     *metrics.Registry
	tracer      trace.Tracer
	logger      *zap.Logger
	opts        Options
}

// NewOrchestrator wires the orchestrator. The cache may be nil; the skip
// check then relies on the ResultStore alone.
func NewOrchestrator(
	txnStore TransactionStore,
	results ResultStore,
	cache CompletionCache,
	adjustments map[string]scoring.MerchantAdjustment,
	reg *metrics.Registry,
	tracer trace.Tracer,
	logger *zap.Logger,
	opts Options,
) (*Orchestrator, error) {
	if txnStore == nil || results == nil {
		return nil, errors.NewInternalError("orchestrator requires transaction and result stores")
	}
	if opts.Concurrency <= 0 {
		return nil, errors.NewConfigurationError("concurrency",
			"concurrency must be positive")
	}
	if opts.FetchMaxAttempts <= 0 {
		return nil, errors.NewConfigurationError("fetch_max_attempts",
			"fetch_max_attempts must be positive")
	}
	if opts.FetchBackoffBase <= 0 {
		return nil, errors.NewConfigurationError("fetch_backoff_base",
			"fetch_backoff_base must be positive")
	}

	return &Orchestrator{
		txnStore:    txnStore,
		results:     results,
		cache:       cache,
		adjustments: adjustments,
		limiter:     rate.NewLimiter(opts.StoreRateLimit, opts.StoreRateBurst),
		metrics:     reg,
		tracer:      tracer,
		logger:      logger,
		opts:        opts,
	}, nil
}

// Result is the full outcome of one investigation run
type Result struct {
	EntityID      string
	Investigation *inv.Investigation
	Scores        []*inv.TransactionScore
	Matrix        *inv.ConfusionMatrix
	Impact        *inv.FinancialImpactReport
	// Skipped is set when a completed investigation already existed and
	// the force flag was off. On a skip the other fields are nil;
	// Investigation is only populated when the result store served the
	// skip check, not the completion cache.
	Skipped bool
}

// RunInvestigation executes the full state machine for one entity
func (o *Orchestrator) RunInvestigation(ctx context.Context, entityID string, params inv.Parameters) (*Result, error) {
	ctx, span := o.tracer.Start(ctx, "investigation.run",
		trace.WithAttributes(attribute.String("entity.id", entityID)))
	defer span.End()

	if !params.ForceReinvestigate {
		if prior, ok := o.alreadyInvestigated(ctx, entityID); ok {
			o.metrics.InvestigationsSkipped.Inc()
			o.logger.Info("skipping entity with completed investigation",
				zap.String("entity_id", entityID))
			return &Result{EntityID: entityID, Investigation: prior, Skipped: true}, nil
		}
	}

	investigation, err := inv.New(entityID, params)
	if err != nil {
		return nil, err
	}
	if err := o.results.SaveInvestigation(ctx, investigation); err != nil {
		return nil, errors.Wrap(err, "persisting pending investigation")
	}

	o.metrics.InvestigationsStarted.Inc()
	started := time.Now()
	defer o.metrics.ObserveInvestigation(started)

	runCtx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()

	result, err := o.run(runCtx, ctx, investigation)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// run drives PENDING through COMPLETED. runCtx carries the investigation
// timeout; persistCtx survives it so terminal state and partial scores
// can still be written after a deadline fires.
func (o *Orchestrator) run(runCtx, persistCtx context.Context, investigation *inv.Investigation) (*Result, error) {
	params := investigation.Parameters
	entityID := investigation.EntityID

	// FETCHING
	if err := o.transition(persistCtx, investigation, inv.StatusFetching); err != nil {
		return nil, err
	}

	scoringEnd := time.Now().UTC().Add(-params.LookbackOffset)
	scoringStart := scoringEnd.Add(-params.TimeWindowDuration)

	txns, err := o.fetchWithRetry(runCtx, entityID, scoringStart, scoringEnd)
	if err != nil {
		return nil, o.fail(persistCtx, investigation, failureFetch,
			"transaction fetch failed: "+err.Error(), err)
	}

	transaction.SortByTimestamp(txns)
	txns, dropped := capTransactions(txns, params.MaxTransactions, params.CapOrder)
	investigation.TransactionCount = len(txns)
	investigation.DroppedCount = dropped
	if dropped > 0 {
		o.metrics.TransactionsDropped.Add(float64(dropped))
		o.logger.Warn("transaction cap applied",
			zap.String("entity_id", entityID),
			zap.Int("dropped", dropped),
			zap.String("cap_order", string(params.CapOrder)))
	}

	// SCORING
	if err := o.transition(persistCtx, investigation, inv.StatusScoring); err != nil {
		return nil, err
	}

	scores, scoreErr := o.scoreAll(runCtx, investigation, txns)
	if scoreErr != nil {
		// Partial scores survive a timeout or cancellation; they are
		// flagged incomplete rather than discarded
		if len(scores) > 0 {
			investigation.PartialResults = true
			if err := o.results.SaveScores(persistCtx, scores); err != nil {
				o.logger.Error("persisting partial scores failed",
					zap.String("entity_id", entityID), zap.Error(err))
			}
		}
		reason := failureTimeout
		if ctxErr := runCtx.Err(); ctxErr == context.Canceled {
			reason = failureCancelled
		}
		return nil, o.fail(persistCtx, investigation, reason, scoreErr.Error(), scoreErr)
	}

	// CLASSIFIED
	if err := o.transition(persistCtx, investigation, inv.StatusClassified); err != nil {
		return nil, err
	}

	ids := scoredTransactionIDs(scores)
	groundTruth, err := o.txnStore.FetchGroundTruth(runCtx, ids)
	if err != nil {
		return nil, o.fail(persistCtx, investigation, failureFetch,
			"ground truth fetch failed: "+err.Error(), err)
	}

	builder := evaluation.NewBuilder(o.logger)
	matrix := builder.Build(investigation.ID, entityID, scores, groundTruth)
	o.metrics.ExcludedFromMatrix.Add(float64(matrix.ExcludedCount))

	impactStart := scoringEnd
	impactEnd := impactStart.Add(params.ImpactWindowDuration)
	impactTxns, err := o.fetchWithRetry(runCtx, entityID, impactStart, impactEnd)
	if err != nil {
		return nil, o.fail(persistCtx, investigation, failureFetch,
			"impact window fetch failed: "+err.Error(), err)
	}

	calculator, err := impact.NewCalculator(params.TakeRate, params.LifetimeMultiplier, params.ConfidenceBasis, o.logger)
	if err != nil {
		return nil, o.fail(persistCtx, investigation, failureInternal, err.Error(), err)
	}
	report, err := calculator.Calculate(impact.Input{
		InvestigationID: investigation.ID,
		EntityID:        entityID,
		ImpactTxns:      impactTxns,
		ScoringTxnCount: len(txns),
		WindowStart:     impactStart,
		WindowEnd:       impactEnd,
	})
	if err != nil {
		return nil, o.fail(persistCtx, investigation, failureInternal, err.Error(), err)
	}

	// COMPLETED
	if err := o.persistOutcome(persistCtx, investigation, scores, matrix, report); err != nil {
		return nil, o.fail(persistCtx, investigation, failureInternal,
			"persisting results failed: "+err.Error(), err)
	}
	if err := o.transition(persistCtx, investigation, inv.StatusCompleted); err != nil {
		return nil, err
	}

	if o.cache != nil {
		if err := o.cache.MarkCompleted(persistCtx, entityID); err != nil {
			o.logger.Warn("completion cache update failed",
				zap.String("entity_id", entityID), zap.Error(err))
		}
	}

	o.metrics.InvestigationsCompleted.Inc()
	o.logger.Info("investigation completed",
		zap.String("entity_id", entityID),
		zap.String("investigation_id", investigation.ID.String()),
		zap.Int("transactions", len(txns)),
		zap.Int("dropped", investigation.DroppedCount))

	return &Result{
		EntityID:      entityID,
		Investigation: investigation,
		Scores:        scores,
		Matrix:        matrix,
		Impact:        report,
	}, nil
}

// scoreAll produces a TransactionScore per transaction, in batches. The
// anomaly model is fit once per batch and never reused across entities.
// Cancellation is honored at transaction boundaries; scores computed so
// far are returned alongside the error.
func (o *Orchestrator) scoreAll(ctx context.Context, investigation *inv.Investigation, txns []*transaction.Transaction) ([]*inv.TransactionScore, error) {
	params := investigation.Parameters

	extractor := scoring.NewFeatureExtractor()
	features := extractor.Extract(txns)

	heuristic := scoring.NewHeuristicScorer()
	combiner := scoring.NewCombiner(o.adjustments)
	classifier, err := scoring.NewClassifier(params.RiskThreshold)
	if err != nil {
		return nil, err
	}

	amounts := make([]float64, len(txns))
	for i, txn := range txns {
		amounts[i] = txn.Amount.ToFloat64()
	}
	digitCheck := scoring.CheckFirstDigitDistribution(amounts)

	scores := make([]*inv.TransactionScore, 0, len(txns))
	for batchStart := 0; batchStart < len(features); batchStart += params.ScoringBatchSize {
		batchEnd := batchStart + params.ScoringBatchSize
		if batchEnd > len(features) {
			batchEnd = len(features)
		}
		batch := features[batchStart:batchEnd]
		o.metrics.ScoringBatchSize.Observe(float64(len(batch)))

		anomalyScores := o.fitAndScoreBatch(investigation.EntityID, params, batch, batchStart)

		for i, fv := range batch {
			if err := ctx.Err(); err != nil {
				if err == context.DeadlineExceeded {
					return scores, errors.NewScoringTimeoutError(
						"investigation timeout exceeded during scoring")
				}
				return scores, errors.Wrap(err, "scoring cancelled")
			}

			heuristicResult := heuristic.Score(fv)

			var anomaly *values.RiskScore
			if anomalyScores != nil {
				anomaly = &anomalyScores[i]
			}

			combined := combiner.Combine(scoring.CombineInput{
				Heuristic:      heuristicResult.Risk,
				Anomaly:        anomaly,
				DigitViolation: digitCheck.Violates(),
				Merchant:       txns[batchStart+i].Merchant,
			})
			label := classifier.Classify(combined.Risk)

			scores = append(scores, inv.NewTransactionScore(
				investigation.ID,
				fv.TransactionID,
				heuristicResult.Risk,
				anomaly,
				combined.Risk,
				combined.Method,
				label,
			))

			o.metrics.TransactionsScored.Inc()
			if label == inv.LabelFraud {
				o.metrics.FraudPredictions.Inc()
			}
		}
	}

	return scores, nil
}

// fitAndScoreBatch fits a fresh anomaly model on the batch and scores it.
// Below the minimum sample count the batch degrades to heuristic-only.
func (o *Orchestrator) fitAndScoreBatch(entityID string, params inv.Parameters, batch []*scoring.FeatureVector, batchIndex int) []values.RiskScore {
	scorer := scoring.NewAnomalyScorer(params.MinAnomalySamples, params.Contamination,
		anomalySeed(entityID)+int64(batchIndex))

	anomalyScores, err := scorer.Score(batch)
	if err != nil {
		if errors.IsType(err, errors.ErrorTypeInsufficientSample) {
			o.metrics.HeuristicOnlyRuns.Inc()
			o.logger.Debug("anomaly scoring skipped for small batch",
				zap.String("entity_id", entityID),
				zap.Int("batch_size", len(batch)))
			return nil
		}
		o.logger.Warn("anomaly scoring failed, falling back to heuristic only",
			zap.String("entity_id", entityID), zap.Error(err))
		return nil
	}
	return anomalyScores
}

func (o *Orchestrator) persistOutcome(
	ctx context.Context,
	investigation *inv.Investigation,
	scores []*inv.TransactionScore,
	matrix *inv.ConfusionMatrix,
	report *inv.FinancialImpactReport,
) error {
	if err := o.results.SaveScores(ctx, scores); err != nil {
		return err
	}
	if err := o.results.SaveConfusionMatrix(ctx, matrix); err != nil {
		return err
	}
	return o.results.SaveImpactReport(ctx, report)
}

// alreadyInvestigated checks the cache fast path, then the result store
func (o *Orchestrator) alreadyInvestigated(ctx context.Context, entityID string) (*inv.Investigation, bool) {
	if o.cache != nil {
		hit, err := o.cache.WasCompleted(ctx, entityID)
		if err != nil {
			o.logger.Debug("completion cache lookup failed",
				zap.String("entity_id", entityID), zap.Error(err))
		} else if hit {
			o.metrics.CacheHits.Inc()
			return nil, true
		} else {
			o.metrics.CacheMisses.Inc()
		}
	}

	prior, err := o.results.LatestCompleted(ctx, entityID)
	if err != nil {
		return nil, false
	}
	if o.cache != nil {
		if err := o.cache.MarkCompleted(ctx, entityID); err != nil {
			o.logger.Debug("completion cache backfill failed",
				zap.String("entity_id", entityID), zap.Error(err))
		}
	}
	return prior, true
}

// fetchWithRetry bounds fetch attempts with exponential backoff. Only
// retryable errors are retried; the rate limiter protects the store
// across concurrent investigations.
func (o *Orchestrator) fetchWithRetry(ctx context.Context, entityID string, start, end time.Time) ([]*transaction.Transaction, error) {
	var lastErr error
	backoff := o.opts.FetchBackoffBase

	for attempt := 1; attempt <= o.opts.FetchMaxAttempts; attempt++ {
		if err := o.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrap(err, "rate limit wait")
		}

		txns, err := o.txnStore.Fetch(ctx, entityID, start, end)
		if err == nil {
			return txns, nil
		}
		lastErr = err

		if !errors.IsRetryable(err) || attempt == o.opts.FetchMaxAttempts {
			break
		}

		o.metrics.FetchRetries.Inc()
		o.logger.Warn("transaction fetch failed, retrying",
			zap.String("entity_id", entityID),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "fetch retry interrupted")
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, lastErr
}

func (o *Orchestrator) transition(ctx context.Context, investigation *inv.Investigation, next inv.Status) error {
	if err := investigation.TransitionTo(next); err != nil {
		return err
	}
	if err := o.results.UpdateInvestigation(ctx, investigation); err != nil {
		return errors.Wrap(err, "persisting investigation state")
	}
	return nil
}

// fail marks the investigation FAILED with a structured reason and
// returns the original error
func (o *Orchestrator) fail(ctx context.Context, investigation *inv.Investigation, reasonLabel, reason string, cause error) error {
	o.metrics.InvestigationsFailed.WithLabelValues(reasonLabel).Inc()

	if err := investigation.Fail(reason); err != nil {
		o.logger.Error("failed to mark investigation failed",
			zap.String("entity_id", investigation.EntityID), zap.Error(err))
		return cause
	}
	if err := o.results.UpdateInvestigation(ctx, investigation); err != nil {
		o.logger.Error("failed to persist failed investigation",
			zap.String("entity_id", investigation.EntityID), zap.Error(err))
	}

	o.logger.Error("investigation failed",
		zap.String("entity_id", investigation.EntityID),
		zap.String("investigation_id", investigation.ID.String()),
		zap.String("reason", reason))

	return cause
}

// BatchResult aggregates the outcome of a batch of investigations
type BatchResult struct {
	Results         []*Result
	AggregateMatrix *inv.ConfusionMatrix
	MerchantImpacts []*inv.AggregateImpact
	Completed       int
	Skipped         int
	Failed          int
}

// RunBatch investigates the given entities with bounded concurrency.
// Per-entity failures do not abort the batch; they are counted and the
// remaining entities still run.
func (o *Orchestrator) RunBatch(ctx context.Context, entityIDs []string, params inv.Parameters) *BatchResult {
	ctx, span := o.tracer.Start(ctx, "investigation.run_batch",
		trace.WithAttributes(attribute.Int("batch.size", len(entityIDs))))
	defer span.End()

	var (
		mu      sync.Mutex
		results []*Result
		failed  int
	)

	sem := make(chan struct{}, o.opts.Concurrency)
	var wg sync.WaitGroup

	for _, entityID := range entityIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(entityID string) {
			defer wg.Done()
			defer func() { <-sem }()

			result, err := o.RunInvestigation(ctx, entityID, params)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				return
			}
			results = append(results, result)
		}(entityID)
	}
	wg.Wait()

	// Deterministic order regardless of goroutine scheduling
	sort.Slice(results, func(i, j int) bool {
		return results[i].EntityID < results[j].EntityID
	})

	batch := &BatchResult{Results: results, Failed: failed}
	var matrices []*inv.ConfusionMatrix
	var reports []*inv.FinancialImpactReport
	for _, r := range results {
		if r.Skipped {
			batch.Skipped++
			continue
		}
		batch.Completed++
		matrices = append(matrices, r.Matrix)
		reports = append(reports, r.Impact)
	}
	batch.AggregateMatrix = inv.AggregateMatrices(matrices)
	batch.MerchantImpacts = inv.AggregateImpactsBy(reports, func(r *inv.FinancialImpactReport) string {
		return r.Merchant
	})

	o.logger.Info("investigation batch finished",
		zap.Int("entities", len(entityIDs)),
		zap.Int("completed", batch.Completed),
		zap.Int("skipped", batch.Skipped),
		zap.Int("failed", batch.Failed))

	return batch
}

// anomalySeed derives a stable per-entity seed so reruns are reproducible
func anomalySeed(entityID string) int64 {
	h := fnv.New64a()
	h.Write([]byte(entityID))
	return int64(h.Sum64())
}

func scoredTransactionIDs(scores []*inv.TransactionScore) []uuid.UUID {
	ids := make([]uuid.UUID, len(scores))
	for i, s := range scores {
		ids[i] = s.TransactionID
	}
	return ids
}

func capTransactions(txns []*transaction.Transaction, max int, order inv.CapOrder) ([]*transaction.Transaction, int) {
	if len(txns) <= max {
		return txns, 0
	}
	dropped := len(txns) - max
	// txns are sorted ascending by timestamp
	if order == inv.CapOrderNewestFirst {
		return txns[dropped:], dropped
	}
	return txns[:max], dropped
}
