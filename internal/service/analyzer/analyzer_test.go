package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/errors"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/transaction"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/values"
)

type mockWindowFetcher struct {
	mock.Mock
}

func (m *mockWindowFetcher) FetchWindow(ctx context.Context, start, end time.Time) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, start, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func analyzerTxn(t *testing.T, entityID string, decision transaction.ApprovalDecision, fraud *bool) *transaction.Transaction {
	t.Helper()
	txn, err := transaction.NewTransaction(entityID, time.Now(),
		values.MustNewMoneyFromFloat(25.00, values.USD), "merchant-a", decision)
	require.NoError(t, err)
	txn.GroundTruthFraud = fraud
	return txn
}

func fraudLabel(b bool) *bool { return &b }

func TestAnalyzer_OrdersByFraudCountDescending(t *testing.T) {
	fetcher := new(mockWindowFetcher)
	fetcher.On("FetchWindow", mock.Anything, mock.Anything, mock.Anything).Return([]*transaction.Transaction{
		analyzerTxn(t, "acct-low", transaction.DecisionApproved, fraudLabel(true)),
		analyzerTxn(t, "acct-high", transaction.DecisionApproved, fraudLabel(true)),
		analyzerTxn(t, "acct-high", transaction.DecisionApproved, fraudLabel(true)),
		analyzerTxn(t, "acct-high", transaction.DecisionApproved, fraudLabel(true)),
		analyzerTxn(t, "acct-mid", transaction.DecisionApproved, fraudLabel(true)),
		analyzerTxn(t, "acct-mid", transaction.DecisionApproved, fraudLabel(true)),
	}, nil)

	a := NewAnalyzer(fetcher, nil, nil, zaptest.NewLogger(t))
	flagged, err := a.FlaggedEntitiesBetween(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)

	require.Len(t, flagged, 3)
	assert.Equal(t, FlaggedEntity{EntityID: "acct-high", FraudCount: 3}, flagged[0])
	assert.Equal(t, FlaggedEntity{EntityID: "acct-mid", FraudCount: 2}, flagged[1])
	assert.Equal(t, FlaggedEntity{EntityID: "acct-low", FraudCount: 1}, flagged[2])
}

func TestAnalyzer_EntitiesWithoutFraudNeverFlagged(t *testing.T) {
	fetcher := new(mockWindowFetcher)
	fetcher.On("FetchWindow", mock.Anything, mock.Anything, mock.Anything).Return([]*transaction.Transaction{
		// Clean, unlabeled, and declined-fraud traffic must not produce work items
		analyzerTxn(t, "acct-clean", transaction.DecisionApproved, fraudLabel(false)),
		analyzerTxn(t, "acct-unlabeled", transaction.DecisionApproved, nil),
		analyzerTxn(t, "acct-caught", transaction.DecisionBlocked, fraudLabel(true)),
		analyzerTxn(t, "acct-dirty", transaction.DecisionApproved, fraudLabel(true)),
	}, nil)

	a := NewAnalyzer(fetcher, nil, nil, zaptest.NewLogger(t))
	flagged, err := a.FlaggedEntitiesBetween(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)

	require.Len(t, flagged, 1)
	assert.Equal(t, "acct-dirty", flagged[0].EntityID)
}

func TestAnalyzer_TiesBreakOnEntityID(t *testing.T) {
	fetcher := new(mockWindowFetcher)
	fetcher.On("FetchWindow", mock.Anything, mock.Anything, mock.Anything).Return([]*transaction.Transaction{
		analyzerTxn(t, "acct-b", transaction.DecisionApproved, fraudLabel(true)),
		analyzerTxn(t, "acct-a", transaction.DecisionApproved, fraudLabel(true)),
	}, nil)

	a := NewAnalyzer(fetcher, nil, nil, zaptest.NewLogger(t))
	flagged, err := a.FlaggedEntitiesBetween(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)

	require.Len(t, flagged, 2)
	assert.Equal(t, "acct-a", flagged[0].EntityID)
	assert.Equal(t, "acct-b", flagged[1].EntityID)
}

func TestAnalyzer_CustomGrouping(t *testing.T) {
	fetcher := new(mockWindowFetcher)
	txns := []*transaction.Transaction{
		analyzerTxn(t, "acct-1", transaction.DecisionApproved, fraudLabel(true)),
		analyzerTxn(t, "acct-2", transaction.DecisionApproved, fraudLabel(true)),
	}
	fetcher.On("FetchWindow", mock.Anything, mock.Anything, mock.Anything).Return(txns, nil)

	byMerchant := func(txn *transaction.Transaction) string { return txn.Merchant }
	a := NewAnalyzer(fetcher, nil, byMerchant, zaptest.NewLogger(t))
	flagged, err := a.FlaggedEntitiesBetween(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.NoError(t, err)

	require.Len(t, flagged, 1)
	assert.Equal(t, "merchant-a", flagged[0].EntityID)
	assert.Equal(t, 2, flagged[0].FraudCount)
}

func TestAnalyzer_FetchErrorWrapped(t *testing.T) {
	fetcher := new(mockWindowFetcher)
	fetcher.On("FetchWindow", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	a := NewAnalyzer(fetcher, nil, nil, zaptest.NewLogger(t))
	_, err := a.FlaggedEntitiesBetween(context.Background(), time.Now().Add(-time.Hour), time.Now())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDataFetch))
	assert.True(t, errors.IsRetryable(err))
}
