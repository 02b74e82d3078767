package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/transaction"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/values"
)

func makeTxn(t *testing.T, ts time.Time, amount float64) *transaction.Transaction {
	t.Helper()
	txn, err := transaction.NewTransaction("acct-1", ts,
		values.MustNewMoneyFromFloat(amount, values.USD), "merchant-a", transaction.DecisionApproved)
	require.NoError(t, err)
	return txn
}

func TestFeatureExtractor_FirstTransactionHasNoGap(t *testing.T) {
	now := time.Now()
	txns := []*transaction.Transaction{
		makeTxn(t, now, 50),
		makeTxn(t, now.Add(10*time.Minute), 60),
	}

	vectors := NewFeatureExtractor().Extract(txns)
	require.Len(t, vectors, 2)

	assert.Nil(t, vectors[0].TimeGap, "first transaction has no previous")
	assert.Nil(t, vectors[0].ImpliedSpeedKmh)

	require.NotNil(t, vectors[1].TimeGap)
	assert.Equal(t, 10*time.Minute, *vectors[1].TimeGap)
	assert.Nil(t, vectors[1].ImpliedSpeedKmh, "no locations, speed unavailable")
}

func TestFeatureExtractor_AmountZScoreGuards(t *testing.T) {
	now := time.Now()
	txns := []*transaction.Transaction{
		makeTxn(t, now, 10),
		makeTxn(t, now.Add(time.Hour), 20),
		makeTxn(t, now.Add(2*time.Hour), 15),
	}

	vectors := NewFeatureExtractor().Extract(txns)

	// Fewer than 2 priors: stddev undefined, z forced to zero
	assert.Equal(t, 0.0, vectors[0].AmountZ)
	assert.Equal(t, 0.0, vectors[1].AmountZ)

	// Third sees priors {10, 20}: mean 15, stddev 5, z = 0
	assert.InDelta(t, 0.0, vectors[2].AmountZ, 0.001)
}

func TestFeatureExtractor_AmountZScoreOutlier(t *testing.T) {
	now := time.Now()
	txns := []*transaction.Transaction{
		makeTxn(t, now, 10),
		makeTxn(t, now.Add(1*time.Hour), 12),
		makeTxn(t, now.Add(2*time.Hour), 11),
		makeTxn(t, now.Add(3*time.Hour), 500),
	}

	vectors := NewFeatureExtractor().Extract(txns)
	assert.Greater(t, vectors[3].AmountZ, 2.0, "large amount against tight history is an outlier")
}

func TestFeatureExtractor_ZeroVarianceHistory(t *testing.T) {
	now := time.Now()
	txns := []*transaction.Transaction{
		makeTxn(t, now, 25),
		makeTxn(t, now.Add(time.Hour), 25),
		makeTxn(t, now.Add(2*time.Hour), 25),
	}

	vectors := NewFeatureExtractor().Extract(txns)
	assert.Equal(t, 0.0, vectors[2].AmountZ, "identical history must not divide by zero")
}

func TestFeatureExtractor_ImpliedSpeed(t *testing.T) {
	now := time.Now()
	// NYC then London one hour later: thousands of km/h
	first := makeTxn(t, now, 10).WithLocation(40.7128, -74.0060)
	second := makeTxn(t, now.Add(time.Hour), 20).WithLocation(51.5074, -0.1278)

	vectors := NewFeatureExtractor().Extract([]*transaction.Transaction{first, second})

	require.NotNil(t, vectors[1].ImpliedSpeedKmh)
	assert.InDelta(t, 5570, *vectors[1].ImpliedSpeedKmh, 30)
}

func TestFeatureExtractor_SpeedUnavailableOnZeroGap(t *testing.T) {
	now := time.Now()
	first := makeTxn(t, now, 10).WithLocation(40.0, -74.0)
	second := makeTxn(t, now, 20).WithLocation(41.0, -75.0)

	vectors := NewFeatureExtractor().Extract([]*transaction.Transaction{first, second})
	assert.Nil(t, vectors[1].ImpliedSpeedKmh, "simultaneous transactions have no defined speed")
}

func TestFeatureExtractor_TrailingHourCount(t *testing.T) {
	now := time.Now()
	txns := []*transaction.Transaction{
		makeTxn(t, now.Add(-3*time.Hour), 10),
		makeTxn(t, now.Add(-40*time.Minute), 10),
		makeTxn(t, now.Add(-20*time.Minute), 10),
		makeTxn(t, now, 10),
	}

	vectors := NewFeatureExtractor().Extract(txns)
	assert.Equal(t, 0, vectors[0].TrailingHourCount)
	assert.Equal(t, 2, vectors[3].TrailingHourCount, "only the two within the trailing hour count")
}

func TestFeatureExtractor_ActiveHours(t *testing.T) {
	base := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)

	var txns []*transaction.Transaction
	for i := 0; i < 6; i++ {
		txns = append(txns, makeTxn(t, base.AddDate(0, 0, i), 10))
	}
	// Seventh lands at 03:00, an hour never seen before
	txns = append(txns, makeTxn(t, base.AddDate(0, 0, 6).Add(-11*time.Hour), 10))
	transaction.SortByTimestamp(txns)

	vectors := NewFeatureExtractor().Extract(txns)

	// Thin history reads as neutral
	assert.True(t, vectors[0].WithinActiveHours)
	assert.True(t, vectors[2].WithinActiveHours)

	last := vectors[len(vectors)-1]
	assert.Equal(t, 3, last.HourOfDay)
	assert.False(t, last.WithinActiveHours)
}
