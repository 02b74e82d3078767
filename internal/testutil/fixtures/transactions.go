package fixtures

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/transaction"
	"github.com/meridianrisk/fraud-impact-engine/internal/domain/values"
)

// TransactionBuilder builds test Transaction entities
type TransactionBuilder struct {
	id        uuid.UUID
	entityID  string
	timestamp time.Time
	amount    values.Money
	merchant  string
	decision  transaction.ApprovalDecision
	fraud     *bool
	location  *transaction.GeoPoint
}

// NewTransactionBuilder creates a builder with sane defaults
func NewTransactionBuilder() *TransactionBuilder {
	return &TransactionBuilder{
		id:        uuid.New(),
		entityID:  "acct-test",
		timestamp: time.Now().UTC().Add(-time.Hour),
		amount:    values.MustNewMoneyFromFloat(25.00, values.USD),
		merchant:  "test-merchant",
		decision:  transaction.DecisionApproved,
	}
}

func (b *TransactionBuilder) WithEntityID(entityID string) *TransactionBuilder {
	b.entityID = entityID
	return b
}

func (b *TransactionBuilder) WithTimestamp(ts time.Time) *TransactionBuilder {
	b.timestamp = ts
	return b
}

func (b *TransactionBuilder) WithAmount(amount float64) *TransactionBuilder {
	b.amount = values.MustNewMoneyFromFloat(amount, values.USD)
	return b
}

func (b *TransactionBuilder) WithMerchant(merchant string) *TransactionBuilder {
	b.merchant = merchant
	return b
}

func (b *TransactionBuilder) WithDecision(decision transaction.ApprovalDecision) *TransactionBuilder {
	b.decision = decision
	return b
}

func (b *TransactionBuilder) WithGroundTruth(fraud bool) *TransactionBuilder {
	b.fraud = &fraud
	return b
}

func (b *TransactionBuilder) WithLocation(lat, lon float64) *TransactionBuilder {
	b.location = &transaction.GeoPoint{Latitude: lat, Longitude: lon}
	return b
}

// Build constructs the transaction, failing the test on invalid input
func (b *TransactionBuilder) Build(t *testing.T) *transaction.Transaction {
	t.Helper()

	txn, err := transaction.NewTransaction(b.entityID, b.timestamp, b.amount, b.merchant, b.decision)
	if err != nil {
		t.Fatalf("building test transaction: %v", err)
	}
	txn.ID = b.id
	txn.GroundTruthFraud = b.fraud
	txn.Location = b.location
	return txn
}

// NormalHistory generates an unremarkable transaction history: daily
// purchases at consistent hours with small amount variation. Useful as a
// baseline that outlier fixtures stand out against.
func NormalHistory(t *testing.T, entityID string, count int, seed int64) []*transaction.Transaction {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))

	base := time.Now().UTC().Add(-time.Duration(count+1) * 24 * time.Hour)
	base = time.Date(base.Year(), base.Month(), base.Day(), 14, 0, 0, 0, time.UTC)

	txns := make([]*transaction.Transaction, count)
	for i := 0; i < count; i++ {
		ts := base.Add(time.Duration(i) * 24 * time.Hour).
			Add(time.Duration(rng.Intn(90)) * time.Minute)
		amount := 20.0 + rng.Float64()*10.0

		txns[i] = NewTransactionBuilder().
			WithEntityID(entityID).
			WithTimestamp(ts).
			WithAmount(amount).
			WithMerchant(fmt.Sprintf("merchant-%d", rng.Intn(3))).
			WithGroundTruth(false).
			Build(t)
	}
	return txns
}

// FraudBurst generates a rapid-fire run of high-value approved fraud
// starting at the given time, seconds apart.
func FraudBurst(t *testing.T, entityID string, count int, start time.Time) []*transaction.Transaction {
	t.Helper()

	txns := make([]*transaction.Transaction, count)
	for i := 0; i < count; i++ {
		txns[i] = NewTransactionBuilder().
			WithEntityID(entityID).
			WithTimestamp(start.Add(time.Duration(i*30) * time.Second)).
			WithAmount(480.0 + float64(i)*15.0).
			WithMerchant("electronics-resale").
			WithGroundTruth(true).
			Build(t)
	}
	return txns
}
