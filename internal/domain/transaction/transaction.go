package transaction

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/meridianrisk/fraud-impact-engine/internal/domain/values"
)

// Transaction represents an immutable payment transaction as ingested
// upstream. The engine only ever reads these records.
type Transaction struct {
	ID               uuid.UUID
	EntityID         string
	Timestamp        time.Time
	Amount           values.Money
	Merchant         string
	ApprovalDecision ApprovalDecision
	// GroundTruthFraud is the externally supplied fraud label. Nil means the
	// label is absent; absence is meaningful and must never be read as false.
	GroundTruthFraud *bool
	Location         *GeoPoint
}

// ApprovalDecision represents the upstream authorization outcome
type ApprovalDecision string

const (
	DecisionApproved ApprovalDecision = "approved"
	DecisionBlocked  ApprovalDecision = "blocked"
	DecisionRejected ApprovalDecision = "rejected"
)

// String returns the string representation of ApprovalDecision
func (d ApprovalDecision) String() string {
	return string(d)
}

// IsValid checks if the approval decision is valid
func (d ApprovalDecision) IsValid() bool {
	switch d {
	case DecisionApproved, DecisionBlocked, DecisionRejected:
		return true
	default:
		return false
	}
}

// IsDeclined reports whether the transaction was blocked or rejected upstream
func (d ApprovalDecision) IsDeclined() bool {
	return d == DecisionBlocked || d == DecisionRejected
}

// NewTransaction creates a transaction record with validation
func NewTransaction(
	entityID string,
	timestamp time.Time,
	amount values.Money,
	merchant string,
	decision ApprovalDecision,
) (*Transaction, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity id cannot be empty")
	}
	if timestamp.IsZero() {
		return nil, fmt.Errorf("timestamp cannot be zero")
	}
	if !decision.IsValid() {
		return nil, fmt.Errorf("invalid approval decision: %s", decision)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("transaction amount cannot be negative")
	}

	return &Transaction{
		ID:               uuid.New(),
		EntityID:         entityID,
		Timestamp:        timestamp,
		Amount:           amount,
		Merchant:         merchant,
		ApprovalDecision: decision,
	}, nil
}

// WithGroundTruth returns a copy carrying the given fraud label
func (t *Transaction) WithGroundTruth(fraud bool) *Transaction {
	clone := *t
	clone.GroundTruthFraud = &fraud
	return &clone
}

// WithLocation returns a copy carrying the given geolocation
func (t *Transaction) WithLocation(lat, lon float64) *Transaction {
	clone := *t
	clone.Location = &GeoPoint{Latitude: lat, Longitude: lon}
	return &clone
}

// HasGroundTruth reports whether an authoritative fraud label exists
func (t *Transaction) HasGroundTruth() bool {
	return t.GroundTruthFraud != nil
}

// IsKnownFraud reports whether the transaction is labeled as fraud.
// Returns false when the label is absent; callers deciding matrix
// membership must check HasGroundTruth first.
func (t *Transaction) IsKnownFraud() bool {
	return t.GroundTruthFraud != nil && *t.GroundTruthFraud
}

// GeoPoint represents a geolocation attached to a transaction
type GeoPoint struct {
	Latitude  float64
	Longitude float64
}

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance to another point in kilometers
func (p GeoPoint) DistanceKm(other GeoPoint) float64 {
	lat1 := p.Latitude * math.Pi / 180
	lat2 := other.Latitude * math.Pi / 180
	dLat := (other.Latitude - p.Latitude) * math.Pi / 180
	dLon := (other.Longitude - p.Longitude) * math.Pi / 180

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

// SortByTimestamp orders transactions oldest-first in place
func SortByTimestamp(txns []*Transaction) {
	sort.Slice(txns, func(i, j int) bool {
		return txns[i].Timestamp.Before(txns[j].Timestamp)
	})
}
