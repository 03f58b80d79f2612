package funding

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Acquirer represents a connector to an external payment processor.
type Acquirer interface {
	AuthorizeCharge(ctx context.Context, charge Charge) (AuthorizationDecision, error)
	AuthorizePayout(ctx context.Context, payout Payout) (AuthorizationDecision, error)
}

// AuthorizationDecision captures the response from the acquirer.
type AuthorizationDecision struct {
	Reference string
	Status    string
}

// Charge is a top-up pulled from the player's card or UPI account.
type Charge struct {
	Method Method
	Amount decimal.Decimal
}

// Payout is a withdrawal pushed back to the player.
type Payout struct {
	Amount decimal.Decimal
}

// StaticAcquirer approves every request with a synthetic reference.
type StaticAcquirer struct{}

// AuthorizeCharge approves the top-up.
func (StaticAcquirer) AuthorizeCharge(_ context.Context, _ Charge) (AuthorizationDecision, error) {
	return AuthorizationDecision{Reference: uuid.NewString(), Status: "approved"}, nil
}

// AuthorizePayout approves the withdrawal.
func (StaticAcquirer) AuthorizePayout(_ context.Context, _ Payout) (AuthorizationDecision, error) {
	return AuthorizationDecision{Reference: uuid.NewString(), Status: "approved"}, nil
}
