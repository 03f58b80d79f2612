package walletsync

import (
	"context"

	"github.com/shopspring/decimal"
)

// Status is the lifecycle of the current wallet operation.
type Status int

const (
	StatusIdle Status = iota
	StatusAwaitingMethodSelection
	StatusProcessing
	StatusSettled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusAwaitingMethodSelection:
		return "awaiting_method_selection"
	case StatusProcessing:
		return "processing"
	case StatusSettled:
		return "settled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Method is the payment rail of an add-money operation.
type Method string

const (
	MethodNone Method = ""
	MethodCard Method = "card"
	MethodUPI  Method = "upi"
)

// Valid reports whether m is a rail the backend accepts.
func (m Method) Valid() bool {
	return m == MethodCard || m == MethodUPI
}

// DisplayName is the label surfaces show for the rail.
func (m Method) DisplayName() string {
	switch m {
	case MethodCard:
		return "Credit/Debit Card"
	case MethodUPI:
		return "UPI"
	default:
		return ""
	}
}

// State is a snapshot of a wallet as seen by its surfaces.
type State struct {
	Balance        decimal.Decimal
	PendingAmount  decimal.Decimal
	SelectedMethod Method
	Status         Status
	Err            error
}

// CreditRequest is the add-money call sent to the backend.
type CreditRequest struct {
	Amount         decimal.Decimal
	Method         Method
	IdempotencyKey string
}

// DebitRequest is the withdraw call sent to the backend.
type DebitRequest struct {
	Amount         decimal.Decimal
	IdempotencyKey string
}

// EntryRequest registers the session user for a tournament, paying its fee.
type EntryRequest struct {
	TournamentID   string
	IdempotencyKey string
}

// Backend is the remote source of truth. Every call returns the balance the
// backend reports after the operation.
type Backend interface {
	Balance(ctx context.Context, token string) (decimal.Decimal, error)
	Credit(ctx context.Context, token string, req CreditRequest) (decimal.Decimal, error)
	Debit(ctx context.Context, token string, req DebitRequest) (decimal.Decimal, error)
	EnterTournament(ctx context.Context, token string, req EntryRequest) (decimal.Decimal, error)
}

// TokenSource supplies the bearer credential of the current session.
type TokenSource interface {
	Token() (string, bool)
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() (string, bool)

// Token calls f.
func (f TokenFunc) Token() (string, bool) {
	return f()
}

// ParseAmount parses user input into an amount, rejecting anything non-numeric.
func ParseAmount(input string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(input)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	return amount, nil
}
