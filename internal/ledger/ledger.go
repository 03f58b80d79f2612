package ledger

import (
	"context"
	"errors"
)

var (
	// ErrInsufficientFunds occurs when the source account cannot cover a posting.
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrDuplicateTransaction indicates the client transaction identifier was
	// already posted under the same kind. The returned result carries the
	// original transaction id and the accounts' current balances.
	ErrDuplicateTransaction = errors.New("duplicate transaction")

	// ErrInvalidAmount is returned for zero or negative postings.
	ErrInvalidAmount = errors.New("amount must be positive")
)

const (
	// FundingStatusCompleted represents a settled posting.
	FundingStatusCompleted = "completed"

	// RailWelcome funds the one-off credit granted to new wallets.
	RailWelcome = "welcome"
)

// SuspenseAccountCode is the clearing account money enters and leaves through
// for a payment rail such as "card" or "upi". Its balance goes negative as
// wallets are funded.
func SuspenseAccountCode(rail string) string {
	return "suspense:" + rail
}

// TransactionResult captures the outcome of an account to account transfer.
type TransactionResult struct {
	TransactionID string
	FromBalance   int64
	ToBalance     int64
}

// PostingResult captures the outcome of a wallet credit or debit through a rail.
type PostingResult struct {
	TransactionID string
	WalletBalance int64
	Status        string
}

// Ledger is a double-entry store of account balances in minor units.
type Ledger interface {
	EnsureAccount(ctx context.Context, code string) error
	Balance(ctx context.Context, code string) (int64, error)
	Transfer(ctx context.Context, fromCode, toCode, kind, clientTxID string, amount int64) (TransactionResult, error)
	Credit(ctx context.Context, walletCode, rail, clientTxID string, amount int64) (PostingResult, error)
	Debit(ctx context.Context, walletCode, rail, clientTxID string, amount int64) (PostingResult, error)
}

func creditKind(rail string) string { return rail + "_in" }
func debitKind(rail string) string  { return rail + "_out" }
