package ledger

import (
	"context"
	"sync"
)

type inMemoryLedger struct {
	mu           sync.RWMutex
	balances     map[string]int64
	transactions map[string]transferRecord
	postings     map[string]postingRecord
}

// Records keep the accounts a posting touched so a replay can report their
// current balances, as the Postgres ledger does.
type transferRecord struct {
	id       string
	from, to string
}

type postingRecord struct {
	id     string
	wallet string
}

// NewInMemory creates a concurrency-safe in-memory ledger for tests and local runs.
func NewInMemory() Ledger {
	return &inMemoryLedger{
		balances:     make(map[string]int64),
		transactions: make(map[string]transferRecord),
		postings:     make(map[string]postingRecord),
	}
}

func (l *inMemoryLedger) EnsureAccount(_ context.Context, code string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.balances[code]; !exists {
		l.balances[code] = 0
	}
	return nil
}

func (l *inMemoryLedger) Balance(_ context.Context, code string) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	balance, exists := l.balances[code]
	if !exists {
		return 0, ErrInsufficientFunds
	}
	return balance, nil
}

func (l *inMemoryLedger) Transfer(_ context.Context, fromCode, toCode, kind, clientTxID string, amount int64) (TransactionResult, error) {
	if amount <= 0 {
		return TransactionResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := kind + ":" + clientTxID
	if rec, exists := l.transactions[key]; exists {
		return TransactionResult{
			TransactionID: rec.id,
			FromBalance:   l.balances[rec.from],
			ToBalance:     l.balances[rec.to],
		}, ErrDuplicateTransaction
	}

	fromBalance, ok := l.balances[fromCode]
	if !ok {
		return TransactionResult{}, ErrInsufficientFunds
	}
	toBalance, ok := l.balances[toCode]
	if !ok {
		return TransactionResult{}, ErrInsufficientFunds
	}
	if fromBalance < amount {
		return TransactionResult{}, ErrInsufficientFunds
	}

	fromBalance -= amount
	toBalance += amount
	l.balances[fromCode] = fromBalance
	l.balances[toCode] = toBalance

	l.transactions[key] = transferRecord{id: key, from: fromCode, to: toCode}
	return TransactionResult{TransactionID: key, FromBalance: fromBalance, ToBalance: toBalance}, nil
}

func (l *inMemoryLedger) Credit(_ context.Context, walletCode, rail, clientTxID string, amount int64) (PostingResult, error) {
	return l.post(walletCode, rail, creditKind(rail), clientTxID, amount)
}

func (l *inMemoryLedger) Debit(_ context.Context, walletCode, rail, clientTxID string, amount int64) (PostingResult, error) {
	return l.post(walletCode, rail, debitKind(rail), clientTxID, -amount)
}

// post moves delta into the wallet from the rail's suspense account; a
// negative delta pays out and must be covered by the wallet.
func (l *inMemoryLedger) post(walletCode, rail, kind, clientTxID string, delta int64) (PostingResult, error) {
	if delta == 0 {
		return PostingResult{}, ErrInvalidAmount
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	key := kind + ":" + clientTxID
	if rec, exists := l.postings[key]; exists {
		return PostingResult{
			TransactionID: rec.id,
			WalletBalance: l.balances[rec.wallet],
			Status:        FundingStatusCompleted,
		}, ErrDuplicateTransaction
	}

	walletBalance, ok := l.balances[walletCode]
	if !ok {
		return PostingResult{}, ErrInsufficientFunds
	}
	if walletBalance+delta < 0 {
		return PostingResult{}, ErrInsufficientFunds
	}

	walletBalance += delta
	l.balances[walletCode] = walletBalance
	l.balances[SuspenseAccountCode(rail)] -= delta

	l.postings[key] = postingRecord{id: key, wallet: walletCode}
	return PostingResult{TransactionID: key, WalletBalance: walletBalance, Status: FundingStatusCompleted}, nil
}
