package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresLedger persists ledger entries in PostgreSQL ensuring double-entry balance.
type PostgresLedger struct {
	db *pgxpool.Pool
}

// NewPostgresLedger constructs a Postgres-backed ledger implementation.
func NewPostgresLedger(db *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{db: db}
}

// EnsureAccount guarantees an account exists for the provided code.
func (l *PostgresLedger) EnsureAccount(ctx context.Context, code string) error {
	_, err := l.db.Exec(ctx, `INSERT INTO accounts (id, code) VALUES ($1, $2)
        ON CONFLICT (code) DO NOTHING`, uuid.New(), code)
	return err
}

// Balance returns the summed balance for the specified account code.
func (l *PostgresLedger) Balance(ctx context.Context, code string) (int64, error) {
	const query = `
        SELECT COALESCE(SUM(e.amount), 0)
        FROM accounts a
        LEFT JOIN entries e ON e.account_id = a.id
        WHERE a.code = $1
        GROUP BY a.id`
	var balance int64
	if err := l.db.QueryRow(ctx, query, code).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("account %s: %w", code, ErrInsufficientFunds)
		}
		return 0, err
	}
	return balance, nil
}

// Transfer records a balanced posting between two accounts.
func (l *PostgresLedger) Transfer(ctx context.Context, fromCode, toCode, kind, clientTxID string, amount int64) (TransactionResult, error) {
	if amount <= 0 {
		return TransactionResult{}, ErrInvalidAmount
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return TransactionResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	fromID, err := accountIDForCode(ctx, tx, fromCode)
	if err != nil {
		return TransactionResult{}, err
	}
	toID, err := accountIDForCode(ctx, tx, toCode)
	if err != nil {
		return TransactionResult{}, err
	}

	if existingID, _, found, err := existingTransaction(ctx, tx, kind, clientTxID); err != nil {
		return TransactionResult{}, err
	} else if found {
		fromBal, err := balanceForAccount(ctx, tx, fromID)
		if err != nil {
			return TransactionResult{}, err
		}
		toBal, err := balanceForAccount(ctx, tx, toID)
		if err != nil {
			return TransactionResult{}, err
		}
		return TransactionResult{TransactionID: existingID.String(), FromBalance: fromBal, ToBalance: toBal}, ErrDuplicateTransaction
	}

	fromBal, err := balanceForAccount(ctx, tx, fromID)
	if err != nil {
		return TransactionResult{}, err
	}
	toBal, err := balanceForAccount(ctx, tx, toID)
	if err != nil {
		return TransactionResult{}, err
	}
	if fromBal < amount {
		return TransactionResult{}, ErrInsufficientFunds
	}

	txID, err := insertPosting(ctx, tx, kind, clientTxID, fromID, toID, amount)
	if err != nil {
		return TransactionResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return TransactionResult{}, err
	}

	// both rows were locked FOR UPDATE, so the pre-commit balances plus the
	// posting are the committed balances
	return TransactionResult{TransactionID: txID.String(), FromBalance: fromBal - amount, ToBalance: toBal + amount}, nil
}

// Credit funds a wallet from the suspense account of rail.
func (l *PostgresLedger) Credit(ctx context.Context, walletCode, rail, clientTxID string, amount int64) (PostingResult, error) {
	if amount <= 0 {
		return PostingResult{}, ErrInvalidAmount
	}
	return l.post(ctx, walletCode, rail, creditKind(rail), clientTxID, amount)
}

// Debit pays amount out of a wallet into the suspense account of rail.
func (l *PostgresLedger) Debit(ctx context.Context, walletCode, rail, clientTxID string, amount int64) (PostingResult, error) {
	if amount <= 0 {
		return PostingResult{}, ErrInvalidAmount
	}
	return l.post(ctx, walletCode, rail, debitKind(rail), clientTxID, -amount)
}

func (l *PostgresLedger) post(ctx context.Context, walletCode, rail, kind, clientTxID string, delta int64) (PostingResult, error) {
	suspenseCode := SuspenseAccountCode(rail)
	if err := l.EnsureAccount(ctx, suspenseCode); err != nil {
		return PostingResult{}, err
	}

	tx, err := l.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PostingResult{}, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	walletID, err := accountIDForCode(ctx, tx, walletCode)
	if err != nil {
		return PostingResult{}, err
	}
	suspenseID, err := accountIDForCode(ctx, tx, suspenseCode)
	if err != nil {
		return PostingResult{}, err
	}

	walletBal, err := balanceForAccount(ctx, tx, walletID)
	if err != nil {
		return PostingResult{}, err
	}

	if existingID, status, found, err := existingTransaction(ctx, tx, kind, clientTxID); err != nil {
		return PostingResult{}, err
	} else if found {
		return PostingResult{TransactionID: existingID.String(), WalletBalance: walletBal, Status: status}, ErrDuplicateTransaction
	}

	if walletBal+delta < 0 {
		return PostingResult{}, ErrInsufficientFunds
	}

	from, to, amount := suspenseID, walletID, delta
	if delta < 0 {
		from, to, amount = walletID, suspenseID, -delta
	}
	txID, err := insertPosting(ctx, tx, kind, clientTxID, from, to, amount)
	if err != nil {
		return PostingResult{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PostingResult{}, err
	}

	return PostingResult{TransactionID: txID.String(), WalletBalance: walletBal + delta, Status: FundingStatusCompleted}, nil
}

func insertPosting(ctx context.Context, tx pgx.Tx, kind, clientTxID string, fromID, toID uuid.UUID, amount int64) (uuid.UUID, error) {
	txID := uuid.New()
	if _, err := tx.Exec(ctx, `INSERT INTO transactions (id, client_tx_id, kind, status) VALUES ($1, $2, $3, $4)`,
		txID, clientTxID, kind, FundingStatusCompleted); err != nil {
		return uuid.Nil, err
	}

	batch := &pgx.Batch{}
	batch.Queue(`INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, fromID, -amount)
	batch.Queue(`INSERT INTO entries (id, transaction_id, account_id, amount) VALUES ($1, $2, $3, $4)`, uuid.New(), txID, toID, amount)
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return uuid.Nil, err
	}
	return txID, nil
}

func existingTransaction(ctx context.Context, tx pgx.Tx, kind, clientTxID string) (uuid.UUID, string, bool, error) {
	const query = `SELECT id, status FROM transactions WHERE client_tx_id = $1 AND kind = $2`
	var id uuid.UUID
	var status string
	if err := tx.QueryRow(ctx, query, clientTxID, kind).Scan(&id, &status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, "", false, nil
		}
		return uuid.Nil, "", false, err
	}
	return id, status, true, nil
}

func accountIDForCode(ctx context.Context, tx pgx.Tx, code string) (uuid.UUID, error) {
	const query = `SELECT id FROM accounts WHERE code = $1 FOR UPDATE`
	var id uuid.UUID
	if err := tx.QueryRow(ctx, query, code).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, fmt.Errorf("account %s not found", code)
		}
		return uuid.Nil, err
	}
	return id, nil
}

func balanceForAccount(ctx context.Context, tx pgx.Tx, accountID uuid.UUID) (int64, error) {
	const query = `SELECT COALESCE(SUM(amount), 0) FROM entries WHERE account_id = $1`
	var balance int64
	if err := tx.QueryRow(ctx, query, accountID).Scan(&balance); err != nil {
		return 0, err
	}
	return balance, nil
}
