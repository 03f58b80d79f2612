package tournament

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/unity-gaming/unity_wallet/internal/ledger"
	"github.com/unity-gaming/unity_wallet/internal/logging"
	"github.com/unity-gaming/unity_wallet/internal/money"
	"github.com/unity-gaming/unity_wallet/internal/notification"
	"github.com/unity-gaming/unity_wallet/internal/wallet"
)

const entryKind = "tournament_entry"

// ErrInsufficientBalance means the wallet cannot cover the entry fee.
var ErrInsufficientBalance = errors.New("Insufficient balance in wallet")

// AccountCode is the ledger account holding a tournament's collected fees.
func AccountCode(id int64) string {
	return fmt.Sprintf("tournament:%d", id)
}

// Service registers players and collects entry fees through the ledger.
type Service struct {
	repo     Repository
	ledger   ledger.Ledger
	wallets  *wallet.Service
	notifier notification.Notifier
	logger   *slog.Logger
}

// NewService constructs a tournament service.
func NewService(repo Repository, ledger ledger.Ledger, wallets *wallet.Service, notifier notification.Notifier, logger *slog.Logger) *Service {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Service{repo: repo, ledger: ledger, wallets: wallets, notifier: notifier, logger: logger}
}

// Result is the outcome of a successful registration.
type Result struct {
	Registration  Registration
	Tournament    Tournament
	Balance       decimal.Decimal
	EntryFeePaid  decimal.Decimal
	TransactionID string
}

// List returns the tournament catalog.
func (s *Service) List(ctx context.Context) ([]Tournament, error) {
	return s.repo.List(ctx)
}

// Mine returns the tournaments userID has entered.
func (s *Service) Mine(ctx context.Context, userID string) ([]Entry, error) {
	return s.repo.ListByUser(ctx, userID)
}

// Register seats userID in the tournament and charges the entry fee.
//
// The seat is reserved first so capacity is never oversold. If the fee cannot
// be collected the seat is released. Once the fee is posted the registration
// is never released: a failed confirmation leaves it Pending and a retry
// resumes it, finding the original posting by its transaction id.
func (s *Service) Register(ctx context.Context, userID string, tournamentID int64) (Result, error) {
	reg, t, err := s.repo.Reserve(ctx, tournamentID, userID)
	if err != nil {
		return Result{}, err
	}

	w, err := s.wallets.Open(ctx, userID)
	if err != nil {
		s.release(ctx, reg)
		return Result{}, err
	}

	var (
		balance decimal.Decimal
		txID    string
	)
	if t.EntryFee.IsPositive() {
		if err := s.ledger.EnsureAccount(ctx, AccountCode(t.ID)); err != nil {
			s.release(ctx, reg)
			return Result{}, err
		}
		fee, err := money.ToMinor(t.EntryFee)
		if err != nil {
			s.release(ctx, reg)
			return Result{}, err
		}
		clientTxID := fmt.Sprintf("%d:%s", t.ID, userID)
		posted, err := s.ledger.Transfer(ctx, w.AccountCode, AccountCode(t.ID), entryKind, clientTxID, fee)
		switch {
		case errors.Is(err, ledger.ErrInsufficientFunds):
			s.release(ctx, reg)
			return Result{}, ErrInsufficientBalance
		case err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction):
			s.release(ctx, reg)
			return Result{}, err
		}
		balance = money.FromMinor(posted.FromBalance)
		txID = posted.TransactionID
	} else {
		b, err := s.wallets.Balance(ctx, w)
		if err != nil {
			s.release(ctx, reg)
			return Result{}, err
		}
		balance = b.Amount
	}

	reg, err = s.repo.Confirm(ctx, reg.ID, txID)
	if err != nil {
		s.logger.Error("confirm registration failed",
			slog.Int64("tournament_id", t.ID),
			slog.String("user_id", userID),
			slog.String("transaction_id", txID),
			slog.String("error", err.Error()),
		)
		return Result{}, err
	}

	if s.notifier != nil {
		// delivery failures never undo a paid entry
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:        notification.KindTournamentEntry,
			Destination: userID,
			WalletID:    w.ID,
			Balance:     balance,
			Body:        fmt.Sprintf("Entry fee for %s", t.Name),
			At:          time.Now().UTC(),
		})
	}

	return Result{
		Registration:  reg,
		Tournament:    t,
		Balance:       balance,
		EntryFeePaid:  t.EntryFee,
		TransactionID: txID,
	}, nil
}

func (s *Service) release(ctx context.Context, reg Registration) {
	if err := s.repo.Release(context.WithoutCancel(ctx), reg.ID); err != nil {
		s.logger.Error("release reservation failed",
			slog.Int64("registration_id", reg.ID),
			slog.String("error", err.Error()),
		)
	}
}
