package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unity-gaming/unity_wallet/internal/ledger"
	"github.com/unity-gaming/unity_wallet/internal/money"
)

const (
	statusActive    = "active"
	defaultCurrency = "USD"
)

// Service exposes wallet operations backed by the ledger.
type Service struct {
	repo    Repository
	ledger  ledger.Ledger
	welcome decimal.Decimal
}

// NewService builds a wallet service. New wallets receive welcome as a one-off credit.
func NewService(repo Repository, ledger ledger.Ledger, welcome decimal.Decimal) *Service {
	return &Service{repo: repo, ledger: ledger, welcome: welcome}
}

// Open returns the owner's wallet, provisioning it with the welcome credit on
// first use. Concurrent calls for the same owner converge on one wallet.
func (s *Service) Open(ctx context.Context, ownerID string) (Wallet, error) {
	w, err := s.repo.GetByOwner(ctx, ownerID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Wallet{}, err
	}

	w, err = s.create(ctx, ownerID)
	if errors.Is(err, ErrExists) {
		return s.repo.GetByOwner(ctx, ownerID)
	}
	return w, err
}

func (s *Service) create(ctx context.Context, ownerID string) (Wallet, error) {
	if _, err := uuid.Parse(ownerID); err != nil {
		return Wallet{}, fmt.Errorf("invalid owner id: %w", err)
	}

	walletID := uuid.New().String()
	accountCode := fmt.Sprintf("wallet:%s", walletID)
	if err := s.ledger.EnsureAccount(ctx, accountCode); err != nil {
		return Wallet{}, err
	}

	wallet := Wallet{
		ID:          walletID,
		OwnerID:     ownerID,
		AccountCode: accountCode,
		Currency:    defaultCurrency,
		Status:      statusActive,
		CreatedAt:   time.Now().UTC(),
	}
	// the account is funded before the wallet becomes visible, so a failed
	// credit never leaves a wallet that can no longer receive it
	if s.welcome.IsPositive() {
		minor, err := money.ToMinor(s.welcome)
		if err != nil {
			return Wallet{}, fmt.Errorf("welcome credit: %w", err)
		}
		_, err = s.ledger.Credit(ctx, accountCode, ledger.RailWelcome, walletID, minor)
		if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
			return Wallet{}, fmt.Errorf("welcome credit: %w", err)
		}
	}
	if err := s.repo.Create(ctx, wallet); err != nil {
		return Wallet{}, err
	}
	return wallet, nil
}

// Get retrieves wallet metadata.
func (s *Service) Get(ctx context.Context, id string) (Wallet, error) {
	return s.repo.Get(ctx, id)
}

// GetByOwner retrieves the owner's wallet without provisioning one.
func (s *Service) GetByOwner(ctx context.Context, ownerID string) (Wallet, error) {
	return s.repo.GetByOwner(ctx, ownerID)
}

// Balance returns the ledger balance for the wallet.
func (s *Service) Balance(ctx context.Context, w Wallet) (Balance, error) {
	amount, err := s.ledger.Balance(ctx, w.AccountCode)
	if err != nil {
		return Balance{}, err
	}
	return Balance{WalletID: w.ID, Amount: money.FromMinor(amount), AsOf: time.Now().UTC()}, nil
}
