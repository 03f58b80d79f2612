package funding

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unity-gaming/unity_wallet/internal/ledger"
	"github.com/unity-gaming/unity_wallet/internal/money"
	"github.com/unity-gaming/unity_wallet/internal/notification"
	"github.com/unity-gaming/unity_wallet/internal/wallet"
)

// Method is the payment rail used to add money.
type Method string

const (
	MethodCard Method = "card"
	MethodUPI  Method = "upi"

	railPayout = "payout"
)

var (
	ErrInvalidAmount       = errors.New("Invalid amount. Amount must be greater than 0")
	ErrInvalidMethod       = errors.New("Invalid payment method")
	ErrInsufficientBalance = errors.New("Insufficient balance")
)

// ParseMethod maps the request field to a Method. An empty value means card.
func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case "", MethodCard:
		return MethodCard, nil
	case MethodUPI:
		return MethodUPI, nil
	default:
		return "", ErrInvalidMethod
	}
}

// DisplayName is the human readable rail name used in descriptions.
func (m Method) DisplayName() string {
	if m == MethodUPI {
		return "UPI"
	}
	return "Credit/Debit Card"
}

// Service coordinates top-ups and withdrawals using the ledger and acquirer connector.
type Service struct {
	ledger   ledger.Ledger
	wallets  *wallet.Service
	acquirer Acquirer
	notifier notification.Notifier
}

// NewService prepares a funding service ensuring the rail suspense accounts exist.
func NewService(ctx context.Context, ledgerBackend ledger.Ledger, wallets *wallet.Service, acquirer Acquirer, notifier notification.Notifier) (*Service, error) {
	if wallets == nil {
		return nil, fmt.Errorf("wallet service is required")
	}
	if acquirer == nil {
		acquirer = StaticAcquirer{}
	}
	for _, rail := range []string{string(MethodCard), string(MethodUPI), railPayout} {
		if err := ledgerBackend.EnsureAccount(ctx, ledger.SuspenseAccountCode(rail)); err != nil {
			return nil, err
		}
	}
	return &Service{ledger: ledgerBackend, wallets: wallets, acquirer: acquirer, notifier: notifier}, nil
}

// AddMoneyInput captures a top-up request.
type AddMoneyInput struct {
	OwnerID    string
	Amount     decimal.Decimal
	Method     Method
	ClientTxID string
}

// WithdrawInput captures a withdrawal request.
type WithdrawInput struct {
	OwnerID    string
	Amount     decimal.Decimal
	ClientTxID string
}

// Result is the domain outcome of a funding operation.
type Result struct {
	TransactionID     string
	Amount            decimal.Decimal
	Balance           decimal.Decimal
	Status            string
	AcquirerReference string
	CompletedAt       time.Time
}

// AddMoney authorizes a charge and credits the owner's wallet. A repeated
// ClientTxID from the same wallet returns the original transaction and the
// current balance together with ledger.ErrDuplicateTransaction.
func (s *Service) AddMoney(ctx context.Context, input AddMoneyInput) (Result, error) {
	minor, err := validateAmount(input.Amount)
	if err != nil {
		return Result{}, err
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.NewString()
	}

	w, err := s.wallets.Open(ctx, input.OwnerID)
	if err != nil {
		return Result{}, err
	}

	decision, err := s.acquirer.AuthorizeCharge(ctx, Charge{Method: input.Method, Amount: input.Amount})
	if err != nil {
		return Result{}, err
	}

	posted, err := s.ledger.Credit(ctx, w.AccountCode, string(input.Method), postingKey(w, input.ClientTxID), minor)
	if err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction) {
		return Result{}, err
	}
	res := toResult(posted, input.Amount, decision.Reference)
	if err != nil {
		return res, err
	}

	s.notify(ctx, notification.Message{
		Kind:        notification.KindMoneyAdded,
		Destination: w.OwnerID,
		WalletID:    w.ID,
		Balance:     res.Balance,
		Body:        fmt.Sprintf("Added %s to wallet via %s", money.Format(input.Amount), input.Method.DisplayName()),
	})
	return res, nil
}

// Withdraw authorizes a payout and debits the owner's wallet. The ledger
// enforces the balance so a replayed ClientTxID still finds its original posting.
func (s *Service) Withdraw(ctx context.Context, input WithdrawInput) (Result, error) {
	minor, err := validateAmount(input.Amount)
	if err != nil {
		return Result{}, err
	}
	if input.ClientTxID == "" {
		input.ClientTxID = uuid.NewString()
	}

	w, err := s.wallets.Open(ctx, input.OwnerID)
	if err != nil {
		return Result{}, err
	}

	decision, err := s.acquirer.AuthorizePayout(ctx, Payout{Amount: input.Amount})
	if err != nil {
		return Result{}, err
	}

	posted, err := s.ledger.Debit(ctx, w.AccountCode, railPayout, postingKey(w, input.ClientTxID), minor)
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return Result{}, ErrInsufficientBalance
	case err != nil && !errors.Is(err, ledger.ErrDuplicateTransaction):
		return Result{}, err
	}
	res := toResult(posted, input.Amount, decision.Reference)
	if err != nil {
		return res, err
	}

	s.notify(ctx, notification.Message{
		Kind:        notification.KindWithdrawal,
		Destination: w.OwnerID,
		WalletID:    w.ID,
		Balance:     res.Balance,
		Body:        fmt.Sprintf("Withdrew %s from wallet", money.Format(input.Amount)),
	})
	return res, nil
}

func (s *Service) notify(ctx context.Context, msg notification.Message) {
	if s.notifier == nil {
		return
	}
	msg.At = time.Now().UTC()
	// delivery failures never undo a settled posting
	_ = s.notifier.Send(ctx, msg)
}

// validateAmount returns the amount in ledger minor units.
func validateAmount(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, ErrInvalidAmount
	}
	if !money.HasScale(amount) {
		return 0, fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, money.Scale)
	}
	minor, err := money.ToMinor(amount)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidAmount, err)
	}
	return minor, nil
}

// postingKey scopes a client transaction id to one wallet; the ledger
// deduplicates on (kind, client_tx_id) across every account.
func postingKey(w wallet.Wallet, clientTxID string) string {
	return w.ID + ":" + clientTxID
}

func toResult(posted ledger.PostingResult, amount decimal.Decimal, reference string) Result {
	return Result{
		TransactionID:     posted.TransactionID,
		Amount:            amount,
		Balance:           money.FromMinor(posted.WalletBalance),
		Status:            posted.Status,
		AcquirerReference: reference,
		CompletedAt:       time.Now().UTC(),
	}
}
