// Package walletsync keeps a locally cached wallet balance consistent with the
// wallet backend and drives the add-money, withdraw and tournament-entry
// protocols on behalf of every surface that shares one Sync.
package walletsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unity-gaming/unity_wallet/internal/logging"
	"github.com/unity-gaming/unity_wallet/internal/money"
)

const (
	DefaultRefreshInterval = 30 * time.Second
	DefaultRequestTimeout  = 10 * time.Second
)

type operation int

const (
	opNone operation = iota
	opAdd
	opWithdraw
	opEntry
)

func (o operation) String() string {
	switch o {
	case opAdd:
		return "add_money"
	case opWithdraw:
		return "withdraw"
	case opEntry:
		return "tournament_entry"
	default:
		return "none"
	}
}

// Options tunes a Sync. Zero values select the defaults.
type Options struct {
	RefreshInterval time.Duration
	RequestTimeout  time.Duration
	Processor       Processor
	Logger          *slog.Logger
}

// Sync owns the cached balance of one authenticated session. Surfaces read it
// and invoke operations; only Sync writes the cache.
type Sync struct {
	backend   Backend
	tokens    TokenSource
	processor Processor
	logger    *slog.Logger
	interval  time.Duration
	timeout   time.Duration

	mu    sync.Mutex
	state State
	// settled counts applied mutation results; a refresh that overlaps one is stale
	settled uint64
	// refreshes are numbered at issue so only the newest read lands
	refreshSeq uint64
	appliedSeq uint64

	// in-flight or failed operation, kept so a retry reuses its idempotency key
	op       operation
	opAmount decimal.Decimal
	opRef    string
	opKey    string

	subs     map[int]chan State
	nextSub  int
	mounted  int
	stopLoop context.CancelFunc
	closed   bool
	bg       sync.WaitGroup
}

// New builds a Sync with a zero balance; the first Mount or Refresh loads it.
func New(backend Backend, tokens TokenSource, opts Options) *Sync {
	if opts.RefreshInterval <= 0 {
		opts.RefreshInterval = DefaultRefreshInterval
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.Processor == nil {
		opts.Processor = SimulatedProcessor{}
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Sync{
		backend:   backend,
		tokens:    tokens,
		processor: opts.Processor,
		logger:    opts.Logger,
		interval:  opts.RefreshInterval,
		timeout:   opts.RequestTimeout,
		state:     State{Balance: decimal.Zero, PendingAmount: decimal.Zero},
		subs:      make(map[int]chan State),
	}
}

// Balance returns the cached balance. It never blocks on the network.
func (s *Sync) Balance() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Balance
}

// State returns a snapshot of the wallet state.
func (s *Sync) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Refresh replaces the cached balance with the backend's. On failure the cache
// is left untouched and the error is published to subscribers.
func (s *Sync) Refresh(ctx context.Context) error {
	token, ok := s.token()
	if !ok {
		return s.reject("wallet refresh skipped", ErrUnauthenticated)
	}

	s.mu.Lock()
	s.refreshSeq++
	seq, seen := s.refreshSeq, s.settled
	s.mu.Unlock()

	reqCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	balance, err := s.backend.Balance(reqCtx, token)
	if err == nil {
		err = checkBalance(balance)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.reportLocked("wallet refresh failed", err)
		return err
	}
	switch {
	case s.settled != seen:
		s.logger.Debug("wallet refresh discarded", slog.String("reason", "balance changed while in flight"))
		return nil
	case seq < s.appliedSeq:
		s.logger.Debug("wallet refresh discarded", slog.String("reason", "newer refresh already applied"))
		return nil
	}
	s.state.Balance = balance
	s.appliedSeq = seq
	if s.state.Status != StatusFailed {
		s.state.Err = nil
	}
	s.publishLocked()
	return nil
}

// RequestAddMoney starts the add-money protocol for amount. No network call is made.
func (s *Sync) RequestAddMoney(amount decimal.Decimal) error {
	if !validAmount(amount) {
		return s.reject("add money rejected", ErrInvalidAmount)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status == StatusProcessing {
		s.reportLocked("add money rejected", ErrOperationInProgress)
		return ErrOperationInProgress
	}
	s.state.PendingAmount = amount
	s.state.SelectedMethod = MethodNone
	s.state.Status = StatusAwaitingMethodSelection
	s.state.Err = nil
	s.op = opAdd
	s.opAmount = amount
	s.opRef = ""
	s.opKey = uuid.NewString()
	s.publishLocked()
	return nil
}

// ConfirmPaymentMethod charges the pending amount through method and credits
// the wallet. It is also the retry path after a failed add.
func (s *Sync) ConfirmPaymentMethod(ctx context.Context, method Method) error {
	if !method.Valid() {
		return s.reject("payment method rejected", ErrInvalidMethod)
	}
	token, hasToken := s.token()

	s.mu.Lock()
	switch {
	case s.state.Status == StatusProcessing:
		s.reportLocked("payment method rejected", ErrOperationInProgress)
		s.mu.Unlock()
		return ErrOperationInProgress
	case s.state.Status == StatusAwaitingMethodSelection,
		s.state.Status == StatusFailed && s.op == opAdd:
	default:
		s.reportLocked("payment method rejected", ErrInvalidState)
		s.mu.Unlock()
		return ErrInvalidState
	}
	if !hasToken {
		s.reportLocked("payment method rejected", ErrUnauthenticated)
		s.mu.Unlock()
		return ErrUnauthenticated
	}
	amount, key := s.state.PendingAmount, s.opKey
	s.state.SelectedMethod = method
	s.beginLocked()
	s.mu.Unlock()

	s.logger.Info("add money processing",
		slog.String("amount", amount.StringFixed(2)),
		slog.String("payment_method", string(method)),
	)

	err := s.authorize(ctx, amount, method)
	var balance decimal.Decimal
	if err == nil {
		balance, err = s.send(ctx, func(ctx context.Context) (decimal.Decimal, error) {
			return s.backend.Credit(ctx, token, CreditRequest{Amount: amount, Method: method, IdempotencyKey: key})
		})
	}
	if err != nil {
		return s.fail("add money failed", err)
	}

	s.mu.Lock()
	s.settleLocked(balance)
	s.mu.Unlock()
	s.logger.Info("add money settled",
		slog.String("amount", amount.StringFixed(2)),
		slog.String("payment_method", string(method)),
		slog.String("balance", balance.StringFixed(2)),
	)
	return nil
}

// CancelPendingAdd abandons an add-money operation that has not been sent.
func (s *Sync) CancelPendingAdd() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch {
	case s.state.Status == StatusAwaitingMethodSelection,
		s.state.Status == StatusFailed && s.op == opAdd:
	default:
		s.reportLocked("cancel rejected", ErrInvalidState)
		return ErrInvalidState
	}
	s.resetLocked()
	s.publishLocked()
	return nil
}

// Dismiss acknowledges a failed operation and returns the wallet to idle.
func (s *Sync) Dismiss() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Status != StatusFailed {
		return
	}
	s.resetLocked()
	s.publishLocked()
}

// RequestWithdraw debits amount after checking it against the cached balance.
func (s *Sync) RequestWithdraw(ctx context.Context, amount decimal.Decimal) error {
	if !validAmount(amount) {
		return s.reject("withdraw rejected", ErrInvalidAmount)
	}
	return s.debit(ctx, opWithdraw, amount, "", func(ctx context.Context, token, key string) (decimal.Decimal, error) {
		return s.backend.Debit(ctx, token, DebitRequest{Amount: amount, IdempotencyKey: key})
	})
}

// EnterTournament registers for tournamentID, paying fee from the wallet.
func (s *Sync) EnterTournament(ctx context.Context, tournamentID string, fee decimal.Decimal) error {
	if tournamentID == "" || fee.IsNegative() || !money.HasScale(fee) {
		return s.reject("tournament entry rejected", ErrInvalidAmount)
	}
	return s.debit(ctx, opEntry, fee, tournamentID, func(ctx context.Context, token, key string) (decimal.Decimal, error) {
		return s.backend.EnterTournament(ctx, token, EntryRequest{TournamentID: tournamentID, IdempotencyKey: key})
	})
}

func (s *Sync) debit(ctx context.Context, op operation, amount decimal.Decimal, ref string,
	send func(ctx context.Context, token, key string) (decimal.Decimal, error)) error {
	token, hasToken := s.token()

	s.mu.Lock()
	switch {
	case s.state.Status == StatusProcessing:
		s.reportLocked(op.String()+" rejected", ErrOperationInProgress)
		s.mu.Unlock()
		return ErrOperationInProgress
	case s.state.Status == StatusIdle,
		s.state.Status == StatusFailed && s.op != opAdd:
	default:
		s.reportLocked(op.String()+" rejected", ErrInvalidState)
		s.mu.Unlock()
		return ErrInvalidState
	}
	if amount.GreaterThan(s.state.Balance) {
		s.reportLocked(op.String()+" rejected", ErrInsufficientBalance)
		s.mu.Unlock()
		return ErrInsufficientBalance
	}
	if !hasToken {
		s.reportLocked(op.String()+" rejected", ErrUnauthenticated)
		s.mu.Unlock()
		return ErrUnauthenticated
	}
	retry := s.state.Status == StatusFailed && s.op == op && s.opRef == ref && s.opAmount.Equal(amount)
	if !retry {
		s.opKey = uuid.NewString()
	}
	s.op, s.opAmount, s.opRef = op, amount, ref
	key := s.opKey
	s.beginLocked()
	s.mu.Unlock()

	balance, err := s.send(ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return send(ctx, token, key)
	})
	if err != nil {
		return s.fail(op.String()+" failed", err)
	}

	s.mu.Lock()
	s.settleLocked(balance)
	s.mu.Unlock()
	s.logger.Info(op.String()+" settled",
		slog.String("amount", amount.StringFixed(2)),
		slog.String("balance", balance.StringFixed(2)),
	)
	return nil
}

// authorize runs the processor round trip. It is the last cancelable step.
func (s *Sync) authorize(ctx context.Context, amount decimal.Decimal, method Method) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.processor.Authorize(ctx, amount, method); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return fmt.Errorf("%w: payment processor: %w", ErrNetwork, err)
		}
		return fmt.Errorf("%w: %w", ErrPaymentDeclined, err)
	}
	return nil
}

// send issues a mutating request. Once sent it runs to completion regardless of
// the caller's cancellation, bounded by the request timeout.
func (s *Sync) send(ctx context.Context, call func(ctx context.Context) (decimal.Decimal, error)) (decimal.Decimal, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	balance, err := call(ctx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrNetwork) {
			err = fmt.Errorf("%w: %w", ErrNetwork, err)
		}
		return decimal.Zero, err
	}
	if err := checkBalance(balance); err != nil {
		return decimal.Zero, err
	}
	return balance, nil
}

func (s *Sync) token() (string, bool) {
	if s.tokens == nil {
		return "", false
	}
	token, ok := s.tokens.Token()
	return token, ok && token != ""
}

func (s *Sync) reject(msg string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reportLocked(msg, err)
	return err
}

func (s *Sync) fail(msg string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.Status = StatusFailed
	s.reportLocked(msg, err)
	return err
}

func (s *Sync) beginLocked() {
	s.state.Status = StatusProcessing
	s.state.Err = nil
	s.publishLocked()
}

// settleLocked applies the backend-reported balance, passes through Settled
// back to Idle and schedules one reconciling refresh.
func (s *Sync) settleLocked(balance decimal.Decimal) {
	s.state.Balance = balance
	s.settled++
	s.resetLocked()
	s.state.Status = StatusSettled
	s.publishLocked()
	s.state.Status = StatusIdle
	s.publishLocked()
	s.reconcileLocked()
}

func (s *Sync) resetLocked() {
	s.state.PendingAmount = decimal.Zero
	s.state.SelectedMethod = MethodNone
	s.state.Status = StatusIdle
	s.state.Err = nil
	s.op = opNone
	s.opAmount = decimal.Zero
	s.opRef = ""
	s.opKey = ""
}

func (s *Sync) reportLocked(msg string, err error) {
	s.state.Err = err
	s.publishLocked()
	s.logger.Warn(msg,
		slog.Any("error", err),
		slog.String("status", s.state.Status.String()),
	)
}

// validAmount accepts positive amounts the ledger can hold exactly.
func validAmount(amount decimal.Decimal) bool {
	return amount.IsPositive() && money.HasScale(amount)
}

func checkBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("%w: negative balance %s", ErrMalformedResponse, balance.String())
	}
	return nil
}
