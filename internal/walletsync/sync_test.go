package walletsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/unity-gaming/unity_wallet/internal/logging"
)

type fakeBackend struct {
	mu          sync.Mutex
	balance     decimal.Decimal
	reported    *decimal.Decimal
	fees        map[string]decimal.Decimal
	balanceErr  error
	creditErr   error
	gate        chan struct{}
	balanceGate chan struct{}
	entered     chan string

	balanceCalls int
	credits      []CreditRequest
	debits       []DebitRequest
	entries      []EntryRequest
}

func newFakeBackend(balance string) *fakeBackend {
	return &fakeBackend{
		balance: decimal.RequireFromString(balance),
		fees:    map[string]decimal.Decimal{},
		entered: make(chan string, 8),
	}
}

func (f *fakeBackend) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.balanceCalls + len(f.credits) + len(f.debits) + len(f.entries)
}

func (f *fakeBackend) wait(ctx context.Context, name string, gate chan struct{}) error {
	if gate == nil {
		return nil
	}
	f.entered <- name
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeBackend) Balance(ctx context.Context, _ string) (decimal.Decimal, error) {
	f.mu.Lock()
	f.balanceCalls++
	bal, err, gate := f.balance, f.balanceErr, f.balanceGate
	f.mu.Unlock()
	if werr := f.wait(ctx, "balance", gate); werr != nil {
		return decimal.Zero, werr
	}
	return bal, err
}

func (f *fakeBackend) Credit(ctx context.Context, _ string, req CreditRequest) (decimal.Decimal, error) {
	f.mu.Lock()
	f.credits = append(f.credits, req)
	gate := f.gate
	f.mu.Unlock()
	if err := f.wait(ctx, "credit", gate); err != nil {
		return decimal.Zero, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.creditErr != nil {
		return decimal.Zero, f.creditErr
	}
	f.balance = f.balance.Add(req.Amount)
	if f.reported != nil {
		f.balance = *f.reported
	}
	return f.balance, nil
}

func (f *fakeBackend) Debit(ctx context.Context, _ string, req DebitRequest) (decimal.Decimal, error) {
	f.mu.Lock()
	f.debits = append(f.debits, req)
	gate := f.gate
	f.mu.Unlock()
	if err := f.wait(ctx, "debit", gate); err != nil {
		return decimal.Zero, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if req.Amount.GreaterThan(f.balance) {
		return decimal.Zero, &BackendError{StatusCode: 400, Message: "Insufficient balance"}
	}
	f.balance = f.balance.Sub(req.Amount)
	return f.balance, nil
}

func (f *fakeBackend) EnterTournament(_ context.Context, _ string, req EntryRequest) (decimal.Decimal, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, req)
	fee, ok := f.fees[req.TournamentID]
	if !ok {
		return decimal.Zero, &BackendError{StatusCode: 404, Message: "tournament not found"}
	}
	f.balance = f.balance.Sub(fee)
	return f.balance, nil
}

type declineProcessor struct{}

func (declineProcessor) Authorize(context.Context, decimal.Decimal, Method) error {
	return errors.New("do not honor")
}

func staticToken() TokenSource {
	return TokenFunc(func() (string, bool) { return "token", true })
}

func newTestSync(t *testing.T, backend Backend, opts Options) *Sync {
	t.Helper()
	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = time.Second
	}
	opts.Logger = logging.Discard()
	s := New(backend, staticToken(), opts)
	t.Cleanup(s.Close)
	return s
}

// loaded returns a Sync whose cache already holds the backend balance.
func loaded(t *testing.T, backend *fakeBackend) *Sync {
	t.Helper()
	s := newTestSync(t, backend, Options{})
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("initial refresh: %v", err)
	}
	return s
}

func dec(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestNonPositiveAmountsNeverReachBackend(t *testing.T) {
	backend := newFakeBackend("20.00")
	s := loaded(t, backend)
	before := backend.calls()

	for _, amount := range []string{"0", "-1", "-0.01", "0.00"} {
		if err := s.RequestAddMoney(dec(amount)); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("add %s: expected invalid amount, got %v", amount, err)
		}
		if err := s.RequestWithdraw(context.Background(), dec(amount)); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("withdraw %s: expected invalid amount, got %v", amount, err)
		}
	}

	if got := backend.calls(); got != before {
		t.Fatalf("expected no backend calls, got %d", got-before)
	}
	if st := s.State(); st.Status != StatusIdle {
		t.Fatalf("expected idle, got %s", st.Status)
	}
}

func TestSubCentAmountsRejectedLocally(t *testing.T) {
	backend := newFakeBackend("20.00")
	s := loaded(t, backend)
	before := backend.calls()

	if err := s.RequestAddMoney(dec("10.005")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("add: expected ErrInvalidAmount, got %v", err)
	}
	if err := s.RequestWithdraw(context.Background(), dec("1.001")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("withdraw: expected ErrInvalidAmount, got %v", err)
	}
	if err := s.EnterTournament(context.Background(), "2", dec("0.125")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("entry: expected ErrInvalidAmount, got %v", err)
	}
	if got := backend.calls(); got != before {
		t.Fatalf("expected no backend calls, got %d", got-before)
	}
	if st := s.State(); st.Status != StatusIdle || !st.PendingAmount.IsZero() {
		t.Fatalf("state changed by rejected amounts: %+v", st)
	}
	if err := s.RequestAddMoney(dec("10.50")); err != nil {
		t.Fatalf("two decimals must be accepted: %v", err)
	}
}

func TestWithdrawAboveBalanceFailsLocally(t *testing.T) {
	backend := newFakeBackend("20.00")
	s := loaded(t, backend)
	before := backend.calls()

	err := s.RequestWithdraw(context.Background(), dec("30"))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	if got := backend.calls(); got != before {
		t.Fatalf("expected no backend calls, got %d", got-before)
	}
	if !s.Balance().Equal(dec("20.00")) {
		t.Fatalf("expected balance 20.00, got %s", s.Balance())
	}
}

func TestAddMoneyScenario(t *testing.T) {
	backend := newFakeBackend("20.00")
	s := loaded(t, backend)

	if err := s.RequestAddMoney(dec("50")); err != nil {
		t.Fatalf("request add money: %v", err)
	}
	st := s.State()
	if st.Status != StatusAwaitingMethodSelection || !st.PendingAmount.Equal(dec("50")) {
		t.Fatalf("unexpected state after request: %+v", st)
	}

	if err := s.ConfirmPaymentMethod(context.Background(), MethodCard); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	s.Close()

	st = s.State()
	if !st.Balance.Equal(dec("70.00")) {
		t.Fatalf("expected balance 70.00, got %s", st.Balance)
	}
	if st.Status != StatusIdle || !st.PendingAmount.IsZero() || st.SelectedMethod != MethodNone {
		t.Fatalf("unexpected final state: %+v", st)
	}
	if len(backend.credits) != 1 || backend.credits[0].Method != MethodCard || !backend.credits[0].Amount.Equal(dec("50")) {
		t.Fatalf("unexpected credit requests: %+v", backend.credits)
	}
}

func TestConfirmTrustsBackendReportedBalance(t *testing.T) {
	backend := newFakeBackend("20.00")
	reported := dec("68.50")
	backend.reported = &reported
	s := loaded(t, backend)

	if err := s.RequestAddMoney(dec("50")); err != nil {
		t.Fatalf("request add money: %v", err)
	}
	if err := s.ConfirmPaymentMethod(context.Background(), MethodUPI); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if got := s.Balance(); !got.Equal(reported) {
		t.Fatalf("expected backend balance %s, got %s", reported, got)
	}
}

func TestFailedConfirmKeepsBalanceAndAllowsRetry(t *testing.T) {
	backend := newFakeBackend("20.00")
	backend.creditErr = &BackendError{StatusCode: 400, Message: "Card declined"}
	s := loaded(t, backend)

	if err := s.RequestAddMoney(dec("50")); err != nil {
		t.Fatalf("request add money: %v", err)
	}
	err := s.ConfirmPaymentMethod(context.Background(), MethodCard)
	if !errors.Is(err, ErrBackendRejected) {
		t.Fatalf("expected backend rejection, got %v", err)
	}
	if UserMessage(err) != "Card declined" {
		t.Fatalf("expected backend message, got %q", UserMessage(err))
	}

	st := s.State()
	if st.Status != StatusFailed || !st.Balance.Equal(dec("20.00")) || !st.PendingAmount.Equal(dec("50")) {
		t.Fatalf("unexpected state after failure: %+v", st)
	}

	backend.mu.Lock()
	backend.creditErr = nil
	backend.mu.Unlock()

	if err := s.ConfirmPaymentMethod(context.Background(), MethodUPI); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !s.Balance().Equal(dec("70.00")) {
		t.Fatalf("expected 70.00 after retry, got %s", s.Balance())
	}
	if len(backend.credits) != 2 || backend.credits[0].IdempotencyKey != backend.credits[1].IdempotencyKey {
		t.Fatalf("expected retry to reuse idempotency key: %+v", backend.credits)
	}
}

func TestMalformedBalanceFailsWithoutTouchingCache(t *testing.T) {
	backend := newFakeBackend("20.00")
	backend.creditErr = fmt.Errorf("%w: balance missing", ErrMalformedResponse)
	s := loaded(t, backend)

	_ = s.RequestAddMoney(dec("50"))
	if err := s.ConfirmPaymentMethod(context.Background(), MethodCard); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
	st := s.State()
	if st.Status != StatusFailed || !st.Balance.Equal(dec("20.00")) {
		t.Fatalf("unexpected state: %+v", st)
	}

	s.Dismiss()
	if st := s.State(); st.Status != StatusIdle || !st.PendingAmount.IsZero() {
		t.Fatalf("expected idle after dismiss, got %+v", st)
	}
}

func TestNegativeReportedBalanceIsMalformed(t *testing.T) {
	backend := newFakeBackend("20.00")
	reported := dec("-5")
	backend.reported = &reported
	s := loaded(t, backend)

	_ = s.RequestAddMoney(dec("1"))
	if err := s.ConfirmPaymentMethod(context.Background(), MethodCard); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
	if !s.Balance().Equal(dec("20.00")) {
		t.Fatalf("cache changed: %s", s.Balance())
	}
}

func TestCancelPendingAdd(t *testing.T) {
	backend := newFakeBackend("20.00")
	s := loaded(t, backend)
	before := backend.calls()

	if err := s.RequestAddMoney(dec("15")); err != nil {
		t.Fatalf("request add money: %v", err)
	}
	if err := s.CancelPendingAdd(); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	st := s.State()
	if st.Status != StatusIdle || !st.PendingAmount.IsZero() {
		t.Fatalf("unexpected state after cancel: %+v", st)
	}
	if backend.calls() != before {
		t.Fatalf("cancel made network calls")
	}
	if err := s.CancelPendingAdd(); !errors.Is(err, ErrInvalidState) {
		t.Fatalf("expected invalid state from idle, got %v", err)
	}
}

func TestMutationsRejectedWhileProcessing(t *testing.T) {
	backend := newFakeBackend("20.00")
	s := loaded(t, backend)
	gate := make(chan struct{})
	backend.gate = gate

	if err := s.RequestAddMoney(dec("50")); err != nil {
		t.Fatalf("request add money: %v", err)
	}
	done := make(chan error, 1)
	go func() {
		done <- s.ConfirmPaymentMethod(context.Background(), MethodCard)
	}()
	<-backend.entered

	if st := s.State(); st.Status != StatusProcessing {
		t.Fatalf("expected processing, got %s", st.Status)
	}
	if err := s.RequestAddMoney(dec("10")); !errors.Is(err, ErrOperationInProgress) {
		t.Fatalf("add while processing: %v", err)
	}
	if err := s.RequestWithdraw(context.Background(), dec("1")); !errors.Is(err, ErrOperationInProgress) {
		t.Fatalf("withdraw while processing: %v", err)
	}
	if err := s.ConfirmPaymentMethod(context.Background(), MethodUPI); !errors.Is(err, ErrOperationInProgress) {
		t.Fatalf("confirm while processing: %v", err)
	}

	close(gate)
	if err := <-done; err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if len(backend.credits) != 1 {
		t.Fatalf("expected one credit request, got %d", len(backend.credits))
	}
}

func TestSentRequestSurvivesCallerCancellation(t *testing.T) {
	backend := newFakeBackend("20.00")
	s := loaded(t, backend)
	gate := make(chan struct{})
	backend.gate = gate

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.RequestWithdraw(ctx, dec("5"))
	}()
	<-backend.entered
	cancel()
	close(gate)

	if err := <-done; err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if !s.Balance().Equal(dec("15.00")) {
		t.Fatalf("expected 15.00, got %s", s.Balance())
	}
}

func TestRequestTimeoutFailsOperation(t *testing.T) {
	backend := newFakeBackend("20.00")
	backend.gate = make(chan struct{})
	s := newTestSync(t, backend, Options{RequestTimeout: 20 * time.Millisecond})
	if err := s.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	go func() {
		for range backend.entered {
		}
	}()
	err := s.RequestWithdraw(context.Background(), dec("5"))
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	if st := s.State(); st.Status != StatusFailed || !st.Balance.Equal(dec("20.00")) {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestProcessorDeclineSkipsCredit(t *testing.T) {
	backend := newFakeBackend("20.00")
	s := newTestSync(t, backend, Options{Processor: declineProcessor{}})
	_ = s.Refresh(context.Background())

	_ = s.RequestAddMoney(dec("10"))
	if err := s.ConfirmPaymentMethod(context.Background(), MethodCard); !errors.Is(err, ErrPaymentDeclined) {
		t.Fatalf("expected payment declined, got %v", err)
	}
	if len(backend.credits) != 0 {
		t.Fatalf("credit sent after decline")
	}
}

func TestConfirmRejectsUnknownMethod(t *testing.T) {
	s := loaded(t, newFakeBackend("20.00"))
	_ = s.RequestAddMoney(dec("10"))
	if err := s.ConfirmPaymentMethod(context.Background(), Method("paypal")); !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("expected invalid method, got %v", err)
	}
	if st := s.State(); st.Status != StatusAwaitingMethodSelection {
		t.Fatalf("expected awaiting method selection, got %s", st.Status)
	}
}

func TestMissingCredentialShortCircuits(t *testing.T) {
	backend := newFakeBackend("20.00")
	s := New(backend, TokenFunc(func() (string, bool) { return "", false }), Options{Logger: logging.Discard()})
	defer s.Close()

	if err := s.Refresh(context.Background()); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("refresh: expected unauthenticated, got %v", err)
	}
	_ = s.RequestAddMoney(dec("10"))
	if err := s.ConfirmPaymentMethod(context.Background(), MethodCard); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("confirm: expected unauthenticated, got %v", err)
	}
	_ = s.CancelPendingAdd()
	if err := s.EnterTournament(context.Background(), "2", decimal.Zero); !errors.Is(err, ErrUnauthenticated) {
		t.Fatalf("entry: expected unauthenticated, got %v", err)
	}
	if backend.calls() != 0 {
		t.Fatalf("expected no backend calls, got %d", backend.calls())
	}
}

func TestRefreshFailureLeavesCache(t *testing.T) {
	backend := newFakeBackend("20.00")
	s := loaded(t, backend)
	backend.mu.Lock()
	backend.balanceErr = &BackendError{StatusCode: 401, Message: "Token is invalid"}
	backend.balance = dec("99")
	backend.mu.Unlock()

	err := s.Refresh(context.Background())
	if !errors.Is(err, ErrBackendRejected) {
		t.Fatalf("expected backend rejection, got %v", err)
	}
	st := s.State()
	if !st.Balance.Equal(dec("20.00")) || st.Err == nil {
		t.Fatalf("unexpected state: %+v", st)
	}
}

func TestStaleRefreshIsDiscarded(t *testing.T) {
	backend := newFakeBackend("20.00")
	s := loaded(t, backend)

	gate := make(chan struct{})
	backend.mu.Lock()
	backend.balanceGate = gate
	backend.mu.Unlock()

	stale := make(chan error, 1)
	go func() {
		stale <- s.Refresh(context.Background())
	}()
	<-backend.entered

	if err := s.RequestWithdraw(context.Background(), dec("5")); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	close(gate)
	if err := <-stale; err != nil {
		t.Fatalf("stale refresh: %v", err)
	}
	s.Close()

	if !s.Balance().Equal(dec("15.00")) {
		t.Fatalf("stale balance applied: %s", s.Balance())
	}
}

// startRefresh issues a Refresh that blocks in the backend until the returned
// gate is closed. The backend reports balance for it.
func startRefresh(t *testing.T, s *Sync, backend *fakeBackend, balance string) (chan struct{}, <-chan error) {
	t.Helper()
	gate := make(chan struct{})
	backend.mu.Lock()
	backend.balance = dec(balance)
	backend.balanceGate = gate
	backend.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.Refresh(context.Background())
	}()
	<-backend.entered
	return gate, done
}

func TestOverlappingRefreshesNewestWins(t *testing.T) {
	backend := newFakeBackend("20.00")
	s := loaded(t, backend)

	olderGate, older := startRefresh(t, s, backend, "25.00")
	newerGate, newer := startRefresh(t, s, backend, "35.00")

	close(olderGate)
	if err := <-older; err != nil {
		t.Fatalf("older refresh: %v", err)
	}
	close(newerGate)
	if err := <-newer; err != nil {
		t.Fatalf("newer refresh: %v", err)
	}
	if !s.Balance().Equal(dec("35.00")) {
		t.Fatalf("expected newest read 35.00, got %s", s.Balance())
	}

	olderGate, older = startRefresh(t, s, backend, "40.00")
	newerGate, newer = startRefresh(t, s, backend, "45.00")
	close(newerGate)
	if err := <-newer; err != nil {
		t.Fatalf("newer refresh: %v", err)
	}
	close(olderGate)
	if err := <-older; err != nil {
		t.Fatalf("older refresh: %v", err)
	}
	if !s.Balance().Equal(dec("45.00")) {
		t.Fatalf("late older read overwrote newer one: %s", s.Balance())
	}
}

func TestEnterTournamentDebitsFee(t *testing.T) {
	backend := newFakeBackend("20.00")
	backend.fees["2"] = dec("5")
	s := loaded(t, backend)

	if err := s.EnterTournament(context.Background(), "2", dec("5")); err != nil {
		t.Fatalf("enter tournament: %v", err)
	}
	if !s.Balance().Equal(dec("15.00")) {
		t.Fatalf("expected 15.00, got %s", s.Balance())
	}
	if err := s.EnterTournament(context.Background(), "3", dec("25")); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
}

func TestSubscribersObserveProtocol(t *testing.T) {
	backend := newFakeBackend("20.00")
	s := loaded(t, backend)
	header, cancelHeader := s.Subscribe()
	defer cancelHeader()

	_ = s.RequestAddMoney(dec("50"))
	if err := s.ConfirmPaymentMethod(context.Background(), MethodCard); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	s.Close()

	want := []Status{StatusAwaitingMethodSelection, StatusProcessing, StatusSettled, StatusIdle}
	var last State
	for st := range header {
		if len(want) > 0 && st.Status == want[0] {
			want = want[1:]
		}
		last = st
	}
	if len(want) != 0 {
		t.Fatalf("subscriber missed states %v", want)
	}
	if !last.Balance.Equal(dec("70.00")) {
		t.Fatalf("subscriber saw %s as final balance", last.Balance)
	}
}

func TestMountRefreshesOnlyWhileMounted(t *testing.T) {
	backend := newFakeBackend("20.00")
	s := newTestSync(t, backend, Options{RefreshInterval: 5 * time.Millisecond})

	unmountHeader := s.Mount()
	unmountModal := s.Mount()
	deadline := time.Now().Add(2 * time.Second)
	for backend.calls() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("periodic refresh did not run")
		}
		time.Sleep(time.Millisecond)
	}
	if !s.Balance().Equal(dec("20.00")) {
		t.Fatalf("expected mounted refresh to load balance, got %s", s.Balance())
	}

	unmountHeader()
	unmountHeader()
	if s.Mounted() != 1 {
		t.Fatalf("expected one mounted surface, got %d", s.Mounted())
	}
	unmountModal()
	s.Close()

	settled := backend.calls()
	time.Sleep(30 * time.Millisecond)
	if backend.calls() != settled {
		t.Fatalf("refresh continued after unmount")
	}
}

func TestFollowRefreshesOnEvents(t *testing.T) {
	backend := newFakeBackend("20.00")
	s := loaded(t, backend)

	events := make(chan struct{})
	done := make(chan struct{})
	go func() {
		Follow(context.Background(), s, events)
		close(done)
	}()

	backend.mu.Lock()
	backend.balance = dec("42.00")
	backend.mu.Unlock()
	events <- struct{}{}
	close(events)
	<-done

	if !s.Balance().Equal(dec("42.00")) {
		t.Fatalf("expected followed balance 42.00, got %s", s.Balance())
	}
}

func TestParseAmount(t *testing.T) {
	if _, err := ParseAmount("abc"); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected invalid amount, got %v", err)
	}
	amount, err := ParseAmount("12.50")
	if err != nil || !amount.Equal(dec("12.5")) {
		t.Fatalf("unexpected parse result %s, %v", amount, err)
	}
}
