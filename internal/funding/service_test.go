package funding

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/unity-gaming/unity_wallet/internal/ledger"
	"github.com/unity-gaming/unity_wallet/internal/notification"
	"github.com/unity-gaming/unity_wallet/internal/wallet"
)

type recordingNotifier struct {
	sent []notification.Message
}

func (n *recordingNotifier) Send(_ context.Context, msg notification.Message) error {
	n.sent = append(n.sent, msg)
	return nil
}

type decliningAcquirer struct{ StaticAcquirer }

func (decliningAcquirer) AuthorizeCharge(context.Context, Charge) (AuthorizationDecision, error) {
	return AuthorizationDecision{}, errors.New("card declined")
}

func setup(t *testing.T, acquirer Acquirer) (*Service, *recordingNotifier, string) {
	t.Helper()
	ctx := context.Background()
	led := ledger.NewInMemory()
	wallets := wallet.NewService(wallet.NewMemoryRepository(), led, decimal.RequireFromString("20"))
	notifier := &recordingNotifier{}
	svc, err := NewService(ctx, led, wallets, acquirer, notifier)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, notifier, uuid.NewString()
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestAddMoney(t *testing.T) {
	svc, notifier, owner := setup(t, nil)
	ctx := context.Background()

	res, err := svc.AddMoney(ctx, AddMoneyInput{OwnerID: owner, Amount: dec("50"), Method: MethodUPI, ClientTxID: "add-1"})
	if err != nil {
		t.Fatalf("add money: %v", err)
	}
	if res.Balance.StringFixed(2) != "70.00" {
		t.Fatalf("expected balance 70.00, got %s", res.Balance.StringFixed(2))
	}
	if len(notifier.sent) != 1 || notifier.sent[0].Body != "Added $50.00 to wallet via UPI" {
		t.Fatalf("unexpected notifications %+v", notifier.sent)
	}

	dup, err := svc.AddMoney(ctx, AddMoneyInput{OwnerID: owner, Amount: dec("50"), Method: MethodUPI, ClientTxID: "add-1"})
	if !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if dup.TransactionID != res.TransactionID || dup.Balance.StringFixed(2) != "70.00" {
		t.Fatalf("duplicate should replay original result, got %+v", dup)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("duplicate should not notify")
	}
}

func TestAddMoneyValidation(t *testing.T) {
	svc, _, owner := setup(t, nil)
	ctx := context.Background()

	for _, amount := range []string{"0", "-5", "1.005"} {
		if _, err := svc.AddMoney(ctx, AddMoneyInput{OwnerID: owner, Amount: dec(amount), Method: MethodCard}); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("amount %s: expected invalid amount, got %v", amount, err)
		}
	}
	if _, err := ParseMethod("paypal"); !errors.Is(err, ErrInvalidMethod) {
		t.Fatalf("expected invalid method, got %v", err)
	}
	if m, _ := ParseMethod(""); m != MethodCard {
		t.Fatalf("expected card default, got %s", m)
	}
}

func TestAddMoneyDeclined(t *testing.T) {
	svc, notifier, owner := setup(t, decliningAcquirer{})
	if _, err := svc.AddMoney(context.Background(), AddMoneyInput{OwnerID: owner, Amount: dec("10"), Method: MethodCard}); err == nil {
		t.Fatalf("expected decline")
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("declined charge notified")
	}
}

func TestWithdraw(t *testing.T) {
	svc, notifier, owner := setup(t, nil)
	ctx := context.Background()

	if _, err := svc.Withdraw(ctx, WithdrawInput{OwnerID: owner, Amount: dec("30")}); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}

	res, err := svc.Withdraw(ctx, WithdrawInput{OwnerID: owner, Amount: dec("7.25"), ClientTxID: "wd-1"})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Balance.StringFixed(2) != "12.75" {
		t.Fatalf("expected 12.75, got %s", res.Balance.StringFixed(2))
	}
	if len(notifier.sent) != 1 || notifier.sent[0].Kind != notification.KindWithdrawal {
		t.Fatalf("unexpected notifications %+v", notifier.sent)
	}
}

func TestAmountsBeyondLedgerRangeRejected(t *testing.T) {
	svc, notifier, owner := setup(t, nil)
	ctx := context.Background()
	huge := dec("184467440737095515.16")

	if _, err := svc.AddMoney(ctx, AddMoneyInput{OwnerID: owner, Amount: huge, Method: MethodCard}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("add: expected invalid amount, got %v", err)
	}
	if _, err := svc.Withdraw(ctx, WithdrawInput{OwnerID: owner, Amount: huge}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("withdraw: expected invalid amount, got %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("rejected amounts notified: %+v", notifier.sent)
	}

	res, err := svc.Withdraw(ctx, WithdrawInput{OwnerID: owner, Amount: dec("1")})
	if err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	if res.Balance.StringFixed(2) != "19.00" {
		t.Fatalf("balance moved by rejected amounts: %s", res.Balance.StringFixed(2))
	}
}

func TestClientTxIDScopedPerWallet(t *testing.T) {
	svc, _, alice := setup(t, nil)
	bob := uuid.NewString()
	ctx := context.Background()

	if _, err := svc.AddMoney(ctx, AddMoneyInput{OwnerID: alice, Amount: dec("500"), Method: MethodCard, ClientTxID: "1"}); err != nil {
		t.Fatalf("alice add: %v", err)
	}
	res, err := svc.AddMoney(ctx, AddMoneyInput{OwnerID: bob, Amount: dec("5"), Method: MethodCard, ClientTxID: "1"})
	if err != nil {
		t.Fatalf("bob add with the same key: %v", err)
	}
	if res.Balance.StringFixed(2) != "25.00" {
		t.Fatalf("expected bob balance 25.00, got %s", res.Balance.StringFixed(2))
	}

	wd, err := svc.Withdraw(ctx, WithdrawInput{OwnerID: bob, Amount: dec("5"), ClientTxID: "w"})
	if err != nil {
		t.Fatalf("bob withdraw: %v", err)
	}
	if _, err := svc.Withdraw(ctx, WithdrawInput{OwnerID: alice, Amount: dec("5"), ClientTxID: "w"}); err != nil {
		t.Fatalf("alice withdraw with bob's key: %v", err)
	}
	if wd.Balance.StringFixed(2) != "20.00" {
		t.Fatalf("expected bob balance 20.00, got %s", wd.Balance.StringFixed(2))
	}
}
