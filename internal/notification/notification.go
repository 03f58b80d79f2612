package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindMoneyAdded      = "wallet.money_added"
	KindWithdrawal      = "wallet.withdrawal"
	KindTournamentEntry = "tournament.entry"
)

// Message describes a balance-changing event for one user. Balance is a hint
// only; subscribers re-read the wallet rather than trusting it.
type Message struct {
	Kind        string          `json:"kind"`
	Destination string          `json:"destination"`
	WalletID    string          `json:"wallet_id,omitempty"`
	Balance     decimal.Decimal `json:"balance"`
	Body        string          `json:"body"`
	At          time.Time       `json:"at"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("wallet_id", message.WalletID),
		slog.String("body", message.Body),
	)
	return nil
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

// Send delivers message to all notifiers even when some fail.
func (m Multi) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
