package walletsync

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Processor represents the payment processor round trip that precedes a credit.
type Processor interface {
	Authorize(ctx context.Context, amount decimal.Decimal, method Method) error
}

// SimulatedProcessor approves every charge after Delay.
type SimulatedProcessor struct {
	Delay time.Duration
}

// Authorize waits for the simulated round trip or for ctx to end.
func (p SimulatedProcessor) Authorize(ctx context.Context, _ decimal.Decimal, _ Method) error {
	if p.Delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(p.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
