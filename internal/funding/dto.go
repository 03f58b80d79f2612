package funding

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// AddMoneyRequest is the body of POST /api/wallet/add.
type AddMoneyRequest struct {
	Amount        decimal.NullDecimal `json:"amount"`
	PaymentMethod string              `json:"payment_method"`
}

// WithdrawRequest is the body of POST /api/wallet/withdraw.
type WithdrawRequest struct {
	Amount decimal.NullDecimal `json:"amount"`
}

// AddMoneyResponse reports a settled top-up.
type AddMoneyResponse struct {
	Message       string      `json:"message"`
	Balance       json.Number `json:"balance"`
	TransactionID string      `json:"transaction_id"`
	AmountAdded   json.Number `json:"amount_added"`
}

// WithdrawResponse reports a settled withdrawal.
type WithdrawResponse struct {
	Message         string      `json:"message"`
	Balance         json.Number `json:"balance"`
	TransactionID   string      `json:"transaction_id"`
	AmountWithdrawn json.Number `json:"amount_withdrawn"`
}
