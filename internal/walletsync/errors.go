package walletsync

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidAmount is returned for non-positive or unparsable amounts.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInsufficientBalance is returned when a debit exceeds the cached balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrOperationInProgress rejects a mutating call while another one is processing.
	ErrOperationInProgress = errors.New("operation in progress")
	// ErrUnauthenticated is returned when no session credential is available.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrBackendRejected marks a non-2xx backend response. See BackendError.
	ErrBackendRejected = errors.New("backend rejected request")
	// ErrMalformedResponse marks a 2xx response without a usable balance.
	ErrMalformedResponse = errors.New("malformed backend response")
	// ErrNetwork marks a request that could not complete, including timeouts.
	ErrNetwork = errors.New("network error")

	// ErrInvalidMethod is returned for payment methods other than card or UPI.
	ErrInvalidMethod = errors.New("invalid payment method")
	// ErrInvalidState is returned when an operation is not allowed from the current status.
	ErrInvalidState = errors.New("operation not allowed in current state")
	// ErrPaymentDeclined is returned when the payment processor refuses the charge.
	ErrPaymentDeclined = errors.New("payment declined")
)

// BackendError carries the status code and user-facing message of a rejected request.
type BackendError struct {
	StatusCode int
	Message    string
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend rejected request (%d): %s", e.StatusCode, e.Message)
}

// Unwrap lets callers match the error with errors.Is(err, ErrBackendRejected).
func (e *BackendError) Unwrap() error {
	return ErrBackendRejected
}

// UserMessage returns the text a surface should show for err.
func UserMessage(err error) string {
	var be *BackendError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &be) && be.Message != "":
		return be.Message
	case errors.Is(err, ErrInvalidAmount):
		return "Please enter a valid amount greater than 0"
	case errors.Is(err, ErrInsufficientBalance):
		return "You don't have enough balance for this amount"
	case errors.Is(err, ErrOperationInProgress):
		return "Another payment is still processing"
	case errors.Is(err, ErrUnauthenticated):
		return "Please login to use your wallet"
	case errors.Is(err, ErrNetwork):
		return "Failed to connect to server"
	case errors.Is(err, ErrPaymentDeclined):
		return "Payment failed. Please try again."
	default:
		return err.Error()
	}
}
