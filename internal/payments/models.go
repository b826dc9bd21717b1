package payments

import (
	"strconv"
	"strings"
	"time"

	"backtrail/internal/eventlog"
	dErrors "backtrail/pkg/domain-errors"
)

// Module is the declared module identifier stamped on log entries.
const Module = "payments"

// Payment event types beyond the shared CREATE/DELETE/RESTORE set.
const (
	EventRateChange   eventlog.EventType = "RATE_CHANGE"
	EventAmountChange eventlog.EventType = "AMOUNT_CHANGE"
)

// Payment is an audited aggregate. Monetary fields are decimal strings; the
// upstream finance module owns their precision, this service only chronicles
// transitions.
type Payment struct {
	ID        string    `json:"id"`
	PaymentNo string    `json:"payment_no"`
	Currency  string    `json:"currency"`
	Rate      string    `json:"rate"`
	Amount    string    `json:"amount"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateInput carries the fields needed to open a payment.
type CreateInput struct {
	PaymentNo string
	Currency  string
	Rate      string
	Amount    string
	Note      string
}

// Validate rejects obviously malformed input before any transaction opens.
func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.PaymentNo) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "payment_no is required")
	}
	if strings.TrimSpace(in.Currency) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "currency is required")
	}
	if err := validateDecimal("rate", in.Rate); err != nil {
		return err
	}
	return validateDecimal("amount", in.Amount)
}

func validateDecimal(field, value string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return dErrors.New(dErrors.CodeBadRequest, field+" must be a decimal number")
	}
	if v <= 0 {
		return dErrors.New(dErrors.CodeBadRequest, field+" must be positive")
	}
	return nil
}
