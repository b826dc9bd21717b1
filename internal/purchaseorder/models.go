package purchaseorder

import (
	"strings"
	"time"

	"backtrail/internal/eventlog"
	dErrors "backtrail/pkg/domain-errors"
)

const Module = "purchase_orders"

const (
	EventApprove eventlog.EventType = "APPROVE"
)

// Status of a purchase order.
type Status string

const (
	StatusDraft    Status = "draft"
	StatusApproved Status = "approved"
)

// PurchaseOrder is an audited aggregate owned by the procurement module.
type PurchaseOrder struct {
	ID        string    `json:"id"`
	OrderNo   string    `json:"order_no"`
	Supplier  string    `json:"supplier"`
	Total     string    `json:"total"`
	Status    Status    `json:"status"`
	Deleted   bool      `json:"deleted"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateInput struct {
	OrderNo  string
	Supplier string
	Total    string
	Note     string
}

func (in CreateInput) Validate() error {
	if strings.TrimSpace(in.OrderNo) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "order_no is required")
	}
	if strings.TrimSpace(in.Supplier) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "supplier is required")
	}
	if strings.TrimSpace(in.Total) == "" {
		return dErrors.New(dErrors.CodeBadRequest, "total is required")
	}
	return nil
}
