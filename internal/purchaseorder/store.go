package purchaseorder

import "context"

type Store interface {
	Create(ctx context.Context, order PurchaseOrder) error
	Get(ctx context.Context, id string) (PurchaseOrder, error)
	// GetForUpdate locks the row for the rest of the context transaction,
	// so a mutation's diff and state checks start from the committed
	// predecessor state.
	GetForUpdate(ctx context.Context, id string) (PurchaseOrder, error)
	Update(ctx context.Context, order PurchaseOrder) error
}
