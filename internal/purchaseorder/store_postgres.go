package purchaseorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"backtrail/pkg/platform/sentinel"
	txcontext "backtrail/pkg/platform/tx"
)

// PostgresStore persists purchase orders, joining the context transaction so
// row and event commit together.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, order PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (id, order_no, supplier, total, status, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		order.ID,
		order.OrderNo,
		order.Supplier,
		order.Total,
		string(order.Status),
		order.Deleted,
		order.CreatedAt,
		order.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("purchase order %s: %w", order.OrderNo, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert purchase order: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (PurchaseOrder, error) {
	query := `
		SELECT id, order_no, supplier, total, status, deleted, created_at, updated_at
		FROM purchase_orders
		WHERE id = $1
	`
	return s.get(ctx, query, id)
}

// GetForUpdate takes the row lock, so concurrent mutations of one order
// serialize at the read; a second Approve then sees the approved status
// instead of double-recording the transition.
func (s *PostgresStore) GetForUpdate(ctx context.Context, id string) (PurchaseOrder, error) {
	query := `
		SELECT id, order_no, supplier, total, status, deleted, created_at, updated_at
		FROM purchase_orders
		WHERE id = $1
		FOR UPDATE
	`
	return s.get(ctx, query, id)
}

func (s *PostgresStore) get(ctx context.Context, query, id string) (PurchaseOrder, error) {
	var (
		order  PurchaseOrder
		status string
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&order.OrderNo,
		&order.Supplier,
		&order.Total,
		&status,
		&order.Deleted,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return PurchaseOrder{}, fmt.Errorf("purchase order %s: %w", id, sentinel.ErrNotFound)
		}
		return PurchaseOrder{}, fmt.Errorf("query purchase order: %w", err)
	}
	order.Status = Status(status)
	return order, nil
}

func (s *PostgresStore) Update(ctx context.Context, order PurchaseOrder) error {
	query := `
		UPDATE purchase_orders
		SET total = $2, status = $3, deleted = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		order.ID,
		order.Total,
		string(order.Status),
		order.Deleted,
		order.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update purchase order: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update purchase order: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("purchase order %s: %w", order.ID, sentinel.ErrNotFound)
	}
	return nil
}
