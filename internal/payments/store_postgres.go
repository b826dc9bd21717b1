package payments

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"backtrail/pkg/platform/sentinel"
	txcontext "backtrail/pkg/platform/tx"
)

// PostgresStore persists payments in PostgreSQL. Mutations join the
// transaction carried in context so the row and its event commit together.
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

func (s *PostgresStore) Create(ctx context.Context, payment Payment) error {
	query := `
		INSERT INTO payments (id, payment_no, currency, rate, amount, deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		payment.ID,
		payment.PaymentNo,
		payment.Currency,
		payment.Rate,
		payment.Amount,
		payment.Deleted,
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return fmt.Errorf("payment %s: %w", payment.PaymentNo, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Payment, error) {
	query := `
		SELECT id, payment_no, currency, rate, amount, deleted, created_at, updated_at
		FROM payments
		WHERE id = $1
	`
	return s.get(ctx, query, id)
}

// GetForUpdate takes the row lock, so concurrent mutations of one payment
// serialize at the read and each diff starts from the committed state.
func (s *PostgresStore) GetForUpdate(ctx context.Context, id string) (Payment, error) {
	query := `
		SELECT id, payment_no, currency, rate, amount, deleted, created_at, updated_at
		FROM payments
		WHERE id = $1
		FOR UPDATE
	`
	return s.get(ctx, query, id)
}

func (s *PostgresStore) get(ctx context.Context, query, id string) (Payment, error) {
	var payment Payment
	err := s.execer(ctx).QueryRowContext(ctx, query, id).Scan(
		&payment.ID,
		&payment.PaymentNo,
		&payment.Currency,
		&payment.Rate,
		&payment.Amount,
		&payment.Deleted,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Payment{}, fmt.Errorf("payment %s: %w", id, sentinel.ErrNotFound)
		}
		return Payment{}, fmt.Errorf("query payment: %w", err)
	}
	return payment, nil
}

func (s *PostgresStore) Update(ctx context.Context, payment Payment) error {
	query := `
		UPDATE payments
		SET rate = $2, amount = $3, deleted = $4, updated_at = $5
		WHERE id = $1
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		payment.ID,
		payment.Rate,
		payment.Amount,
		payment.Deleted,
		payment.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update payment: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("payment %s: %w", payment.ID, sentinel.ErrNotFound)
	}
	return nil
}
