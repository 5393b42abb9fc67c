package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/punchamoorthee/vendingops/internal/domain"
)

// BeginUnitOfWork opens a read-committed transaction. Rows the settlement
// mutates are locked with SELECT ... FOR UPDATE: the coin ledger first, in
// denomination order, then drinks in the order the caller asks for them.
func (s *Store) BeginUnitOfWork(ctx context.Context) (domain.UnitOfWork, error) {
	tx, err := s.Db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, fmt.Errorf("tx begin failed: %w", err)
	}
	return &unitOfWork{tx: tx}, nil
}

type unitOfWork struct {
	tx pgx.Tx
}

func (u *unitOfWork) Drinks() domain.DrinkStore { return drinkRepo{u.tx} }
func (u *unitOfWork) Coins() domain.CoinStore   { return coinRepo{u.tx} }
func (u *unitOfWork) Orders() domain.OrderStore { return orderRepo{u.tx} }

func (u *unitOfWork) Commit(ctx context.Context) error {
	if err := u.tx.Commit(ctx); err != nil {
		return fmt.Errorf("tx commit failed: %w", err)
	}
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	err := u.tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		return fmt.Errorf("tx rollback failed: %w", err)
	}
	return nil
}

type drinkRepo struct {
	tx pgx.Tx
}

func (r drinkRepo) FindByNameAndBrand(ctx context.Context, name, brand string) (*domain.Drink, error) {
	var d domain.Drink
	err := r.tx.QueryRow(ctx, `
		SELECT d.id, d.name, d.brand_id, b.name, d.price, d.amount,
		       COALESCE(d.image_url, ''), COALESCE(d.description, '')
		FROM drinks d
		JOIN brands b ON b.id = d.brand_id
		WHERE d.name = $1 AND b.name = $2
		FOR UPDATE OF d`,
		name, brand,
	).Scan(&d.ID, &d.Name, &d.BrandID, &d.BrandName, &d.Price, &d.Amount, &d.ImageURL, &d.Description)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("drink lock failed: %w", err)
	}
	return &d, nil
}

func (r drinkRepo) DecrementStock(ctx context.Context, drinkID int64, qty int) error {
	tag, err := r.tx.Exec(ctx,
		"UPDATE drinks SET amount = amount - $1 WHERE id = $2 AND amount >= $1",
		qty, drinkID,
	)
	if err != nil {
		return fmt.Errorf("stock update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("drink %d: %w", drinkID, domain.ErrInsufficientStock)
	}
	return nil
}

type coinRepo struct {
	tx pgx.Tx
}

func (r coinRepo) LockLedger(ctx context.Context) ([]domain.Coin, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT denomination, amount_available, is_blocked, coin_type
		FROM coins
		ORDER BY denomination
		FOR UPDATE`)
	if err != nil {
		return nil, fmt.Errorf("coin lock failed: %w", err)
	}
	return pgx.CollectRows(rows, scanCoin)
}

func (r coinRepo) ListUsable(ctx context.Context) ([]domain.Coin, error) {
	rows, err := r.tx.Query(ctx, `
		SELECT denomination, amount_available, is_blocked, coin_type
		FROM coins
		WHERE NOT is_blocked AND amount_available > 0
		ORDER BY denomination
		FOR UPDATE`)
	if err != nil {
		return nil, fmt.Errorf("coin lock failed: %w", err)
	}
	return pgx.CollectRows(rows, scanCoin)
}

func (r coinRepo) AdjustCount(ctx context.Context, denomination int64, delta int) error {
	tag, err := r.tx.Exec(ctx,
		"UPDATE coins SET amount_available = amount_available + $1 WHERE denomination = $2 AND amount_available + $1 >= 0",
		delta, denomination,
	)
	if err != nil {
		return fmt.Errorf("coin update failed: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var exists bool
	if err := r.tx.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM coins WHERE denomination = $1)", denomination).Scan(&exists); err != nil {
		return fmt.Errorf("coin lookup failed: %w", err)
	}
	if !exists {
		return fmt.Errorf("denomination %d: %w", denomination, domain.ErrNotFound)
	}
	return fmt.Errorf("denomination %d: %w", denomination, domain.ErrNegativeCoinCount)
}

func (r coinRepo) UpsertDeposited(ctx context.Context, denomination int64, qty int) error {
	_, err := r.tx.Exec(ctx, `
		INSERT INTO coins (denomination, amount_available, is_blocked, coin_type)
		VALUES ($1, $2, FALSE, $3)
		ON CONFLICT (denomination) DO UPDATE
		SET amount_available = coins.amount_available + EXCLUDED.amount_available`,
		denomination, qty, domain.CoinTypeUserInserted,
	)
	if err != nil {
		return fmt.Errorf("coin deposit failed: %w", err)
	}
	return nil
}

type orderRepo struct {
	tx pgx.Tx
}

func (r orderRepo) Create(ctx context.Context, order *domain.Order) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `
		INSERT INTO orders (order_date, total_amount, amount_paid, change_amount, status, failure_reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		order.OrderDate, order.TotalAmount, order.AmountPaid, order.ChangeAmount, string(order.Status), order.FailureReason,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("order insert failed: %w", err)
	}

	_, err = r.tx.CopyFrom(ctx,
		pgx.Identifier{"order_items"},
		[]string{"order_id", "drink_name", "brand_name", "price_at_purchase", "quantity", "total_price"},
		pgx.CopyFromSlice(len(order.Items), func(i int) ([]any, error) {
			it := order.Items[i]
			return []any{id, it.DrinkName, it.BrandName, it.PriceAtPurchase, it.Quantity, it.TotalPrice}, nil
		}),
	)
	if err != nil {
		return 0, fmt.Errorf("order items insert failed: %w", err)
	}
	return id, nil
}

// Finalize moves a Pending order to its terminal state exactly once.
func (r orderRepo) Finalize(ctx context.Context, order *domain.Order) error {
	tag, err := r.tx.Exec(ctx, `
		UPDATE orders
		SET status = $1, amount_paid = $2, change_amount = $3, failure_reason = $4
		WHERE id = $5 AND status = $6`,
		string(order.Status), order.AmountPaid, order.ChangeAmount, order.FailureReason, order.ID, string(domain.OrderPending),
	)
	if err != nil {
		return fmt.Errorf("order update failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pending order %d: %w", order.ID, domain.ErrNotFound)
	}
	return nil
}
