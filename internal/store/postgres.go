package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/punchamoorthee/vendingops/internal/domain"
)

//go:embed schema.sql
var schema string

type Store struct {
	Db *pgxpool.Pool
}

func NewStore(connString string) (*Store, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Store{Db: pool}, nil
}

func (s *Store) Close() {
	s.Db.Close()
}

// EnsureSchema creates missing tables. It never alters existing ones.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.Db.Exec(ctx, schema); err != nil {
		return fmt.Errorf("schema bootstrap failed: %w", err)
	}
	return nil
}

const coinColumns = "denomination, amount_available, is_blocked, coin_type"

func scanCoin(row pgx.CollectableRow) (domain.Coin, error) {
	var c domain.Coin
	err := row.Scan(&c.Denomination, &c.Amount, &c.IsBlocked, &c.CoinType)
	return c, err
}

// ListCoins returns the whole coin ledger ordered by denomination.
func (s *Store) ListCoins(ctx context.Context) ([]domain.Coin, error) {
	rows, err := s.Db.Query(ctx, "SELECT "+coinColumns+" FROM coins ORDER BY denomination")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanCoin)
}

// ListAvailableCoins returns coins usable as change.
func (s *Store) ListAvailableCoins(ctx context.Context) ([]domain.Coin, error) {
	rows, err := s.Db.Query(ctx,
		"SELECT "+coinColumns+" FROM coins WHERE NOT is_blocked AND amount_available > 0 ORDER BY denomination")
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, scanCoin)
}

func (s *Store) GetCoin(ctx context.Context, denomination int64) (*domain.Coin, error) {
	rows, err := s.Db.Query(ctx, "SELECT "+coinColumns+" FROM coins WHERE denomination = $1", denomination)
	if err != nil {
		return nil, err
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCoin)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CreateCoin adds a ledger entry; an existing denomination yields ErrConflict.
func (s *Store) CreateCoin(ctx context.Context, c domain.Coin) error {
	_, err := s.Db.Exec(ctx,
		"INSERT INTO coins ("+coinColumns+") VALUES ($1, $2, $3, $4)",
		c.Denomination, c.Amount, c.IsBlocked, c.CoinType,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrConflict
		}
		return fmt.Errorf("coin insert failed: %w", err)
	}
	return nil
}

func (s *Store) UpdateCoin(ctx context.Context, c domain.Coin) error {
	return s.execOne(ctx,
		"UPDATE coins SET amount_available = $1, is_blocked = $2, coin_type = $3 WHERE denomination = $4",
		c.Amount, c.IsBlocked, c.CoinType, c.Denomination)
}

func (s *Store) SetCoinAmount(ctx context.Context, denomination int64, amount int) error {
	return s.execOne(ctx, "UPDATE coins SET amount_available = $1 WHERE denomination = $2", amount, denomination)
}

func (s *Store) SetCoinBlocked(ctx context.Context, denomination int64, blocked bool) error {
	return s.execOne(ctx, "UPDATE coins SET is_blocked = $1 WHERE denomination = $2", blocked, denomination)
}

// AddCoins tops up a denomination and returns the new count.
func (s *Store) AddCoins(ctx context.Context, denomination int64, qty int) (int, error) {
	var amount int
	err := s.Db.QueryRow(ctx,
		"UPDATE coins SET amount_available = amount_available + $1 WHERE denomination = $2 RETURNING amount_available",
		qty, denomination,
	).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	return amount, err
}

// ListDrinks returns the catalog, optionally restricted to one brand.
func (s *Store) ListDrinks(ctx context.Context, brand string) ([]domain.Drink, error) {
	rows, err := s.Db.Query(ctx, `
		SELECT d.id, d.name, d.brand_id, b.name, d.price, d.amount,
		       COALESCE(d.image_url, ''), COALESCE(d.description, '')
		FROM drinks d
		JOIN brands b ON b.id = d.brand_id
		WHERE $1::text = '' OR b.name = $1
		ORDER BY b.name, d.name`,
		brand,
	)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.Drink, error) {
		var d domain.Drink
		err := row.Scan(&d.ID, &d.Name, &d.BrandID, &d.BrandName, &d.Price, &d.Amount, &d.ImageURL, &d.Description)
		return d, err
	})
}

func (s *Store) SetDrinkStock(ctx context.Context, id int64, amount int) error {
	return s.execOne(ctx, "UPDATE drinks SET amount = $1 WHERE id = $2", amount, id)
}

// ListOrders returns orders newest first with their items.
func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	rows, err := s.Db.Query(ctx, `
		SELECT id, order_date, total_amount, amount_paid, change_amount, status, failure_reason
		FROM orders
		ORDER BY order_date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	byID := make(map[int64]*domain.Order, len(orders))
	for i := range orders {
		ids[i] = orders[i].ID
		byID[orders[i].ID] = &orders[i]
	}
	items, err := s.Db.Query(ctx, `
		SELECT order_id, drink_name, brand_name, price_at_purchase, quantity, total_price
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY id`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer items.Close()
	for items.Next() {
		var orderID int64
		var it domain.OrderItem
		if err := items.Scan(&orderID, &it.DrinkName, &it.BrandName, &it.PriceAtPurchase, &it.Quantity, &it.TotalPrice); err != nil {
			return nil, err
		}
		o := byID[orderID]
		o.Items = append(o.Items, it)
	}
	return orders, items.Err()
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	rows, err := s.Db.Query(ctx, `
		SELECT id, order_date, total_amount, amount_paid, change_amount, status, failure_reason
		FROM orders
		WHERE id = $1`,
		id,
	)
	if err != nil {
		return nil, err
	}
	order, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	items, err := s.Db.Query(ctx, `
		SELECT drink_name, brand_name, price_at_purchase, quantity, total_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY id`,
		id,
	)
	if err != nil {
		return nil, err
	}
	order.Items, err = pgx.CollectRows(items, func(row pgx.CollectableRow) (domain.OrderItem, error) {
		var it domain.OrderItem
		err := row.Scan(&it.DrinkName, &it.BrandName, &it.PriceAtPurchase, &it.Quantity, &it.TotalPrice)
		return it, err
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func scanOrder(row pgx.CollectableRow) (domain.Order, error) {
	var o domain.Order
	var status string
	err := row.Scan(&o.ID, &o.OrderDate, &o.TotalAmount, &o.AmountPaid, &o.ChangeAmount, &status, &o.FailureReason)
	o.Status = domain.OrderStatus(status)
	o.Items = []domain.OrderItem{}
	return o, err
}

func (s *Store) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := s.Db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
