package domain

import "context"

// DrinkStore is the stock view available inside a unit of work.
type DrinkStore interface {
	// FindByNameAndBrand locks and returns the drink, or ErrNotFound.
	FindByNameAndBrand(ctx context.Context, name, brand string) (*Drink, error)
	// DecrementStock fails with ErrInsufficientStock instead of going negative.
	DecrementStock(ctx context.Context, drinkID int64, qty int) error
}

// CoinStore is the coin ledger view available inside a unit of work.
type CoinStore interface {
	// LockLedger locks every coin row in denomination order and returns them,
	// blocked and empty entries included.
	LockLedger(ctx context.Context) ([]Coin, error)
	// ListUsable returns unblocked, non-empty coins ordered by denomination.
	ListUsable(ctx context.Context) ([]Coin, error)
	// AdjustCount fails with ErrNegativeCoinCount instead of going negative.
	AdjustCount(ctx context.Context, denomination int64, delta int) error
	// UpsertDeposited adds qty coins, creating a UserInserted entry for unknown denominations.
	UpsertDeposited(ctx context.Context, denomination int64, qty int) error
}

type OrderStore interface {
	Create(ctx context.Context, order *Order) (int64, error)
	Finalize(ctx context.Context, order *Order) error
}

// UnitOfWork spans one settlement. Rollback after Commit is a no-op.
type UnitOfWork interface {
	Drinks() DrinkStore
	Coins() CoinStore
	Orders() OrderStore
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Ledger is the storage the settlement engine depends on.
type Ledger interface {
	BeginUnitOfWork(ctx context.Context) (UnitOfWork, error)
	ListCoins(ctx context.Context) ([]Coin, error)
}
