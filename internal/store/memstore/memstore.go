// Package memstore keeps the vending ledger in process memory. Units of work
// are fully serialized: one holds the store until it commits or rolls back.
package memstore

import (
	"context"
	"errors"
	"sort"

	"github.com/punchamoorthee/vendingops/internal/domain"
)

var ErrUnitOfWorkDone = errors.New("unit of work already finished")

type state struct {
	drinks      map[int64]domain.Drink
	coins       map[int64]domain.Coin
	orders      map[int64]domain.Order
	nextDrinkID int64
	nextOrderID int64
}

func (st *state) clone() *state {
	c := &state{
		drinks:      make(map[int64]domain.Drink, len(st.drinks)),
		coins:       make(map[int64]domain.Coin, len(st.coins)),
		orders:      make(map[int64]domain.Order, len(st.orders)),
		nextDrinkID: st.nextDrinkID,
		nextOrderID: st.nextOrderID,
	}
	for id, d := range st.drinks {
		c.drinks[id] = d
	}
	for d, coin := range st.coins {
		c.coins[d] = coin
	}
	for id, o := range st.orders {
		c.orders[id] = copyOrder(o)
	}
	return c
}

type Store struct {
	sem   chan struct{}
	state *state
}

func New() *Store {
	return &Store{
		sem: make(chan struct{}, 1),
		state: &state{
			drinks: map[int64]domain.Drink{},
			coins:  map[int64]domain.Coin{},
			orders: map[int64]domain.Order{},
		},
	}
}

func (s *Store) acquire(ctx context.Context) error {
	select {
	case s.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Store) release() {
	<-s.sem
}

// AddDrink stores d under a fresh ID and returns the stored copy.
func (s *Store) AddDrink(d domain.Drink) domain.Drink {
	s.sem <- struct{}{}
	defer s.release()

	s.state.nextDrinkID++
	d.ID = s.state.nextDrinkID
	s.state.drinks[d.ID] = d
	return d
}

// PutCoin inserts or replaces the ledger entry for c.Denomination.
func (s *Store) PutCoin(c domain.Coin) {
	s.sem <- struct{}{}
	defer s.release()

	if c.CoinType == "" {
		c.CoinType = domain.CoinTypeStandard
	}
	s.state.coins[c.Denomination] = c
}

func (s *Store) Drink(id int64) (domain.Drink, bool) {
	s.sem <- struct{}{}
	defer s.release()

	d, ok := s.state.drinks[id]
	return d, ok
}

func (s *Store) Order(id int64) (domain.Order, bool) {
	s.sem <- struct{}{}
	defer s.release()

	o, ok := s.state.orders[id]
	if !ok {
		return domain.Order{}, false
	}
	return copyOrder(o), true
}

// Orders returns every committed order by ascending ID.
func (s *Store) Orders() []domain.Order {
	s.sem <- struct{}{}
	defer s.release()

	orders := make([]domain.Order, 0, len(s.state.orders))
	for _, o := range s.state.orders {
		orders = append(orders, copyOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].ID < orders[j].ID })
	return orders
}

func (s *Store) ListCoins(ctx context.Context) ([]domain.Coin, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return sortedCoins(s.state.coins, false), nil
}

func (s *Store) BeginUnitOfWork(ctx context.Context) (domain.UnitOfWork, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	return &unitOfWork{store: s, work: s.state.clone()}, nil
}

type unitOfWork struct {
	store *Store
	work  *state
	done  bool
}

func (u *unitOfWork) Drinks() domain.DrinkStore { return drinkStore{u.work} }
func (u *unitOfWork) Coins() domain.CoinStore   { return coinStore{u.work} }
func (u *unitOfWork) Orders() domain.OrderStore { return orderStore{u.work} }

func (u *unitOfWork) Commit(ctx context.Context) error {
	if u.done {
		return ErrUnitOfWorkDone
	}
	u.done = true
	u.store.state = u.work
	u.store.release()
	return nil
}

func (u *unitOfWork) Rollback(ctx context.Context) error {
	if u.done {
		return nil
	}
	u.done = true
	u.store.release()
	return nil
}

type drinkStore struct{ st *state }

func (d drinkStore) FindByNameAndBrand(ctx context.Context, name, brand string) (*domain.Drink, error) {
	for _, drink := range d.st.drinks {
		if drink.Name == name && drink.BrandName == brand {
			found := drink
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (d drinkStore) DecrementStock(ctx context.Context, drinkID int64, qty int) error {
	drink, ok := d.st.drinks[drinkID]
	if !ok {
		return domain.ErrNotFound
	}
	if drink.Amount < qty {
		return domain.ErrInsufficientStock
	}
	drink.Amount -= qty
	d.st.drinks[drinkID] = drink
	return nil
}

type coinStore struct{ st *state }

func (c coinStore) LockLedger(ctx context.Context) ([]domain.Coin, error) {
	return sortedCoins(c.st.coins, false), nil
}

func (c coinStore) ListUsable(ctx context.Context) ([]domain.Coin, error) {
	return sortedCoins(c.st.coins, true), nil
}

func (c coinStore) AdjustCount(ctx context.Context, denomination int64, delta int) error {
	coin, ok := c.st.coins[denomination]
	if !ok {
		return domain.ErrNotFound
	}
	if coin.Amount+delta < 0 {
		return domain.ErrNegativeCoinCount
	}
	coin.Amount += delta
	c.st.coins[denomination] = coin
	return nil
}

func (c coinStore) UpsertDeposited(ctx context.Context, denomination int64, qty int) error {
	coin, ok := c.st.coins[denomination]
	if !ok {
		coin = domain.Coin{Denomination: denomination, CoinType: domain.CoinTypeUserInserted}
	}
	coin.Amount += qty
	c.st.coins[denomination] = coin
	return nil
}

type orderStore struct{ st *state }

func (o orderStore) Create(ctx context.Context, order *domain.Order) (int64, error) {
	o.st.nextOrderID++
	stored := copyOrder(*order)
	stored.ID = o.st.nextOrderID
	o.st.orders[stored.ID] = stored
	return stored.ID, nil
}

func (o orderStore) Finalize(ctx context.Context, order *domain.Order) error {
	stored, ok := o.st.orders[order.ID]
	if !ok {
		return domain.ErrNotFound
	}
	stored.Status = order.Status
	stored.AmountPaid = order.AmountPaid
	stored.ChangeAmount = order.ChangeAmount
	stored.FailureReason = order.FailureReason
	o.st.orders[order.ID] = stored
	return nil
}

func sortedCoins(coins map[int64]domain.Coin, usableOnly bool) []domain.Coin {
	out := make([]domain.Coin, 0, len(coins))
	for _, c := range coins {
		if usableOnly && !c.Usable() {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Denomination < out[j].Denomination })
	return out
}

func copyOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}
