package memstore

import (
	"context"
	"sort"

	"github.com/punchamoorthee/vendingops/internal/domain"
)

func (s *Store) ListAvailableCoins(ctx context.Context) ([]domain.Coin, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()
	return sortedCoins(s.state.coins, true), nil
}

func (s *Store) GetCoin(ctx context.Context, denomination int64) (*domain.Coin, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	c, ok := s.state.coins[denomination]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (s *Store) CreateCoin(ctx context.Context, c domain.Coin) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	if _, ok := s.state.coins[c.Denomination]; ok {
		return domain.ErrConflict
	}
	s.state.coins[c.Denomination] = c
	return nil
}

func (s *Store) UpdateCoin(ctx context.Context, c domain.Coin) error {
	return s.mutateCoin(ctx, c.Denomination, func(stored *domain.Coin) {
		*stored = c
	})
}

func (s *Store) SetCoinAmount(ctx context.Context, denomination int64, amount int) error {
	return s.mutateCoin(ctx, denomination, func(c *domain.Coin) { c.Amount = amount })
}

func (s *Store) SetCoinBlocked(ctx context.Context, denomination int64, blocked bool) error {
	return s.mutateCoin(ctx, denomination, func(c *domain.Coin) { c.IsBlocked = blocked })
}

func (s *Store) AddCoins(ctx context.Context, denomination int64, qty int) (int, error) {
	var amount int
	err := s.mutateCoin(ctx, denomination, func(c *domain.Coin) {
		c.Amount += qty
		amount = c.Amount
	})
	return amount, err
}

func (s *Store) mutateCoin(ctx context.Context, denomination int64, fn func(*domain.Coin)) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	c, ok := s.state.coins[denomination]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&c)
	s.state.coins[denomination] = c
	return nil
}

// ListDrinks orders the catalog by brand then name. An empty brand lists all.
func (s *Store) ListDrinks(ctx context.Context, brand string) ([]domain.Drink, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	out := make([]domain.Drink, 0, len(s.state.drinks))
	for _, d := range s.state.drinks {
		if brand == "" || d.BrandName == brand {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].BrandName != out[j].BrandName {
			return out[i].BrandName < out[j].BrandName
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) SetDrinkStock(ctx context.Context, id int64, amount int) error {
	if err := s.acquire(ctx); err != nil {
		return err
	}
	defer s.release()

	d, ok := s.state.drinks[id]
	if !ok {
		return domain.ErrNotFound
	}
	d.Amount = amount
	s.state.drinks[id] = d
	return nil
}

// ListOrders returns orders newest first.
func (s *Store) ListOrders(ctx context.Context) ([]domain.Order, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	orders := make([]domain.Order, 0, len(s.state.orders))
	for _, o := range s.state.orders {
		orders = append(orders, copyOrder(o))
	}
	sort.Slice(orders, func(i, j int) bool {
		if !orders[i].OrderDate.Equal(orders[j].OrderDate) {
			return orders[i].OrderDate.After(orders[j].OrderDate)
		}
		return orders[i].ID > orders[j].ID
	})
	return orders, nil
}

func (s *Store) GetOrder(ctx context.Context, id int64) (*domain.Order, error) {
	if err := s.acquire(ctx); err != nil {
		return nil, err
	}
	defer s.release()

	o, ok := s.state.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o = copyOrder(o)
	return &o, nil
}
