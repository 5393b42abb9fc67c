package service

import (
	"errors"
	"sort"

	"github.com/punchamoorthee/vendingops/internal/domain"
)

var (
	ErrExactChangeImpossible = errors.New("cannot provide exact change")
	ErrNegativeChange        = errors.New("change amount must not be negative")
)

// AllocateChange picks coins for amount greedily, largest denomination first.
// There is no backtracking: some amounts a different combination could pay
// are reported as ErrExactChangeImpossible. The coins slice is not modified;
// blocked and empty entries are ignored.
func AllocateChange(amount int64, coins []domain.Coin) ([]domain.CoinQuantity, error) {
	if amount < 0 {
		return nil, ErrNegativeChange
	}
	result := []domain.CoinQuantity{}
	if amount == 0 {
		return result, nil
	}

	usable := make([]domain.Coin, 0, len(coins))
	for _, c := range coins {
		if c.Usable() && c.Denomination > 0 {
			usable = append(usable, c)
		}
	}
	sort.Slice(usable, func(i, j int) bool {
		return usable[i].Denomination > usable[j].Denomination
	})

	remaining := amount
	for _, c := range usable {
		if remaining == 0 {
			break
		}
		k := remaining / c.Denomination
		if k > int64(c.Amount) {
			k = int64(c.Amount)
		}
		if k == 0 {
			continue
		}
		result = append(result, domain.CoinQuantity{Denomination: c.Denomination, Quantity: int(k)})
		remaining -= k * c.Denomination
	}

	if remaining > 0 {
		return nil, ErrExactChangeImpossible
	}
	return result, nil
}
