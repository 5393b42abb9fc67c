package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/punchamoorthee/vendingops/internal/domain"
)

func ledger(pairs ...int64) []domain.Coin {
	coins := make([]domain.Coin, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		coins = append(coins, domain.Coin{Denomination: pairs[i], Amount: int(pairs[i+1]), CoinType: domain.CoinTypeStandard})
	}
	return coins
}

func TestAllocateChange(t *testing.T) {
	tests := []struct {
		name    string
		amount  int64
		coins   []domain.Coin
		want    []domain.CoinQuantity
		wantErr error
	}{
		{
			name:   "zero amount with empty ledger",
			amount: 0,
			coins:  nil,
			want:   []domain.CoinQuantity{},
		},
		{
			name:   "zero amount with coins",
			amount: 0,
			coins:  ledger(10, 5, 1, 5),
			want:   []domain.CoinQuantity{},
		},
		{
			name:   "seven from fives and twos",
			amount: 7,
			coins:  ledger(5, 1, 2, 10),
			want:   []domain.CoinQuantity{{Denomination: 5, Quantity: 1}, {Denomination: 2, Quantity: 1}},
		},
		{
			name:    "no denomination small enough",
			amount:  3,
			coins:   ledger(5, 10),
			wantErr: ErrExactChangeImpossible,
		},
		{
			name:    "greedy does not backtrack",
			amount:  6,
			coins:   ledger(4, 1, 3, 1),
			wantErr: ErrExactChangeImpossible,
		},
		{
			name:    "greedy does not backtrack with two threes",
			amount:  6,
			coins:   ledger(4, 1, 3, 2),
			wantErr: ErrExactChangeImpossible,
		},
		{
			name:   "limited by available count",
			amount: 30,
			coins:  ledger(10, 2, 5, 1, 1, 10),
			want: []domain.CoinQuantity{
				{Denomination: 10, Quantity: 2},
				{Denomination: 5, Quantity: 1},
				{Denomination: 1, Quantity: 5},
			},
		},
		{
			name:    "all counts zero",
			amount:  5,
			coins:   ledger(5, 0, 1, 0),
			wantErr: ErrExactChangeImpossible,
		},
		{
			name:    "only fives for seven",
			amount:  7,
			coins:   ledger(5, 2),
			wantErr: ErrExactChangeImpossible,
		},
		{
			name:    "negative amount",
			amount:  -1,
			coins:   ledger(1, 10),
			wantErr: ErrNegativeChange,
		},
		{
			name:   "unsorted input",
			amount: 16,
			coins:  ledger(1, 3, 10, 1, 5, 1),
			want: []domain.CoinQuantity{
				{Denomination: 10, Quantity: 1},
				{Denomination: 5, Quantity: 1},
				{Denomination: 1, Quantity: 1},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := AllocateChange(tt.amount, tt.coins)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)

			var sum int64
			for _, c := range got {
				sum += c.Value()
			}
			assert.Equal(t, tt.amount, sum)
		})
	}
}

func TestAllocateChange_SkipsBlockedCoins(t *testing.T) {
	coins := []domain.Coin{
		{Denomination: 5, Amount: 10, IsBlocked: true},
		{Denomination: 1, Amount: 10},
	}

	got, err := AllocateChange(5, coins)
	require.NoError(t, err)
	assert.Equal(t, []domain.CoinQuantity{{Denomination: 1, Quantity: 5}}, got)
}

func TestAllocateChange_DoesNotMutateInput(t *testing.T) {
	coins := ledger(1, 3, 10, 1, 5, 1)
	before := append([]domain.Coin(nil), coins...)

	_, err := AllocateChange(16, coins)
	require.NoError(t, err)
	assert.Equal(t, before, coins)
}
