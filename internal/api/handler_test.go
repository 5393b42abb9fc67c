package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/time/rate"

	"github.com/punchamoorthee/vendingops/internal/domain"
	"github.com/punchamoorthee/vendingops/internal/models"
	"github.com/punchamoorthee/vendingops/internal/service"
	"github.com/punchamoorthee/vendingops/internal/store/memstore"
)

type testServer struct {
	store  *memstore.Store
	router http.Handler
	cola   domain.Drink
}

func newTestServer(t *testing.T, limiter *rate.Limiter) *testServer {
	t.Helper()
	s := memstore.New()
	ts := &testServer{
		store: s,
		cola:  s.AddDrink(domain.Drink{Name: "Cola", BrandName: "Fizz", Price: 93, Amount: 5}),
	}
	s.AddDrink(domain.Drink{Name: "Water", BrandName: "Spring", Price: 40, Amount: 0})
	s.PutCoin(domain.Coin{Denomination: 10, Amount: 100})
	s.PutCoin(domain.Coin{Denomination: 5, Amount: 1})
	s.PutCoin(domain.Coin{Denomination: 2, Amount: 2})
	s.PutCoin(domain.Coin{Denomination: 20, Amount: 0, IsBlocked: true})

	logger := zaptest.NewLogger(t)
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Inf, 1)
	}
	h := NewHandler(service.NewPaymentService(s, logger), s, logger)
	ts.router = NewRouter(h, nil, limiter, logger)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	rr := httptest.NewRecorder()
	ts.router.ServeHTTP(rr, req)
	return rr
}

func payment(drink domain.Drink, qty int, coins ...models.PaymentCoin) models.PaymentRequest {
	return models.PaymentRequest{
		Items: []models.PaymentItem{{DrinkName: drink.Name, BrandName: drink.BrandName, PriceAtPurchase: drink.Price, Quantity: qty}},
		Coins: coins,
	}
}

func TestProcessPaymentHandler(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, "POST", "/api/payments", payment(ts.cola, 1, models.PaymentCoin{Denomination: 10, Quantity: 20}))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var resp models.PaymentResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotZero(t, resp.OrderID)
	assert.Equal(t, int64(107), resp.Change.Amount)
	assert.Equal(t, []domain.CoinQuantity{{Denomination: 10, Quantity: 10}, {Denomination: 5, Quantity: 1}, {Denomination: 2, Quantity: 1}}, resp.Change.Coins)
}

func TestProcessPaymentHandlerFailures(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		status int
		code   domain.Code
	}{
		{"malformed json", "{", http.StatusBadRequest, domain.CodeInvalidRequest},
		{"no items", models.PaymentRequest{Coins: []models.PaymentCoin{{Denomination: 10, Quantity: 1}}}, http.StatusBadRequest, domain.CodeNoItems},
		{"no coins", models.PaymentRequest{Items: []models.PaymentItem{{DrinkName: "Cola", BrandName: "Fizz", PriceAtPurchase: 93, Quantity: 1}}}, http.StatusBadRequest, domain.CodeNoCoins},
		{"insufficient funds", payment(domain.Drink{Name: "Cola", BrandName: "Fizz", Price: 93}, 1, models.PaymentCoin{Denomination: 10, Quantity: 9}), http.StatusBadRequest, domain.CodeInsufficientFunds},
		{"sold out", payment(domain.Drink{Name: "Water", BrandName: "Spring", Price: 40}, 1, models.PaymentCoin{Denomination: 10, Quantity: 4}), http.StatusBadRequest, domain.CodeInvalidItem},
		{"insufficient change", payment(domain.Drink{Name: "Cola", BrandName: "Fizz", Price: 93}, 1,
			models.PaymentCoin{Denomination: 100, Quantity: 1}, models.PaymentCoin{Denomination: 1, Quantity: 1}), http.StatusBadRequest, domain.CodeInsufficientChange},
		{"blocked denomination", payment(domain.Drink{Name: "Cola", BrandName: "Fizz", Price: 93}, 1,
			models.PaymentCoin{Denomination: 20, Quantity: 5}), http.StatusBadRequest, domain.CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, nil)
			rr := ts.do(t, "POST", "/api/payments", tt.body)
			require.Equal(t, tt.status, rr.Code, rr.Body.String())

			var resp models.ErrorResponse
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
			assert.Equal(t, string(tt.code), resp.Error)
		})
	}
}

func TestPaymentsAreRateLimited(t *testing.T) {
	ts := newTestServer(t, rate.NewLimiter(rate.Limit(0.001), 1))
	body := payment(ts.cola, 1, models.PaymentCoin{Denomination: 93, Quantity: 1})

	first := ts.do(t, "POST", "/api/payments", body)
	assert.NotEqual(t, http.StatusTooManyRequests, first.Code)
	second := ts.do(t, "POST", "/api/payments", body)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
}

func TestCoinStatusHandler(t *testing.T) {
	ts := newTestServer(t, nil)
	rr := ts.do(t, "GET", "/api/payments/coin-status", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var coins []domain.CoinStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &coins))
	require.Len(t, coins, 4)
	assert.True(t, coins[0].CanUse)
	assert.Equal(t, domain.CoinStatus{Denomination: 20, Amount: 0, DisplayName: "20 RUB", CanUse: false}, coins[3])
}

func TestListDrinksHandler(t *testing.T) {
	ts := newTestServer(t, nil)

	rr := ts.do(t, "GET", "/api/drinks?brand=Fizz", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var drinks []domain.Drink
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &drinks))
	require.Len(t, drinks, 1)
	assert.Equal(t, "Cola", drinks[0].Name)

	rr = ts.do(t, "GET", "/api/drinks", nil)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &drinks))
	assert.Len(t, drinks, 2)
}
