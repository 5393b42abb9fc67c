// Package models holds the JSON shapes exchanged over HTTP.
package models

import "github.com/punchamoorthee/vendingops/internal/domain"

// PaymentItem is one cart line from the client.
type PaymentItem struct {
	DrinkName       string `json:"drinkName"`
	BrandName       string `json:"brandName"`
	PriceAtPurchase int64  `json:"priceAtPurchase"`
	Quantity        int    `json:"quantity"`
}

type PaymentCoin struct {
	Denomination int64 `json:"denomination"`
	Quantity     int   `json:"quantity"`
}

// PaymentRequest is the payload of POST /api/payments.
type PaymentRequest struct {
	Items []PaymentItem `json:"items"`
	Coins []PaymentCoin `json:"coins"`
}

func (r PaymentRequest) ToDomain() domain.PaymentRequest {
	req := domain.PaymentRequest{
		Items: make([]domain.PaymentItem, len(r.Items)),
		Coins: make([]domain.CoinQuantity, len(r.Coins)),
	}
	for i, it := range r.Items {
		req.Items[i] = domain.PaymentItem{
			DrinkName:       it.DrinkName,
			BrandName:       it.BrandName,
			PriceAtPurchase: it.PriceAtPurchase,
			Quantity:        it.Quantity,
		}
	}
	for i, c := range r.Coins {
		req.Coins[i] = domain.CoinQuantity{Denomination: c.Denomination, Quantity: c.Quantity}
	}
	return req
}

type Change struct {
	Amount int64                 `json:"amount"`
	Coins  []domain.CoinQuantity `json:"coins"`
}

// PaymentResponse is returned for a completed settlement.
type PaymentResponse struct {
	Success bool   `json:"success"`
	OrderID int64  `json:"orderId"`
	Change  Change `json:"change"`
}

func NewPaymentResponse(res *domain.PaymentResult) PaymentResponse {
	resp := PaymentResponse{Success: res.Success, Change: Change{Coins: res.ChangeCoins}}
	if res.OrderID != nil {
		resp.OrderID = *res.OrderID
	}
	if res.ChangeAmount != nil {
		resp.Change.Amount = *res.ChangeAmount
	}
	if resp.Change.Coins == nil {
		resp.Change.Coins = []domain.CoinQuantity{}
	}
	return resp
}

// ErrorResponse carries a machine code and a human message.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	OrderID *int64 `json:"orderId,omitempty"`
}

type CoinCreate struct {
	Denomination int64  `json:"denomination"`
	Amount       int    `json:"amount"`
	IsBlocked    bool   `json:"isBlocked"`
	CoinType     string `json:"coinType"`
}

type CoinUpdate struct {
	Amount    int    `json:"amount"`
	IsBlocked bool   `json:"isBlocked"`
	CoinType  string `json:"coinType"`
}

type SetAmount struct {
	Amount int `json:"amount"`
}

type AddCoinsResponse struct {
	NewAmount int `json:"newAmount"`
}
