package domain

import (
	"fmt"
	"time"
)

// OrderStatus is the lifecycle state of an Order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "Pending"
	OrderCompleted OrderStatus = "Completed"
	OrderFailed    OrderStatus = "Failed"
)

// Terminal reports whether the status is final.
func (s OrderStatus) Terminal() bool {
	return s == OrderCompleted || s == OrderFailed
}

const (
	CoinTypeStandard     = "Standard"
	CoinTypeUserInserted = "UserInserted"
)

// Drink is the stock aggregate. Amount must never go below zero.
type Drink struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	BrandID     int64  `json:"brand_id"`
	BrandName   string `json:"brand_name"`
	Price       int64  `json:"price"`
	Amount      int    `json:"amount"`
	ImageURL    string `json:"image_url,omitempty"`
	Description string `json:"description,omitempty"`
}

func (d Drink) Available() bool {
	return d.Amount > 0
}

// Coin is one entry of the machine's coin ledger.
type Coin struct {
	Denomination int64  `json:"denomination"`
	Amount       int    `json:"amount_available"`
	IsBlocked    bool   `json:"is_blocked"`
	CoinType     string `json:"coin_type"`
}

func (c Coin) DisplayName() string {
	return fmt.Sprintf("%d RUB", c.Denomination)
}

// Usable coins can be handed out as change.
func (c Coin) Usable() bool {
	return !c.IsBlocked && c.Amount > 0
}

// Order is the durable record of one settlement. It owns its Items.
type Order struct {
	ID            int64       `json:"id"`
	OrderDate     time.Time   `json:"order_date"`
	TotalAmount   int64       `json:"total_amount"`
	AmountPaid    int64       `json:"amount_paid"`
	ChangeAmount  int64       `json:"change_amount"`
	Status        OrderStatus `json:"status"`
	FailureReason string      `json:"failure_reason"`
	Items         []OrderItem `json:"items"`
}

// OrderItem is an immutable snapshot of a purchased line.
type OrderItem struct {
	DrinkName       string `json:"drink_name"`
	BrandName       string `json:"brand_name"`
	PriceAtPurchase int64  `json:"price_at_purchase"`
	Quantity        int    `json:"quantity"`
	TotalPrice      int64  `json:"total_price"`
}

// CoinQuantity is a {denomination, quantity} pair used for inserted coins and change.
type CoinQuantity struct {
	Denomination int64 `json:"denomination"`
	Quantity     int   `json:"quantity"`
}

// Value is the monetary value of the pair.
func (c CoinQuantity) Value() int64 {
	return c.Denomination * int64(c.Quantity)
}

// PaymentItem is one cart line as submitted by the client.
type PaymentItem struct {
	DrinkName       string
	BrandName       string
	PriceAtPurchase int64
	Quantity        int
}

// PaymentRequest is the transient input to a settlement.
type PaymentRequest struct {
	Items []PaymentItem
	Coins []CoinQuantity
}

// PaymentResult is the outcome of a settlement. Error is empty on success.
type PaymentResult struct {
	Success      bool
	OrderID      *int64
	ChangeAmount *int64
	ChangeCoins  []CoinQuantity
	Error        Code
	Message      string
}

// CoinStatus is the public view of one ledger entry.
type CoinStatus struct {
	Denomination int64  `json:"denomination"`
	Amount       int    `json:"amount"`
	DisplayName  string `json:"displayName"`
	CanUse       bool   `json:"canUse"`
}

func NewCoinStatus(c Coin) CoinStatus {
	return CoinStatus{
		Denomination: c.Denomination,
		Amount:       c.Amount,
		DisplayName:  c.DisplayName(),
		CanUse:       c.Usable(),
	}
}
