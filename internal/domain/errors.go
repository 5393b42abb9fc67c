package domain

import "errors"

// Code is the machine-readable outcome of a failed settlement.
type Code string

const (
	CodeNoItems            Code = "no_items"
	CodeNoCoins            Code = "no_coins"
	CodeInvalidRequest     Code = "invalid_request"
	CodeInsufficientFunds  Code = "insufficient_funds"
	CodeInsufficientChange Code = "insufficient_change"
	CodeInvalidItem        Code = "invalid_item"
	CodeServerError        Code = "server_error"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNegativeCoinCount = errors.New("coin count would go negative")
)
