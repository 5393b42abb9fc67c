package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/punchamoorthee/vendingops/internal/domain"
	"github.com/punchamoorthee/vendingops/internal/models"
)

// Payments is the settlement engine as seen by HTTP.
type Payments interface {
	ProcessPayment(ctx context.Context, req domain.PaymentRequest) *domain.PaymentResult
	GetCoinStatus(ctx context.Context) ([]domain.CoinStatus, error)
}

// Store backs the catalog and admin endpoints.
type Store interface {
	ListDrinks(ctx context.Context, brand string) ([]domain.Drink, error)
	SetDrinkStock(ctx context.Context, id int64, amount int) error

	ListCoins(ctx context.Context) ([]domain.Coin, error)
	ListAvailableCoins(ctx context.Context) ([]domain.Coin, error)
	GetCoin(ctx context.Context, denomination int64) (*domain.Coin, error)
	CreateCoin(ctx context.Context, c domain.Coin) error
	UpdateCoin(ctx context.Context, c domain.Coin) error
	SetCoinAmount(ctx context.Context, denomination int64, amount int) error
	SetCoinBlocked(ctx context.Context, denomination int64, blocked bool) error
	AddCoins(ctx context.Context, denomination int64, qty int) (int, error)

	ListOrders(ctx context.Context) ([]domain.Order, error)
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
}

type Handler struct {
	payments Payments
	store    Store
	logger   *zap.Logger
}

func NewHandler(payments Payments, s Store, logger *zap.Logger) *Handler {
	return &Handler{payments: payments, store: s, logger: logger}
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) ProcessPaymentHandler(w http.ResponseWriter, r *http.Request) {
	var req models.PaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, string(domain.CodeInvalidRequest), "Malformed JSON body")
		return
	}

	res := h.payments.ProcessPayment(r.Context(), req.ToDomain())
	if !res.Success {
		status := http.StatusBadRequest
		if res.Error == domain.CodeServerError {
			status = http.StatusInternalServerError
		}
		h.logger.Warn("payment failed",
			zap.String("code", string(res.Error)),
			zap.String("message", res.Message),
		)
		respondWithJSON(w, status, models.ErrorResponse{
			Error:   string(res.Error),
			Message: res.Message,
			OrderID: res.OrderID,
		})
		return
	}

	respondWithJSON(w, http.StatusOK, models.NewPaymentResponse(res))
}

func (h *Handler) CoinStatusHandler(w http.ResponseWriter, r *http.Request) {
	coins, err := h.payments.GetCoinStatus(r.Context())
	if err != nil {
		h.internalError(w, "coin status lookup failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, coins)
}

// ListDrinksHandler serves the catalog, optionally filtered by ?brand=.
func (h *Handler) ListDrinksHandler(w http.ResponseWriter, r *http.Request) {
	drinks, err := h.store.ListDrinks(r.Context(), r.URL.Query().Get("brand"))
	if err != nil {
		h.internalError(w, "drink listing failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, drinks)
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	h.logger.Error(msg, zap.Error(err))
	respondWithError(w, http.StatusInternalServerError, string(domain.CodeServerError), "Internal Server Error")
}

func respondWithError(w http.ResponseWriter, code int, errCode, message string) {
	respondWithJSON(w, code, models.ErrorResponse{Error: errCode, Message: message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
