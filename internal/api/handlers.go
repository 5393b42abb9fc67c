package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/punchamoorthee/vendingops/internal/domain"
	"github.com/punchamoorthee/vendingops/internal/models"
)

// Admin endpoints under /api/admin.

func (h *Handler) ListOrdersHandler(w http.ResponseWriter, r *http.Request) {
	orders, err := h.store.ListOrders(r.Context())
	if err != nil {
		h.internalError(w, "order listing failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, orders)
}

func (h *Handler) GetOrderHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}

	order, err := h.store.GetOrder(r.Context(), id)
	if errors.Is(err, domain.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "not_found", "Order not found")
		return
	}
	if err != nil {
		h.internalError(w, "order lookup failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, order)
}

func (h *Handler) ListCoinsHandler(w http.ResponseWriter, r *http.Request) {
	coins, err := h.store.ListCoins(r.Context())
	if err != nil {
		h.internalError(w, "coin listing failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, coins)
}

func (h *Handler) ListAvailableCoinsHandler(w http.ResponseWriter, r *http.Request) {
	coins, err := h.store.ListAvailableCoins(r.Context())
	if err != nil {
		h.internalError(w, "coin listing failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, coins)
}

func (h *Handler) GetCoinHandler(w http.ResponseWriter, r *http.Request) {
	d, ok := pathInt(w, r, "denomination")
	if !ok {
		return
	}

	coin, err := h.store.GetCoin(r.Context(), d)
	if errors.Is(err, domain.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "not_found", "Coin not found")
		return
	}
	if err != nil {
		h.internalError(w, "coin lookup failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, coin)
}

func (h *Handler) CreateCoinHandler(w http.ResponseWriter, r *http.Request) {
	var req models.CoinCreate
	if !decode(w, r, &req) {
		return
	}
	if req.Denomination <= 0 || req.Amount < 0 {
		respondWithError(w, http.StatusBadRequest, string(domain.CodeInvalidRequest), "Denomination must be positive and amount non-negative")
		return
	}
	coin := domain.Coin{
		Denomination: req.Denomination,
		Amount:       req.Amount,
		IsBlocked:    req.IsBlocked,
		CoinType:     coinType(req.CoinType),
	}

	err := h.store.CreateCoin(r.Context(), coin)
	if errors.Is(err, domain.ErrConflict) {
		respondWithError(w, http.StatusConflict, "conflict", "Coin with this denomination already exists")
		return
	}
	if err != nil {
		h.internalError(w, "coin create failed", err)
		return
	}
	h.logger.Info("coin created", zap.Int64("denomination", coin.Denomination), zap.Int("amount", coin.Amount))
	w.Header().Set("Location", "/api/admin/coins/"+strconv.FormatInt(coin.Denomination, 10))
	respondWithJSON(w, http.StatusCreated, coin)
}

func (h *Handler) UpdateCoinHandler(w http.ResponseWriter, r *http.Request) {
	d, ok := pathInt(w, r, "denomination")
	if !ok {
		return
	}
	var req models.CoinUpdate
	if !decode(w, r, &req) {
		return
	}
	if req.Amount < 0 {
		respondWithError(w, http.StatusBadRequest, string(domain.CodeInvalidRequest), "Amount must be non-negative")
		return
	}

	err := h.store.UpdateCoin(r.Context(), domain.Coin{
		Denomination: d,
		Amount:       req.Amount,
		IsBlocked:    req.IsBlocked,
		CoinType:     coinType(req.CoinType),
	})
	h.noContent(w, err, "Coin not found")
}

func (h *Handler) SetCoinAmountHandler(w http.ResponseWriter, r *http.Request) {
	d, ok := pathInt(w, r, "denomination")
	if !ok {
		return
	}
	var req models.SetAmount
	if !decode(w, r, &req) {
		return
	}
	if req.Amount < 0 {
		respondWithError(w, http.StatusBadRequest, string(domain.CodeInvalidRequest), "Amount must be non-negative")
		return
	}
	h.noContent(w, h.store.SetCoinAmount(r.Context(), d, req.Amount), "Coin not found")
}

// BlockCoinHandler takes a bare JSON boolean body.
func (h *Handler) BlockCoinHandler(w http.ResponseWriter, r *http.Request) {
	d, ok := pathInt(w, r, "denomination")
	if !ok {
		return
	}
	var blocked bool
	if !decode(w, r, &blocked) {
		return
	}
	err := h.store.SetCoinBlocked(r.Context(), d, blocked)
	if err == nil {
		h.logger.Info("coin block changed", zap.Int64("denomination", d), zap.Bool("blocked", blocked))
	}
	h.noContent(w, err, "Coin not found")
}

// AddCoinsHandler takes a bare JSON integer body.
func (h *Handler) AddCoinsHandler(w http.ResponseWriter, r *http.Request) {
	d, ok := pathInt(w, r, "denomination")
	if !ok {
		return
	}
	var qty int
	if !decode(w, r, &qty) {
		return
	}
	if qty <= 0 {
		respondWithError(w, http.StatusBadRequest, string(domain.CodeInvalidRequest), "Quantity must be positive")
		return
	}

	amount, err := h.store.AddCoins(r.Context(), d, qty)
	if errors.Is(err, domain.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "not_found", "Coin not found")
		return
	}
	if err != nil {
		h.internalError(w, "coin top-up failed", err)
		return
	}
	respondWithJSON(w, http.StatusOK, models.AddCoinsResponse{NewAmount: amount})
}

func (h *Handler) SetDrinkStockHandler(w http.ResponseWriter, r *http.Request) {
	id, ok := pathInt(w, r, "id")
	if !ok {
		return
	}
	var req models.SetAmount
	if !decode(w, r, &req) {
		return
	}
	if req.Amount < 0 {
		respondWithError(w, http.StatusBadRequest, string(domain.CodeInvalidRequest), "Amount must be non-negative")
		return
	}
	h.noContent(w, h.store.SetDrinkStock(r.Context(), id, req.Amount), "Drink not found")
}

func (h *Handler) noContent(w http.ResponseWriter, err error, notFound string) {
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, domain.ErrNotFound):
		respondWithError(w, http.StatusNotFound, "not_found", notFound)
	default:
		h.internalError(w, "admin update failed", err)
	}
}

func pathInt(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, string(domain.CodeInvalidRequest), "Invalid "+name)
		return 0, false
	}
	return v, true
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, string(domain.CodeInvalidRequest), "Malformed JSON body")
		return false
	}
	return true
}

func coinType(t string) string {
	if t == "" {
		return domain.CoinTypeStandard
	}
	return t
}
