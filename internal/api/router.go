package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// NewRouter wires every HTTP route. ws may be nil when the realtime channel is disabled.
func NewRouter(h *Handler, ws http.Handler, limiter *rate.Limiter, logger *zap.Logger) *mux.Router {
	r := mux.NewRouter()
	r.Use(Instrument(logger))

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/health", h.HealthCheckHandler).Methods("GET")
	if ws != nil {
		r.Handle("/ws", ws).Methods("GET")
	}

	api := r.PathPrefix("/api").Subrouter()
	api.Handle("/payments", RateLimit(limiter)(http.HandlerFunc(h.ProcessPaymentHandler))).Methods("POST")
	api.HandleFunc("/payments/coin-status", h.CoinStatusHandler).Methods("GET")
	api.HandleFunc("/drinks", h.ListDrinksHandler).Methods("GET")

	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/orders", h.ListOrdersHandler).Methods("GET")
	admin.HandleFunc("/orders/{id:[0-9]+}", h.GetOrderHandler).Methods("GET")
	admin.HandleFunc("/coins", h.ListCoinsHandler).Methods("GET")
	admin.HandleFunc("/coins", h.CreateCoinHandler).Methods("POST")
	admin.HandleFunc("/coins/available", h.ListAvailableCoinsHandler).Methods("GET")
	admin.HandleFunc("/coins/{denomination:[0-9]+}", h.GetCoinHandler).Methods("GET")
	admin.HandleFunc("/coins/{denomination:[0-9]+}", h.UpdateCoinHandler).Methods("PUT")
	admin.HandleFunc("/coins/{denomination:[0-9]+}/amount", h.SetCoinAmountHandler).Methods("PATCH")
	admin.HandleFunc("/coins/{denomination:[0-9]+}/block", h.BlockCoinHandler).Methods("PATCH")
	admin.HandleFunc("/coins/{denomination:[0-9]+}/add", h.AddCoinsHandler).Methods("POST")
	admin.HandleFunc("/drinks", h.ListDrinksHandler).Methods("GET")
	admin.HandleFunc("/drinks/{id:[0-9]+}/stock", h.SetDrinkStockHandler).Methods("PATCH")

	return r
}
