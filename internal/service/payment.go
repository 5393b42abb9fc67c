package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/punchamoorthee/vendingops/internal/domain"
	"github.com/punchamoorthee/vendingops/internal/metrics"
)

const (
	reasonExactChange    = "cannot provide exact change"
	reasonDrinkNotFound  = "drink not available: "
	messageServerFailure = "payment processing failed"
)

// SettlementObserver is told about every order that reached a committed terminal state.
type SettlementObserver interface {
	OrderSettled(ctx context.Context, order domain.Order)
}

type Option func(*PaymentService)

// WithObservers registers observers notified after each commit.
func WithObservers(observers ...SettlementObserver) Option {
	return func(s *PaymentService) {
		s.observers = append(s.observers, observers...)
	}
}

// WithTimeout bounds a single settlement.
func WithTimeout(d time.Duration) Option {
	return func(s *PaymentService) {
		s.timeout = d
	}
}

func withClock(now func() time.Time) Option {
	return func(s *PaymentService) {
		s.now = now
	}
}

// PaymentService turns payment requests into terminal orders. It is the only
// writer of drink stock, the coin ledger and orders during a settlement.
type PaymentService struct {
	ledger    domain.Ledger
	logger    *zap.Logger
	observers []SettlementObserver
	timeout   time.Duration
	now       func() time.Time
}

func NewPaymentService(ledger domain.Ledger, logger *zap.Logger, opts ...Option) *PaymentService {
	s := &PaymentService{
		ledger: ledger,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessPayment settles one request. Every failure is reported through the
// returned result; once an order has been created it is always committed as
// Completed or Failed, or rolled back entirely on an unexpected error.
func (s *PaymentService) ProcessPayment(ctx context.Context, req domain.PaymentRequest) *domain.PaymentResult {
	if res := validatePaymentRequest(req); res != nil {
		return s.record(res)
	}

	totalInserted, orderTotal, ok := totals(req)
	if !ok {
		return s.record(failure(domain.CodeInvalidRequest, "payment amounts out of range"))
	}
	if totalInserted < orderTotal {
		return s.record(failure(domain.CodeInsufficientFunds, "insufficient funds for payment"))
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	timer := prometheus.NewTimer(metrics.SettlementDuration)
	order, res, err := s.settle(ctx, req, totalInserted, orderTotal)
	timer.ObserveDuration()
	if err != nil {
		s.logger.Error("payment processing failed",
			zap.Int64("total_inserted", totalInserted),
			zap.Int64("order_total", orderTotal),
			zap.Error(err))
		return s.record(failure(domain.CodeServerError, messageServerFailure))
	}
	if order == nil {
		return s.record(res)
	}

	s.logger.Info("order settled",
		zap.Int64("order_id", order.ID),
		zap.String("status", string(order.Status)),
		zap.Int64("total", order.TotalAmount),
		zap.Int64("change", order.ChangeAmount),
		zap.String("failure_reason", order.FailureReason))
	if res.Success {
		for _, c := range req.Coins {
			metrics.CoinsDeposited.WithLabelValues(strconv.FormatInt(c.Denomination, 10)).Add(float64(c.Quantity))
		}
	}
	s.notify(context.WithoutCancel(ctx), *order)
	return s.record(res)
}

// GetCoinStatus lists the whole ledger ordered by denomination.
func (s *PaymentService) GetCoinStatus(ctx context.Context) ([]domain.CoinStatus, error) {
	coins, err := s.ledger.ListCoins(ctx)
	if err != nil {
		return nil, fmt.Errorf("list coins failed: %w", err)
	}
	statuses := make([]domain.CoinStatus, 0, len(coins))
	for _, c := range coins {
		statuses = append(statuses, domain.NewCoinStatus(c))
	}
	return statuses, nil
}

func (s *PaymentService) settle(ctx context.Context, req domain.PaymentRequest, totalInserted, orderTotal int64) (*domain.Order, *domain.PaymentResult, error) {
	uow, err := s.ledger.BeginUnitOfWork(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("unit of work begin failed: %w", err)
	}
	defer uow.Rollback(ctx)

	// 1. The whole coin ledger is locked before any drink row
	ledger, err := uow.Coins().LockLedger(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("coin ledger lock failed: %w", err)
	}
	if d, blocked := blockedDeposit(req.Coins, ledger); blocked {
		return nil, failure(domain.CodeInvalidRequest, fmt.Sprintf("coin not accepted: %d", d)), nil
	}

	// 2. Pending order with item snapshots
	order := newPendingOrder(req, orderTotal, s.now())
	id, err := uow.Orders().Create(ctx, order)
	if err != nil {
		return nil, nil, fmt.Errorf("order insert failed: %w", err)
	}
	order.ID = id

	// 3. Change comes out of the reserve the machine held before this payment
	changeAmount := totalInserted - orderTotal
	changeCoins := []domain.CoinQuantity{}
	if changeAmount > 0 {
		available, err := uow.Coins().ListUsable(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("coin ledger read failed: %w", err)
		}
		changeCoins, err = AllocateChange(changeAmount, available)
		if errors.Is(err, ErrExactChangeImpossible) {
			return s.fail(ctx, uow, order, domain.CodeInsufficientChange, reasonExactChange)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("change allocation failed: %w", err)
		}
	}

	// 4. Stock is checked for every line before any line is decremented
	lines := groupLines(req.Items)
	for i := range lines {
		drink, err := uow.Drinks().FindByNameAndBrand(ctx, lines[i].name, lines[i].brand)
		if errors.Is(err, domain.ErrNotFound) {
			return s.fail(ctx, uow, order, domain.CodeInvalidItem, reasonDrinkNotFound+lines[i].name)
		}
		if err != nil {
			return nil, nil, fmt.Errorf("drink lookup failed: %w", err)
		}
		if drink.Amount < lines[i].quantity {
			return s.fail(ctx, uow, order, domain.CodeInvalidItem, reasonDrinkNotFound+lines[i].name)
		}
		lines[i].drinkID = drink.ID
	}
	for _, line := range lines {
		if err := uow.Drinks().DecrementStock(ctx, line.drinkID, line.quantity); err != nil {
			return nil, nil, fmt.Errorf("stock decrement failed for %s: %w", line.name, err)
		}
	}

	// 5. Coin ledger: capture inserted coins, pay out change
	for _, c := range groupCoins(req.Coins) {
		if err := uow.Coins().UpsertDeposited(ctx, c.Denomination, c.Quantity); err != nil {
			return nil, nil, fmt.Errorf("coin deposit failed: %w", err)
		}
	}
	for _, c := range groupCoins(changeCoins) {
		if err := uow.Coins().AdjustCount(ctx, c.Denomination, -c.Quantity); err != nil {
			return nil, nil, fmt.Errorf("change payout failed: %w", err)
		}
	}

	// 6. Finalize & Commit
	order.Status = domain.OrderCompleted
	order.AmountPaid = totalInserted
	order.ChangeAmount = changeAmount
	if err := uow.Orders().Finalize(ctx, order); err != nil {
		return nil, nil, fmt.Errorf("order finalize failed: %w", err)
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("unit of work commit failed: %w", err)
	}

	return order, &domain.PaymentResult{
		Success:      true,
		OrderID:      &order.ID,
		ChangeAmount: &changeAmount,
		ChangeCoins:  changeCoins,
	}, nil
}

// fail commits the order as Failed. Nothing but the order row is written.
func (s *PaymentService) fail(ctx context.Context, uow domain.UnitOfWork, order *domain.Order, code domain.Code, reason string) (*domain.Order, *domain.PaymentResult, error) {
	order.Status = domain.OrderFailed
	order.FailureReason = reason
	if err := uow.Orders().Finalize(ctx, order); err != nil {
		return nil, nil, fmt.Errorf("order finalize failed: %w", err)
	}
	if err := uow.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("unit of work commit failed: %w", err)
	}
	res := failure(code, reason)
	res.OrderID = &order.ID
	return order, res, nil
}

func (s *PaymentService) notify(ctx context.Context, order domain.Order) {
	for _, o := range s.observers {
		o.OrderSettled(ctx, order)
	}
}

func (s *PaymentService) record(res *domain.PaymentResult) *domain.PaymentResult {
	if !res.Success {
		metrics.SettlementsTotal.WithLabelValues(string(res.Error)).Inc()
		return res
	}
	metrics.SettlementsTotal.WithLabelValues("ok").Inc()
	for _, c := range res.ChangeCoins {
		metrics.CoinsPaidOut.WithLabelValues(strconv.FormatInt(c.Denomination, 10)).Add(float64(c.Quantity))
	}
	return res
}

func validatePaymentRequest(req domain.PaymentRequest) *domain.PaymentResult {
	if len(req.Items) == 0 {
		return failure(domain.CodeNoItems, "no items in payment request")
	}
	if len(req.Coins) == 0 {
		return failure(domain.CodeNoCoins, "no coins in payment request")
	}
	for _, item := range req.Items {
		if item.Quantity <= 0 || item.PriceAtPurchase <= 0 {
			return failure(domain.CodeInvalidRequest, "item quantity and price must be positive: "+item.DrinkName)
		}
	}
	for _, c := range req.Coins {
		if c.Denomination <= 0 || c.Quantity <= 0 {
			return failure(domain.CodeInvalidRequest, "coin denomination and quantity must be positive")
		}
	}
	return nil
}

// totals reports ok=false when a line value or a running sum overflows int64.
func totals(req domain.PaymentRequest) (inserted, owed int64, ok bool) {
	for _, c := range req.Coins {
		if inserted, ok = addLine(inserted, c.Denomination, c.Quantity); !ok {
			return 0, 0, false
		}
	}
	for _, item := range req.Items {
		if owed, ok = addLine(owed, item.PriceAtPurchase, item.Quantity); !ok {
			return 0, 0, false
		}
	}
	return inserted, owed, true
}

// addLine returns sum + unit*qty for positive unit and qty.
func addLine(sum, unit int64, qty int) (int64, bool) {
	if unit > math.MaxInt64/int64(qty) {
		return 0, false
	}
	line := unit * int64(qty)
	if sum > math.MaxInt64-line {
		return 0, false
	}
	return sum + line, true
}

// blockedDeposit finds an inserted denomination the ledger has blocked.
func blockedDeposit(inserted []domain.CoinQuantity, ledger []domain.Coin) (int64, bool) {
	blocked := make(map[int64]bool, len(ledger))
	for _, c := range ledger {
		blocked[c.Denomination] = c.IsBlocked
	}
	for _, c := range inserted {
		if blocked[c.Denomination] {
			return c.Denomination, true
		}
	}
	return 0, false
}

// groupCoins merges quantities per denomination, ascending, the order in
// which coin rows are written.
func groupCoins(coins []domain.CoinQuantity) []domain.CoinQuantity {
	merged := make(map[int64]int, len(coins))
	for _, c := range coins {
		merged[c.Denomination] += c.Quantity
	}
	out := make([]domain.CoinQuantity, 0, len(merged))
	for d, q := range merged {
		out = append(out, domain.CoinQuantity{Denomination: d, Quantity: q})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Denomination < out[j].Denomination })
	return out
}

func newPendingOrder(req domain.PaymentRequest, total int64, now time.Time) *domain.Order {
	items := make([]domain.OrderItem, 0, len(req.Items))
	for _, i := range req.Items {
		items = append(items, domain.OrderItem{
			DrinkName:       i.DrinkName,
			BrandName:       i.BrandName,
			PriceAtPurchase: i.PriceAtPurchase,
			Quantity:        i.Quantity,
			TotalPrice:      i.PriceAtPurchase * int64(i.Quantity),
		})
	}
	return &domain.Order{
		OrderDate:   now,
		Status:      domain.OrderPending,
		TotalAmount: total,
		Items:       items,
	}
}

type stockLine struct {
	brand    string
	name     string
	quantity int
	drinkID  int64
}

// groupLines merges cart lines per drink and sorts them by (brand, name), the
// order in which drink rows are locked. A fixed order keeps concurrent
// settlements from deadlocking each other.
func groupLines(items []domain.PaymentItem) []stockLine {
	index := make(map[[2]string]int, len(items))
	lines := make([]stockLine, 0, len(items))
	for _, item := range items {
		key := [2]string{item.BrandName, item.DrinkName}
		if i, ok := index[key]; ok {
			lines[i].quantity += item.Quantity
			continue
		}
		index[key] = len(lines)
		lines = append(lines, stockLine{brand: item.BrandName, name: item.DrinkName, quantity: item.Quantity})
	}
	sort.Slice(lines, func(i, j int) bool {
		if lines[i].brand != lines[j].brand {
			return lines[i].brand < lines[j].brand
		}
		return lines[i].name < lines[j].name
	})
	return lines
}

func failure(code domain.Code, msg string) *domain.PaymentResult {
	return &domain.PaymentResult{Success: false, Error: code, Message: msg}
}
