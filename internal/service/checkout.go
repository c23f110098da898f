package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Skotchmaster/grocery_shop/internal/models"
	"github.com/Skotchmaster/grocery_shop/internal/repo"
	"github.com/Skotchmaster/grocery_shop/pkg/events"
	"github.com/Skotchmaster/grocery_shop/pkg/logging"
	"github.com/Skotchmaster/grocery_shop/pkg/metrics"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeliveryTimeLayout is how the promised delivery time is stored on orders.
const DeliveryTimeLayout = "2006-01-02 15:04"

const (
	checkoutAttempts = 2
	idempotencyScope = "checkout"
)

// IdempotencyStore remembers which checkout a client key produced.
type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
	Release(ctx context.Context, scope, key string) error
}

type CheckoutRequest struct {
	Address        string
	Phone          string
	PaymentMethod  string
	IdempotencyKey string
}

type Receipt struct {
	CheckoutID     uuid.UUID       `json:"checkout_id"`
	Orders         []models.Order  `json:"orders"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	DeliveryCharge decimal.Decimal `json:"delivery_charge"`
	Total          decimal.Decimal `json:"total"`
	DeliveryTime   string          `json:"delivery_time"`
	PaymentMethod  string          `json:"payment_method"`
	Replayed       bool            `json:"replayed,omitempty"`
}

type Preview struct {
	Lines      []CartLine `json:"lines"`
	Totals     CartTotals `json:"totals"`
	OutOfStock []string   `json:"out_of_stock"`
}

type CheckoutService struct {
	Repo              *repo.GormRepo
	Events            events.Publisher
	Idempotency       IdempotencyStore
	Orders            *OrderService
	DeliveryCharge    decimal.Decimal
	FulfillmentWindow time.Duration
	Now               func() time.Time
}

func (s *CheckoutService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Preview shows what PlaceOrder would charge right now and which lines
// cannot currently be covered by stock.
func (s *CheckoutService) Preview(ctx context.Context, userID uuid.UUID) (*Preview, error) {
	rows, err := s.Repo.CartRows(ctx, userID)
	if err != nil {
		return nil, storageErr(err, "checkout preview")
	}

	p := &Preview{
		Lines:      toLines(rows),
		Totals:     computeTotals(rows, s.DeliveryCharge),
		OutOfStock: []string{},
	}
	for _, r := range rows {
		if r.Item.Quantity > r.Product.Stock {
			p.OutOfStock = append(p.OutOfStock, r.Product.Name)
		}
	}
	return p, nil
}

// PlaceOrder turns the user's cart into orders. Stock checks, stock
// decrements, order rows and clearing the cart happen in one transaction:
// either every line is ordered or nothing changes.
func (s *CheckoutService) PlaceOrder(ctx context.Context, userID uuid.UUID, req CheckoutRequest) (receipt *Receipt, err error) {
	l := logging.FromContext(ctx).With("svc", "checkout.place_order", "user_id", userID)
	start := time.Now()
	defer func() { metrics.ObserveCheckout(checkoutOutcome(receipt, err), start) }()

	req, err = normalizeCheckout(req)
	if err != nil {
		return nil, err
	}

	key := req.IdempotencyKey
	if key != "" && s.Idempotency != nil {
		scope := idempotencyScope + ":" + userID.String()
		if r, ok := s.replay(ctx, userID, scope, key); ok {
			return r, nil
		}

		locked, lerr := s.Idempotency.TryLock(ctx, scope, key)
		switch {
		case lerr != nil:
			l.Warn("idempotency_unavailable", "reason", "lock failed", "error", lerr)
		case !locked:
			if r, ok := s.replay(ctx, userID, scope, key); ok {
				return r, nil
			}
			return nil, fmt.Errorf("checkout with this idempotency key is in progress: %w", ErrConflict)
		default:
			defer s.settleKey(ctx, scope, key, &receipt, &err)
		}
	}

	var orders []models.Order
	for attempt := 1; attempt <= checkoutAttempts; attempt++ {
		orders, err = s.placeOnce(ctx, userID, req)
		if !errors.Is(err, ErrConflict) || attempt == checkoutAttempts {
			break
		}
		metrics.CheckoutRetries.Inc()
		l.Info("checkout_retry", "attempt", attempt, "error", err)
	}
	if err != nil {
		return nil, storageErr(err, "place order")
	}

	receipt = buildReceipt(orders)

	units := 0
	for _, o := range orders {
		units += o.Quantity
	}
	metrics.UnitsSold.Add(float64(units))

	publish(ctx, s.Events, events.TopicOrders, userID.String(), map[string]any{
		"type":         "order_placed",
		"userID":       userID,
		"checkoutID":   receipt.CheckoutID,
		"lines":        len(orders),
		"units":        units,
		"total":        receipt.Total,
		"deliveryTime": receipt.DeliveryTime,
	})
	l.Info("checkout_success", "checkout_id", receipt.CheckoutID, "lines", len(orders), "total", receipt.Total.String())
	return receipt, nil
}

func (s *CheckoutService) placeOnce(ctx context.Context, userID uuid.UUID, req CheckoutRequest) ([]models.Order, error) {
	var placed []models.Order

	err := s.Repo.InTx(ctx, func(tx *repo.GormRepo) error {
		rows, err := tx.CartRows(ctx, userID)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return ErrEmptyCart
		}

		ids := make([]uuid.UUID, 0, len(rows))
		for _, r := range rows {
			ids = append(ids, r.Item.ProductID)
		}
		locked, err := tx.LockProducts(ctx, ids)
		if err != nil {
			return err
		}

		// Products are locked before cart lines, the same order cart
		// mutations use. A cart that changed in between is retried.
		current, lines, err := tx.LockCart(ctx, userID)
		if err != nil {
			return err
		}
		if !sameLines(rows, current) {
			return fmt.Errorf("cart changed during checkout: %w", ErrConflict)
		}

		for _, r := range rows {
			p, ok := locked[r.Item.ProductID]
			if !ok {
				return fmt.Errorf("product %q disappeared during checkout: %w", r.Product.Name, ErrConflict)
			}
			if r.Item.Quantity > p.Stock {
				return &InsufficientStockError{
					ProductID:   p.ID,
					ProductName: p.Name,
					Requested:   r.Item.Quantity,
					Available:   p.Stock,
				}
			}
		}

		checkoutID := uuid.New()
		deliveryTime := s.now().Add(s.FulfillmentWindow).Format(DeliveryTimeLayout)

		orders := make([]models.Order, 0, len(rows))
		for _, r := range rows {
			p := locked[r.Item.ProductID]

			ok, err := tx.DecrementStock(ctx, p.ID, r.Item.Quantity)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("stock of %q changed during checkout: %w", p.Name, ErrConflict)
			}

			orders = append(orders, models.Order{
				CheckoutID:     checkoutID,
				UserID:         userID,
				ProductID:      p.ID,
				ProductName:    p.Name,
				Price:          p.Price,
				Quantity:       r.Item.Quantity,
				Address:        req.Address,
				Phone:          req.Phone,
				PaymentMethod:  req.PaymentMethod,
				DeliveryCharge: s.DeliveryCharge,
				DeliveryTime:   deliveryTime,
				Status:         models.StatusProcessing,
			})
		}

		if err := s.ledger().in(tx).Append(ctx, orders...); err != nil {
			return err
		}

		// Lines inserted after the lock are not ordered and must not be
		// deleted with the rest.
		cleared, err := tx.ClearCart(ctx, userID)
		if err != nil {
			return err
		}
		if cleared != int64(lines) {
			return fmt.Errorf("cart changed during checkout: %w", ErrConflict)
		}

		placed = orders
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// settleKey runs once a keyed checkout has finished. Success remembers the
// checkout id; failure, or a failure to remember, frees the key so the client
// can retry. The store calls outlive a cancelled request.
func (s *CheckoutService) settleKey(ctx context.Context, scope, key string, receipt **Receipt, err *error) {
	l := logging.FromContext(ctx)
	ctx = context.WithoutCancel(ctx)

	if *err == nil && *receipt != nil {
		merr := s.Idempotency.Remember(ctx, scope, key, (*receipt).CheckoutID.String())
		if merr == nil {
			return
		}
		l.Warn("idempotency_remember_failed", "checkout_id", (*receipt).CheckoutID, "error", merr)
	}
	if rerr := s.Idempotency.Release(ctx, scope, key); rerr != nil {
		l.Warn("idempotency_release_failed", "error", rerr)
	}
}

func (s *CheckoutService) ledger() *OrderService {
	if s.Orders != nil {
		return s.Orders
	}
	return &OrderService{Repo: s.Repo, Events: s.Events}
}

func sameLines(a, b []repo.CartRow) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Item.ID != b[i].Item.ID || a[i].Item.Quantity != b[i].Item.Quantity {
			return false
		}
	}
	return true
}

func (s *CheckoutService) replay(ctx context.Context, userID uuid.UUID, scope, key string) (*Receipt, bool) {
	l := logging.FromContext(ctx)

	val, ok, err := s.Idempotency.Recall(ctx, scope, key)
	if err != nil {
		l.Warn("idempotency_unavailable", "reason", "recall failed", "error", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	checkoutID, err := uuid.Parse(val)
	if err != nil {
		l.Warn("idempotency_corrupt_value", "value", val, "error", err)
		return nil, false
	}
	orders, err := s.ledger().ListByCheckout(ctx, userID, checkoutID)
	if err != nil {
		l.Warn("idempotency_replay_failed", "checkout_id", checkoutID, "error", err)
		return nil, false
	}

	r := buildReceipt(orders)
	r.Replayed = true
	return r, true
}

func buildReceipt(orders []models.Order) *Receipt {
	r := &Receipt{
		Orders:   orders,
		Subtotal: decimal.Zero,
	}
	for _, o := range orders {
		r.Subtotal = r.Subtotal.Add(o.LineTotal())
	}
	if len(orders) > 0 {
		first := orders[0]
		r.CheckoutID = first.CheckoutID
		r.DeliveryCharge = first.DeliveryCharge
		r.DeliveryTime = first.DeliveryTime
		r.PaymentMethod = first.PaymentMethod
	}
	r.Total = r.Subtotal.Add(r.DeliveryCharge)
	return r
}

func normalizeCheckout(req CheckoutRequest) (CheckoutRequest, error) {
	req.Address = strings.TrimSpace(req.Address)
	req.Phone = strings.TrimSpace(req.Phone)
	req.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	req.IdempotencyKey = strings.TrimSpace(req.IdempotencyKey)

	if req.Address == "" {
		return req, fmt.Errorf("address is required: %w", ErrValidation)
	}
	if req.Phone == "" {
		return req, fmt.Errorf("phone is required: %w", ErrValidation)
	}
	if !validPhone(req.Phone) {
		return req, fmt.Errorf("phone must contain 10 to 15 digits: %w", ErrValidation)
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = models.DefaultPaymentMethod
	}
	return req, nil
}

func validPhone(phone string) bool {
	digits := 0
	for _, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == ' ' || r == '+' || r == '-' || r == '(' || r == ')':
		default:
			return false
		}
	}
	return digits >= 10 && digits <= 15
}

func checkoutOutcome(r *Receipt, err error) string {
	switch {
	case err == nil && r != nil && r.Replayed:
		return metrics.OutcomeReplayed
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrEmptyCart):
		return metrics.OutcomeEmptyCart
	case errors.Is(err, ErrInsufficientStock):
		return metrics.OutcomeInsufficient
	case errors.Is(err, ErrValidation):
		return metrics.OutcomeValidation
	case errors.Is(err, ErrConflict):
		return metrics.OutcomeConflict
	default:
		return metrics.OutcomeError
	}
}
