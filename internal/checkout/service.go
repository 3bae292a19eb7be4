package checkout

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"EMart/internal/cart"
)

const (
	numberPrefix   = "EMT-"
	numberLen      = 9
	deliveryWindow = 5 * 24 * time.Hour
)

var ErrEmptyCart = errors.New("cart is empty")

// ContactError lists the contact fields that failed validation.
type ContactError struct {
	Fields []string
}

func (e *ContactError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInvalidContact, strings.Join(e.Fields, ", "))
}

func (e *ContactError) Unwrap() error { return ErrInvalidContact }

// Service turns the current cart into a stored order. No payment is taken.
type Service struct {
	Cart      *cart.Cart
	Store     Store
	Publisher Publisher
	Log       *zap.Logger
	Now       func() time.Time
}

func (s *Service) Quote() Summary {
	return Summarize(s.Cart.TotalPrice())
}

// PlaceOrder stores an order for the cart contents and takes the ordered
// units out of the cart. Items added while the order is being placed stay
// in the cart. If only the cart update fails to persist, the order is returned together
// with an error wrapping storage.ErrPersistence.
func (s *Service) PlaceOrder(ctx context.Context, c Contact) (Order, error) {
	c.normalize()
	if missing := c.missing(); len(missing) > 0 {
		return Order{}, &ContactError{Fields: missing}
	}

	lines := s.Cart.Items()
	if len(lines) == 0 {
		return Order{}, ErrEmptyCart
	}

	items := make([]Item, 0, len(lines))
	var subtotal float64
	for _, li := range lines {
		items = append(items, Item{
			ProductID: li.Product.ID,
			Title:     li.Product.Title,
			Price:     li.Product.Price,
			Qty:       li.Quantity,
		})
		subtotal += li.Product.Price * float64(li.Quantity)
	}

	now := s.now().UTC()
	o := Order{
		ID:                "o_" + uuid.NewString(),
		Number:            newOrderNumber(),
		Contact:           c,
		Items:             items,
		Summary:           Summarize(subtotal),
		Status:            StatusPlaced,
		CreatedAt:         now,
		EstimatedDelivery: now.Add(deliveryWindow),
	}

	if err := s.Store.Create(ctx, o); err != nil {
		return Order{}, fmt.Errorf("store order: %w", err)
	}

	s.publish(ctx, o)

	if err := s.Cart.Deduct(ctx, lines); err != nil {
		return o, err
	}
	return o, nil
}

func (s *Service) Order(ctx context.Context, id string) (Order, bool, error) {
	return s.Store.Get(ctx, id)
}

func (s *Service) publish(ctx context.Context, o Order) {
	if s.Publisher == nil {
		return
	}

	qty := 0
	for _, it := range o.Items {
		qty += it.Qty
	}

	err := s.Publisher.PublishOrderPlaced(ctx, OrderPlaced{
		Type:       EventOrderPlaced,
		OrderID:    o.ID,
		Number:     o.Number,
		Email:      o.Contact.Email,
		ItemCount:  qty,
		Total:      o.Summary.Total,
		OccurredAt: o.CreatedAt,
	})
	if err != nil && s.Log != nil {
		s.Log.Warn("publish order event failed", zap.Error(err), zap.String("order_id", o.ID))
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// newOrderNumber returns EMT- followed by 9 uppercase alphanumerics.
func newOrderNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return numberPrefix + strings.ToUpper(id[:numberLen])
}
