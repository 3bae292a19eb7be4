// Package cart is the shopping cart state container. Every mutation is
// applied in memory, written to durable storage, and then announced to
// subscribers before the call returns.
package cart

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"EMart/internal/catalog"
	"EMart/internal/state"
	"EMart/internal/storage"
)

const (
	StorageKey   = "emart-cart"
	stateVersion = 0
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

type LineItem struct {
	ID       string          `json:"id"`
	Product  catalog.Product `json:"product"`
	Quantity int             `json:"quantity"`
}

type persisted struct {
	Items []LineItem `json:"items"`
}

type Cart struct {
	mu    sync.Mutex
	items []LineItem

	store storage.Storage
	log   *zap.Logger
	subs  state.Subscribers[[]LineItem]
	newID func() string
}

type Option func(*Cart)

// WithIDFunc replaces the line item id generator.
func WithIDFunc(fn func() string) Option {
	return func(c *Cart) { c.newID = fn }
}

// New restores the cart from store. A missing entry yields an empty cart; an
// unreadable one is discarded.
func New(ctx context.Context, store storage.Storage, log *zap.Logger, opts ...Option) (*Cart, error) {
	if log == nil {
		log = zap.NewNop()
	}

	c := &Cart{
		items: []LineItem{},
		store: store,
		log:   log,
		newID: func() string { return "li_" + uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.restore(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cart) restore(ctx context.Context) error {
	var p persisted
	found, err := state.Load(ctx, c.store, StorageKey, stateVersion, &p)
	if err == nil && found {
		err = validate(p.Items)
	}

	switch {
	case err == nil:
		if found && p.Items != nil {
			c.items = p.Items
		}
		return nil
	case errors.Is(err, state.ErrMalformed):
		c.log.Warn("discarding unreadable cart state", zap.Error(err))
		if derr := c.store.Delete(ctx, StorageKey); derr != nil {
			c.log.Warn("delete cart state failed", zap.Error(derr))
		}
		return nil
	default:
		return err
	}
}

func validate(items []LineItem) error {
	seen := make(map[int]struct{}, len(items))
	for _, it := range items {
		if it.ID == "" || it.Quantity <= 0 {
			return fmt.Errorf("%w: bad line item for product %d", state.ErrMalformed, it.Product.ID)
		}
		if _, dup := seen[it.Product.ID]; dup {
			return fmt.Errorf("%w: duplicate product %d", state.ErrMalformed, it.Product.ID)
		}
		seen[it.Product.ID] = struct{}{}
	}
	return nil
}

// AddItem adds quantity units of p, merging into an existing line item.
func (c *Cart) AddItem(ctx context.Context, p catalog.Product, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, quantity)
	}

	return c.commit(ctx, func(items []LineItem) ([]LineItem, error) {
		if i := indexOf(items, p.ID); i >= 0 {
			if items[i].Quantity > math.MaxInt-quantity {
				return nil, fmt.Errorf("%w: product %d would exceed %d units", ErrInvalidQuantity, p.ID, math.MaxInt)
			}
			items[i].Quantity += quantity
			return items, nil
		}
		return append(items, LineItem{ID: c.newID(), Product: p, Quantity: quantity}), nil
	})
}

func (c *Cart) RemoveItem(ctx context.Context, productID int) error {
	return c.commit(ctx, func(items []LineItem) ([]LineItem, error) {
		return slices.DeleteFunc(items, func(it LineItem) bool { return it.Product.ID == productID }), nil
	})
}

// UpdateQuantity sets the absolute quantity. Non-positive values remove the
// line item.
func (c *Cart) UpdateQuantity(ctx context.Context, productID, quantity int) error {
	if quantity <= 0 {
		return c.RemoveItem(ctx, productID)
	}

	return c.commit(ctx, func(items []LineItem) ([]LineItem, error) {
		if i := indexOf(items, productID); i >= 0 {
			items[i].Quantity = quantity
		}
		return items, nil
	})
}

func (c *Cart) Clear(ctx context.Context) error {
	return c.commit(ctx, func([]LineItem) ([]LineItem, error) { return []LineItem{}, nil })
}

// Deduct takes the given quantities back out of the cart, dropping line
// items that reach zero. Units added after lines were read stay in the cart.
func (c *Cart) Deduct(ctx context.Context, lines []LineItem) error {
	return c.commit(ctx, func(items []LineItem) ([]LineItem, error) {
		for _, l := range lines {
			if i := indexOf(items, l.Product.ID); i >= 0 {
				items[i].Quantity -= l.Quantity
			}
		}
		return slices.DeleteFunc(items, func(it LineItem) bool { return it.Quantity <= 0 }), nil
	})
}

func (c *Cart) Items() []LineItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.items)
}

func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *Cart) TotalItems() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := 0
	for _, it := range c.items {
		total += it.Quantity
	}
	return total
}

// TotalPrice is the unrounded sum of price * quantity.
func (c *Cart) TotalPrice() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var total float64
	for _, it := range c.items {
		total += it.Product.Price * float64(it.Quantity)
	}
	return total
}

// Subscribe registers fn to receive the item list after every mutation.
// fn must not modify the slice.
func (c *Cart) Subscribe(fn func([]LineItem)) (unsubscribe func()) {
	return c.subs.Subscribe(fn)
}

// commit applies mutate, persists the result and notifies subscribers. A
// persistence error is returned but the in-memory change stands. If mutate
// fails nothing is changed.
func (c *Cart) commit(ctx context.Context, mutate func([]LineItem) ([]LineItem, error)) error {
	c.mu.Lock()
	next, err := mutate(slices.Clone(c.items))
	if err != nil {
		c.mu.Unlock()
		return err
	}
	c.items = next
	snapshot := slices.Clone(c.items)
	if snapshot == nil {
		snapshot = []LineItem{}
	}
	err = state.Save(ctx, c.store, StorageKey, stateVersion, persisted{Items: snapshot})
	c.mu.Unlock()

	if err != nil {
		c.log.Warn("cart state not persisted", zap.Error(err))
	}
	c.subs.Notify(snapshot)
	return err
}

func indexOf(items []LineItem, productID int) int {
	return slices.IndexFunc(items, func(it LineItem) bool { return it.Product.ID == productID })
}
