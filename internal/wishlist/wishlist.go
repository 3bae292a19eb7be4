// Package wishlist is the saved-products state container. It follows the
// same mutate, persist, notify sequence as the cart.
package wishlist

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"EMart/internal/catalog"
	"EMart/internal/state"
	"EMart/internal/storage"
)

const (
	StorageKey   = "emart-wishlist"
	stateVersion = 0
)

var ErrNotSaved = errors.New("product not in wishlist")

type persisted struct {
	Items []catalog.Product `json:"items"`
}

// Wishlist keeps products in the order they were saved; a product id
// appears at most once.
type Wishlist struct {
	mu    sync.Mutex
	items []catalog.Product

	store storage.Storage
	log   *zap.Logger
	subs  state.Subscribers[[]catalog.Product]
}

func New(ctx context.Context, store storage.Storage, log *zap.Logger) (*Wishlist, error) {
	if log == nil {
		log = zap.NewNop()
	}
	wl := &Wishlist{items: []catalog.Product{}, store: store, log: log}

	var p persisted
	found, err := state.Load(ctx, store, StorageKey, stateVersion, &p)
	if err == nil && found {
		err = validate(p.Items)
	}

	switch {
	case err == nil:
		if found && p.Items != nil {
			wl.items = p.Items
		}
	case errors.Is(err, state.ErrMalformed):
		log.Warn("discarding unreadable wishlist state", zap.Error(err))
		if derr := store.Delete(ctx, StorageKey); derr != nil {
			log.Warn("delete wishlist state failed", zap.Error(derr))
		}
	default:
		return nil, err
	}
	return wl, nil
}

func validate(items []catalog.Product) error {
	seen := make(map[int]struct{}, len(items))
	for _, p := range items {
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate product %d", state.ErrMalformed, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}

// AddItem saves p. Saving an already saved product changes nothing.
func (wl *Wishlist) AddItem(ctx context.Context, p catalog.Product) error {
	return wl.commit(ctx, func(items []catalog.Product) []catalog.Product {
		if indexOf(items, p.ID) >= 0 {
			return items
		}
		return append(items, p)
	})
}

func (wl *Wishlist) RemoveItem(ctx context.Context, productID int) error {
	return wl.commit(ctx, func(items []catalog.Product) []catalog.Product {
		return slices.DeleteFunc(items, func(p catalog.Product) bool { return p.ID == productID })
	})
}

func (wl *Wishlist) Contains(productID int) bool {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	return indexOf(wl.items, productID) >= 0
}

func (wl *Wishlist) Clear(ctx context.Context) error {
	return wl.commit(ctx, func([]catalog.Product) []catalog.Product { return []catalog.Product{} })
}

func (wl *Wishlist) Items() []catalog.Product {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	return slices.Clone(wl.items)
}

func (wl *Wishlist) Len() int {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	return len(wl.items)
}

func (wl *Wishlist) Subscribe(fn func([]catalog.Product)) (unsubscribe func()) {
	return wl.subs.Subscribe(fn)
}

// ItemAdder is the cart operation MoveToCart needs.
type ItemAdder interface {
	AddItem(ctx context.Context, p catalog.Product, quantity int) error
}

// MoveToCart adds one unit of a saved product to the cart and then drops it
// from the wishlist. If the cart add fails outright the wishlist is left as is.
func (wl *Wishlist) MoveToCart(ctx context.Context, productID int, cart ItemAdder) error {
	wl.mu.Lock()
	i := indexOf(wl.items, productID)
	var p catalog.Product
	if i >= 0 {
		p = wl.items[i]
	}
	wl.mu.Unlock()

	if i < 0 {
		return fmt.Errorf("%w: %d", ErrNotSaved, productID)
	}

	cartErr := cart.AddItem(ctx, p, 1)
	if cartErr != nil && !errors.Is(cartErr, storage.ErrPersistence) {
		return cartErr
	}
	return errors.Join(cartErr, wl.RemoveItem(ctx, productID))
}

func (wl *Wishlist) commit(ctx context.Context, mutate func([]catalog.Product) []catalog.Product) error {
	wl.mu.Lock()
	wl.items = mutate(wl.items)
	snapshot := slices.Clone(wl.items)
	if snapshot == nil {
		snapshot = []catalog.Product{}
	}
	err := state.Save(ctx, wl.store, StorageKey, stateVersion, persisted{Items: snapshot})
	wl.mu.Unlock()

	if err != nil {
		wl.log.Warn("wishlist state not persisted", zap.Error(err))
	}
	wl.subs.Notify(snapshot)
	return err
}

func indexOf(items []catalog.Product, productID int) int {
	return slices.IndexFunc(items, func(p catalog.Product) bool { return p.ID == productID })
}
