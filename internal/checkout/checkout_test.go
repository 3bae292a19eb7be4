package checkout

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"EMart/internal/cart"
	"EMart/internal/catalog"
	"EMart/internal/storage"
)

func TestSummarize(t *testing.T) {
	cases := []struct {
		name     string
		subtotal float64
		shipping float64
		tax      float64
		total    float64
	}{
		{"below threshold", 35, 9.99, 2.80, 47.79},
		{"above threshold", 60, 0, 4.80, 64.80},
		{"at threshold pays shipping", 50, 9.99, 4.00, 63.99},
		{"empty", 0, 9.99, 0, 9.99},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Summarize(tc.subtotal)
			assert.InDelta(t, tc.subtotal, s.Subtotal, 1e-9)
			assert.InDelta(t, tc.shipping, s.Shipping, 1e-9)
			assert.InDelta(t, tc.tax, s.Tax, 1e-9)
			assert.InDelta(t, tc.total, s.Total, 1e-9)
		})
	}
}

func TestFreeShippingRemaining(t *testing.T) {
	assert.InDelta(t, 15.0, Summarize(35).FreeShippingRemaining(), 1e-9)
	assert.Zero(t, Summarize(60).FreeShippingRemaining())
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []OrderPlaced
	err    error
}

func (p *recordingPublisher) PublishOrderPlaced(_ context.Context, e OrderPlaced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

var fixedNow = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func validContact() Contact {
	return Contact{
		Email:     "  Jane@Example.com ",
		FirstName: "Jane",
		LastName:  "Doe",
		Address:   "1 Main St",
		City:      "Springfield",
		ZipCode:   "12345",
	}
}

func newService(t *testing.T) (*Service, *recordingPublisher) {
	t.Helper()
	c, err := cart.New(context.Background(), storage.NewMemStorage(0), zap.NewNop())
	require.NoError(t, err)

	pub := &recordingPublisher{}
	return &Service{
		Cart:      c,
		Store:     NewMemStore(),
		Publisher: pub,
		Log:       zap.NewNop(),
		Now:       func() time.Time { return fixedNow },
	}, pub
}

func fillCart(t *testing.T, c *cart.Cart) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, c.AddItem(ctx, catalog.Product{ID: 1, Title: "A", Price: 10}, 2))
	require.NoError(t, c.AddItem(ctx, catalog.Product{ID: 2, Title: "B", Price: 5}, 3))
}

func TestPlaceOrder(t *testing.T) {
	ctx := context.Background()
	svc, pub := newService(t)
	fillCart(t, svc.Cart)

	o, err := svc.PlaceOrder(ctx, validContact())
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^EMT-[0-9A-Z]{9}$`), o.Number)
	assert.Equal(t, StatusPlaced, o.Status)
	assert.Equal(t, "jane@example.com", o.Contact.Email)
	assert.Equal(t, fixedNow, o.CreatedAt)
	assert.Equal(t, fixedNow.AddDate(0, 0, 5), o.EstimatedDelivery)
	assert.Equal(t, []Item{
		{ProductID: 1, Title: "A", Price: 10, Qty: 2},
		{ProductID: 2, Title: "B", Price: 5, Qty: 3},
	}, o.Items)
	assert.InDelta(t, 47.79, o.Summary.Total, 1e-9)

	assert.Zero(t, svc.Cart.Len(), "cart emptied")

	got, found, err := svc.Order(ctx, o.ID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, o.Number, got.Number)

	require.Len(t, pub.events, 1)
	assert.Equal(t, EventOrderPlaced, pub.events[0].Type)
	assert.Equal(t, o.ID, pub.events[0].OrderID)
	assert.Equal(t, 5, pub.events[0].ItemCount)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	svc, pub := newService(t)

	_, err := svc.PlaceOrder(context.Background(), validContact())
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, pub.events)
}

func TestPlaceOrder_InvalidContact(t *testing.T) {
	svc, _ := newService(t)
	fillCart(t, svc.Cart)

	c := validContact()
	c.Email = "not-an-email"
	c.City = "   "

	_, err := svc.PlaceOrder(context.Background(), c)
	require.ErrorIs(t, err, ErrInvalidContact)

	var ce *ContactError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, []string{"email", "city"}, ce.Fields)
	assert.Equal(t, 2, svc.Cart.Len(), "cart untouched")
}

func TestPlaceOrder_PublishFailureDoesNotFail(t *testing.T) {
	svc, pub := newService(t)
	pub.err = errors.New("broker down")
	fillCart(t, svc.Cart)

	o, err := svc.PlaceOrder(context.Background(), validContact())
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
}

type failingStore struct{ MemStore }

func (*failingStore) Create(context.Context, Order) error { return errors.New("db down") }

func TestPlaceOrder_StoreFailureKeepsCart(t *testing.T) {
	svc, pub := newService(t)
	svc.Store = &failingStore{}
	fillCart(t, svc.Cart)

	_, err := svc.PlaceOrder(context.Background(), validContact())
	require.Error(t, err)
	assert.Equal(t, 2, svc.Cart.Len())
	assert.Empty(t, pub.events)
}

// addingStore puts another product in the cart while the order is stored.
type addingStore struct {
	*MemStore
	cart *cart.Cart
	t    *testing.T
}

func (s *addingStore) Create(ctx context.Context, o Order) error {
	require.NoError(s.t, s.cart.AddItem(ctx, catalog.Product{ID: 3, Title: "C", Price: 2}, 1))
	return s.MemStore.Create(ctx, o)
}

func TestPlaceOrder_KeepsItemsAddedDuringPlacement(t *testing.T) {
	svc, _ := newService(t)
	svc.Store = &addingStore{MemStore: NewMemStore(), cart: svc.Cart, t: t}
	fillCart(t, svc.Cart)

	o, err := svc.PlaceOrder(context.Background(), validContact())
	require.NoError(t, err)
	assert.Len(t, o.Items, 2)

	items := svc.Cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Product.ID)
	assert.Equal(t, 1, items[0].Quantity)
}

func TestOrderNumbersDiffer(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		n := newOrderNumber()
		assert.False(t, seen[n], "duplicate %s", n)
		seen[n] = true
	}
}
