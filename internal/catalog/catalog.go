package catalog

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

var (
	ErrNotFound       = errors.New("product not found")
	ErrCartNotFound   = errors.New("cart not found")
	ErrInvalidPage    = errors.New("page and limit must be positive")
	ErrInvalidSort    = errors.New("unknown sort order")
	ErrInvalidCatalog = errors.New("invalid catalog")
)

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

// dealThreshold is the minimum discount percentage for the deals listing.
const dealThreshold = 10

// Catalog is the read-only product collection. It is built once and never
// mutated, so it is safe for concurrent use without locking.
type Catalog struct {
	products []Product
	byID     map[int]int
	carts    []Cart
}

func New(products []Product, carts []Cart) (*Catalog, error) {
	c := &Catalog{
		products: make([]Product, len(products)),
		byID:     make(map[int]int, len(products)),
		carts:    slices.Clone(carts),
	}

	for i, p := range products {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product id %d", ErrInvalidCatalog, p.ID)
		}
		p.Tags = slices.Clone(p.Tags)
		c.products[i] = p
		c.byID[p.ID] = i
	}

	return c, nil
}

func (c *Catalog) Len() int { return len(c.products) }

func (c *Catalog) All() []Product {
	return slices.Clone(c.products)
}

func (c *Catalog) Get(id int) (Product, error) {
	i, ok := c.byID[id]
	if !ok {
		return Product{}, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	return c.products[i], nil
}

func (c *Catalog) ByCategory(category string) []Product {
	return c.where(func(p Product) bool {
		return strings.EqualFold(p.Category, category)
	})
}

// Categories lists distinct categories in first-seen order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, p := range c.products {
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		out = append(out, p.Category)
	}
	return out
}

func (c *Catalog) Search(query string) []Product {
	q := strings.ToLower(query)
	return c.where(func(p Product) bool {
		if containsFold(p.Title, q) || containsFold(p.Description, q) || containsFold(p.Category, q) {
			return true
		}
		return slices.ContainsFunc(p.Tags, func(tag string) bool { return containsFold(tag, q) })
	})
}

type Page struct {
	Products   []Product `json:"products"`
	Total      int       `json:"total"`
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
}

func (c *Catalog) Paginated(page, limit int) (Page, error) {
	if page < 1 || limit < 1 {
		return Page{}, ErrInvalidPage
	}

	total := len(c.products)
	pages := total / limit
	if total%limit != 0 {
		pages++
	}
	out := Page{
		Products:   []Product{},
		Total:      total,
		Page:       page,
		TotalPages: pages,
	}

	// Past the last page. Below it, (page-1)*limit < total.
	if page-1 >= pages {
		return out, nil
	}
	start := (page - 1) * limit
	end := start + min(limit, total-start)
	out.Products = slices.Clone(c.products[start:end])
	return out, nil
}

// Sorted orders by price; products with equal prices keep load order.
func (c *Catalog) Sorted(order SortOrder) ([]Product, error) {
	out := c.All()
	switch order {
	case Asc:
		slices.SortStableFunc(out, func(a, b Product) int { return cmp.Compare(a.Price, b.Price) })
	case Desc:
		slices.SortStableFunc(out, func(a, b Product) int { return cmp.Compare(b.Price, a.Price) })
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSort, order)
	}
	return out, nil
}

func (c *Catalog) Limited(n int) []Product {
	if n <= 0 {
		return []Product{}
	}
	return slices.Clone(c.products[:min(n, len(c.products))])
}

// Deals lists products discounted by more than 10%, largest discount first.
func (c *Catalog) Deals() []Product {
	out := c.where(func(p Product) bool { return p.DiscountPercentage > dealThreshold })
	slices.SortStableFunc(out, func(a, b Product) int {
		return cmp.Compare(b.DiscountPercentage, a.DiscountPercentage)
	})
	return out
}

// PriceBounds returns the catalog's price range widened to whole units.
func (c *Catalog) PriceBounds() (lo, hi float64) {
	if len(c.products) == 0 {
		return 0, 0
	}
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, p := range c.products {
		lo = min(lo, p.Price)
		hi = max(hi, p.Price)
	}
	return math.Floor(lo), math.Ceil(hi)
}

func (c *Catalog) Carts() []Cart {
	return slices.Clone(c.carts)
}

func (c *Catalog) Cart(id int) (Cart, error) {
	for _, ct := range c.carts {
		if ct.ID == id {
			return ct, nil
		}
	}
	return Cart{}, fmt.Errorf("%w: id %d", ErrCartNotFound, id)
}

func (c *Catalog) CartsByUser(userID int) []Cart {
	out := make([]Cart, 0)
	for _, ct := range c.carts {
		if ct.UserID == userID {
			out = append(out, ct)
		}
	}
	return out
}

func (c *Catalog) where(keep func(Product) bool) []Product {
	out := make([]Product, 0)
	for _, p := range c.products {
		if keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func containsFold(s, lowerSubstr string) bool {
	return strings.Contains(strings.ToLower(s), lowerSubstr)
}
