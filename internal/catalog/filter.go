package catalog

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// FilterSort values accepted by Query.Sort. Empty keeps load order.
const (
	SortPriceAsc  = "price-asc"
	SortPriceDesc = "price-desc"
	SortRating    = "rating"
)

// Query mirrors the product listing controls: category, free text, price
// range and ordering. A zero MaxPrice leaves the upper bound open.
type Query struct {
	Category string
	Search   string
	MinPrice float64
	MaxPrice float64
	Sort     string
}

func (c *Catalog) Filter(q Query) ([]Product, error) {
	search := strings.ToLower(q.Search)

	out := c.where(func(p Product) bool {
		if q.Category != "" && q.Category != "all" && p.Category != q.Category {
			return false
		}
		if search != "" && !containsFold(p.Title, search) && !containsFold(p.Description, search) {
			return false
		}
		if p.Price < q.MinPrice {
			return false
		}
		return q.MaxPrice <= 0 || p.Price <= q.MaxPrice
	})

	switch q.Sort {
	case "":
	case SortPriceAsc:
		slices.SortStableFunc(out, func(a, b Product) int { return cmp.Compare(a.Price, b.Price) })
	case SortPriceDesc:
		slices.SortStableFunc(out, func(a, b Product) int { return cmp.Compare(b.Price, a.Price) })
	case SortRating:
		slices.SortStableFunc(out, func(a, b Product) int { return cmp.Compare(b.Rating.Rate, a.Rating.Rate) })
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidSort, q.Sort)
	}
	return out, nil
}
