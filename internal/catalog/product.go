package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

type Product struct {
	ID                 int      `json:"id"`
	Title              string   `json:"title"`
	Description        string   `json:"description"`
	Category           string   `json:"category"`
	Brand              string   `json:"brand,omitempty"`
	Price              float64  `json:"price"`
	DiscountPercentage float64  `json:"discountPercentage,omitempty"`
	Rating             Rating   `json:"rating"`
	Stock              int      `json:"stock,omitempty"`
	Image              string   `json:"image,omitempty"`
	Thumbnail          string   `json:"thumbnail,omitempty"`
	Tags               []string `json:"tags,omitempty"`
}

// Rating is the canonical rating shape. The bundled data carries two
// variants: a bare score (3.9) and a detailed object ({"rate":3.9,"count":120}).
// A bare score decodes to Count == 0; encoding always emits the object form.
type Rating struct {
	Rate  float64 `json:"rate"`
	Count int     `json:"count"`
}

var errBadRating = errors.New("rating must be a number or {rate, count} object")

func (r *Rating) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*r = Rating{}
		return nil
	}

	if b[0] == '{' {
		type detailed Rating
		var d detailed
		if err := json.Unmarshal(b, &d); err != nil {
			return fmt.Errorf("%w: %v", errBadRating, err)
		}
		*r = Rating(d)
		return nil
	}

	var score float64
	if err := json.Unmarshal(b, &score); err != nil {
		return fmt.Errorf("%w: %v", errBadRating, err)
	}
	*r = Rating{Rate: score}
	return nil
}

// Detailed reports whether a review count is known.
func (r Rating) Detailed() bool { return r.Count > 0 }

// Cart is a pre-built cart record from the bundled cart data.
type Cart struct {
	ID              int           `json:"id"`
	UserID          int           `json:"userId"`
	Products        []CartProduct `json:"products"`
	Total           float64       `json:"total"`
	DiscountedTotal float64       `json:"discountedTotal"`
	TotalProducts   int           `json:"totalProducts"`
	TotalQuantity   int           `json:"totalQuantity"`
}

type CartProduct struct {
	ID                 int     `json:"id"`
	Title              string  `json:"title"`
	Price              float64 `json:"price"`
	Quantity           int     `json:"quantity"`
	Total              float64 `json:"total"`
	DiscountPercentage float64 `json:"discountPercentage"`
	DiscountedTotal    float64 `json:"discountedTotal"`
	Thumbnail          string  `json:"thumbnail,omitempty"`
}

// DiscountedPrice is the list price reduced by the product's discount.
func DiscountedPrice(p Product) float64 {
	return p.Price - (p.Price*p.DiscountPercentage)/100
}

func (p Product) validate() error {
	switch {
	case p.ID <= 0:
		return fmt.Errorf("product id %d: must be positive", p.ID)
	case p.Price < 0:
		return fmt.Errorf("product %d: negative price", p.ID)
	case p.DiscountPercentage < 0 || p.DiscountPercentage > 100:
		return fmt.Errorf("product %d: discount %.2f out of range", p.ID, p.DiscountPercentage)
	case p.Stock < 0:
		return fmt.Errorf("product %d: negative stock", p.ID)
	}
	return nil
}
