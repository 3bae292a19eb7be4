package checkout

const (
	FreeShippingThreshold = 50.0
	ShippingFee           = 9.99
	TaxRate               = 0.08
)

// Summary is the order total breakdown shown on the cart and checkout pages.
// Values are not rounded; formatting to cents is up to the caller.
type Summary struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// Summarize derives shipping, tax and total from a cart subtotal. Shipping is
// free strictly above the threshold.
func Summarize(subtotal float64) Summary {
	shipping := ShippingFee
	if subtotal > FreeShippingThreshold {
		shipping = 0
	}
	tax := subtotal * TaxRate

	return Summary{
		Subtotal: subtotal,
		Shipping: shipping,
		Tax:      tax,
		Total:    subtotal + shipping + tax,
	}
}

// FreeShippingRemaining is how much more must be spent to drop the
// shipping fee, or 0 when shipping is already free.
func (s Summary) FreeShippingRemaining() float64 {
	if s.Shipping == 0 {
		return 0
	}
	return FreeShippingThreshold - s.Subtotal
}
