package checkout

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"
)

const StatusPlaced = "PLACED"

type Item struct {
	ProductID int     `json:"product_id"`
	Title     string  `json:"title"`
	Price     float64 `json:"price"`
	Qty       int     `json:"qty"`
}

type Contact struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Address   string `json:"address"`
	City      string `json:"city"`
	ZipCode   string `json:"zip_code"`
}

type Order struct {
	ID                string    `json:"id"`
	Number            string    `json:"number"`
	Contact           Contact   `json:"contact"`
	Items             []Item    `json:"items"`
	Summary           Summary   `json:"summary"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
	EstimatedDelivery time.Time `json:"estimated_delivery"`
}

type Store interface {
	Create(ctx context.Context, o Order) error
	Get(ctx context.Context, id string) (Order, bool, error)
	Ping(ctx context.Context) error
}

var ErrInvalidContact = errors.New("invalid contact details")

func (c *Contact) normalize() {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Address = strings.TrimSpace(c.Address)
	c.City = strings.TrimSpace(c.City)
	c.ZipCode = strings.TrimSpace(c.ZipCode)
}

// missing lists the names of empty or unusable fields.
func (c Contact) missing() []string {
	var out []string
	if _, err := mail.ParseAddress(c.Email); c.Email == "" || err != nil {
		out = append(out, "email")
	}
	for _, f := range []struct{ name, v string }{
		{"first_name", c.FirstName},
		{"last_name", c.LastName},
		{"address", c.Address},
		{"city", c.City},
		{"zip_code", c.ZipCode},
	} {
		if f.v == "" {
			out = append(out, f.name)
		}
	}
	return out
}
