package catalog

import (
	"context"
	"database/sql"
	"time"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
)

// PostgresSource reads products from the products/product_tags tables.
// Cart records have no table and are taken from Carts.
type PostgresSource struct {
	db        *sql.DB
	cartsFrom Source
}

func NewPostgresSource(db *sql.DB, carts Source) *PostgresSource {
	return &PostgresSource{db: db, cartsFrom: carts}
}

func (s *PostgresSource) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return s.db.PingContext(ctx)
	})
}

func (s *PostgresSource) Products(ctx context.Context) ([]Product, error) {
	var out []Product

	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, title, description, category, COALESCE(brand, ''), price,
			       discount_percentage, rating_rate, rating_count, stock,
			       COALESCE(image, ''), COALESCE(thumbnail, '')
			FROM products
			ORDER BY position ASC, id ASC
		`)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Product, 0, 32)
		for rows.Next() {
			var p Product
			if err := rows.Scan(
				&p.ID, &p.Title, &p.Description, &p.Category, &p.Brand, &p.Price,
				&p.DiscountPercentage, &p.Rating.Rate, &p.Rating.Count, &p.Stock,
				&p.Image, &p.Thumbnail,
			); err != nil {
				return err
			}
			out = append(out, p)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		return s.attachTags(ctx, out)
	})

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresSource) attachTags(ctx context.Context, products []Product) error {
	idx := make(map[int]int, len(products))
	for i, p := range products {
		idx[p.ID] = i
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, tag
		FROM product_tags
		ORDER BY product_id ASC, position ASC
	`)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id  int
			tag string
		)
		if err := rows.Scan(&id, &tag); err != nil {
			return err
		}
		if i, ok := idx[id]; ok {
			products[i].Tags = append(products[i].Tags, tag)
		}
	}
	return rows.Err()
}

func (s *PostgresSource) Carts(ctx context.Context) ([]Cart, error) {
	if s.cartsFrom == nil {
		return nil, nil
	}
	return s.cartsFrom.Carts(ctx)
}

func withTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	return fn(ctx)
}
