package catalog

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
)

const (
	productsFile = "products.json"
	cartsFile    = "carts.json"
)

//go:embed data/products.json data/carts.json
var bundled embed.FS

// Source supplies the static catalog data once at startup.
type Source interface {
	Products(ctx context.Context) ([]Product, error)
	Carts(ctx context.Context) ([]Cart, error)
}

// Load reads src and builds the immutable catalog.
func Load(ctx context.Context, src Source) (*Catalog, error) {
	products, err := src.Products(ctx)
	if err != nil {
		return nil, fmt.Errorf("load products: %w", err)
	}
	carts, err := src.Carts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load carts: %w", err)
	}
	return New(products, carts)
}

// FSSource reads products.json and carts.json from a file system root.
type FSSource struct {
	FS fs.FS
}

// NewBundledSource serves the data files compiled into the binary.
func NewBundledSource() *FSSource {
	sub, err := fs.Sub(bundled, "data")
	if err != nil {
		panic(err)
	}
	return &FSSource{FS: sub}
}

func NewDirSource(dir string) *FSSource {
	return &FSSource{FS: os.DirFS(dir)}
}

func (s *FSSource) Products(_ context.Context) ([]Product, error) {
	var doc struct {
		Products []Product `json:"products"`
	}
	if err := s.decode(productsFile, &doc); err != nil {
		return nil, err
	}
	return doc.Products, nil
}

func (s *FSSource) Carts(_ context.Context) ([]Cart, error) {
	var doc struct {
		Carts []Cart `json:"carts"`
	}
	if err := s.decode(cartsFile, &doc); err != nil {
		return nil, err
	}
	return doc.Carts, nil
}

func (s *FSSource) decode(name string, v any) error {
	b, err := fs.ReadFile(s.FS, name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
