package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var (
	ErrUpstreamBadStatus   = errors.New("catalog upstream bad status")
	ErrUpstreamUnavailable = errors.New("catalog upstream unavailable")
)

// HTTPSource pulls the catalog from a remote API that answers
// GET /products and GET /carts with the same documents as the bundled files.
type HTTPSource struct {
	BaseURL string
	Client  *http.Client
}

func NewHTTPSource(baseURL string) *HTTPSource {
	if u, err := url.Parse(baseURL); err == nil && u.Scheme != "" && u.Host != "" {
		baseURL = strings.TrimRight(baseURL, "/")
	}
	return &HTTPSource{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 5 * time.Second},
	}
}

func (s *HTTPSource) Products(ctx context.Context) ([]Product, error) {
	var doc struct {
		Products []Product `json:"products"`
	}
	if err := s.get(ctx, "/products?limit=0", &doc); err != nil {
		return nil, err
	}
	return doc.Products, nil
}

func (s *HTTPSource) Carts(ctx context.Context) ([]Cart, error) {
	var doc struct {
		Carts []Cart `json:"carts"`
	}
	if err := s.get(ctx, "/carts?limit=0", &doc); err != nil {
		return nil, err
	}
	return doc.Carts, nil
}

func (s *HTTPSource) get(ctx context.Context, path string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.BaseURL+path, nil)
	if err != nil {
		return err
	}

	resp, err := s.Client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: GET %s status=%d", ErrUpstreamBadStatus, path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
