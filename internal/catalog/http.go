package catalog

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"EMart/pkg/kit"
)

type Server struct {
	Catalog *Catalog
	Log     *zap.Logger

	// Latency delays every read to mimic a remote catalog. Zero disables it.
	Latency time.Duration
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.delay)

	r.Get("/products", s.list)
	r.Get("/products/search", s.search)
	r.Get("/products/sorted", s.sorted)
	r.Get("/products/page", s.page)
	r.Get("/products/limited", s.limited)
	r.Get("/products/deals", s.deals)
	r.Get("/products/filter", s.filter)
	r.Get("/products/price-range", s.priceRange)
	r.Get("/products/{id}", s.get)

	r.Get("/categories", s.categories)
	r.Get("/categories/{category}", s.byCategory)

	r.Get("/carts", s.carts)
	r.Get("/carts/{id}", s.cart)
	r.Get("/users/{userID}/carts", s.userCarts)

	return r
}

func (s *Server) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.Latency > 0 {
			t := time.NewTimer(s.Latency)
			select {
			case <-t.C:
			case <-r.Context().Done():
				t.Stop()
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) list(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.Catalog.All())
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}

	p, err := s.Catalog.Get(id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, viewOf(p))
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.Catalog.Search(r.URL.Query().Get("q")))
}

func (s *Server) sorted(w http.ResponseWriter, r *http.Request) {
	order := SortOrder(strings.ToLower(r.URL.Query().Get("order")))
	if order == "" {
		order = Asc
	}

	products, err := s.Catalog.Sorted(order)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, products)
}

func (s *Server) page(w http.ResponseWriter, r *http.Request) {
	page, err1 := kit.QueryInt(r, "page", 1)
	limit, err2 := kit.QueryInt(r, "limit", 10)
	if err := errors.Join(err1, err2); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad pagination", map[string]any{"cause": err.Error()})
		return
	}

	p, err := s.Catalog.Paginated(page, limit)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, p)
}

func (s *Server) limited(w http.ResponseWriter, r *http.Request) {
	n, err := kit.QueryInt(r, "limit", 8)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad limit", nil)
		return
	}
	kit.WriteJSON(w, http.StatusOK, s.Catalog.Limited(n))
}

// View is a product with its price after discount.
type View struct {
	Product
	DiscountedPrice float64 `json:"discountedPrice"`
}

func viewOf(p Product) View {
	return View{Product: p, DiscountedPrice: DiscountedPrice(p)}
}

func (s *Server) deals(w http.ResponseWriter, _ *http.Request) {
	deals := s.Catalog.Deals()
	out := make([]View, 0, len(deals))
	for _, p := range deals {
		out = append(out, viewOf(p))
	}
	kit.WriteJSON(w, http.StatusOK, out)
}

func (s *Server) priceRange(w http.ResponseWriter, _ *http.Request) {
	lo, hi := s.Catalog.PriceBounds()
	kit.WriteJSON(w, http.StatusOK, map[string]float64{"min": lo, "max": hi})
}

func (s *Server) filter(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := Query{
		Category: q.Get("category"),
		Search:   q.Get("q"),
		Sort:     q.Get("sort"),
	}

	var err error
	if v := q.Get("min"); v != "" {
		if query.MinPrice, err = strconv.ParseFloat(v, 64); err != nil {
			kit.WriteError(w, r, http.StatusBadRequest, "bad min price", nil)
			return
		}
	}
	if v := q.Get("max"); v != "" {
		if query.MaxPrice, err = strconv.ParseFloat(v, 64); err != nil {
			kit.WriteError(w, r, http.StatusBadRequest, "bad max price", nil)
			return
		}
	}

	products, err := s.Catalog.Filter(query)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, products)
}

func (s *Server) categories(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.Catalog.Categories())
}

// byCategory decodes the segment only when routing used the escaped path;
// otherwise net/url already decoded it.
func (s *Server) byCategory(w http.ResponseWriter, r *http.Request) {
	category := chi.URLParam(r, "category")
	if r.URL.RawPath != "" {
		decoded, err := url.PathUnescape(category)
		if err != nil {
			kit.WriteError(w, r, http.StatusBadRequest, "bad category", map[string]any{"category": category})
			return
		}
		category = decoded
	}
	kit.WriteJSON(w, http.StatusOK, s.Catalog.ByCategory(category))
}

func (s *Server) carts(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.Catalog.Carts())
}

func (s *Server) cart(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "id")
	if !ok {
		return
	}

	c, err := s.Catalog.Cart(id)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	kit.WriteJSON(w, http.StatusOK, c)
}

func (s *Server) userCarts(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "userID")
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, s.Catalog.CartsByUser(id))
}

func (s *Server) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrCartNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"cause": err.Error()})
	case errors.Is(err, ErrInvalidPage), errors.Is(err, ErrInvalidSort):
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
	default:
		if s.Log != nil {
			s.Log.Error("catalog request failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := chi.URLParam(r, name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad "+name, map[string]any{name: raw})
		return 0, false
	}
	return v, true
}
