package wishlist

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"EMart/internal/catalog"
	"EMart/internal/storage"
	"EMart/pkg/kit"
)

const persistWarning = "wishlist could not be saved and may not survive a restart"

type Server struct {
	Wishlist *Wishlist
	Catalog  *catalog.Catalog
	Cart     ItemAdder
	Log      *zap.Logger
	Metrics  *kit.Metrics
}

type View struct {
	Items   []catalog.Product `json:"items"`
	Count   int               `json:"count"`
	Warning string            `json:"warning,omitempty"`
}

type addReq struct {
	ProductID int `json:"product_id"`
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.get)
	r.Delete("/", s.clear)
	r.Post("/items", s.add)
	r.Get("/items/{productID}", s.contains)
	r.Delete("/items/{productID}", s.remove)
	r.Post("/items/{productID}/move-to-cart", s.moveToCart)

	return r
}

func (s *Server) get(w http.ResponseWriter, _ *http.Request) {
	items := s.Wishlist.Items()
	kit.WriteJSON(w, http.StatusOK, View{Items: items, Count: len(items)})
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	var req addReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	p, err := s.Catalog.Get(req.ProductID)
	if err != nil {
		kit.WriteError(w, r, http.StatusNotFound, "product not found", map[string]any{"product_id": req.ProductID})
		return
	}

	s.respond(w, r, "add", s.Wishlist.AddItem(r.Context(), p))
}

func (s *Server) contains(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	kit.WriteJSON(w, http.StatusOK, map[string]any{
		"product_id":  id,
		"in_wishlist": s.Wishlist.Contains(id),
	})
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	s.respond(w, r, "remove", s.Wishlist.RemoveItem(r.Context(), id))
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "clear", s.Wishlist.Clear(r.Context()))
}

func (s *Server) moveToCart(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	if s.Cart == nil {
		kit.WriteError(w, r, http.StatusNotImplemented, "cart unavailable", nil)
		return
	}

	err := s.Wishlist.MoveToCart(r.Context(), id, s.Cart)
	if errors.Is(err, ErrNotSaved) {
		kit.WriteError(w, r, http.StatusNotFound, "not in wishlist", map[string]any{"product_id": id})
		return
	}
	s.respond(w, r, "move_to_cart", err)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, op string, err error) {
	items := s.Wishlist.Items()
	v := View{Items: items, Count: len(items)}

	switch {
	case err == nil:
		s.Metrics.ObserveMutation("wishlist", op, kit.ResultOK)
	case errors.Is(err, storage.ErrPersistence):
		s.Metrics.ObserveMutation("wishlist", op, kit.ResultUnsaved)
		v.Warning = persistWarning
	default:
		s.Metrics.ObserveMutation("wishlist", op, kit.ResultError)
		if s.Log != nil {
			s.Log.Error("wishlist mutation failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}

	kit.WriteJSON(w, http.StatusOK, v)
}

func productID(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "productID")
	id, err := strconv.Atoi(raw)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad product id", map[string]any{"product_id": raw})
		return 0, false
	}
	return id, true
}
