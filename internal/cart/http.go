package cart

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

const persistWarning = "cart could not be saved and may not survive a restart"

type Server struct {
	Cart    *Cart
	Catalog *catalog.Catalog
	Log     *zap.Logger
	Metrics *kit.Metrics
}

type View struct {
	Items      []LineItem `json:"items"`
	TotalItems int        `json:"total_items"`
	TotalPrice float64    `json:"total_price"`
	Warning    string     `json:"warning,omitempty"`
}

type addReq struct {
	ProductID int `json:"product_id"`
	Quantity  int `json:"quantity"`
}

type updateReq struct {
	Quantity int `json:"quantity"`
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/", s.get)
	r.Delete("/", s.clear)
	r.Post("/items", s.add)
	r.Put("/items/{productID}", s.update)
	r.Delete("/items/{productID}", s.remove)

	return r
}

func (s *Server) view() View {
	return View{
		Items:      s.Cart.Items(),
		TotalItems: s.Cart.TotalItems(),
		TotalPrice: s.Cart.TotalPrice(),
	}
}

func (s *Server) get(w http.ResponseWriter, _ *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.view())
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	var req addReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	p, err := s.Catalog.Get(req.ProductID)
	if err != nil {
		kit.WriteError(w, r, http.StatusNotFound, "product not found", map[string]any{"product_id": req.ProductID})
		return
	}

	s.respond(w, r, "add", s.Cart.AddItem(r.Context(), p, req.Quantity))
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}

	var req updateReq
	if err := kit.DecodeJSON(w, r, &req); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	s.respond(w, r, "update", s.Cart.UpdateQuantity(r.Context(), id, req.Quantity))
}

func (s *Server) remove(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	s.respond(w, r, "remove", s.Cart.RemoveItem(r.Context(), id))
}

func (s *Server) clear(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, "clear", s.Cart.Clear(r.Context()))
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, op string, err error) {
	v := s.view()

	switch {
	case err == nil:
		s.Metrics.ObserveMutation("cart", op, kit.ResultOK)
	case errors.Is(err, ErrInvalidQuantity):
		s.Metrics.ObserveMutation("cart", op, kit.ResultRejected)
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	case errors.Is(err, storage.ErrPersistence):
		s.Metrics.ObserveMutation("cart", op, kit.ResultUnsaved)
		v.Warning = persistWarning
	default:
		s.Metrics.ObserveMutation("cart", op, kit.ResultError)
		if s.Log != nil {
			s.Log.Error("cart mutation failed", zap.Error(err))
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
