package checkout

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"EMart/internal/storage"
	"EMart/pkg/kit"
)

const persistWarning = "order placed but the updated cart could not be saved"

type Server struct {
	Service *Service
	Log     *zap.Logger

	// Limiter guards order placement. Nil disables limiting.
	Limiter *kit.IPRateLimiter
}

type summaryResp struct {
	Summary
	TotalItems            int     `json:"total_items"`
	FreeShippingRemaining float64 `json:"free_shipping_remaining"`
}

type placeResp struct {
	Order
	Warning string `json:"warning,omitempty"`
}

func (s *Server) CheckoutRoutes() http.Handler {
	r := chi.NewRouter()

	r.Get("/summary", s.summary)
	if s.Limiter != nil {
		r.With(s.Limiter.Middleware).Post("/", s.place)
	} else {
		r.Post("/", s.place)
	}

	return r
}

func (s *Server) OrderRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/{id}", s.get)
	return r
}

func (s *Server) summary(w http.ResponseWriter, _ *http.Request) {
	sum := s.Service.Quote()
	kit.WriteJSON(w, http.StatusOK, summaryResp{
		Summary:               sum,
		TotalItems:            s.Service.Cart.TotalItems(),
		FreeShippingRemaining: sum.FreeShippingRemaining(),
	})
}

func (s *Server) place(w http.ResponseWriter, r *http.Request) {
	var c Contact
	if err := kit.DecodeJSON(w, r, &c); err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad json", map[string]any{"cause": err.Error()})
		return
	}

	o, err := s.Service.PlaceOrder(r.Context(), c)
	var contactErr *ContactError
	switch {
	case err == nil:
		kit.WriteJSON(w, http.StatusCreated, placeResp{Order: o})
	case errors.Is(err, storage.ErrPersistence) && o.ID != "":
		kit.WriteJSON(w, http.StatusCreated, placeResp{Order: o, Warning: persistWarning})
	case errors.As(err, &contactErr):
		kit.WriteError(w, r, http.StatusBadRequest, "invalid contact", map[string]any{"fields": contactErr.Fields})
	case errors.Is(err, ErrEmptyCart):
		kit.WriteError(w, r, http.StatusConflict, "cart is empty", nil)
	case isTimeoutErr(err):
		kit.WriteError(w, r, http.StatusGatewayTimeout, "timeout", nil)
	default:
		if s.Log != nil {
			s.Log.Error("place order failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

func (s *Server) get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	o, found, err := s.Service.Order(r.Context(), id)
	if err != nil {
		if s.Log != nil {
			s.Log.Error("store get order failed", zap.Error(err), zap.String("order_id", id))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
		return
	}
	if !found {
		kit.WriteError(w, r, http.StatusNotFound, "not found", map[string]any{"id": id})
		return
	}

	kit.WriteJSON(w, http.StatusOK, o)
}

func isTimeoutErr(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}
