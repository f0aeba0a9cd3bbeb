// Package httpapi exposes the service over HTTP: login, cached shop reads,
// shop writes with invalidation, voucher creation, and seckill admission.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/flashmart/seckill/internal/auth"
	"github.com/flashmart/seckill/internal/seckill"
	"github.com/flashmart/seckill/internal/store"
)

// ShopService is implemented by shop.Service.
type ShopService interface {
	GetByID(ctx context.Context, id int64) (*store.Shop, error)
	Update(ctx context.Context, shop *store.Shop) error
	Warm(ctx context.Context, id int64) error
}

// Admission is implemented by seckill.Coordinator.
type Admission interface {
	Reserve(ctx context.Context, voucherID, userID int64) (int64, error)
	PrimeStock(ctx context.Context, voucherID, stock int64) error
}

// AuthService is implemented by auth.Service.
type AuthService interface {
	SendCode(ctx context.Context, phone string) error
	Login(ctx context.Context, phone, code string) (string, error)
	Middleware(next http.Handler) http.Handler
}

// VoucherStore is the voucher slice of the persistence collaborator.
type VoucherStore interface {
	CreateSeckillVoucher(ctx context.Context, v *store.SeckillVoucher) error
}

// Server holds the handler dependencies.
type Server struct {
	shops    ShopService
	orders   Admission
	auth     AuthService
	vouchers VoucherStore
	logger   zerolog.Logger
}

// NewServer wires the HTTP layer.
func NewServer(shops ShopService, orders Admission, authSvc AuthService, vouchers VoucherStore, logger zerolog.Logger) *Server {
	return &Server{shops: shops, orders: orders, auth: authSvc, vouchers: vouchers, logger: logger}
}

// Router builds the route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/api/users/code", s.handleSendCode).Methods(http.MethodPost)
	r.HandleFunc("/api/sessions", s.handleLogin).Methods(http.MethodPost)
	r.HandleFunc("/api/shops/{id}", s.handleGetShop).Methods(http.MethodGet)
	r.HandleFunc("/api/shops/{id}", s.handleUpdateShop).Methods(http.MethodPut)
	r.HandleFunc("/api/shops/{id}/warm", s.handleWarmShop).Methods(http.MethodPost)
	r.HandleFunc("/api/vouchers", s.handleCreateVoucher).Methods(http.MethodPost)
	r.Handle("/api/vouchers/{id}/seckill", s.auth.Middleware(http.HandlerFunc(s.handleSeckill))).Methods(http.MethodPost)
	return r
}

func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if !s.readJSON(w, r, &req) {
		return
	}
	if req.Phone == "" {
		s.writeError(w, http.StatusBadRequest, "phone required")
		return
	}
	if err := s.auth.SendCode(r.Context(), req.Phone); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
		Code  string `json:"code"`
	}
	if !s.readJSON(w, r, &req) {
		return
	}
	token, err := s.auth.Login(r.Context(), req.Phone, req.Code)
	if errors.Is(err, auth.ErrBadCredentials) {
		s.writeError(w, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

func (s *Server) handleGetShop(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	shop, err := s.shops.GetByID(r.Context(), id)
	if err != nil {
		s.serverError(w, r, err)
		return
	}
	if shop == nil {
		s.writeError(w, http.StatusNotFound, "shop not found")
		return
	}
	s.writeJSON(w, http.StatusOK, shop)
}

func (s *Server) handleUpdateShop(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	var shop store.Shop
	if !s.readJSON(w, r, &shop) {
		return
	}
	shop.ID = id
	if err := s.shops.Update(r.Context(), &shop); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleWarmShop(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	if err := s.shops.Warm(r.Context(), id); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleCreateVoucher(w http.ResponseWriter, r *http.Request) {
	var v store.SeckillVoucher
	if !s.readJSON(w, r, &v) {
		return
	}
	if v.VoucherID == 0 || v.Stock <= 0 {
		s.writeError(w, http.StatusBadRequest, "voucherId and positive stock required")
		return
	}
	if v.EndTime.IsZero() {
		v.EndTime = time.Now().Add(24 * time.Hour)
	}
	if err := s.vouchers.CreateSeckillVoucher(r.Context(), &v); err != nil {
		s.serverError(w, r, err)
		return
	}
	if err := s.orders.PrimeStock(r.Context(), v.VoucherID, v.Stock); err != nil {
		s.serverError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, v)
}

func (s *Server) handleSeckill(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "not logged in")
		return
	}
	voucherID, okID := s.pathID(w, r)
	if !okID {
		return
	}
	orderID, err := s.orders.Reserve(r.Context(), voucherID, userID)
	switch {
	case errors.Is(err, seckill.ErrOutOfStock), errors.Is(err, seckill.ErrDuplicateOrder):
		s.writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		s.serverError(w, r, err)
	default:
		s.writeJSON(w, http.StatusOK, map[string]int64{"orderId": orderID})
	}
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) readJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body any) {
	if body == nil {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) serverError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
	s.writeError(w, http.StatusInternalServerError, "internal error")
}
