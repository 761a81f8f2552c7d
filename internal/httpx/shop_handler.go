package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/avdeenkov/cryptoshop/internal/lifecycle"
	"github.com/avdeenkov/cryptoshop/internal/redisx"
	"github.com/avdeenkov/cryptoshop/internal/shop"
)

type Catalog interface {
	ListCategories(ctx context.Context) ([]shop.Category, error)
	ListProducts(ctx context.Context, categoryID int64) ([]shop.Product, error)
}

type Lifecycle interface {
	OpenOrder(ctx context.Context, req lifecycle.OpenRequest) (*lifecycle.OpenResult, error)
	CheckPayment(ctx context.Context, orderID string) (*shop.Order, error)
}

type OrderReader interface {
	Get(ctx context.Context, orderID string) (*shop.Order, error)
}

type UserRegistry interface {
	Save(ctx context.Context, customerID int64, username, firstName string) error
	IsBanned(ctx context.Context, customerID int64) (bool, error)
}

// ShopHandler is the customer-facing surface. Every order operation records
// the customer in the user registry and refuses banned customers.
type ShopHandler struct {
	Catalog   Catalog
	Lifecycle Lifecycle
	Orders    OrderReader
	Users     UserRegistry
	Cache     *redis.Client
	Log       *zap.Logger
}

func (h *ShopHandler) Mount(r chi.Router) {
	r.Get("/categories", h.listCategories)
	r.Get("/categories/{categoryID}/products", h.listProducts)
	r.Post("/orders", h.openOrder)
	r.Post("/orders/{orderID}/check", h.checkPayment)
	r.Get("/orders/{orderID}", h.getOrder)
}

func (h *ShopHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Catalog.ListCategories(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": orEmptyCategories(cats)})
}

func (h *ShopHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	categoryID, err := strconv.ParseInt(chi.URLParam(r, "categoryID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid category id")
		return
	}
	products, err := h.Catalog.ListProducts(r.Context(), categoryID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	out := make([]productView, 0, len(products))
	for _, p := range products {
		out = append(out, newProductView(p))
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": out})
}

type openOrderRequest struct {
	CustomerID int64    `json:"customer_id"`
	Username   string   `json:"username"`
	FirstName  string   `json:"first_name"`
	ProductID  int64    `json:"product_id"`
	Amount     *float64 `json:"amount,omitempty"`
}

func (h *ShopHandler) openOrder(w http.ResponseWriter, r *http.Request) {
	var req openOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.CustomerID == 0 || req.ProductID == 0 {
		writeError(w, http.StatusBadRequest, "customer_id and product_id are required")
		return
	}
	if !h.admit(r.Context(), w, req.CustomerID, req.Username, req.FirstName) {
		return
	}

	res, err := h.Lifecycle.OpenOrder(r.Context(), lifecycle.OpenRequest{
		CustomerID:     req.CustomerID,
		Username:       req.Username,
		FirstName:      req.FirstName,
		ProductID:      req.ProductID,
		VariableAmount: req.Amount,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"order_id":        res.Order.ID,
		"status":          res.Order.Status,
		"amount":          res.Order.PriceAmount,
		"amount_with_fee": res.Order.PriceWithFee,
		"pay_url":         res.PayURL,
		"expires_at":      res.ExpiresAt,
	})
}

func (h *ShopHandler) checkPayment(w http.ResponseWriter, r *http.Request) {
	if !h.admitQuery(w, r) {
		return
	}
	orderID := chi.URLParam(r, "orderID")
	order, err := h.Lifecycle.CheckPayment(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.cacheOrder(r.Context(), order)
	writeJSON(w, http.StatusOK, orderResponse(order))
}

func (h *ShopHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	if !h.admitQuery(w, r) {
		return
	}
	orderID := chi.URLParam(r, "orderID")

	if h.Cache != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if raw, err := h.Cache.Get(r.Context(), key).Bytes(); err == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write(raw)
			return
		}
	}

	order, err := h.Orders.Get(r.Context(), orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.cacheOrder(r.Context(), order)
	writeJSON(w, http.StatusOK, orderResponse(order))
}

// cacheOrder is best-effort; a failed cache write never surfaces. Only
// terminal views are cached since they can never go stale.
func (h *ShopHandler) cacheOrder(ctx context.Context, o *shop.Order) {
	if h.Cache == nil || !o.Status.Terminal() {
		return
	}
	raw, err := json.Marshal(orderResponse(o))
	if err != nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	if err := h.Cache.Set(ctx, key, raw, redisx.TTLStatusCache).Err(); err != nil {
		h.Log.Warn("order status cache write failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

// admitQuery gates read/check endpoints, which carry the customer identity
// in query parameters instead of a body.
func (h *ShopHandler) admitQuery(w http.ResponseWriter, r *http.Request) bool {
	customerID, err := strconv.ParseInt(r.URL.Query().Get("customer_id"), 10, 64)
	if err != nil || customerID == 0 {
		writeError(w, http.StatusBadRequest, "customer_id is required")
		return false
	}
	return h.admit(r.Context(), w, customerID, r.URL.Query().Get("username"), r.URL.Query().Get("first_name"))
}

// admit upserts the user and rejects banned customers.
func (h *ShopHandler) admit(ctx context.Context, w http.ResponseWriter, customerID int64, username, firstName string) bool {
	banned, err := h.Users.IsBanned(ctx, customerID)
	if err != nil {
		writeDomainError(w, err)
		return false
	}
	if banned {
		writeError(w, http.StatusForbidden, "customer is banned")
		return false
	}
	if err := h.Users.Save(ctx, customerID, username, firstName); err != nil {
		h.Log.Warn("user upsert failed", zap.Int64("customer_id", customerID), zap.Error(err))
	}
	return true
}

type orderView struct {
	OrderID       string      `json:"order_id"`
	Status        shop.Status `json:"status"`
	ProductName   string      `json:"product_name"`
	Amount        float64     `json:"amount"`
	AmountWithFee float64     `json:"amount_with_fee"`
	Paid          bool        `json:"paid"`
	PaidAt        *time.Time  `json:"paid_at,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

func orderResponse(o *shop.Order) orderView {
	return orderView{
		OrderID:       o.ID,
		Status:        o.Status,
		ProductName:   o.ProductName,
		Amount:        o.PriceAmount,
		AmountWithFee: o.PriceWithFee,
		Paid:          o.Status == shop.StatusPaid,
		PaidAt:        o.PaidAt,
		CreatedAt:     o.CreatedAt,
	}
}

type productView struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Description string    `json:"description,omitempty"`
	Stock       int       `json:"stock"`
	Kind        shop.Kind `json:"kind"`
}

func newProductView(p shop.Product) productView {
	return productView{
		ID:          p.ID,
		Name:        p.Name,
		Price:       p.Price,
		Description: p.Description,
		Stock:       p.Stock,
		Kind:        p.Kind,
	}
}

func orEmptyCategories(cats []shop.Category) []shop.Category {
	if cats == nil {
		return []shop.Category{}
	}
	return cats
}
