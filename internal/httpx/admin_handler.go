package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/avdeenkov/cryptoshop/internal/shop"
)

type ProductAdmin interface {
	ListCategories(ctx context.Context) ([]shop.Category, error)
	CreateCategory(ctx context.Context, c shop.Category) (int64, error)
	ListAll(ctx context.Context) ([]shop.Product, error)
	Create(ctx context.Context, p shop.Product) (int64, error)
	Update(ctx context.Context, p shop.Product) error
	Delete(ctx context.Context, id int64) error
}

type CoefficientAdmin interface {
	All(ctx context.Context) ([]shop.Coefficient, error)
	Set(ctx context.Context, t shop.CoefficientType, value float64) error
}

type BanAdmin interface {
	Ban(ctx context.Context, b shop.Ban) error
	Unban(ctx context.Context, customerID int64) (bool, error)
	ListBans(ctx context.Context) ([]shop.Ban, error)
}

type StatsReader interface {
	Stats(ctx context.Context) (shop.Stats, error)
}

type Broadcaster interface {
	Broadcast(text string)
}

type AdminHandler struct {
	Products     ProductAdmin
	Coefficients CoefficientAdmin
	Bans         BanAdmin
	Stats        StatsReader
	Broadcast    Broadcaster
	Log          *zap.Logger
}

func (h *AdminHandler) Mount(r chi.Router) {
	r.Get("/categories", h.listCategories)
	r.Post("/categories", h.createCategory)

	r.Get("/products", h.listProducts)
	r.Post("/products", h.createProduct)
	r.Put("/products/{productID}", h.updateProduct)
	r.Delete("/products/{productID}", h.deleteProduct)

	r.Get("/coefficients", h.listCoefficients)
	r.Put("/coefficients/{type}", h.setCoefficient)

	r.Get("/bans", h.listBans)
	r.Post("/bans", h.ban)
	r.Delete("/bans/{customerID}", h.unban)

	r.Post("/broadcast", h.broadcast)
	r.Get("/stats", h.stats)
}

func (h *AdminHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.Products.ListCategories(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": cats})
}

func (h *AdminHandler) createCategory(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	id, err := h.Products.CreateCategory(r.Context(), shop.Category{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.Log.Info("category created", zap.Int64("category_id", id), zap.String("name", req.Name))
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *AdminHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Products.ListAll(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

type productRequest struct {
	CategoryID  int64     `json:"category_id"`
	Name        string    `json:"name"`
	Price       float64   `json:"price"`
	Description string    `json:"description"`
	Stock       int       `json:"stock"`
	Kind        shop.Kind `json:"kind"`
	Active      *bool     `json:"active,omitempty"`
}

func (req *productRequest) validate() string {
	if req.Name == "" {
		return "name is required"
	}
	if req.Kind == "" {
		req.Kind = shop.KindFixed
	}
	if !req.Kind.Valid() {
		return "unknown product kind"
	}
	if req.Kind == shop.KindFixed && req.Price <= 0 {
		return "price must be positive"
	}
	if req.Stock < 0 {
		return "stock must not be negative"
	}
	return ""
}

func (h *AdminHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	id, err := h.Products.Create(r.Context(), shop.Product{
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Stock:       req.Stock,
		Kind:        req.Kind,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.Log.Info("product created", zap.Int64("product_id", id), zap.String("name", req.Name))
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (h *AdminHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	err = h.Products.Update(r.Context(), shop.Product{
		ID:          id,
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Price:       req.Price,
		Description: req.Description,
		Stock:       req.Stock,
		Kind:        req.Kind,
		Active:      active,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *AdminHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return
	}
	if err := h.Products.Delete(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *AdminHandler) listCoefficients(w http.ResponseWriter, r *http.Request) {
	coeffs, err := h.Coefficients.All(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"coefficients": coeffs})
}

func (h *AdminHandler) setCoefficient(w http.ResponseWriter, r *http.Request) {
	t := shop.CoefficientType(chi.URLParam(r, "type"))
	if _, ok := shop.DefaultCoefficients[t]; !ok {
		writeError(w, http.StatusBadRequest, "unknown coefficient type")
		return
	}
	var req struct {
		Value float64 `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Value <= 0 {
		writeError(w, http.StatusBadRequest, "value must be positive")
		return
	}
	if err := h.Coefficients.Set(r.Context(), t, req.Value); err != nil {
		writeDomainError(w, err)
		return
	}
	h.Log.Info("coefficient updated", zap.String("type", string(t)), zap.Float64("value", req.Value))
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *AdminHandler) listBans(w http.ResponseWriter, r *http.Request) {
	bans, err := h.Bans.ListBans(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bans": bans})
}

func (h *AdminHandler) ban(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomerID int64  `json:"customer_id"`
		Username   string `json:"username"`
		BannedBy   int64  `json:"banned_by"`
		Reason     string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.CustomerID == 0 {
		writeError(w, http.StatusBadRequest, "customer_id is required")
		return
	}
	err := h.Bans.Ban(r.Context(), shop.Ban{
		CustomerID: req.CustomerID,
		Username:   req.Username,
		BannedBy:   req.BannedBy,
		BannedAt:   time.Now().UTC(),
		Reason:     req.Reason,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	h.Log.Info("customer banned", zap.Int64("customer_id", req.CustomerID))
	writeJSON(w, http.StatusCreated, map[string]string{"status": "banned"})
}

func (h *AdminHandler) unban(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "customerID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid customer id")
		return
	}
	removed, err := h.Bans.Unban(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "unbanned"})
}

func (h *AdminHandler) broadcast(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}
	h.Broadcast.Broadcast(req.Text)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *AdminHandler) stats(w http.ResponseWriter, r *http.Request) {
	s, err := h.Stats.Stats(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"active_products":  s.ActiveProducts,
		"total_stock":      s.TotalStock,
		"paid_orders":      s.PaidOrders,
		"revenue":          s.Revenue,
		"revenue_with_fee": s.RevenueWithFee,
		"total_users":      s.TotalUsers,
	})
}
