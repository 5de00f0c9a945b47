package handlers

import (
	"context"

	"github.com/gin-gonic/gin"

	"docledger/internal/core/apperror"
	"docledger/internal/domain/catalog"
	"docledger/internal/infrastructure/http/v1/dto"
)

// CatalogStore maintains the product and counterparty directories used for autofill.
type CatalogStore interface {
	catalog.Products
	catalog.Counterparties
	SaveProduct(ctx context.Context, p catalog.Product) (catalog.Product, error)
	SaveCounterparty(ctx context.Context, cp catalog.Counterparty) error
}

// CatalogHandler handles the product and counterparty directories.
type CatalogHandler struct {
	*BaseHandler
	store CatalogStore
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(base *BaseHandler, store CatalogStore) *CatalogHandler {
	return &CatalogHandler{BaseHandler: base, store: store}
}

// RegisterRoutes registers catalog routes.
func (h *CatalogHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.PUT("/products", h.SaveProduct)
	rg.GET("/products/:id", h.GetProduct)
	rg.PUT("/counterparties", h.SaveCounterparty)
	rg.GET("/counterparties/:name", h.GetCounterparty)
}

// SaveProduct handles PUT /catalog/products
func (h *CatalogHandler) SaveProduct(c *gin.Context) {
	var req dto.ProductRequest
	if !h.BindJSON(c, &req) {
		return
	}
	p, err := req.ToProduct()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid id format").WithDetail("field", "id"))
		return
	}

	saved, err := h.store.SaveProduct(c.Request.Context(), p)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, saved)
}

// GetProduct handles GET /catalog/products/:id
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	productID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	p, err := h.store.GetProduct(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, p)
}

// SaveCounterparty handles PUT /catalog/counterparties
func (h *CatalogHandler) SaveCounterparty(c *gin.Context) {
	var req dto.CounterpartyDirectoryRequest
	if !h.BindJSON(c, &req) {
		return
	}
	cp := req.ToCounterparty()
	if err := h.store.SaveCounterparty(c.Request.Context(), cp); err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cp)
}

// GetCounterparty handles GET /catalog/counterparties/:name
func (h *CatalogHandler) GetCounterparty(c *gin.Context) {
	cp, err := h.store.FindCounterpartyByName(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, cp)
}
