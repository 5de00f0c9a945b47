package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"docledger/internal/core/apperror"
	"docledger/internal/domain/registers/loyalty"
	"docledger/internal/infrastructure/http/v1/dto"
)

// LoyaltyHandler serves counterparty point balances and history.
type LoyaltyHandler struct {
	*BaseHandler
	service *loyalty.Service
}

// NewLoyaltyHandler creates a new loyalty handler.
func NewLoyaltyHandler(base *BaseHandler, service *loyalty.Service) *LoyaltyHandler {
	return &LoyaltyHandler{BaseHandler: base, service: service}
}

// RegisterRoutes registers loyalty routes. Counterparties are keyed by name.
func (h *LoyaltyHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/:counterparty/balance", h.Balance)
	rg.GET("/:counterparty/history", h.History)
}

// Balance handles GET /registers/loyalty/:counterparty/balance
func (h *LoyaltyHandler) Balance(c *gin.Context) {
	name, ok := h.counterparty(c)
	if !ok {
		return
	}
	points, err := h.service.Balance(c.Request.Context(), name)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.LoyaltyBalanceResponse{Counterparty: name, Points: points})
}

// History handles GET /registers/loyalty/:counterparty/history
func (h *LoyaltyHandler) History(c *gin.Context) {
	name, ok := h.counterparty(c)
	if !ok {
		return
	}
	entries, err := h.service.History(c.Request.Context(), name, h.ParseIntQuery(c, "limit", 50))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse[dto.PointEntryResponse]{Items: dto.FromPointEntries(entries)})
}

func (h *LoyaltyHandler) counterparty(c *gin.Context) (string, bool) {
	name := strings.TrimSpace(c.Param("counterparty"))
	if name == "" {
		h.Error(c, apperror.NewValidation("counterparty is required").WithDetail("field", "counterparty"))
		return "", false
	}
	return name, true
}
