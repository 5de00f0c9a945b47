package handlers

import (
	"github.com/gin-gonic/gin"

	"docledger/internal/core/apperror"
	"docledger/internal/core/id"
	"docledger/internal/domain/registers/stock"
	"docledger/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for Stock register.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
}

// NewStockHandler creates a new stock register handler.
func NewStockHandler(base *BaseHandler, service *stock.Service) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
	}
}

// RegisterRoutes registers stock register routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/receipts", h.Receive)
	rg.GET("/balances", h.GetBalances)
	rg.GET("/balances/:productId", h.GetBalance)
	rg.GET("/movements/:productId", h.GetMovements)
}

// Receive handles POST /registers/stock/receipts
func (h *StockHandler) Receive(c *gin.Context) {
	var req dto.ReceiveStockRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid productId format").WithDetail("field", "productId"))
		return
	}

	movement, err := h.service.Receive(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromStockMovement(movement))
}

// GetBalances handles GET /registers/stock/balances
func (h *StockHandler) GetBalances(c *gin.Context) {
	var q dto.StockBalanceQuery
	if !h.BindQuery(c, &q) {
		return
	}

	filter := stock.BalanceFilter{ExcludeZero: q.ExcludeZero}
	for _, s := range q.ProductIDs {
		parsed, err := id.Parse(s)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid productId format").WithDetail("value", s))
			return
		}
		filter.ProductIDs = append(filter.ProductIDs, parsed)
	}

	balances, err := h.service.Balances(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.StockBalanceResponse, len(balances))
	for i, b := range balances {
		items[i] = dto.FromStockBalance(b)
	}
	h.OK(c, dto.ItemsResponse[dto.StockBalanceResponse]{Items: items})
}

// GetBalance handles GET /registers/stock/balances/:productId
func (h *StockHandler) GetBalance(c *gin.Context) {
	productID, ok := h.ParamID(c, "productId")
	if !ok {
		return
	}
	balance, err := h.service.Balance(c.Request.Context(), productID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromStockBalance(balance))
}

// GetMovements handles GET /registers/stock/movements/:productId
func (h *StockHandler) GetMovements(c *gin.Context) {
	productID, ok := h.ParamID(c, "productId")
	if !ok {
		return
	}
	var q dto.MovementQuery
	if !h.BindQuery(c, &q) {
		return
	}
	if q.Limit == 0 {
		q.Limit = 100
	}

	movements, err := h.service.Movements(c.Request.Context(), productID, q.ToFilter())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse[dto.StockMovementResponse]{Items: dto.FromStockMovements(movements)})
}
