package dto

import (
	"time"

	"docledger/internal/core/entity"
	"docledger/internal/core/id"
	"docledger/internal/domain/registers/stock"
)

// --- Request DTOs for Stock Register ---

// ReceiveStockRequest adds stock to a product.
type ReceiveStockRequest struct {
	ProductID string     `json:"productId" binding:"required"`
	Quantity  int64      `json:"quantity" binding:"required,min=1"`
	Purpose   string     `json:"purpose" binding:"omitempty,oneof=purchase adjustment"`
	Reference string     `json:"reference"`
	Date      *time.Time `json:"date"`
}

// ToInput converts the request to a service input.
func (r ReceiveStockRequest) ToInput() (stock.ReceiveInput, error) {
	productID, err := id.Parse(r.ProductID)
	if err != nil {
		return stock.ReceiveInput{}, err
	}
	in := stock.ReceiveInput{
		ProductID: productID,
		Quantity:  r.Quantity,
		Purpose:   entity.Purpose(r.Purpose),
		Reference: r.Reference,
	}
	if r.Date != nil {
		in.Date = *r.Date
	}
	return in, nil
}

// StockBalanceQuery filters the balance list.
type StockBalanceQuery struct {
	ProductIDs  []string `form:"productId"`
	ExcludeZero bool     `form:"excludeZero"`
}

// MovementQuery filters product movement history.
type MovementQuery struct {
	PaginationRequest
	Direction string     `form:"direction" binding:"omitempty,oneof=in out"`
	FromDate  *time.Time `form:"fromDate" time_format:"2006-01-02"`
	ToDate    *time.Time `form:"toDate" time_format:"2006-01-02"`
}

// ToFilter converts the query to a register filter.
func (q MovementQuery) ToFilter() stock.MovementFilter {
	f := stock.MovementFilter{
		FromDate: q.FromDate,
		ToDate:   q.ToDate,
		Limit:    q.Limit,
		Offset:   q.Offset,
	}
	if q.Direction != "" {
		d := entity.Direction(q.Direction)
		f.Direction = &d
	}
	return f
}

// --- Response DTOs for Stock Register ---

// StockBalanceResponse represents stock balance in API responses.
type StockBalanceResponse struct {
	ProductID      string     `json:"productId"`
	Quantity       int64      `json:"quantity"`
	LastMovementAt *time.Time `json:"lastMovementAt,omitempty"`
}

// FromStockBalance converts entity to response DTO.
func FromStockBalance(b entity.StockBalance) StockBalanceResponse {
	// Zero time means the product never moved; render it as absent.
	var lastMovement *time.Time
	if !b.LastMovementAt.IsZero() {
		val := b.LastMovementAt
		lastMovement = &val
	}

	return StockBalanceResponse{
		ProductID:      b.ProductID.String(),
		Quantity:       b.Quantity,
		LastMovementAt: lastMovement,
	}
}

// StockMovementResponse represents stock movement in API responses.
type StockMovementResponse struct {
	LineID       string    `json:"lineId"`
	RecorderID   string    `json:"recorderId,omitempty"`
	RecorderType string    `json:"recorderType,omitempty"`
	Date         time.Time `json:"date"`
	ProductID    string    `json:"productId"`
	Quantity     int64     `json:"quantity"`
	Direction    string    `json:"direction"`
	Reference    string    `json:"reference"`
	Purpose      string    `json:"purpose"`
	CreatedAt    time.Time `json:"createdAt"`
}

// FromStockMovement converts entity to response DTO.
func FromStockMovement(m entity.StockMovement) StockMovementResponse {
	resp := StockMovementResponse{
		LineID:       m.LineID.String(),
		RecorderType: m.RecorderType,
		Date:         m.Period,
		ProductID:    m.ProductID.String(),
		Quantity:     m.Quantity,
		Direction:    string(m.Direction),
		Reference:    m.Reference,
		Purpose:      string(m.Purpose),
		CreatedAt:    m.CreatedAt,
	}
	if !id.IsNil(m.RecorderID) {
		resp.RecorderID = m.RecorderID.String()
	}
	return resp
}

// FromStockMovements converts a slice of movements.
func FromStockMovements(movements []entity.StockMovement) []StockMovementResponse {
	out := make([]StockMovementResponse, len(movements))
	for i, m := range movements {
		out[i] = FromStockMovement(m)
	}
	return out
}
