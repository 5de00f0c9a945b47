package dto

import (
	"time"

	"docledger/internal/core/entity"
)

// LoyaltyBalanceResponse is a counterparty's point balance.
type LoyaltyBalanceResponse struct {
	Counterparty string `json:"counterparty"`
	Points       int64  `json:"points"`
}

// PointEntryResponse is one loyalty history line.
type PointEntryResponse struct {
	ID          string    `json:"id"`
	DocumentID  string    `json:"documentId"`
	Date        time.Time `json:"date"`
	Points      int64     `json:"points"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Reference   string    `json:"reference"`
}

// FromPointEntries converts point history entries.
func FromPointEntries(entries []entity.PointEntry) []PointEntryResponse {
	out := make([]PointEntryResponse, len(entries))
	for i, e := range entries {
		out[i] = PointEntryResponse{
			ID:          e.LineID.String(),
			DocumentID:  e.RecorderID.String(),
			Date:        e.Period,
			Points:      e.Points,
			Category:    e.Category,
			Description: e.Description,
			Reference:   e.Reference,
		}
	}
	return out
}
