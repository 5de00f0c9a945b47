package dto

import (
	"github.com/shopspring/decimal"

	"docledger/internal/core/id"
	"docledger/internal/domain/catalog"
)

// ProductRequest creates or replaces a catalog product.
type ProductRequest struct {
	ID          *string         `json:"id"`
	Name        string          `json:"name" binding:"required"`
	Code        string          `json:"code"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	TaxRate     decimal.Decimal `json:"taxRate"`
}

// ToProduct converts the request to a catalog entry.
func (r ProductRequest) ToProduct() (catalog.Product, error) {
	productID, err := parseOptionalID(r.ID)
	if err != nil {
		return catalog.Product{}, err
	}
	p := catalog.Product{
		Name:        r.Name,
		Code:        r.Code,
		Description: r.Description,
		Price:       r.Price,
		TaxRate:     r.TaxRate,
	}
	if productID != nil {
		p.ID = *productID
	} else {
		p.ID = id.Nil()
	}
	return p, nil
}

// CounterpartyDirectoryRequest creates or replaces a directory entry.
type CounterpartyDirectoryRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address"`
	TaxID   string `json:"taxId"`
	Phone   string `json:"phone"`
	Email   string `json:"email"`
}

// ToCounterparty converts the request to a directory entry.
func (r CounterpartyDirectoryRequest) ToCounterparty() catalog.Counterparty {
	return catalog.Counterparty{
		Name:    r.Name,
		Address: r.Address,
		TaxID:   r.TaxID,
		Phone:   r.Phone,
		Email:   r.Email,
	}
}
