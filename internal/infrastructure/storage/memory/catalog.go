package memory

import (
	"context"
	"sort"
	"sync"

	"docledger/internal/core/apperror"
	"docledger/internal/core/id"
	"docledger/internal/domain/catalog"
)

var (
	_ catalog.Products       = (*Catalog)(nil)
	_ catalog.Counterparties = (*Catalog)(nil)
)

// Catalog is an in-memory product and counterparty directory.
type Catalog struct {
	mu             sync.RWMutex
	products       map[id.ID]catalog.Product
	productNames   map[string]id.ID
	counterparties map[string]catalog.Counterparty
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		products:       make(map[id.ID]catalog.Product),
		productNames:   make(map[string]id.ID),
		counterparties: make(map[string]catalog.Counterparty),
	}
}

// PutProduct adds or replaces a product. A nil ID is replaced with a new one.
func (c *Catalog) PutProduct(p catalog.Product) catalog.Product {
	if id.IsNil(p.ID) {
		p.ID = id.New()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.products[p.ID]; ok {
		delete(c.productNames, catalog.NameKey(old.Name))
	}
	c.products[p.ID] = p
	c.productNames[catalog.NameKey(p.Name)] = p.ID
	return p
}

// PutCounterparty adds or replaces a counterparty keyed by name.
func (c *Catalog) PutCounterparty(cp catalog.Counterparty) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counterparties[catalog.NameKey(cp.Name)] = cp
}

// SaveProduct is the context-aware form of PutProduct.
func (c *Catalog) SaveProduct(_ context.Context, p catalog.Product) (catalog.Product, error) {
	return c.PutProduct(p), nil
}

// SaveCounterparty is the context-aware form of PutCounterparty.
func (c *Catalog) SaveCounterparty(_ context.Context, cp catalog.Counterparty) error {
	c.PutCounterparty(cp)
	return nil
}

// GetProduct implements catalog.Products.
func (c *Catalog) GetProduct(_ context.Context, productID id.ID) (catalog.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[productID]
	if !ok {
		return catalog.Product{}, apperror.NewNotFound("product", productID.String())
	}
	return p, nil
}

// FindProductByName implements catalog.Products.
func (c *Catalog) FindProductByName(_ context.Context, name string) (catalog.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pid, ok := c.productNames[catalog.NameKey(name)]
	if !ok {
		return catalog.Product{}, apperror.NewNotFound("product", name)
	}
	return c.products[pid], nil
}

// FindCounterpartyByName implements catalog.Counterparties.
func (c *Catalog) FindCounterpartyByName(_ context.Context, name string) (catalog.Counterparty, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp, ok := c.counterparties[catalog.NameKey(name)]
	if !ok {
		return catalog.Counterparty{}, apperror.NewNotFound("counterparty", name)
	}
	return cp, nil
}

// Products lists products ordered by name.
func (c *Catalog) Products() []catalog.Product {
	c.mu.RLock()
	out := make([]catalog.Product, 0, len(c.products))
	for _, p := range c.products {
		out = append(out, p)
	}
	c.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
