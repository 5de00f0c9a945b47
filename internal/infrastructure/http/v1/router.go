// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"

	"docledger/internal/domain/documents"
	"docledger/internal/domain/export"
	"docledger/internal/domain/registers/loyalty"
	"docledger/internal/domain/registers/stock"
	"docledger/internal/infrastructure/http/v1/handlers"
	"docledger/internal/infrastructure/http/v1/middleware"
	"docledger/pkg/logger"
)

// Version is reported by /health/info.
const Version = "0.1.0"

// RouterConfig holds router dependencies.
type RouterConfig struct {
	Documents *documents.Service
	Stock     *stock.Service
	Loyalty   *loyalty.Service

	// Catalog is optional; without it the catalog routes are not registered.
	Catalog handlers.CatalogStore

	// Formatter renders /print, export.TextFormatter when nil.
	Formatter export.Formatter

	// Store names the backing store in health output ("memory" or "postgres").
	Store string
	// Checker is the readiness probe, nil when the store is always ready.
	Checker handlers.Checker

	// Logger for request logging
	Logger *logger.Logger

	// Debug switches gin to debug mode.
	Debug bool
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.Actor())
	router.Use(middleware.ErrorHandler())

	handlers.NewHealthHandler(cfg.Store, cfg.Checker, Version).RegisterRoutes(router.Group("/health"))

	v1 := router.Group("/api/v1")
	{
		registerDocumentRoutes(v1, cfg)
		registerRegisterRoutes(v1, cfg)
		registerCatalogRoutes(v1, cfg)
	}

	return router
}

// registerDocumentRoutes registers document endpoints.
func registerDocumentRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	base := handlers.NewBaseHandler()
	h := handlers.NewDocumentHandler(base, cfg.Documents, cfg.Stock, cfg.Formatter)
	h.RegisterRoutes(rg.Group("/documents"))
}

// registerRegisterRoutes registers stock and loyalty register endpoints.
func registerRegisterRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	base := handlers.NewBaseHandler()
	registers := rg.Group("/registers")
	{
		handlers.NewStockHandler(base, cfg.Stock).RegisterRoutes(registers.Group("/stock"))
		handlers.NewLoyaltyHandler(base, cfg.Loyalty).RegisterRoutes(registers.Group("/loyalty"))
	}
}

// registerCatalogRoutes registers directory maintenance endpoints.
func registerCatalogRoutes(rg *gin.RouterGroup, cfg RouterConfig) {
	if cfg.Catalog == nil {
		return
	}
	base := handlers.NewBaseHandler()
	handlers.NewCatalogHandler(base, cfg.Catalog).RegisterRoutes(rg.Group("/catalog"))
}
