package handlers

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"docledger/internal/core/entity"
	"docledger/internal/core/id"
	"docledger/internal/domain"
	"docledger/internal/domain/documents"
	"docledger/internal/domain/export"
	"docledger/internal/domain/ledger"
	"docledger/internal/domain/posting"
	"docledger/internal/domain/totals"
	"docledger/internal/infrastructure/http/v1/dto"
)

// HeaderIdempotencyKey carries the client token of a payment.
const HeaderIdempotencyKey = "Idempotency-Key"

// DocumentService is the part of documents.Service the handler uses.
type DocumentService interface {
	Create(ctx context.Context, in documents.CreateInput) (documents.CreateResult, error)
	Update(ctx context.Context, docID id.ID, in documents.CreateInput) (*documents.Document, error)
	Finalize(ctx context.Context, docID id.ID) (*documents.Document, posting.Result, error)
	ApplyPayment(ctx context.Context, docID id.ID, in ledger.Input) (*documents.Document, ledger.Outcome, error)
	Get(ctx context.Context, docID id.ID) (*documents.Document, error)
	GetByNumber(ctx context.Context, docType documents.Type, number string) (*documents.Document, error)
	List(ctx context.Context, filter documents.ListFilter) (domain.ListResult[*documents.Document], error)
	Preview(ctx context.Context, in documents.CreateInput) (totals.Result, error)
}

// MovementLookup returns the stock movements a document produced.
type MovementLookup interface {
	MovementsByDocument(ctx context.Context, recorderID id.ID) ([]entity.StockMovement, error)
}

var _ DocumentService = (*documents.Service)(nil)

// DocumentHandler handles HTTP requests for commercial documents.
type DocumentHandler struct {
	*BaseHandler
	service   DocumentService
	movements MovementLookup
	formatter export.Formatter
}

// NewDocumentHandler creates a new document handler.
// formatter defaults to export.TextFormatter when nil.
func NewDocumentHandler(base *BaseHandler, service DocumentService, movements MovementLookup, formatter export.Formatter) *DocumentHandler {
	if formatter == nil {
		formatter = export.TextFormatter{}
	}
	return &DocumentHandler{
		BaseHandler: base,
		service:     service,
		movements:   movements,
		formatter:   formatter,
	}
}

// RegisterRoutes registers document routes.
func (h *DocumentHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.POST("/preview", h.Preview)
	rg.GET("/by-number/:type/:number", h.GetByNumber)
	rg.GET("/:id", h.Get)
	rg.PUT("/:id", h.Update)
	rg.POST("/:id/finalize", h.Finalize)
	rg.POST("/:id/payments", h.ApplyPayment)
	rg.GET("/:id/export", h.Export)
	rg.GET("/:id/print", h.Print)
	rg.GET("/:id/movements", h.Movements)
}

// Create handles POST /documents
func (h *DocumentHandler) Create(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.Create(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.Created(c, dto.FromPosting(res.Document, res.Posting))
}

// Preview handles POST /documents/preview
func (h *DocumentHandler) Preview(c *gin.Context) {
	var req dto.CreateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	res, err := h.service.Preview(c.Request.Context(), in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromPreview(res))
}

// Get handles GET /documents/:id
func (h *DocumentHandler) Get(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	doc, err := h.service.Get(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// GetByNumber handles GET /documents/by-number/:type/:number
func (h *DocumentHandler) GetByNumber(c *gin.Context) {
	docType, err := documents.ParseType(c.Param("type"))
	if err != nil {
		h.Error(c, err)
		return
	}
	doc, err := h.service.GetByNumber(c.Request.Context(), docType, c.Param("number"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// List handles GET /documents
func (h *DocumentHandler) List(c *gin.Context) {
	var req dto.ListDocumentsRequest
	if !h.BindQuery(c, &req) {
		return
	}
	filter, err := req.ToFilter()
	if err != nil {
		h.Error(c, err)
		return
	}

	result, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.DocumentSummary, len(result.Items))
	for i, doc := range result.Items {
		items[i] = dto.FromDocumentSummary(doc)
	}
	h.OK(c, dto.ListResponse{
		Items:      items,
		TotalCount: result.TotalCount,
		Limit:      result.Limit,
		Offset:     result.Offset,
	})
}

// Update handles PUT /documents/:id
func (h *DocumentHandler) Update(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateDocumentRequest
	if !h.BindJSON(c, &req) {
		return
	}
	in, err := req.ToInput()
	if err != nil {
		h.Error(c, err)
		return
	}

	doc, err := h.service.Update(c.Request.Context(), docID, in)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromDocument(doc))
}

// Finalize handles POST /documents/:id/finalize
func (h *DocumentHandler) Finalize(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	doc, res, err := h.service.Finalize(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.FromPosting(doc, res))
}

// ApplyPayment handles POST /documents/:id/payments
// A replayed idempotency key answers 200 with the original payment; a new payment answers 201.
func (h *DocumentHandler) ApplyPayment(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	doc, out, err := h.service.ApplyPayment(c.Request.Context(), docID, req.ToInput(c.GetHeader(HeaderIdempotencyKey)))
	if err != nil {
		h.Error(c, err)
		return
	}

	resp := dto.FromPaymentOutcome(doc, out)
	if out.Replayed {
		h.OK(c, resp)
		return
	}
	h.Created(c, resp)
}

// Export handles GET /documents/:id/export
func (h *DocumentHandler) Export(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	doc, err := h.service.Get(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", exportName(doc, "json")))
	h.OK(c, export.FromDocument(doc))
}

// Print handles GET /documents/:id/print
func (h *DocumentHandler) Print(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	doc, err := h.service.Get(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}

	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, doc); err != nil {
		h.Error(c, err)
		return
	}

	contentType := "text/plain; charset=utf-8"
	if ct, ok := h.formatter.(export.ContentTyper); ok {
		contentType = ct.ContentType()
	}
	c.Data(http.StatusOK, contentType, buf.Bytes())
}

// Movements handles GET /documents/:id/movements
func (h *DocumentHandler) Movements(c *gin.Context) {
	docID, ok := h.ParamID(c, "id")
	if !ok {
		return
	}
	movements, err := h.movements.MovementsByDocument(c.Request.Context(), docID)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.ItemsResponse[dto.StockMovementResponse]{Items: dto.FromStockMovements(movements)})
}

func exportName(doc *documents.Document, ext string) string {
	number := doc.Number
	if number == "" {
		number = doc.ID.String()
	}
	return fmt.Sprintf("%s-%s.%s", doc.Type, number, ext)
}
