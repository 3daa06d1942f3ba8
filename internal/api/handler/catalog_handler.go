package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/catalogx/internal/api/middleware"
	"github.com/timmy/catalogx/internal/domain"
	"github.com/timmy/catalogx/internal/service"
)

// MaxItemsPerRequest bounds the batch size of the synchronous upsert endpoints.
const MaxItemsPerRequest = 5000

// CatalogHandler exposes the upsert engine for direct JSON batches. Every
// item gets its own result; a failing item does not fail the request.
type CatalogHandler struct {
	engine *service.UpsertEngine
}

// NewCatalogHandler creates a new catalog handler.
func NewCatalogHandler(engine *service.UpsertEngine) *CatalogHandler {
	return &CatalogHandler{engine: engine}
}

type priceRequest struct {
	Prices []domain.PriceInput `json:"prices" binding:"required"`
}

type stockBalanceRequest struct {
	Balance []domain.StockInput `json:"balance" binding:"required"`
}

// UpsertProducts handles POST /company/:id/product.
func (h *CatalogHandler) UpsertProducts(c *gin.Context) {
	var items []domain.ProductInput
	if err := c.ShouldBindJSON(&items); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if !checkBatchSize(c, len(items)) {
		return
	}
	results := h.engine.UpsertProducts(c.Request.Context(), middleware.CompanyID(c), items)
	c.JSON(http.StatusOK, results)
}

// UpsertPrices handles POST /price for the session company.
func (h *CatalogHandler) UpsertPrices(c *gin.Context) {
	var req priceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if !checkBatchSize(c, len(req.Prices)) {
		return
	}
	results := h.engine.UpsertPrices(c.Request.Context(), middleware.CompanyID(c), req.Prices)
	c.JSON(http.StatusOK, results)
}

// UpsertStockBalances handles POST /stock-balance for the session company.
func (h *CatalogHandler) UpsertStockBalances(c *gin.Context) {
	var req stockBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request: "+err.Error())
		return
	}
	if !checkBatchSize(c, len(req.Balance)) {
		return
	}
	results := h.engine.UpsertStockBalances(c.Request.Context(), middleware.CompanyID(c), req.Balance)
	c.JSON(http.StatusOK, results)
}

func checkBatchSize(c *gin.Context, n int) bool {
	if n > MaxItemsPerRequest {
		badRequest(c, fmt.Sprintf("batch of %d items exceeds the limit of %d", n, MaxItemsPerRequest))
		return false
	}
	return true
}
