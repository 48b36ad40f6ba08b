package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/pos/internal/domain"
	"github.com/vladislavdragonenkov/pos/internal/service/catalog"
)

const (
	defaultMovementsLimit = 50
	maxMovementsLimit     = 500
)

func (h *handler) registerProducts(products *gin.RouterGroup) {
	products.GET("", h.listProducts)
	products.POST("", h.createProduct)
	products.GET("/low-stock", h.lowStock)
	products.GET("/:id", h.getProduct)
	products.PUT("/:id", h.updateProduct)
	products.DELETE("/:id", h.deleteProduct)
	products.POST("/:id/stock", h.adjustStock)
	products.GET("/:id/movements", h.listMovements)
}

func (h *handler) listProducts(c *gin.Context) {
	products, err := h.catalog.ListProducts(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": toProductResponses(products)})
}

func (h *handler) lowStock(c *gin.Context) {
	products, err := h.catalog.LowStock(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": toProductResponses(products)})
}

func (h *handler) getProduct(c *gin.Context) {
	product, err := h.catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(product))
}

func (h *handler) createProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	product, err := h.catalog.CreateProduct(c.Request.Context(), req.toDomain())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toProductResponse(product))
}

func (h *handler) updateProduct(c *gin.Context) {
	var req productRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	product := req.toDomain()
	product.ID = c.Param("id")

	updated, err := h.catalog.UpdateProduct(c.Request.Context(), product)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toProductResponse(updated))
}

func (h *handler) deleteProduct(c *gin.Context) {
	if err := h.catalog.DeleteProduct(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) adjustStock(c *gin.Context) {
	var req stockAdjustmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	movement, err := h.catalog.AdjustStock(c.Request.Context(), catalog.StockAdjustment{
		ProductID: c.Param("id"),
		Delta:     req.Delta,
		Reason:    domain.StockMovementReason(req.Reason),
		Reference: req.Reference,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toMovementResponse(movement))
}

func (h *handler) listMovements(c *gin.Context) {
	limit, err := queryLimit(c, defaultMovementsLimit, maxMovementsLimit)
	if err != nil {
		badRequest(c, err)
		return
	}
	movements, err := h.catalog.Movements(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]stockMovementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementResponse(m))
	}
	c.JSON(http.StatusOK, gin.H{"movements": out})
}
