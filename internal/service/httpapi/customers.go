package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func (h *handler) registerCustomers(customers *gin.RouterGroup) {
	customers.GET("", h.listCustomers)
	customers.POST("", h.createCustomer)
	customers.GET("/:id", h.getCustomer)
	customers.PUT("/:id", h.updateCustomer)
	customers.DELETE("/:id", h.deleteCustomer)
}

func (h *handler) listCustomers(c *gin.Context) {
	customers, err := h.catalog.ListCustomers(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]customerResponse, 0, len(customers))
	for _, customer := range customers {
		out = append(out, toCustomerResponse(customer))
	}
	c.JSON(http.StatusOK, gin.H{"customers": out})
}

func (h *handler) getCustomer(c *gin.Context) {
	customer, err := h.catalog.GetCustomer(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toCustomerResponse(customer))
}

func (h *handler) createCustomer(c *gin.Context) {
	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	customer, err := h.catalog.CreateCustomer(c.Request.Context(), domain.Customer{
		ID:    req.ID,
		Name:  req.Name,
		TaxID: req.TaxID,
		Phone: req.Phone,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toCustomerResponse(customer))
}

func (h *handler) updateCustomer(c *gin.Context) {
	var req customerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	customer, err := h.catalog.UpdateCustomer(c.Request.Context(), domain.Customer{
		ID:    c.Param("id"),
		Name:  req.Name,
		TaxID: req.TaxID,
		Phone: req.Phone,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toCustomerResponse(customer))
}

func (h *handler) deleteCustomer(c *gin.Context) {
	if err := h.catalog.DeleteCustomer(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
