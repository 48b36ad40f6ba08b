package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func (h *handler) registerExpenses(expenses *gin.RouterGroup) {
	expenses.GET("", h.listExpenses)
	expenses.POST("", h.createExpense)
	expenses.GET("/:id", h.getExpense)
	expenses.PUT("/:id", h.updateExpense)
	expenses.DELETE("/:id", h.deleteExpense)
}

func (h *handler) listExpenses(c *gin.Context) {
	from, to, err := parseWindow(c, h.reports.Location())
	if err != nil {
		badRequest(c, err)
		return
	}
	expenses, err := h.catalog.ListExpenses(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]expenseResponse, 0, len(expenses))
	for _, e := range expenses {
		out = append(out, toExpenseResponse(e))
	}
	c.JSON(http.StatusOK, gin.H{"expenses": out})
}

func (h *handler) getExpense(c *gin.Context) {
	expense, err := h.catalog.GetExpense(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toExpenseResponse(expense))
}

func (h *handler) createExpense(c *gin.Context) {
	expense, ok := h.bindExpense(c)
	if !ok {
		return
	}
	created, err := h.catalog.CreateExpense(c.Request.Context(), expense)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, toExpenseResponse(created))
}

func (h *handler) updateExpense(c *gin.Context) {
	expense, ok := h.bindExpense(c)
	if !ok {
		return
	}
	expense.ID = c.Param("id")
	updated, err := h.catalog.UpdateExpense(c.Request.Context(), expense)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toExpenseResponse(updated))
}

func (h *handler) deleteExpense(c *gin.Context) {
	if err := h.catalog.DeleteExpense(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *handler) bindExpense(c *gin.Context) (domain.Expense, bool) {
	var req expenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return domain.Expense{}, false
	}
	date, _, err := parseMoment(req.Date, h.reports.Location())
	if err != nil {
		badRequest(c, err)
		return domain.Expense{}, false
	}
	return domain.Expense{
		ID:          req.ID,
		Description: req.Description,
		Amount:      req.Amount,
		Category:    domain.ExpenseCategory(req.Category),
		Date:        date,
	}, true
}
