package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

const (
	defaultInvoicesLimit = 100
	maxInvoicesLimit     = 1000
)

func (h *handler) registerInvoices(invoices *gin.RouterGroup) {
	invoices.GET("", h.listInvoices)
	invoices.GET("/:id", h.getInvoice)
	invoices.GET("/:id/receipt", h.invoiceReceipt)
}

// listInvoices без окна отдаёт последние счета, с окном отдаёт счета из [from, to).
func (h *handler) listInvoices(c *gin.Context) {
	from, to, err := parseWindow(c, h.reports.Location())
	if err != nil {
		badRequest(c, err)
		return
	}
	limit, err := queryLimit(c, defaultInvoicesLimit, maxInvoicesLimit)
	if err != nil {
		badRequest(c, err)
		return
	}

	var invoices []domain.Invoice
	if from.IsZero() && to.IsZero() {
		invoices, err = h.invoices.ListRecent(c.Request.Context(), limit)
	} else {
		invoices, err = h.invoices.List(c.Request.Context(), domain.InvoiceFilter{From: from, To: to, Limit: limit})
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	out := make([]invoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, toInvoiceResponse(inv))
	}
	c.JSON(http.StatusOK, gin.H{"invoices": out})
}

func (h *handler) getInvoice(c *gin.Context) {
	invoice, err := h.invoices.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toInvoiceResponse(invoice))
}

func (h *handler) invoiceReceipt(c *gin.Context) {
	text, err := h.reports.Receipt(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.String(http.StatusOK, text)
}
