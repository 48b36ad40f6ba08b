package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	defaultTopLimit = 5
	maxTopLimit     = 100
)

func (h *handler) registerReports(reports *gin.RouterGroup) {
	reports.GET("/summary", h.summary)
	reports.GET("/top-products", h.topProducts)
	reports.GET("/top-customers", h.topCustomers)
	reports.GET("/dashboard", h.dashboard)
}

func (h *handler) summary(c *gin.Context) {
	from, to, err := parseWindow(c, h.reports.Location())
	if err != nil {
		badRequest(c, err)
		return
	}
	summary, err := h.reports.Summary(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, toSummaryResponse(summary))
}

func (h *handler) topProducts(c *gin.Context) {
	from, to, err := parseWindow(c, h.reports.Location())
	if err != nil {
		badRequest(c, err)
		return
	}
	limit, err := queryLimit(c, defaultTopLimit, maxTopLimit)
	if err != nil {
		badRequest(c, err)
		return
	}
	ranks, err := h.reports.TopProducts(c.Request.Context(), from, to, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]productRankResponse, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, productRankResponse{
			ProductID: r.ProductID,
			Name:      r.Name,
			Quantity:  r.Quantity,
			Revenue:   money(r.Revenue),
		})
	}
	c.JSON(http.StatusOK, gin.H{"products": out})
}

func (h *handler) topCustomers(c *gin.Context) {
	from, to, err := parseWindow(c, h.reports.Location())
	if err != nil {
		badRequest(c, err)
		return
	}
	limit, err := queryLimit(c, defaultTopLimit, maxTopLimit)
	if err != nil {
		badRequest(c, err)
		return
	}
	ranks, err := h.reports.TopCustomers(c.Request.Context(), from, to, limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	out := make([]customerRankResponse, 0, len(ranks))
	for _, r := range ranks {
		out = append(out, customerRankResponse{
			CustomerID: r.CustomerID,
			Name:       r.Name,
			Revenue:    money(r.Revenue),
			Invoices:   r.Invoices,
		})
	}
	c.JSON(http.StatusOK, gin.H{"customers": out})
}

func (h *handler) dashboard(c *gin.Context) {
	d, err := h.reports.Dashboard(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dashboardResponse{
		TodayRevenue:   money(d.TodayRevenue),
		TodaySales:     d.TodaySales,
		LowStockCount:  d.LowStockCount,
		CustomersCount: d.CustomersCount,
		ProductsCount:  d.ProductsCount,
		GeneratedAt:    d.GeneratedAt,
	})
}
