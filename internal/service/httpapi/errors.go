package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vladislavdragonenkov/pos/internal/domain"
)

func statusFromError(err error) int {
	switch {
	case domain.IsInputError(err), domain.IsValidationError(err):
		return http.StatusBadRequest
	case domain.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrProductAlreadyExists),
		errors.Is(err, domain.ErrInvoiceAlreadyExists),
		domain.IsStoreConflict(err):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail отвечает ошибкой. Внутренние ошибки логируются и не раскрываются клиенту.
func (h *handler) fail(c *gin.Context, err error) {
	status := statusFromError(err)
	if status == http.StatusInternalServerError {
		h.logger.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
