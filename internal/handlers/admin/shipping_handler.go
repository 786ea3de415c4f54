package admin

import (
	"net/http"

	"hubon-pickup/internal/middleware"
	"hubon-pickup/internal/services/shipping"
	"hubon-pickup/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type ShippingHandler struct {
	shipping ShippingService
	logger   *zap.Logger
}

func NewShippingHandler(shipping ShippingService, logger *zap.Logger) *ShippingHandler {
	return &ShippingHandler{
		shipping: shipping,
		logger:   logger,
	}
}

// HandleSave handles POST /app/settings
func (h *ShippingHandler) HandleSave(c *gin.Context) {
	var req shipping.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, h.logger, errors.WrapDomainError(err, errors.CodeValidation, "invalid request", "body must be JSON"))
		return
	}

	link, err := h.shipping.Save(c.Request.Context(), middleware.GetSessionID(c), req)
	if err != nil {
		middleware.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": link, "message": "Successfully updated user."})
}
