package admin

import (
	"net/http"

	"hubon-pickup/internal/middleware"
	"hubon-pickup/internal/models"
	"hubon-pickup/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type GuideHandler struct {
	guides GuideStore
	logger *zap.Logger
}

func NewGuideHandler(guides GuideStore, logger *zap.Logger) *GuideHandler {
	return &GuideHandler{
		guides: guides,
		logger: logger,
	}
}

// HandleGet handles GET /app/guides. A shop that has not started the guide
// gets a null guide_data.
func (h *GuideHandler) HandleGet(c *gin.Context) {
	guide, err := h.guides.GetBySessionID(c.Request.Context(), middleware.GetSessionID(c))
	if errors.HasCode(err, errors.CodeNotFound) {
		c.JSON(http.StatusOK, gin.H{"guide_data": nil})
		return
	}
	if err != nil {
		middleware.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guide_data": guide})
}

// HandleUpdate handles PUT /app/guides
func (h *GuideHandler) HandleUpdate(c *gin.Context) {
	var update models.GuideUpdate
	if err := c.ShouldBindJSON(&update); err != nil {
		middleware.RespondError(c, h.logger, errors.WrapDomainError(err, errors.CodeValidation, "invalid request", "body must be JSON"))
		return
	}

	guide, err := h.guides.Upsert(c.Request.Context(), middleware.GetSessionID(c), update)
	if err != nil {
		middleware.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"guide_data": guide})
}
