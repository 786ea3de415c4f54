package admin

import (
	"net/http"

	"hubon-pickup/internal/middleware"
	"hubon-pickup/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AccountHandler struct {
	accounts AccountService
	logger   *zap.Logger
}

func NewAccountHandler(accounts AccountService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logger,
	}
}

type linkRequest struct {
	APIKey string `json:"api_key"`
}

// HandleLink handles POST /app/hubon
func (h *AccountHandler) HandleLink(c *gin.Context) {
	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, h.logger, errors.WrapDomainError(err, errors.CodeValidation, "invalid request", "body must be JSON"))
		return
	}

	link, err := h.accounts.Link(c.Request.Context(), middleware.GetSessionID(c), req.APIKey)
	if err != nil {
		middleware.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hubon": link})
}

// HandleSettings handles GET /app/settings
func (h *AccountHandler) HandleSettings(c *gin.Context) {
	link, err := h.accounts.Settings(c.Request.Context(), middleware.GetSessionID(c))
	if err != nil {
		middleware.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": link})
}
