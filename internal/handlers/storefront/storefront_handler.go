package storefront

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hubon-pickup/internal/middleware"
	"hubon-pickup/internal/models"
	"hubon-pickup/internal/services/availability"
	"hubon-pickup/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// SettingsService answers the storefront widget's pickup questions for a shop.
type SettingsService interface {
	HubSettings(ctx context.Context, shop, hubID string) (*availability.HubAvailability, error)
	DisabledDates(ctx context.Context, shop, hubID string, month, year int) ([]time.Time, error)
	SearchHubs(ctx context.Context, shop, search string) ([]models.Hub, error)
}

// Handler serves the public /api endpoints called from the shop's theme.
type Handler struct {
	settings SettingsService
	logger   *zap.Logger
}

func NewHandler(settings SettingsService, logger *zap.Logger) *Handler {
	return &Handler{
		settings: settings,
		logger:   logger,
	}
}

// HandleSettings handles GET /api/settings
func (h *Handler) HandleSettings(c *gin.Context) {
	shop, ok := h.shop(c)
	if !ok {
		return
	}

	hub, err := h.settings.HubSettings(c.Request.Context(), shop, c.Query("hubId"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"settings": hub})
}

// HandleHubs handles GET /api/hubs
func (h *Handler) HandleHubs(c *gin.Context) {
	shop, ok := h.shop(c)
	if !ok {
		return
	}

	hubs, err := h.settings.SearchHubs(c.Request.Context(), shop, c.Query("search"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if hubs == nil {
		hubs = []models.Hub{}
	}
	c.JSON(http.StatusOK, gin.H{"hubs": hubs})
}

// HandleAvailability handles GET /api/availability
func (h *Handler) HandleAvailability(c *gin.Context) {
	shop, ok := h.shop(c)
	if !ok {
		return
	}

	month, err := optionalInt(c, "month")
	if err != nil {
		h.respondError(c, err)
		return
	}
	year, err := optionalInt(c, "year")
	if err != nil {
		h.respondError(c, err)
		return
	}

	dates, err := h.settings.DisabledDates(c.Request.Context(), shop, c.Query("hubId"), month, year)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"disabled_dates": availability.FormatDates(dates)})
}

func (h *Handler) shop(c *gin.Context) (string, bool) {
	shop := strings.TrimSpace(c.Query("myshopifyDomain"))
	if shop == "" {
		respondNotFound(c)
		return "", false
	}
	return shop, true
}

// respondError reports an unresolvable shop as a bare 404.
func (h *Handler) respondError(c *gin.Context, err error) {
	if errors.HasCode(err, errors.CodeNotFound) {
		h.logger.Debug("storefront lookup not found", zap.Error(err))
		respondNotFound(c)
		return
	}
	middleware.RespondError(c, h.logger, err)
}

func respondNotFound(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"message": "Not Found"})
}

func optionalInt(c *gin.Context, name string) (int, error) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.WrapDomainError(err, errors.CodeAvailabilityInput, "invalid "+name, raw+" is not a number")
	}
	return n, nil
}
