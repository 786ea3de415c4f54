package admin

import (
	"encoding/json"
	"net/http"
	"strconv"

	"hubon-pickup/internal/middleware"
	"hubon-pickup/internal/models"
	"hubon-pickup/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type TransportHandler struct {
	transports TransportService
	logger     *zap.Logger
}

func NewTransportHandler(transports TransportService, logger *zap.Logger) *TransportHandler {
	return &TransportHandler{
		transports: transports,
		logger:     logger,
	}
}

// HandleListPaid handles GET /app/paid
func (h *TransportHandler) HandleListPaid(c *gin.Context) {
	resp, err := h.transports.ListPaid(c.Request.Context(), middleware.GetSessionID(c), pageParam(c))
	if err != nil {
		middleware.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleListFailed handles GET /app/failed
func (h *TransportHandler) HandleListFailed(c *gin.Context) {
	resp, err := h.transports.ListFailed(c.Request.Context(), middleware.GetSessionID(c), pageParam(c))
	if err != nil {
		middleware.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// HandleFailedDetail handles GET /app/failed/:id
func (h *TransportHandler) HandleFailedDetail(c *gin.Context) {
	id, err := orderIDParam(c)
	if err != nil {
		middleware.RespondError(c, h.logger, err)
		return
	}

	detail, err := h.transports.FailedDetail(c.Request.Context(), middleware.GetSessionID(c), id)
	if err != nil {
		middleware.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

// HandleRetryFailed handles POST /app/failed/:id
func (h *TransportHandler) HandleRetryFailed(c *gin.Context) {
	id, err := orderIDParam(c)
	if err != nil {
		middleware.RespondError(c, h.logger, err)
		return
	}

	var params models.CreateTransportParams
	if err := c.ShouldBindJSON(&params); err != nil {
		middleware.RespondError(c, h.logger, errors.WrapDomainError(err, errors.CodeValidation, "invalid request", "body must be a transport form"))
		return
	}

	order, err := h.transports.RetryFailed(c.Request.Context(), middleware.GetSessionID(c), id, params)
	if err != nil {
		middleware.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": order})
}

type failedOrderRequest struct {
	OrderID  string          `json:"order_id"`
	Payload  json.RawMessage `json:"payload"`
	Response json.RawMessage `json:"response"`
}

// HandleRecordFailure handles POST /app/orders/failed
func (h *TransportHandler) HandleRecordFailure(c *gin.Context) {
	var req failedOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.RespondError(c, h.logger, errors.WrapDomainError(err, errors.CodeValidation, "invalid request", "body must be JSON"))
		return
	}

	order, err := h.transports.RecordFailure(c.Request.Context(), middleware.GetSessionID(c), req.OrderID, req.Payload, req.Response)
	if err != nil {
		middleware.RespondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"order": order})
}

// pageParam defaults to the first page on a missing or malformed value.
func pageParam(c *gin.Context) int {
	page, err := strconv.Atoi(c.Query("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

func orderIDParam(c *gin.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 1 {
		return 0, errors.NewDomainError(errors.CodeNotFound, "order not found", "invalid order id "+strconv.Quote(raw))
	}
	return id, nil
}
