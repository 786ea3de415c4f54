package middleware

import (
	"encoding/json"

	"hubon-pickup/pkg/errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error   bool              `json:"error"`
	Code    int               `json:"code"`
	Message string            `json:"message"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"errors,omitempty"`
	Carrier json.RawMessage   `json:"carrier_response,omitempty"`
}

// RespondError writes err as an ErrorResponse with the status its code maps
// to and aborts the chain. Errors that are not DomainErrors are reported as
// internal without their text.
func RespondError(c *gin.Context, logger *zap.Logger, err error) {
	status := errors.GetHTTPStatus(err)
	fields := []zap.Field{
		zap.String("request_id", GetRequestID(c)),
		zap.String("path", c.Request.URL.Path),
		zap.Int("status_code", status),
		zap.Error(err),
	}
	if status >= 500 {
		logger.Error("request failed", fields...)
	} else {
		logger.Warn("request rejected", fields...)
	}

	domainErr, ok := errors.As(err)
	if !ok {
		c.AbortWithStatusJSON(status, ErrorResponse{
			Error:   true,
			Code:    errors.CodeInternal,
			Message: "internal error",
		})
		return
	}

	body := ErrorResponse{
		Error:   true,
		Code:    domainErr.Code,
		Message: domainErr.Message,
		Details: domainErr.Details,
		Fields:  domainErr.Fields,
	}
	if domainErr.Code == errors.CodeInternal {
		body.Details = ""
	}
	if len(domainErr.RawBody) > 0 && json.Valid(domainErr.RawBody) {
		body.Carrier = domainErr.RawBody
	}
	c.AbortWithStatusJSON(status, body)
}
