package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/logging"
	"github.com/tm-acme-shop/acme-shop-checkout-service/internal/middleware"
)

var kindStatus = map[errors.Kind]int{
	errors.KindInvalidInput:    http.StatusBadRequest,
	errors.KindNotFound:        http.StatusNotFound,
	errors.KindInvalidState:    http.StatusBadRequest,
	errors.KindConflict:        http.StatusConflict,
	errors.KindPaymentDeclined: http.StatusPaymentRequired,
	errors.KindInternal:        http.StatusInternalServerError,
}

func statusFor(kind errors.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// errorBody renders err without leaking internal details.
func errorBody(err error) (int, gin.H) {
	var appErr *errors.Error
	if !errors.As(err, &appErr) || appErr.Kind == errors.KindInternal {
		return http.StatusInternalServerError, gin.H{
			"error":   "internal",
			"message": "internal server error",
		}
	}

	body := gin.H{
		"error":   appErr.Reason,
		"message": appErr.Message,
	}
	if appErr.Field != "" {
		body["field"] = appErr.Field
	}
	return statusFor(appErr.Kind), body
}

func (h *Handlers) handleError(c *gin.Context, err error) {
	status, body := errorBody(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", logging.Fields{
			"path":       c.FullPath(),
			"request_id": c.GetString(string(middleware.RequestIDKey)),
			"error":      err.Error(),
		})
	}
	c.JSON(status, body)
}

func (h *Handlers) badRequest(c *gin.Context, err error) {
	h.logger.Debug("Failed to bind request", logging.Fields{"error": err.Error()})
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "invalid_request",
		"message": "invalid request body",
	})
}

func parseIDParam(c *gin.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidationError(name, name+" must be a positive integer")
	}
	return id, nil
}
