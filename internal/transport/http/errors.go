package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"lms-progress-service/internal/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var kindStatus = []struct {
	kind   error
	status int
	code   string
}{
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
	{domain.ErrForbidden, http.StatusForbidden, "forbidden"},
	{domain.ErrNotEnrolled, http.StatusForbidden, "not_enrolled"},
	{domain.ErrEmailMismatch, http.StatusForbidden, "invite_email_mismatch"},
	{domain.ErrAttemptLimitReached, http.StatusForbidden, "attempt_limit_reached"},
	{domain.ErrInvalid, http.StatusBadRequest, "invalid"},
	{domain.ErrExpired, http.StatusGone, "expired"},
	{domain.ErrLimitReached, http.StatusConflict, "limit_reached"},
	{domain.ErrAlreadyEnrolled, http.StatusConflict, "already_enrolled"},
	{domain.ErrCapacityExceeded, http.StatusConflict, "capacity_exceeded"},
	{domain.ErrInvalidState, http.StatusConflict, "invalid_state"},
	{domain.ErrConflict, http.StatusConflict, "conflict"},
}

// statusFor maps an error to its HTTP status and stable code.
func statusFor(err error) (int, errorDetail) {
	for _, ks := range kindStatus {
		if !errors.Is(err, ks.kind) {
			continue
		}
		detail := errorDetail{Code: ks.code, Message: err.Error()}
		var derr *domain.Error
		if errors.As(err, &derr) {
			detail.Code = derr.Code
			detail.Message = derr.Message
		}
		return ks.status, detail
	}
	return http.StatusInternalServerError, errorDetail{Code: "internal", Message: "internal server error"}
}

func writeError(c *gin.Context, log *slog.Logger, err error) {
	status, detail := statusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, errorBody{Error: detail})
}

func badRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: errorDetail{Code: "bad_request", Message: message}})
}
