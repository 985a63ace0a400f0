package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/seohub/internal/mailer/token"
	"github.com/smallbiznis/seohub/internal/plan"
	usagedomain "github.com/smallbiznis/seohub/internal/usage/domain"
	webhookdomain "github.com/smallbiznis/seohub/internal/webhook/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string                     `json:"type"`
	Message string                     `json:"message"`
	Errors  []webhookdomain.FieldError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized    = errors.New("unauthorized")
	ErrTooManyRequests = errors.New("too_many_requests")
	ErrNotFound        = errors.New("not_found")
	ErrInvalidRequest  = errors.New("invalid_request")
	ErrInternal        = errors.New("internal_error")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

// mapError translates domain errors to HTTP responses. Anything unmapped is a
// sanitized 500; internal detail never leaves the process.
func mapError(err error) (int, errorPayload) {
	var vErr *webhookdomain.ValidationError
	if errors.As(err, &vErr) && vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Fields,
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrTooManyRequests):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, plan.ErrInvalidTier),
		errors.Is(err, plan.ErrInvalidCategory),
		errors.Is(err, usagedomain.ErrNoActivePackage):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: "invalid request",
		}
	case errors.Is(err, token.ErrExpired):
		return http.StatusBadRequest, errorPayload{
			Type:    "token_expired",
			Message: "unsubscribe link has expired",
		}
	case errors.Is(err, token.ErrInvalid):
		return http.StatusBadRequest, errorPayload{
			Type:    "token_invalid",
			Message: "unsubscribe link is not valid",
		}
	case errors.Is(err, ErrNotFound),
		errors.Is(err, usagedomain.ErrDealershipNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
