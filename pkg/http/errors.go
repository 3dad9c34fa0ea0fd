package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
)

// RetryAfterSeconds is advertised on transient failures.
const RetryAfterSeconds = 5

type errorBody struct {
	Error *common.Error `json:"error"`
}

func StatusForKind(kind common.ErrorKind) int {
	switch kind {
	case common.KindUnauthorized:
		return http.StatusUnauthorized
	case common.KindForbidden:
		return http.StatusForbidden
	case common.KindNotFound:
		return http.StatusNotFound
	case common.KindInvalidPayload, common.KindOutOfRange, common.KindPolicyInvariantViolation:
		return http.StatusBadRequest
	case common.KindRateLimited:
		return http.StatusTooManyRequests
	case common.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func renderError(c *gin.Context, err error) {
	appErr := common.AsError(err)
	status := StatusForKind(appErr.Kind)

	if status >= http.StatusInternalServerError {
		common.GetLoggerWith(common.LoggerNameRestfulServer).Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("kind", string(appErr.Kind)),
			zap.Error(err),
		)
	}
	if appErr.Retryable() {
		c.Header("Retry-After", strconv.Itoa(RetryAfterSeconds))
	}
	c.AbortWithStatusJSON(status, errorBody{Error: appErr})
}
