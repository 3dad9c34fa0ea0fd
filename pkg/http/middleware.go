package http

import (
	"strings"

	"github.com/gin-gonic/gin"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
)

const operatorContextKey = "operator"

// RequireOperator accepts "Authorization: Bearer <token>" issued by /auth/login.
func (rs *RestfulServer) RequireOperator() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rs.Auth == nil {
			renderError(c, common.NewError(common.KindForbidden, "operator access is disabled"))
			return
		}

		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			renderError(c, common.NewError(common.KindUnauthorized, "operator token required"))
			return
		}

		claims, err := rs.Auth.ParseToken(strings.TrimSpace(token))
		if err != nil {
			renderError(c, err)
			return
		}

		c.Set(operatorContextKey, claims.Subject)
		c.Next()
	}
}
