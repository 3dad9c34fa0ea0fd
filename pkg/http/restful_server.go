package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"liyu1981.xyz/hive-telemetry-service/pkg/auth"
	"liyu1981.xyz/hive-telemetry-service/pkg/iot"
	"liyu1981.xyz/hive-telemetry-service/pkg/metrics"
)

type RestfulServer struct {
	Server           *gin.Engine
	Iot              *iot.IOT
	RateLimiterStore *iot.RateLimiterStore
	Auth             *auth.Service
	// Live serves the websocket feed at /ws when set.
	Live           http.Handler
	RequestTimeout time.Duration
	CorsOrigins    []string
}

func (rs *RestfulServer) GetLimiter(credential string) *rate.Limiter {
	if rs.RateLimiterStore == nil {
		return nil
	} else {
		return rs.RateLimiterStore.GetLimiter(credential)
	}
}

func (rs *RestfulServer) CheckCredentialLimiter(credential string) bool {
	limiter := rs.GetLimiter(credential)
	if limiter == nil {
		return true
	}
	return limiter.Allow()
}

func (rs *RestfulServer) SetLimiter(credential string, credentialRate float64, credentialBurst int) {
	if rs.RateLimiterStore == nil {
		return
	}
	rs.RateLimiterStore.SetLimiter(credential, rate.Limit(credentialRate), credentialBurst)
}

// withTimeout bounds every request; storage calls inherit the deadline via c.Request.Context().
func (rs *RestfulServer) withTimeout() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rs.RequestTimeout <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), rs.RequestTimeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (rs *RestfulServer) corsConfig() cors.Config {
	cfg := cors.DefaultConfig()
	if len(rs.CorsOrigins) == 0 {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = rs.CorsOrigins
	}
	cfg.AllowHeaders = append(cfg.AllowHeaders, "Authorization")
	return cfg
}

func (rs *RestfulServer) Setup() {
	rs.Server.Use(cors.New(rs.corsConfig()))

	rs.Server.GET("/healthz", rs.HealthCheck)
	rs.Server.GET("/metrics", gin.WrapH(metrics.Handler()))
	if rs.Live != nil {
		rs.Server.GET("/ws", gin.WrapH(rs.Live))
	}

	api := rs.Server.Group("/", rs.withTimeout())
	{
		api.POST("/readings", rs.PostReading)
		api.GET("/lvd/settings", rs.GetPolicy)
		api.GET("/devices", rs.ListDevices)
		api.GET("/devices/:device_id", rs.GetDevice)
		api.GET("/summary", rs.GetSummary)
		api.POST("/auth/login", rs.Login)
	}

	operator := rs.Server.Group("/", rs.withTimeout(), rs.RequireOperator())
	{
		operator.PUT("/lvd/settings", rs.UpdatePolicy)
		operator.POST("/devices", rs.CreateDevice)
		operator.PUT("/devices/:device_id", rs.RenameDevice)
		operator.POST("/devices/:device_id/credential", rs.RegenerateCredential)
		operator.DELETE("/devices/:device_id", rs.DeactivateDevice)
		operator.POST("/limiter/:credential", rs.PostLimiter)
		operator.GET("/export", rs.Export)
	}
}
