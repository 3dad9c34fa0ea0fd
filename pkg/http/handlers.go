package http

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/Oudwins/zog/zhttp"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/iot"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

type policyResponse struct {
	DisconnectVoltage float64   `json:"disconnect_voltage"`
	ReconnectVoltage  float64   `json:"reconnect_voltage"`
	Enabled           bool      `json:"enabled"`
	Version           uint64    `json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func toPolicyResponse(p models.ThresholdPolicy) policyResponse {
	return policyResponse{
		DisconnectVoltage: p.DisconnectVoltage,
		ReconnectVoltage:  p.ReconnectVoltage,
		Enabled:           p.Enabled,
		Version:           p.Version,
		UpdatedAt:         p.UpdatedAt,
	}
}

// PostReading answers an accepted reading with the live policy so the node can apply new
// thresholds without a second round trip.
func (rs *RestfulServer) PostReading(c *gin.Context) {
	credential, payload, err := iot.DecodeSubmission(zhttp.Request(c.Request))
	if err != nil {
		renderError(c, rs.Iot.Ingestion.RejectMalformed(c.Request.Context(), credential, err))
		return
	}
	if credential == "" {
		renderError(c, iot.ErrCredentialRequired())
		return
	}

	if !rs.CheckCredentialLimiter(credential) {
		renderError(c, common.NewError(common.KindRateLimited, "too many submissions, slow down"))
		return
	}

	policy, err := rs.Iot.Ingestion.Submit(c.Request.Context(), credential, payload)
	if err != nil {
		renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPolicyResponse(*policy))
}

func (rs *RestfulServer) GetPolicy(c *gin.Context) {
	policy, err := rs.Iot.Policy.Get(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, toPolicyResponse(policy))
}

func (rs *RestfulServer) UpdatePolicy(c *gin.Context) {
	var req policyRequest
	if issues := policyRequestSchema.Parse(zhttp.Request(c.Request), &req); issues != nil {
		renderError(c, iot.FromZogIssues(issues))
		return
	}

	policy, err := rs.Iot.Policy.Update(c.Request.Context(), req.Patch())
	if err != nil {
		renderError(c, err)
		return
	}

	common.GetLoggerWith(common.LoggerNameRestfulServer).Info("Operator updated threshold policy",
		zap.String("operator", c.GetString(operatorContextKey)),
		zap.Uint64("version", policy.Version),
	)
	c.JSON(http.StatusOK, toPolicyResponse(policy))
}

func (rs *RestfulServer) ListDevices(c *gin.Context) {
	statuses, err := rs.Iot.Query.ListDevicesWithStatus(c.Request.Context())
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, statuses)
}

func (rs *RestfulServer) GetDevice(c *gin.Context) {
	r, err := iot.ParseRange(c.Query("range"))
	if err != nil {
		renderError(c, err)
		return
	}

	detail, err := rs.Iot.Query.DetailFor(c.Request.Context(), c.Param("device_id"), r)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (rs *RestfulServer) GetSummary(c *gin.Context) {
	r, err := iot.ParseRange(c.Query("range"))
	if err != nil {
		renderError(c, err)
		return
	}

	summary, err := rs.Iot.Query.Summary(c.Request.Context(), r)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// deviceWithCredential is the only response that reveals a credential.
type deviceWithCredential struct {
	models.Device
	Credential string `json:"credential"`
}

func (rs *RestfulServer) CreateDevice(c *gin.Context) {
	var req deviceRequest
	if issues := deviceRequestSchema.Parse(zhttp.Request(c.Request), &req); issues != nil {
		renderError(c, iot.FromZogIssues(issues))
		return
	}

	device, err := rs.Iot.Registry.Create(c.Request.Context(), req.Name)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, deviceWithCredential{Device: *device, Credential: device.Credential})
}

func (rs *RestfulServer) RenameDevice(c *gin.Context) {
	var req deviceRequest
	if issues := deviceRequestSchema.Parse(zhttp.Request(c.Request), &req); issues != nil {
		renderError(c, iot.FromZogIssues(issues))
		return
	}

	device, err := rs.Iot.Registry.Rename(c.Request.Context(), c.Param("device_id"), req.Name)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, device)
}

func (rs *RestfulServer) RegenerateCredential(c *gin.Context) {
	ctx := c.Request.Context()
	deviceID := c.Param("device_id")

	before, err := rs.Iot.Registry.Get(ctx, deviceID)
	if err != nil {
		renderError(c, err)
		return
	}

	credential, err := rs.Iot.Registry.RegenerateCredential(ctx, deviceID)
	if err != nil {
		renderError(c, err)
		return
	}
	if rs.RateLimiterStore != nil {
		rs.RateLimiterStore.Forget(before.Credential)
	}

	device, err := rs.Iot.Registry.Get(ctx, deviceID)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, deviceWithCredential{Device: *device, Credential: credential})
}

func (rs *RestfulServer) DeactivateDevice(c *gin.Context) {
	ctx := c.Request.Context()
	deviceID := c.Param("device_id")

	device, err := rs.Iot.Registry.Get(ctx, deviceID)
	if err != nil {
		renderError(c, err)
		return
	}
	if err := rs.Iot.Registry.Deactivate(ctx, deviceID); err != nil {
		renderError(c, err)
		return
	}
	if rs.RateLimiterStore != nil {
		rs.RateLimiterStore.Forget(device.Credential)
	}
	c.Status(http.StatusNoContent)
}

func (rs *RestfulServer) PostLimiter(c *gin.Context) {
	var req limiterRequest
	if issues := limiterRequestSchema.Parse(zhttp.Request(c.Request), &req); issues != nil {
		renderError(c, iot.FromZogIssues(issues))
		return
	}

	rs.SetLimiter(c.Param("credential"), req.Rate, req.Burst)

	c.Status(http.StatusOK)
}

var exportHeader = []string{
	"device_id", "device_name", "recorded_at",
	"temperature", "secondary_temperature", "humidity", "weight",
	"battery_voltage", "battery_percent", "relay_connected",
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatBool(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}

func (rs *RestfulServer) Export(c *gin.Context) {
	r, err := iot.ParseRange(c.Query("range"))
	if err != nil {
		renderError(c, err)
		return
	}
	format := c.DefaultQuery("format", "csv")
	if format != "csv" && format != "json" {
		renderError(c, common.Errorf(common.KindInvalidPayload, "format %q must be csv or json", format).WithField("format"))
		return
	}

	rows, err := rs.Iot.Query.Export(c.Request.Context(), r)
	if err != nil {
		renderError(c, err)
		return
	}

	if format == "json" {
		c.JSON(http.StatusOK, rows)
		return
	}

	c.Header("Content-Disposition", "attachment; filename=readings-"+string(r)+".csv")
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write(exportHeader)
	for _, row := range rows {
		_ = w.Write([]string{
			row.DeviceID,
			row.DeviceName,
			row.RecordedAt.UTC().Format(time.RFC3339Nano),
			formatFloat(row.Temperature),
			formatFloat(row.SecondaryTemperature),
			formatFloat(row.Humidity),
			formatFloat(row.Weight),
			formatFloat(row.BatteryVoltage),
			formatFloat(row.BatteryPercent),
			formatBool(row.RelayConnected),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		common.GetLoggerWith(common.LoggerNameRestfulServer).Warn("Export stream interrupted", zap.Error(err))
	}
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (rs *RestfulServer) Login(c *gin.Context) {
	if rs.Auth == nil {
		renderError(c, common.NewError(common.KindForbidden, "operator login is disabled"))
		return
	}

	var req loginRequest
	if issues := loginRequestSchema.Parse(zhttp.Request(c.Request), &req); issues != nil {
		renderError(c, iot.FromZogIssues(issues))
		return
	}

	token, expiresAt, err := rs.Auth.Login(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

func (rs *RestfulServer) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
