package http

import (
	z "github.com/Oudwins/zog"
	"liyu1981.xyz/hive-telemetry-service/pkg/iot"
)

type policyRequest struct {
	DisconnectVoltage *float64 `zog:"disconnect_voltage"`
	ReconnectVoltage  *float64 `zog:"reconnect_voltage"`
	Enabled           *bool    `zog:"enabled"`
}

var policyRequestSchema = z.Struct(z.Shape{
	"DisconnectVoltage": z.Ptr(z.Float64()),
	"ReconnectVoltage":  z.Ptr(z.Float64()),
	"Enabled":           z.Ptr(z.Bool()),
})

func (r policyRequest) Patch() iot.PolicyPatch {
	return iot.PolicyPatch{
		DisconnectVoltage: r.DisconnectVoltage,
		ReconnectVoltage:  r.ReconnectVoltage,
		Enabled:           r.Enabled,
	}
}

type deviceRequest struct {
	Name string `zog:"name"`
}

var deviceRequestSchema = z.Struct(z.Shape{
	"Name": z.String().Trim().Required(z.Message("name is required")),
})

type loginRequest struct {
	Username string `zog:"username"`
	Password string `zog:"password"`
}

var loginRequestSchema = z.Struct(z.Shape{
	"Username": z.String().Trim().Required(),
	"Password": z.String().Required(),
})

type limiterRequest struct {
	Rate  float64 `zog:"rate"`
	Burst int     `zog:"burst"`
}

var limiterRequestSchema = z.Struct(z.Shape{
	"Rate":  z.Float64().GT(0).Required(),
	"Burst": z.Int().GT(0).Required(),
})
