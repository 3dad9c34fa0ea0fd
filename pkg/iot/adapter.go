package iot

import (
	"context"
	"strings"
	"time"

	z "github.com/Oudwins/zog"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/metrics"
)

// readingRequest carries every accepted spelling of the ingest fields. Older sketches post
// form bodies with short names; newer ones post JSON with the canonical names.
type readingRequest struct {
	Credential *string `zog:"credential"`
	Key        *string `zog:"key"`
	ApiKey     *string `zog:"api_key"`

	Temperature *float64 `zog:"temperature"`
	Temp        *float64 `zog:"temp"`
	McpTemp     *float64 `zog:"mcp_temp"`

	SecondaryTemperature *float64 `zog:"secondary_temperature"`
	Temp2                *float64 `zog:"temp2"`

	Humidity *float64 `zog:"humidity"`
	Weight   *float64 `zog:"weight"`

	BatteryVoltage *float64 `zog:"battery_voltage"`
	Voltage        *float64 `zog:"voltage"`
	BatteryPercent *float64 `zog:"battery_percent"`
	Percent        *float64 `zog:"percent"`

	RelayConnected *bool `zog:"relay_connected"`
	LvdState       *bool `zog:"lvd_state"`

	RecordedAt *time.Time `zog:"recorded_at"`
}

var readingRequestSchema = z.Struct(z.Shape{
	"Credential":           z.Ptr(z.String().Trim()),
	"Key":                  z.Ptr(z.String().Trim()),
	"ApiKey":               z.Ptr(z.String().Trim()),
	"Temperature":          z.Ptr(z.Float64()),
	"Temp":                 z.Ptr(z.Float64()),
	"McpTemp":              z.Ptr(z.Float64()),
	"SecondaryTemperature": z.Ptr(z.Float64()),
	"Temp2":                z.Ptr(z.Float64()),
	"Humidity":             z.Ptr(z.Float64()),
	"Weight":               z.Ptr(z.Float64()),
	"BatteryVoltage":       z.Ptr(z.Float64()),
	"Voltage":              z.Ptr(z.Float64()),
	"BatteryPercent":       z.Ptr(z.Float64()),
	"Percent":              z.Ptr(z.Float64()),
	"RelayConnected":       z.Ptr(z.Bool()),
	"LvdState":             z.Ptr(z.Bool()),
	"RecordedAt":           z.Ptr(z.Time()),
})

func firstOf[T any](values ...*T) *T {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

// Canonical folds aliases; the canonical name wins when both are present.
func (r readingRequest) Canonical() (credential string, payload Payload) {
	if c := firstOf(r.Credential, r.Key, r.ApiKey); c != nil {
		credential = strings.TrimSpace(*c)
	}
	payload = Payload{
		ReadingFields: ReadingFields{
			Temperature:          firstOf(r.Temperature, r.Temp, r.McpTemp),
			SecondaryTemperature: firstOf(r.SecondaryTemperature, r.Temp2),
			Humidity:             r.Humidity,
			Weight:               r.Weight,
			BatteryVoltage:       firstOf(r.BatteryVoltage, r.Voltage),
			BatteryPercent:       firstOf(r.BatteryPercent, r.Percent),
			RelayConnected:       firstOf(r.RelayConnected, r.LvdState),
		},
		RecordedAt: r.RecordedAt,
	}
	return credential, payload
}

// DecodeSubmission parses any zog data source (an HTTP request provider or a decoded JSON
// map from MQTT and gRPC) into a credential and canonical payload. The credential is returned
// even when other fields are malformed so callers can authenticate before reporting them.
func DecodeSubmission(data any) (string, Payload, error) {
	var req readingRequest
	issues := readingRequestSchema.Parse(data, &req)
	credential, payload := req.Canonical()
	if issues != nil {
		return credential, Payload{}, FromZogIssues(issues)
	}
	return credential, payload, nil
}

// rejectMalformed reports a body that failed to decode, but only to a caller holding a
// credential of an active device. Everyone else gets unauthorized and no schema detail.
func (i *IOT) rejectMalformed(ctx context.Context, credential string, decodeErr error) (err error) {
	defer func() {
		metrics.ObserveIngest(string(common.KindOf(err)))
	}()

	if credential == "" {
		return ErrCredentialRequired()
	}
	if _, err := i.Registry.ResolveByCredential(ctx, credential); err != nil {
		if common.IsKind(err, common.KindNotFound) {
			return errUnauthorized()
		}
		return err
	}
	return decodeErr
}

// ErrCredentialRequired is returned by every transport for a body without any credential.
func ErrCredentialRequired() *common.Error {
	return common.NewError(common.KindUnauthorized, "credential is required").WithField("credential")
}

// FromZogIssues folds schema issues into one invalid_payload error naming the first bad field.
func FromZogIssues(issues z.ZogIssueMap) error {
	details := map[string][]string{}
	first := ""
	for field, list := range issues {
		if len(field) > 0 && field[0] == '$' {
			continue
		}
		for _, issue := range list {
			details[field] = append(details[field], issue.Message)
		}
		if first == "" || field < first {
			first = field
		}
	}
	if first == "" {
		return common.NewError(common.KindInvalidPayload, "malformed request body")
	}
	return common.Errorf(common.KindInvalidPayload, "%s is malformed", first).
		WithField(first).
		WithDetails(details)
}
