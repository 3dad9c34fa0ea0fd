package models

import "time"

// Device is one physical sensor/relay node. Devices are never hard deleted so that
// reading history keeps resolving.
type Device struct {
	ID         string    `gorm:"primaryKey;size:36" json:"id"`
	Name       string    `gorm:"not null" json:"name"`
	Credential string    `gorm:"uniqueIndex;not null" json:"-"`
	Active     bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	Readings []Reading `gorm:"foreignKey:DeviceID;references:ID" json:"-"`
}

// Reading is one immutable observation. Absent sensors stay NULL so aggregates skip them.
type Reading struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	DeviceID             string    `gorm:"size:36;not null;index:idx_readings_device_time,priority:1" json:"device_id"`
	RecordedAt           time.Time `gorm:"not null;index:idx_readings_device_time,priority:2;index" json:"recorded_at"`
	Temperature          *float64  `json:"temperature,omitempty"`
	SecondaryTemperature *float64  `json:"secondary_temperature,omitempty"`
	Humidity             *float64  `json:"humidity,omitempty"`
	Weight               *float64  `json:"weight,omitempty"`
	BatteryVoltage       *float64  `json:"battery_voltage,omitempty"`
	BatteryPercent       *float64  `json:"battery_percent,omitempty"`
	RelayConnected       *bool     `json:"relay_connected,omitempty"`
	CreatedAt            time.Time `json:"-"`
}

const ThresholdPolicySingletonID uint = 1

// ThresholdPolicy is the singleton LVD hysteresis configuration.
type ThresholdPolicy struct {
	ID                uint      `gorm:"primaryKey" json:"-"`
	DisconnectVoltage float64   `gorm:"not null" json:"disconnect_voltage"`
	ReconnectVoltage  float64   `gorm:"not null" json:"reconnect_voltage"`
	Enabled           bool      `gorm:"not null" json:"enabled"`
	Version           uint64    `gorm:"not null;default:0" json:"version"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type Operator struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}
