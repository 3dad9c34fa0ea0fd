package iot

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

const (
	credentialEntropyBytes = 16 // 128 bits
	credentialMaxAttempts  = 5
)

var credentialSlugRe = regexp.MustCompile(`[^a-z0-9]+`)

func ErrDeviceNotFound(id string) *common.Error {
	return common.Errorf(common.KindNotFound, "device %q not found", id)
}

func validateDeviceName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", common.NewError(common.KindInvalidPayload, "name must not be empty").WithField("name")
	}
	return trimmed, nil
}

// newCredential returns "<slug>_<32 hex chars>"; the slug only helps operators tell keys apart.
func newCredential(name string) (string, error) {
	buf := make([]byte, credentialEntropyBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	slug := strings.Trim(credentialSlugRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if len(slug) > 16 {
		slug = slug[:16]
	}
	if slug == "" {
		slug = "device"
	}
	return slug + "_" + hex.EncodeToString(buf), nil
}

func (i *IOT) createDevice(ctx context.Context, name string) (*models.Device, error) {
	logger := common.GetCoreLogger(common.LoggerCategoryIOTRegistry)

	name, err := validateDeviceName(name)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < credentialMaxAttempts; attempt++ {
		credential, err := newCredential(name)
		if err != nil {
			return nil, common.WrapTransient(err, "generate credential")
		}

		device := models.Device{
			ID:         uuid.NewString(),
			Name:       name,
			Credential: credential,
			Active:     true,
		}

		err = i.Db.Conn.WithContext(ctx).Create(&device).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			logger.Warn("Credential collision, retrying", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			logger.Error("Failed to create device", zap.Error(err))
			return nil, common.WrapTransient(err, "create device")
		}

		logger.Info("Created device", zap.String("device_id", device.ID), zap.String("name", device.Name))
		return &device, nil
	}

	return nil, common.NewError(common.KindTransient, "could not allocate a unique credential, retry later")
}

func (i *IOT) getDevice(ctx context.Context, id string) (*models.Device, error) {
	var device models.Device
	err := i.Db.Conn.WithContext(ctx).First(&device, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDeviceNotFound(id)
	}
	if err != nil {
		return nil, common.WrapTransient(err, "get device")
	}
	return &device, nil
}

func (i *IOT) listDevices(ctx context.Context, includeInactive bool) ([]models.Device, error) {
	var devices []models.Device
	q := i.Db.Conn.WithContext(ctx).Order("name asc, created_at asc")
	if !includeInactive {
		q = q.Where("active = ?", true)
	}
	if err := q.Find(&devices).Error; err != nil {
		return nil, common.WrapTransient(err, "list devices")
	}
	return devices, nil
}

func (i *IOT) resolveByCredential(ctx context.Context, credential string) (*models.Device, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, common.NewError(common.KindNotFound, "credential not recognised")
	}

	var device models.Device
	err := i.Db.Conn.WithContext(ctx).
		Where("credential = ? AND active = ?", credential, true).
		First(&device).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, common.NewError(common.KindNotFound, "credential not recognised")
	}
	if err != nil {
		return nil, common.WrapTransient(err, "resolve credential")
	}
	return &device, nil
}

// regenerateCredential swaps the key with a single UPDATE so the old and new key are never
// valid together.
func (i *IOT) regenerateCredential(ctx context.Context, id string) (string, error) {
	logger := common.GetCoreLogger(common.LoggerCategoryIOTRegistry)

	device, err := i.getDevice(ctx, id)
	if err != nil {
		return "", err
	}
	if !device.Active {
		return "", ErrDeviceNotFound(id)
	}

	for attempt := 0; attempt < credentialMaxAttempts; attempt++ {
		credential, err := newCredential(device.Name)
		if err != nil {
			return "", common.WrapTransient(err, "generate credential")
		}

		res := i.Db.Conn.WithContext(ctx).
			Model(&models.Device{}).
			Where("id = ? AND active = ?", id, true).
			Update("credential", credential)
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			continue
		}
		if res.Error != nil {
			return "", common.WrapTransient(res.Error, "regenerate credential")
		}
		if res.RowsAffected == 0 {
			return "", ErrDeviceNotFound(id)
		}

		logger.Info("Regenerated device credential", zap.String("device_id", id))
		return credential, nil
	}

	return "", common.NewError(common.KindTransient, "could not allocate a unique credential, retry later")
}

func (i *IOT) renameDevice(ctx context.Context, id string, name string) (*models.Device, error) {
	name, err := validateDeviceName(name)
	if err != nil {
		return nil, err
	}

	res := i.Db.Conn.WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ?", id).
		Update("name", name)
	if res.Error != nil {
		return nil, common.WrapTransient(res.Error, "rename device")
	}
	if res.RowsAffected == 0 {
		return nil, ErrDeviceNotFound(id)
	}

	common.GetCoreLogger(common.LoggerCategoryIOTRegistry).
		Info("Renamed device", zap.String("device_id", id), zap.String("name", name))
	return i.getDevice(ctx, id)
}

func (i *IOT) deactivateDevice(ctx context.Context, id string) error {
	res := i.Db.Conn.WithContext(ctx).
		Model(&models.Device{}).
		Where("id = ?", id).
		Update("active", false)
	if res.Error != nil {
		return common.WrapTransient(res.Error, "deactivate device")
	}
	if res.RowsAffected == 0 {
		return ErrDeviceNotFound(id)
	}

	common.GetCoreLogger(common.LoggerCategoryIOTRegistry).
		Info("Deactivated device", zap.String("device_id", id))
	return nil
}

type IRegistryImpl struct {
	iot *IOT
}

func (ir *IRegistryImpl) Create(ctx context.Context, name string) (*models.Device, error) {
	return ir.iot.createDevice(ctx, name)
}

func (ir *IRegistryImpl) Get(ctx context.Context, id string) (*models.Device, error) {
	return ir.iot.getDevice(ctx, id)
}

func (ir *IRegistryImpl) List(ctx context.Context, includeInactive bool) ([]models.Device, error) {
	return ir.iot.listDevices(ctx, includeInactive)
}

func (ir *IRegistryImpl) ResolveByCredential(ctx context.Context, credential string) (*models.Device, error) {
	return ir.iot.resolveByCredential(ctx, credential)
}

func (ir *IRegistryImpl) RegenerateCredential(ctx context.Context, id string) (string, error) {
	return ir.iot.regenerateCredential(ctx, id)
}

func (ir *IRegistryImpl) Rename(ctx context.Context, id string, name string) (*models.Device, error) {
	return ir.iot.renameDevice(ctx, id, name)
}

func (ir *IRegistryImpl) Deactivate(ctx context.Context, id string) error {
	return ir.iot.deactivateDevice(ctx, id)
}

func (i *IOT) GetIRegistry() IRegistry {
	return &IRegistryImpl{iot: i}
}
