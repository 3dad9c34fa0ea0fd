package iot

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"liyu1981.xyz/hive-telemetry-service/pkg/common"
	"liyu1981.xyz/hive-telemetry-service/pkg/metrics"
	"liyu1981.xyz/hive-telemetry-service/pkg/models"
)

const (
	DefaultDisconnectVoltage = 3.30
	DefaultReconnectVoltage  = 3.60

	MinPolicyVoltage = 2.5
	MaxPolicyVoltage = 4.2

	policyUpdateAttempts = 3
)

var errPolicyConflict = errors.New("policy version changed concurrently")

func DefaultPolicy() models.ThresholdPolicy {
	return models.ThresholdPolicy{
		ID:                models.ThresholdPolicySingletonID,
		DisconnectVoltage: DefaultDisconnectVoltage,
		ReconnectVoltage:  DefaultReconnectVoltage,
		Enabled:           true,
	}
}

// PolicyPatch carries the subset of fields an operator wants to change.
type PolicyPatch struct {
	DisconnectVoltage *float64
	ReconnectVoltage  *float64
	Enabled           *bool
}

func (p PolicyPatch) IsEmpty() bool {
	return p.DisconnectVoltage == nil && p.ReconnectVoltage == nil && p.Enabled == nil
}

func (p PolicyPatch) applyTo(current models.ThresholdPolicy) models.ThresholdPolicy {
	merged := current
	if p.DisconnectVoltage != nil {
		merged.DisconnectVoltage = *p.DisconnectVoltage
	}
	if p.ReconnectVoltage != nil {
		merged.ReconnectVoltage = *p.ReconnectVoltage
	}
	if p.Enabled != nil {
		merged.Enabled = *p.Enabled
	}
	return merged
}

// ValidatePolicy checks the combined policy, never the changed fields in isolation.
func ValidatePolicy(p models.ThresholdPolicy) error {
	details := map[string]float64{
		"disconnect_voltage": p.DisconnectVoltage,
		"reconnect_voltage":  p.ReconnectVoltage,
	}
	check := func(field string, v float64) error {
		if !common.IsFinite(v) || v < MinPolicyVoltage || v > MaxPolicyVoltage {
			return common.Errorf(common.KindPolicyInvariantViolation,
				"%.2f V outside plausible range [%.2f, %.2f]", v, MinPolicyVoltage, MaxPolicyVoltage).
				WithField(field).WithDetails(details)
		}
		return nil
	}
	if err := check("disconnect_voltage", p.DisconnectVoltage); err != nil {
		return err
	}
	if err := check("reconnect_voltage", p.ReconnectVoltage); err != nil {
		return err
	}
	if p.DisconnectVoltage >= p.ReconnectVoltage {
		return common.Errorf(common.KindPolicyInvariantViolation,
			"disconnect voltage %.2f must be below reconnect voltage %.2f", p.DisconnectVoltage, p.ReconnectVoltage).
			WithDetails(details)
	}
	return nil
}

type policyCache struct {
	mu       sync.RWMutex
	value    *models.ThresholdPolicy
	loadedAt time.Time

	updateMu sync.Mutex
}

func (c *policyCache) get(now time.Time, ttl time.Duration) (models.ThresholdPolicy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value == nil || now.Sub(c.loadedAt) >= ttl {
		return models.ThresholdPolicy{}, false
	}
	return *c.value, true
}

func (c *policyCache) stale() (models.ThresholdPolicy, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value == nil {
		return models.ThresholdPolicy{}, false
	}
	return *c.value, true
}

func (c *policyCache) set(p models.ThresholdPolicy, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = &p
	c.loadedAt = now
}

// loadPolicy falls back to defaults when the row is missing; exists reports which case hit.
func loadPolicy(tx *gorm.DB) (policy models.ThresholdPolicy, exists bool, err error) {
	err = tx.First(&policy, "id = ?", models.ThresholdPolicySingletonID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultPolicy(), false, nil
	}
	if err != nil {
		return models.ThresholdPolicy{}, false, err
	}
	return policy, true, nil
}

func (i *IOT) ensurePolicy(ctx context.Context) error {
	p := DefaultPolicy()
	p.UpdatedAt = i.now()
	err := i.Db.Conn.WithContext(ctx).
		Where("id = ?", models.ThresholdPolicySingletonID).
		FirstOrCreate(&p).Error
	if err != nil {
		return common.WrapTransient(err, "seed threshold policy")
	}
	i.policyCache.set(p, i.now())
	return nil
}

func (i *IOT) getPolicy(ctx context.Context) (models.ThresholdPolicy, error) {
	if p, ok := i.policyCache.get(i.now(), i.Opts.PolicyCacheTTL); ok {
		return p, nil
	}

	p, _, err := loadPolicy(i.Db.Conn.WithContext(ctx))
	if err != nil {
		logger := common.GetCoreLogger(common.LoggerCategoryIOTPolicy)
		if stale, ok := i.policyCache.stale(); ok {
			logger.Warn("Serving cached threshold policy after load failure", zap.Error(err))
			return stale, nil
		}
		logger.Error("Failed to load threshold policy", zap.Error(err))
		return models.ThresholdPolicy{}, common.WrapTransient(err, "load threshold policy")
	}

	i.policyCache.set(p, i.now())
	return p, nil
}

// updatePolicy is read-merge-validate-write in one transaction with a version check, so two
// operators racing on stale snapshots cannot commit a band that breaks disconnect < reconnect.
func (i *IOT) updatePolicy(ctx context.Context, patch PolicyPatch) (result models.ThresholdPolicy, err error) {
	logger := common.GetCoreLogger(common.LoggerCategoryIOTPolicy)

	i.policyCache.updateMu.Lock()
	defer i.policyCache.updateMu.Unlock()

	if patch.IsEmpty() {
		current, _, err := loadPolicy(i.Db.Conn.WithContext(ctx))
		if err != nil {
			return models.ThresholdPolicy{}, common.WrapTransient(err, "load threshold policy")
		}
		return current, nil
	}

	logger.Info("Received threshold policy update", zap.Reflect("patch", patch))
	defer func() {
		metrics.ObservePolicyUpdate(string(common.KindOf(err)), result.Version)
	}()

	var committed models.ThresholdPolicy
	for attempt := 0; attempt < policyUpdateAttempts; attempt++ {
		err = i.Db.Conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			current, exists, err := loadPolicy(tx)
			if err != nil {
				return err
			}

			merged := patch.applyTo(current)
			if err := ValidatePolicy(merged); err != nil {
				return err
			}
			merged.ID = models.ThresholdPolicySingletonID
			merged.Version = current.Version + 1
			merged.UpdatedAt = i.now()

			if !exists {
				if err := tx.Create(&merged).Error; err != nil {
					if errors.Is(err, gorm.ErrDuplicatedKey) {
						return errPolicyConflict
					}
					return err
				}
				committed = merged
				return nil
			}

			res := tx.Model(&models.ThresholdPolicy{}).
				Where("id = ? AND version = ?", models.ThresholdPolicySingletonID, current.Version).
				Updates(map[string]any{
					"disconnect_voltage": merged.DisconnectVoltage,
					"reconnect_voltage":  merged.ReconnectVoltage,
					"enabled":            merged.Enabled,
					"version":            merged.Version,
					"updated_at":         merged.UpdatedAt,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errPolicyConflict
			}
			committed = merged
			return nil
		})

		if errors.Is(err, errPolicyConflict) {
			logger.Warn("Threshold policy changed concurrently, retrying", zap.Int("attempt", attempt))
			continue
		}
		if err != nil {
			if common.IsKind(err, common.KindPolicyInvariantViolation) {
				logger.Info("Rejected threshold policy update", zap.Error(err))
				return models.ThresholdPolicy{}, err
			}
			logger.Error("Failed to update threshold policy", zap.Error(err))
			return models.ThresholdPolicy{}, common.WrapTransient(err, "update threshold policy")
		}

		i.policyCache.set(committed, i.now())
		logger.Info("Updated threshold policy", zap.Reflect("policy", committed))
		return committed, nil
	}

	return models.ThresholdPolicy{}, common.NewError(common.KindTransient, "threshold policy is being updated concurrently, retry later")
}

type IPolicyImpl struct {
	iot *IOT
}

func (ip *IPolicyImpl) Get(ctx context.Context) (models.ThresholdPolicy, error) {
	return ip.iot.getPolicy(ctx)
}

func (ip *IPolicyImpl) Update(ctx context.Context, patch PolicyPatch) (models.ThresholdPolicy, error) {
	return ip.iot.updatePolicy(ctx, patch)
}

func (i *IOT) GetIPolicy() IPolicy {
	return &IPolicyImpl{iot: i}
}

// Bootstrap seeds the singleton policy row.
func (i *IOT) Bootstrap(ctx context.Context) error {
	return i.ensurePolicy(ctx)
}
