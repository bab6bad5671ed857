package counter

import (
	"github.com/code-payments/step-tracker/pkg/config"
	"github.com/code-payments/step-tracker/pkg/config/env"
	"github.com/code-payments/step-tracker/pkg/config/memory"
)

const (
	envConfigPrefix = "STEP_COUNTER_"

	KeyPrefixConfigEnvName = envConfigPrefix + "KEY_PREFIX"
	DefaultKeyPrefix       = "step_tracker_"

	LockStripesConfigEnvName = envConfigPrefix + "LOCK_STRIPES"
	defaultLockStripes       = 64
)

type conf struct {
	keyPrefix   config.String
	lockStripes config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			keyPrefix:   env.NewStringConfig(KeyPrefixConfigEnvName, DefaultKeyPrefix),
			lockStripes: env.NewUint64Config(LockStripesConfigEnvName, defaultLockStripes),
		}
	}
}

type testOverrides struct {
	keyPrefix string
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	keyPrefix := DefaultKeyPrefix
	if len(overrides.keyPrefix) > 0 {
		keyPrefix = overrides.keyPrefix
	}

	return func() *conf {
		return &conf{
			keyPrefix:   memory.NewStringConfig(keyPrefix),
			lockStripes: memory.NewUint64Config(defaultLockStripes),
		}
	}
}
