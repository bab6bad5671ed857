package http

import (
	"github.com/code-payments/step-tracker/pkg/config"
	"github.com/code-payments/step-tracker/pkg/config/env"
	"github.com/code-payments/step-tracker/pkg/config/memory"
)

const (
	envConfigPrefix = "STEP_HTTP_"

	RefreshRateLimitConfigEnvName = envConfigPrefix + "REFRESH_RATE_LIMIT"
	defaultRefreshRateLimit       = 1
)

type conf struct {
	refreshRateLimit config.Uint64
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			refreshRateLimit: env.NewUint64Config(RefreshRateLimitConfigEnvName, defaultRefreshRateLimit),
		}
	}
}

type testOverrides struct {
	refreshRateLimit uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			refreshRateLimit: memory.NewUint64Config(overrides.refreshRateLimit),
		}
	}
}
