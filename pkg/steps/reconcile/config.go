package reconcile

import (
	"time"

	"github.com/code-payments/step-tracker/pkg/config"
	"github.com/code-payments/step-tracker/pkg/config/env"
	"github.com/code-payments/step-tracker/pkg/config/memory"
)

const (
	envConfigPrefix = "STEP_RECONCILE_"

	HistoryRetryAttemptsConfigEnvName = envConfigPrefix + "HISTORY_RETRY_ATTEMPTS"
	defaultHistoryRetryAttempts       = 1

	HistoryRetryBackoffConfigEnvName = envConfigPrefix + "HISTORY_RETRY_BACKOFF"
	defaultHistoryRetryBackoff       = 250 * time.Millisecond
)

type conf struct {
	historyRetryAttempts config.Uint64
	historyRetryBackoff  config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			historyRetryAttempts: env.NewUint64Config(HistoryRetryAttemptsConfigEnvName, defaultHistoryRetryAttempts),
			historyRetryBackoff:  env.NewDurationConfig(HistoryRetryBackoffConfigEnvName, defaultHistoryRetryBackoff),
		}
	}
}

type testOverrides struct {
	historyRetryAttempts uint64
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	attempts := uint64(defaultHistoryRetryAttempts)
	if overrides.historyRetryAttempts > 0 {
		attempts = overrides.historyRetryAttempts
	}

	return func() *conf {
		return &conf{
			historyRetryAttempts: memory.NewUint64Config(attempts),
			historyRetryBackoff:  memory.NewDurationConfig(time.Millisecond),
		}
	}
}
