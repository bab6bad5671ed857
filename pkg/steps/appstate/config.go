package appstate

import (
	"github.com/code-payments/step-tracker/pkg/config"
	"github.com/code-payments/step-tracker/pkg/config/env"
	"github.com/code-payments/step-tracker/pkg/config/memory"
)

const (
	envConfigPrefix = "STEP_APPSTATE_"

	PollScheduleConfigEnvName = envConfigPrefix + "POLL_SCHEDULE"
	defaultPollSchedule       = "@every 2s"

	StatusScheduleConfigEnvName = envConfigPrefix + "STATUS_SCHEDULE"
	defaultStatusSchedule       = "@every 5s"
)

type conf struct {
	pollSchedule   config.String
	statusSchedule config.String
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			pollSchedule:   env.NewStringConfig(PollScheduleConfigEnvName, defaultPollSchedule),
			statusSchedule: env.NewStringConfig(StatusScheduleConfigEnvName, defaultStatusSchedule),
		}
	}
}

type testOverrides struct {
	pollSchedule   string
	statusSchedule string
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			pollSchedule:   memory.NewStringConfig(overrides.pollSchedule),
			statusSchedule: memory.NewStringConfig(overrides.statusSchedule),
		}
	}
}
