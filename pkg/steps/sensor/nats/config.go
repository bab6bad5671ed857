package nats

import (
	"time"

	"github.com/code-payments/step-tracker/pkg/config"
	"github.com/code-payments/step-tracker/pkg/config/env"
	"github.com/code-payments/step-tracker/pkg/config/memory"
)

const (
	envConfigPrefix = "STEP_SENSOR_NATS_"

	SubjectPrefixConfigEnvName = envConfigPrefix + "SUBJECT_PREFIX"
	defaultSubjectPrefix       = "steptracker.sensor"

	StreamNameConfigEnvName = envConfigPrefix + "STREAM_NAME"
	defaultStreamName       = "STEP_EVENTS"

	RequestTimeoutConfigEnvName = envConfigPrefix + "REQUEST_TIMEOUT"
	defaultRequestTimeout       = 5 * time.Second

	AckWaitConfigEnvName = envConfigPrefix + "ACK_WAIT"
	defaultAckWait       = 30 * time.Second

	StreamMaxAgeConfigEnvName = envConfigPrefix + "STREAM_MAX_AGE"
	defaultStreamMaxAge       = 24 * time.Hour
)

type conf struct {
	subjectPrefix  config.String
	streamName     config.String
	requestTimeout config.Duration
	ackWait        config.Duration
	streamMaxAge   config.Duration
}

// ConfigProvider defines how config values are pulled
type ConfigProvider func() *conf

// WithEnvConfigs returns configuration pulled from environment variables
func WithEnvConfigs() ConfigProvider {
	return func() *conf {
		return &conf{
			subjectPrefix:  env.NewStringConfig(SubjectPrefixConfigEnvName, defaultSubjectPrefix),
			streamName:     env.NewStringConfig(StreamNameConfigEnvName, defaultStreamName),
			requestTimeout: env.NewDurationConfig(RequestTimeoutConfigEnvName, defaultRequestTimeout),
			ackWait:        env.NewDurationConfig(AckWaitConfigEnvName, defaultAckWait),
			streamMaxAge:   env.NewDurationConfig(StreamMaxAgeConfigEnvName, defaultStreamMaxAge),
		}
	}
}

type testOverrides struct {
	subjectPrefix string
	streamName    string
}

func withManualTestOverrides(overrides *testOverrides) ConfigProvider {
	return func() *conf {
		return &conf{
			subjectPrefix:  memory.NewStringConfig(overrides.subjectPrefix),
			streamName:     memory.NewStringConfig(overrides.streamName),
			requestTimeout: memory.NewDurationConfig(2 * time.Second),
			ackWait:        memory.NewDurationConfig(5 * time.Second),
			streamMaxAge:   memory.NewDurationConfig(defaultStreamMaxAge),
		}
	}
}
