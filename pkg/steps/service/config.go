package service

import (
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	"github.com/code-payments/step-tracker/pkg/app"
	kv_etcd "github.com/code-payments/step-tracker/pkg/kv/etcd"
	kv_nats "github.com/code-payments/step-tracker/pkg/kv/nats"
)

const (
	KVBackendMemory   = "memory"
	KVBackendSqlite   = "sqlite"
	KVBackendPostgres = "postgres"
	KVBackendEtcd     = "etcd"
	KVBackendNats     = "nats"

	SensorBackendMemory = "memory"
	SensorBackendNats   = "nats"
)

// Config is decoded from the "app" section of the process config
type Config struct {
	KVBackend     string `mapstructure:"kv_backend"`
	SensorBackend string `mapstructure:"sensor_backend"`

	SqlitePath string `mapstructure:"sqlite_path"`

	Postgres PostgresConfig `mapstructure:"postgres"`

	EtcdEndpoints   []string      `mapstructure:"etcd_endpoints"`
	EtcdPrefix      string        `mapstructure:"etcd_prefix"`
	EtcdDialTimeout time.Duration `mapstructure:"etcd_dial_timeout"`

	NatsURL      string `mapstructure:"nats_url"`
	NatsKVBucket string `mapstructure:"nats_kv_bucket"`
}

type PostgresConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	User               string `mapstructure:"user"`
	Password           string `mapstructure:"password"`
	DbName             string `mapstructure:"db_name"`
	MaxOpenConnections int    `mapstructure:"max_open_connections"`
	MaxIdleConnections int    `mapstructure:"max_idle_connections"`
}

var defaultConfig = Config{
	KVBackend:     KVBackendSqlite,
	SensorBackend: SensorBackendMemory,

	SqlitePath: "step_tracker.db",

	Postgres: PostgresConfig{
		Host:   "localhost",
		Port:   5432,
		DbName: "steptracker",
	},

	EtcdEndpoints:   []string{"localhost:2379"},
	EtcdPrefix:      kv_etcd.DefaultPrefix,
	EtcdDialTimeout: 5 * time.Second,

	NatsURL:      "nats://localhost:4222",
	NatsKVBucket: kv_nats.DefaultBucket,
}

func init() {
	_ = viper.BindEnv("app.kv_backend", "STEP_KV_BACKEND")
	_ = viper.BindEnv("app.sensor_backend", "STEP_SENSOR_BACKEND")

	_ = viper.BindEnv("app.sqlite_path", "STEP_SQLITE_PATH")

	_ = viper.BindEnv("app.postgres.host", "STEP_POSTGRES_HOST")
	_ = viper.BindEnv("app.postgres.port", "STEP_POSTGRES_PORT")
	_ = viper.BindEnv("app.postgres.user", "STEP_POSTGRES_USER")
	_ = viper.BindEnv("app.postgres.password", "STEP_POSTGRES_PASSWORD")
	_ = viper.BindEnv("app.postgres.db_name", "STEP_POSTGRES_DB_NAME")

	_ = viper.BindEnv("app.etcd_endpoints", "STEP_ETCD_ENDPOINTS")
	_ = viper.BindEnv("app.etcd_prefix", "STEP_ETCD_PREFIX")

	_ = viper.BindEnv("app.nats_url", "STEP_NATS_URL")
	_ = viper.BindEnv("app.nats_kv_bucket", "STEP_NATS_KV_BUCKET")
}

// DecodeConfig overlays the app section onto the defaults
func DecodeConfig(raw app.Config) (*Config, error) {
	config := defaultConfig
	config.EtcdEndpoints = append([]string(nil), defaultConfig.EtcdEndpoints...)

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		Result: &config,
	})
	if err != nil {
		return nil, err
	}

	if err := decoder.Decode(map[string]interface{}(raw)); err != nil {
		return nil, errors.Wrap(err, "malformed app config")
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) Validate() error {
	switch c.KVBackend {
	case KVBackendMemory, KVBackendPostgres, KVBackendNats:
	case KVBackendSqlite:
		if len(c.SqlitePath) == 0 {
			return errors.New("sqlite path is required")
		}
	case KVBackendEtcd:
		if len(c.EtcdEndpoints) == 0 {
			return errors.New("at least one etcd endpoint is required")
		}
	default:
		return errors.Errorf("unknown kv backend %q", c.KVBackend)
	}

	switch c.SensorBackend {
	case SensorBackendMemory, SensorBackendNats:
	default:
		return errors.Errorf("unknown sensor backend %q", c.SensorBackend)
	}

	return nil
}
