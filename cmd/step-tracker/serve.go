package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/code-payments/step-tracker/pkg/app"
	"github.com/code-payments/step-tracker/pkg/steps/service"
)

func serveCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the step tracker HTTP service",
		Long: `Runs the step tracker until interrupted.

Step counts are kept in the selected kv backend (memory, sqlite, postgres,
etcd or nats). The memory sensor simulates a device and enables
POST /v1/debug/walk; the nats sensor talks to a device bridge.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.Run(service.New(), app.WithConfigPath(configPath))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "config.yaml", "configuration file path")
	flags.String("kv-backend", service.KVBackendSqlite, "kv backend: memory, sqlite, postgres, etcd or nats")
	flags.String("sensor-backend", service.SensorBackendMemory, "sensor backend: memory or nats")
	flags.String("sqlite-path", "step_tracker.db", "sqlite database file")
	flags.String("nats-url", "nats://localhost:4222", "nats server url")
	flags.String("listen-address", ":8085", "http listen address")

	_ = viper.BindPFlag("app.kv_backend", flags.Lookup("kv-backend"))
	_ = viper.BindPFlag("app.sensor_backend", flags.Lookup("sensor-backend"))
	_ = viper.BindPFlag("app.sqlite_path", flags.Lookup("sqlite-path"))
	_ = viper.BindPFlag("app.nats_url", flags.Lookup("nats-url"))
	_ = viper.BindPFlag("listen_address", flags.Lookup("listen-address"))

	return cmd
}
