package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/telspan/vpn-provision/internal/db"
)

type Config struct {
	Log      LogConfig
	Vpn      VpnConfig
	Database db.Config
	Queue    QueueConfig
	Ca       CaConfig
	Metrics  MetricsConfig
}

type VpnConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	ClientDir string `mapstructure:"client_dir"`
}

type QueueConfig struct {
	Workers           int           `mapstructure:"workers"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	TaskTimeout       time.Duration `mapstructure:"task_timeout"`
	MaxTasksPerWorker int           `mapstructure:"max_tasks_per_worker"`
}

type CaConfig struct {
	Command   string   `mapstructure:"command"`
	Dir       string   `mapstructure:"dir"`
	ExtraArgs []string `mapstructure:"extra_args"`
}

type MetricsConfig struct {
	// Addr exposes worker metrics when set, e.g. ":9090".
	Addr string `mapstructure:"addr"`
}

var config Config

func InitConfig() {
	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/vpn-provision-worker")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("database.url", "DATABASE_URL")

	viper.SetDefault("queue.workers", 2)
	viper.SetDefault("queue.poll_interval", time.Second)
	viper.SetDefault("queue.task_timeout", 5*time.Minute)
	viper.SetDefault("queue.max_tasks_per_worker", 1)

	if err := viper.ReadInConfig(); err != nil {
		panic(err)
	}
	if err := viper.Unmarshal(&config); err != nil {
		panic(err)
	}

	initLogger(config.Log.Level)

	if err := validateConfig(&config); err != nil {
		panic(err)
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Database.Url == "" {
		return fmt.Errorf("database.url must be set")
	}
	if cfg.Vpn.Host == "" || cfg.Vpn.Port == 0 {
		return fmt.Errorf("vpn.host and vpn.port must be set")
	}
	if cfg.Vpn.ClientDir == "" {
		return fmt.Errorf("vpn.client_dir must be set")
	}
	if cfg.Ca.Command == "" || cfg.Ca.Dir == "" {
		return fmt.Errorf("ca.command and ca.dir must be set")
	}
	return nil
}
