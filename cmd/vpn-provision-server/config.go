package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	internalhttp "github.com/telspan/vpn-provision/internal/api/http"
	"github.com/telspan/vpn-provision/internal/db"
)

type Config struct {
	Log       LogConfig
	Http      internalhttp.Config
	Vpn       VpnConfig
	Hotspot   HotspotConfig
	Auth      AuthConfig
	Database  db.Config
	Queue     QueueConfig
	Ca        CaConfig
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type VpnConfig struct {
	// Host and Port go into the "remote" line of assembled bundles.
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// ClientDir holds per-identity certs, keys and bundles.
	ClientDir string `mapstructure:"client_dir"`
}

type HotspotConfig struct {
	TemplateDir string `mapstructure:"template_dir"`
}

type AuthConfig struct {
	// SecretKey is the server-held signing material behind derived tokens.
	SecretKey string `mapstructure:"secret_key"`
}

type QueueConfig struct {
	// Driver selects the task backend: "postgres" (durable, shared with the
	// worker binary) or "memory" (single process, embedded workers).
	Driver            string        `mapstructure:"driver"`
	Workers           int           `mapstructure:"workers"`
	PollInterval      time.Duration `mapstructure:"poll_interval"`
	TaskTimeout       time.Duration `mapstructure:"task_timeout"`
	MaxTasksPerWorker int           `mapstructure:"max_tasks_per_worker"`
}

type CaConfig struct {
	// Command is the external CA tool, e.g. "./easyrsa".
	Command string `mapstructure:"command"`
	// Dir is the working directory the tool runs in.
	Dir string `mapstructure:"dir"`
	// ExtraArgs are appended to the build invocation, e.g. ["nopass"].
	ExtraArgs []string `mapstructure:"extra_args"`
}

type RateLimitConfig struct {
	Rps   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

var config Config

func InitConfig() {
	_ = godotenv.Load()

	viper.SetConfigName("application")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./cmd/vpn-provision-server")
	viper.SetConfigType("yaml")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	_ = viper.BindEnv("auth.secret_key", "PROVISION_SECRET_KEY")
	_ = viper.BindEnv("database.url", "DATABASE_URL")

	viper.SetDefault("queue.driver", "postgres")
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
	if cfg.Http.Port == 0 {
		return fmt.Errorf("http.port must be set")
	}
	if cfg.Auth.SecretKey == "" {
		return fmt.Errorf("auth.secret_key must be set")
	}
	if cfg.Vpn.Host == "" || cfg.Vpn.Port == 0 {
		return fmt.Errorf("vpn.host and vpn.port must be set")
	}
	if cfg.Vpn.ClientDir == "" {
		return fmt.Errorf("vpn.client_dir must be set")
	}
	if cfg.Hotspot.TemplateDir == "" {
		return fmt.Errorf("hotspot.template_dir must be set")
	}

	switch cfg.Queue.Driver {
	case "postgres":
		if cfg.Database.Url == "" {
			return fmt.Errorf("database.url must be set for the postgres queue driver")
		}
	case "memory":
		// Embedded workers invoke the CA tool in-process.
		if cfg.Ca.Command == "" || cfg.Ca.Dir == "" {
			return fmt.Errorf("ca.command and ca.dir must be set for the memory queue driver")
		}
	default:
		return fmt.Errorf("unknown queue.driver %q", cfg.Queue.Driver)
	}
	return nil
}
