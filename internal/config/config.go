package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig    `mapstructure:"server"`
	Database   DatabaseConfig  `mapstructure:"database"`
	Scheduler  SchedulerConfig `mapstructure:"scheduler"`
	Undo       UndoConfig      `mapstructure:"undo"`
	Tasks      TasksConfig     `mapstructure:"tasks"`
	Logging    LoggingConfig   `mapstructure:"logging"`
	Repository RepoConfig      `mapstructure:"repository"`
	Timezone   string          `mapstructure:"timezone"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port string `mapstructure:"port"`
}

type DatabaseConfig struct {
	URL            string        `mapstructure:"url"`
	MaxConnections int32         `mapstructure:"max_connections"`
	MinConnections int32         `mapstructure:"min_connections"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
}

type SchedulerConfig struct {
	ReminderInterval time.Duration `mapstructure:"reminder_interval"`
	TemplateInterval time.Duration `mapstructure:"template_interval"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	ReminderBatch    int           `mapstructure:"reminder_batch"`
}

type UndoConfig struct {
	// TTL is the single undo window used everywhere, including any
	// user-facing countdown.
	TTL time.Duration `mapstructure:"ttl"`
}

type TasksConfig struct {
	PublicIDPrefix string `mapstructure:"public_id_prefix"`
	TemplatePrefix string `mapstructure:"template_prefix"`
}

type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

type RepoConfig struct {
	Type string `mapstructure:"type"` // "postgres" or "inmemory"
}

// Load reads config.yml and applies TASKBOT_* environment overrides.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("TASKBOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("database.max_connections", 10)
	v.SetDefault("database.min_connections", 2)
	v.SetDefault("database.idle_timeout", 5*time.Minute)
	v.SetDefault("scheduler.reminder_interval", time.Minute)
	v.SetDefault("scheduler.template_interval", 5*time.Minute)
	v.SetDefault("scheduler.sweep_interval", 5*time.Minute)
	v.SetDefault("scheduler.reminder_batch", 50)
	v.SetDefault("undo.ttl", 30*time.Second)
	v.SetDefault("tasks.public_id_prefix", "TASK")
	v.SetDefault("tasks.template_prefix", "TPL")
	v.SetDefault("logging.development", false)
	v.SetDefault("repository.type", "postgres")
	v.SetDefault("timezone", "Asia/Ho_Chi_Minh")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine: defaults plus env carry the config.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config.yml: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}
