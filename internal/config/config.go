package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"flawless/internal/database"
)

type Config struct {
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		IntervalHours int    `yaml:"interval_hours"`
		Path          string `yaml:"path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Agent struct {
		APIKey            string `yaml:"api_key"`
		Model             string `yaml:"model"`
		MaxToolRounds     int    `yaml:"max_tool_rounds"`
		HistoryLimit      int    `yaml:"history_limit"`
		SessionTTLMinutes int    `yaml:"session_ttl_minutes"`
	} `yaml:"agent"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Salon struct {
		Name     string `yaml:"name"`
		Info     string `yaml:"info"`
		AdminKey string `yaml:"admin_key"`
	} `yaml:"salon"`

	Slots struct {
		Start          string   `yaml:"start"`
		End            string   `yaml:"end"`
		SlotMinutes    int      `yaml:"slot_minutes"`
		ClosedWeekdays []string `yaml:"closed_weekdays"`
	} `yaml:"slots"`

	Booking struct {
		PlaceholderTokens []string `yaml:"placeholder_tokens"`
		TimeoutSeconds    int      `yaml:"timeout_seconds"`
	} `yaml:"booking"`

	Chat struct {
		RatePerMinute int `yaml:"rate_per_minute"`
		Burst         int `yaml:"burst"`
	} `yaml:"chat"`

	Notifications struct {
		TelegramBotToken string  `yaml:"telegram_bot_token"`
		ManagerChatIDs   []int64 `yaml:"manager_chat_ids"`
	} `yaml:"notifications"`

	Services []database.SeedService `yaml:"services"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/flawless.db"
	}
	if cfg.Slots.Start == "" {
		cfg.Slots.Start = "10:00"
	}
	if cfg.Slots.End == "" {
		cfg.Slots.End = "19:00"
	}
	if cfg.Slots.SlotMinutes <= 0 {
		cfg.Slots.SlotMinutes = 60
	}
	if len(cfg.Slots.ClosedWeekdays) == 0 {
		cfg.Slots.ClosedWeekdays = []string{"Sunday"}
	}
	if cfg.Agent.Model == "" {
		cfg.Agent.Model = "models/gemini-1.5-pro"
	}
	if cfg.Agent.MaxToolRounds <= 0 {
		cfg.Agent.MaxToolRounds = 5
	}
	if cfg.Agent.HistoryLimit <= 0 {
		cfg.Agent.HistoryLimit = 30
	}
	if cfg.Agent.SessionTTLMinutes <= 0 {
		cfg.Agent.SessionTTLMinutes = 30
	}
	if cfg.Chat.RatePerMinute <= 0 {
		cfg.Chat.RatePerMinute = 20
	}
	if cfg.Chat.Burst <= 0 {
		cfg.Chat.Burst = 5
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// ClosedWeekdays parses the configured closed day names.
func (c *Config) ClosedWeekdays() ([]time.Weekday, error) {
	names := map[string]time.Weekday{
		"sunday":    time.Sunday,
		"monday":    time.Monday,
		"tuesday":   time.Tuesday,
		"wednesday": time.Wednesday,
		"thursday":  time.Thursday,
		"friday":    time.Friday,
		"saturday":  time.Saturday,
	}

	var days []time.Weekday
	for _, name := range c.Slots.ClosedWeekdays {
		day, ok := names[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q in slots.closed_weekdays", name)
		}
		days = append(days, day)
	}
	return days, nil
}

// BookingTimeout returns the bounded store-call timeout.
func (c *Config) BookingTimeout() time.Duration {
	if c.Booking.TimeoutSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Booking.TimeoutSeconds) * time.Second
}

// SessionTTL returns how long an idle conversation is kept.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Agent.SessionTTLMinutes) * time.Minute
}
