package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/julianbeese/immo_search/internal/domain"
	"github.com/julianbeese/immo_search/internal/geo"
	"github.com/julianbeese/immo_search/internal/messenger"
)

// Config holds all application configuration
type Config struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	DatabasePath string        `yaml:"database_path"`
	LogLevel     string        `yaml:"log_level"`

	Backend    BackendConfig    `yaml:"backend"`
	Search     SearchConfig     `yaml:"search"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Message    MessageConfig    `yaml:"message"`
	Alerts     AlertConfig      `yaml:"alerts"`
	QuietHours QuietHoursConfig `yaml:"quiet_hours"`
}

// BackendConfig for the listings API
type BackendConfig struct {
	BaseURL              string        `yaml:"base_url"`
	Token                string        `yaml:"token"`
	Cookie               string        `yaml:"cookie"`
	Timeout              time.Duration `yaml:"timeout"`
	MaxRequestsPerMinute int           `yaml:"max_requests_per_minute"`
	MinDelay             time.Duration `yaml:"min_delay"`
	MaxDelay             time.Duration `yaml:"max_delay"`
}

// SearchConfig for the filter pipeline
type SearchConfig struct {
	DefaultRentType domain.RentType `yaml:"default_rent_type"`
	DefaultRadiusKm float64         `yaml:"default_radius_km"`
	RentStatus      string          `yaml:"rent_status"`
	UserLocation    domain.Location `yaml:"user_location"`
	CacheTTL        time.Duration   `yaml:"cache_ttl"`
	CacheCapacity   uint64          `yaml:"cache_capacity"`
	PageSize        int             `yaml:"page_size"`
}

// TelegramConfig for Telegram bot settings
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   int64  `yaml:"chat_id"`
	Enabled  bool   `yaml:"enabled"`
}

// MessageConfig for visit-request message templates
type MessageConfig struct {
	TemplatePath string           `yaml:"template_path"`
	Sender       messenger.Sender `yaml:"sender"`
}

// AlertConfig selects which new listings are notified
type AlertConfig struct {
	Enabled bool `yaml:"enabled"`
	// Filters are key=value assignments, as accepted by /filter
	Filters []string `yaml:"filters"`
}

// QuietHoursConfig suppresses alerts between Start and End (HH:MM, local time)
type QuietHoursConfig struct {
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// DefaultConfig returns configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		PollInterval: 10 * time.Minute,
		DatabasePath: "data/immosearch.db",
		LogLevel:     "info",
		Backend: BackendConfig{
			Timeout:              15 * time.Second,
			MaxRequestsPerMinute: 30,
			MaxDelay:             500 * time.Millisecond,
		},
		Search: SearchConfig{
			DefaultRentType: domain.RentLongTerm,
			DefaultRadiusKm: 15,
			RentStatus:      domain.StatusForRent,
			UserLocation:    domain.Location{Lat: -20.8823, Lon: 55.4504},
			CacheTTL:        10 * time.Minute,
			CacheCapacity:   256,
			PageSize:        5,
		},
		Telegram: TelegramConfig{
			Enabled: true,
		},
		Message: MessageConfig{
			TemplatePath: "configs/visit_template.txt",
		},
	}
}

// Load reads configuration from YAML file and environment variables
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	// Read YAML file if exists
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Override with environment variables
func (c *Config) applyEnv() error {
	if v := os.Getenv("BACKEND_URL"); v != "" {
		c.Backend.BaseURL = v
	}
	if v := os.Getenv("BACKEND_TOKEN"); v != "" {
		c.Backend.Token = v
	}
	if v := os.Getenv("BACKEND_COOKIE"); v != "" {
		c.Backend.Cookie = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		c.Telegram.BotToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		chatID, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_ID: %w", err)
		}
		c.Telegram.ChatID = chatID
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
	return nil
}

// Validate checks the configuration for values the application cannot run with
func (c *Config) Validate() error {
	var errs []error

	if c.PollInterval <= 0 {
		errs = append(errs, errors.New("poll_interval must be positive"))
	}
	if !c.Search.DefaultRentType.Valid() {
		errs = append(errs, fmt.Errorf("search.default_rent_type: unknown rent type %q", c.Search.DefaultRentType))
	}
	if c.Search.DefaultRadiusKm < 0 {
		errs = append(errs, errors.New("search.default_radius_km must not be negative"))
	}
	if loc := c.Search.UserLocation; !geo.ValidCoordinates(loc.Lat, loc.Lon) {
		errs = append(errs, fmt.Errorf("search.user_location: invalid coordinates %v,%v", loc.Lat, loc.Lon))
	}
	if c.Search.CacheCapacity == 0 {
		errs = append(errs, errors.New("search.cache_capacity must be positive"))
	}
	if c.Backend.MaxDelay < c.Backend.MinDelay {
		errs = append(errs, errors.New("backend.max_delay must not be below backend.min_delay"))
	}
	if c.Telegram.Enabled && c.Telegram.BotToken != "" && c.Telegram.ChatID == 0 {
		errs = append(errs, errors.New("telegram.chat_id is required when the bot is enabled"))
	}
	if c.QuietHours.Start != "" || c.QuietHours.End != "" {
		if _, err := parseClock(c.QuietHours.Start); err != nil {
			errs = append(errs, fmt.Errorf("quiet_hours.start: %w", err))
		}
		if _, err := parseClock(c.QuietHours.End); err != nil {
			errs = append(errs, fmt.Errorf("quiet_hours.end: %w", err))
		}
	}

	return errors.Join(errs...)
}

// IsQuietTime reports whether t falls into the configured quiet hours.
// A window whose end is before its start spans midnight.
func (c *Config) IsQuietTime(t time.Time) bool {
	start, err := parseClock(c.QuietHours.Start)
	if err != nil {
		return false
	}
	end, err := parseClock(c.QuietHours.End)
	if err != nil || start == end {
		return false
	}

	now := t.Hour()*60 + t.Minute()
	if start < end {
		return now >= start && now < end
	}
	return now >= start || now < end
}

// parseClock parses HH:MM into minutes after midnight
func parseClock(s string) (int, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour*60 + minute, nil
}
