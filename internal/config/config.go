package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"rcon-status/internal/status"
)

const (
	defaultConfigName = "config"
	envPrefix         = "RS"
)

// Legacy environment variable names, bound alongside the RS_ prefixed keys.
var legacyEnv = map[string]string{
	"discord.token":           "DISCORD_TOKEN",
	"status.api_token":        "API_TOKEN",
	"update.interval_seconds": "UPDATE_INTERVAL_SECONDS",
	"thresholds.yellow":       "FLAG_YELLOW",
	"thresholds.green":        "FLAG_GREEN",
}

// Binding ties one chat channel to a server, with the text appended after the
// player count.
type Binding struct {
	ChannelID string `mapstructure:"id"`
	Suffix    string `mapstructure:"suffix"`
}

type Server struct {
	URL      string    `mapstructure:"url"`
	Channels []Binding `mapstructure:"channels"`
}

type Config struct {
	DiscordToken   string
	ReadyTimeout   time.Duration
	RenameInterval time.Duration

	APIToken      string
	StatusTimeout time.Duration

	Interval   time.Duration
	RunOnStart bool

	Thresholds status.Thresholds

	LogLevel  string
	LogFormat string

	// Servers keeps file order; ticks walk it front to back.
	Servers []Server
}

// Load reads configuration. path may name an explicit config file; when empty
// the default search paths are used and a missing file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfigName)
		v.AddConfigPath(".")
		v.AddConfigPath("config")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		// Prefixed name first so RS_* wins over the legacy name.
		_ = v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env)
	}

	v.SetDefault("discord.ready_timeout", "30s")
	v.SetDefault("discord.rename_interval", "1s")
	v.SetDefault("status.timeout", status.DefaultTimeout.String())
	v.SetDefault("update.interval_seconds", 300)
	v.SetDefault("update.run_on_start", false)
	v.SetDefault("thresholds.yellow", 5)
	v.SetDefault("thresholds.green", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := Config{
		DiscordToken:   strings.TrimSpace(v.GetString("discord.token")),
		ReadyTimeout:   v.GetDuration("discord.ready_timeout"),
		RenameInterval: v.GetDuration("discord.rename_interval"),
		APIToken:       strings.TrimSpace(v.GetString("status.api_token")),
		StatusTimeout:  v.GetDuration("status.timeout"),
		Interval:       time.Duration(v.GetInt("update.interval_seconds")) * time.Second,
		RunOnStart:     v.GetBool("update.run_on_start"),
		Thresholds: status.Thresholds{
			Yellow: v.GetInt("thresholds.yellow"),
			Green:  v.GetInt("thresholds.green"),
		},
		LogLevel:  strings.TrimSpace(v.GetString("log.level")),
		LogFormat: strings.TrimSpace(v.GetString("log.format")),
	}
	if err := v.UnmarshalKey("servers", &cfg.Servers); err != nil {
		return Config{}, fmt.Errorf("decode servers: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.DiscordToken == "" {
		return errors.New("discord.token (DISCORD_TOKEN) must not be empty")
	}
	if c.APIToken == "" {
		return errors.New("status.api_token (API_TOKEN) must not be empty")
	}
	if c.Interval <= 0 {
		return fmt.Errorf("invalid update.interval_seconds %s", c.Interval)
	}
	if c.StatusTimeout <= 0 {
		return fmt.Errorf("invalid status.timeout %s", c.StatusTimeout)
	}
	if c.ReadyTimeout <= 0 {
		return fmt.Errorf("invalid discord.ready_timeout %s", c.ReadyTimeout)
	}
	if c.RenameInterval < 0 {
		return fmt.Errorf("invalid discord.rename_interval %s", c.RenameInterval)
	}
	if len(c.Servers) == 0 {
		return errors.New("servers must list at least one server")
	}

	seen := make(map[string]struct{}, len(c.Servers))
	for i, s := range c.Servers {
		if err := validateURL(s.URL); err != nil {
			return fmt.Errorf("servers[%d].url: %w", i, err)
		}
		key := strings.TrimRight(s.URL, "/")
		if _, dup := seen[key]; dup {
			return fmt.Errorf("servers[%d].url %q is listed twice", i, s.URL)
		}
		seen[key] = struct{}{}

		if len(s.Channels) == 0 {
			return fmt.Errorf("servers[%d] (%s) has no channels", i, s.URL)
		}
		for j, b := range s.Channels {
			if !isSnowflake(b.ChannelID) {
				return fmt.Errorf("servers[%d].channels[%d].id %q is not a channel id", i, j, b.ChannelID)
			}
		}
	}
	return nil
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return errors.New("must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

func isSnowflake(id string) bool {
	if id == "" {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < '0' || id[i] > '9' {
			return false
		}
	}
	return true
}
