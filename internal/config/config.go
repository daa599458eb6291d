package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// DefaultConfigPath is read when no --config flag is given. A missing file at
// the default path is not an error.
const DefaultConfigPath = "relay.toml"

// DefaultTwilioBaseURL is the carrier's production API origin.
const DefaultTwilioBaseURL = "https://api.twilio.com"

// Config is the resolved relay configuration. It is built once by Load and
// treated as read-only afterwards.
type Config struct {
	Server  ServerConfig  `toml:"server" json:"server"`
	Notify  NotifyConfig  `toml:"notify" json:"notify"`
	Twilio  TwilioConfig  `toml:"twilio" json:"twilio"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
}

type ServerConfig struct {
	Host            string `toml:"host" json:"host"`
	Port            int    `toml:"port" json:"port"`
	ShutdownTimeout int    `toml:"shutdown_timeout" json:"shutdown_timeout"`
	RateLimit       int    `toml:"rate_limit" json:"rate_limit"` // requests per minute per IP, 0 disables
}

type NotifyConfig struct {
	APIKey           string   `toml:"api_key" json:"api_key"`
	AllowedCountries []string `toml:"allowed_countries" json:"allowed_countries"`
}

type TwilioConfig struct {
	AccountSID        string `toml:"account_sid" json:"account_sid"`
	AuthToken         string `toml:"auth_token" json:"auth_token"`
	FromNumber        string `toml:"from_number" json:"from_number"`
	TimeoutMS         int    `toml:"timeout_ms" json:"timeout_ms"`
	StatusCallbackURL string `toml:"status_callback_url" json:"status_callback_url"`
	APIBaseURL        string `toml:"api_base_url" json:"api_base_url"`
}

type LoggingConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	File   string `toml:"file" json:"file"`
}

// Default returns a Config with all non-secret defaults applied.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8000,
			ShutdownTimeout: 10,
			RateLimit:       600,
		},
		Twilio: TwilioConfig{
			TimeoutMS:  TwilioTimeoutMS.Default,
			APIBaseURL: DefaultTwilioBaseURL,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads configuration with priority: defaults → relay.toml → env vars → CLI flags,
// then validates it. Any *ConfigError in the chain aborts loading.
func Load(configPath string, flags map[string]string) (*Config, error) {
	cfg := Default()

	explicit := configPath != ""
	if !explicit {
		configPath = DefaultConfigPath
	}
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", configPath, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading %s: %w", configPath, err)
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	if err := applyFlags(cfg, flags); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// Validate checks every setting and normalizes the ones with a canonical
// form (trimmed secrets, clamped timeout, lower-case level). It must run
// before the Config is shared.
func (c *Config) Validate() error {
	var err error
	if c.Notify.APIKey, err = RequireSecret("NOTIFY_API_KEY", c.Notify.APIKey); err != nil {
		return err
	}
	if c.Twilio.AccountSID, err = RequireSecret("TWILIO_ACCOUNT_SID", c.Twilio.AccountSID); err != nil {
		return err
	}
	if c.Twilio.AuthToken, err = RequireSecret("TWILIO_AUTH_TOKEN", c.Twilio.AuthToken); err != nil {
		return err
	}
	if c.Twilio.FromNumber, err = RequireSecret("TWILIO_FROM_NUMBER", c.Twilio.FromNumber); err != nil {
		return err
	}
	c.Twilio.TimeoutMS = TwilioTimeoutMS.Clamp(c.Twilio.TimeoutMS)

	c.Twilio.StatusCallbackURL = strings.TrimSpace(c.Twilio.StatusCallbackURL)
	if c.Twilio.StatusCallbackURL != "" {
		if err := requireHTTPURL("TWILIO_STATUS_CALLBACK_URL", c.Twilio.StatusCallbackURL); err != nil {
			return err
		}
	}
	c.Twilio.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.Twilio.APIBaseURL), "/")
	if c.Twilio.APIBaseURL == "" {
		c.Twilio.APIBaseURL = DefaultTwilioBaseURL
	}
	if err := requireHTTPURL("TWILIO_API_BASE_URL", c.Twilio.APIBaseURL); err != nil {
		return err
	}

	for i, code := range c.Notify.AllowedCountries {
		code = strings.ToUpper(strings.TrimSpace(code))
		if len(code) != 2 || code[0] < 'A' || code[0] > 'Z' || code[1] < 'A' || code[1] > 'Z' {
			return &ConfigError{Name: "NOTIFY_ALLOWED_COUNTRIES", Reason: fmt.Sprintf("contains %q, expected a two-letter ISO country code", c.Notify.AllowedCountries[i])}
		}
		c.Notify.AllowedCountries[i] = code
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		return fmt.Errorf("server.shutdown_timeout must be non-negative, got %d", c.Server.ShutdownTimeout)
	}
	if c.Server.RateLimit < 0 {
		return fmt.Errorf("server.rate_limit must be non-negative, got %d", c.Server.RateLimit)
	}

	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch c.Logging.Level {
	case "":
		c.Logging.Level = "info"
	case "warning":
		c.Logging.Level = "warn"
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format must be \"json\" or \"text\", got %q", c.Logging.Format)
	}
	return nil
}

func requireHTTPURL(name, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigError{Name: name, Reason: "must be an absolute http(s) URL"}
	}
	return nil
}

// Address returns the host:port string for the server to listen on.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// CallbackEnabled reports whether the status-callback endpoint is served.
func (c *Config) CallbackEnabled() bool {
	return c.Twilio.StatusCallbackURL != ""
}

// TwilioTimeout returns the carrier request timeout.
func (c *Config) TwilioTimeout() time.Duration {
	return time.Duration(c.Twilio.TimeoutMS) * time.Millisecond
}

const redactedValue = "********"

// Redacted returns a copy of c with every secret replaced by a fixed mask.
func (c *Config) Redacted() *Config {
	out := *c
	out.Notify.AllowedCountries = append([]string(nil), c.Notify.AllowedCountries...)
	for _, s := range []*string{&out.Notify.APIKey, &out.Twilio.AccountSID, &out.Twilio.AuthToken} {
		if *s != "" {
			*s = redactedValue
		}
	}
	return &out
}

// ToTOML returns the redacted config serialized as TOML.
func (c *Config) ToTOML() (string, error) {
	data, err := toml.Marshal(c.Redacted())
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// envInt reads an integer from the named environment variable.
// Returns an error if the value is set but not a valid integer.
func envInt(name string, dest *int) error {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return &ConfigError{Name: name, Reason: "must be a valid integer"}
	}
	*dest = n
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("RELAY_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if err := envInt("PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if err := envInt("RELAY_SERVER_PORT", &cfg.Server.Port); err != nil {
		return err
	}
	if err := envInt("RELAY_SERVER_SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout); err != nil {
		return err
	}
	if err := envInt("RELAY_SERVER_RATE_LIMIT", &cfg.Server.RateLimit); err != nil {
		return err
	}

	// Secrets: a variable that is set (even to blank) overrides the file so
	// that a blank value is reported instead of silently ignored.
	if v, ok := os.LookupEnv("NOTIFY_API_KEY"); ok {
		cfg.Notify.APIKey = v
	}
	if v, ok := os.LookupEnv("TWILIO_ACCOUNT_SID"); ok {
		cfg.Twilio.AccountSID = v
	}
	if v, ok := os.LookupEnv("TWILIO_AUTH_TOKEN"); ok {
		cfg.Twilio.AuthToken = v
	}
	if v, ok := os.LookupEnv("TWILIO_FROM_NUMBER"); ok {
		cfg.Twilio.FromNumber = v
	}
	if v, ok := os.LookupEnv("TWILIO_TIMEOUT_MS"); ok {
		n, err := TwilioTimeoutMS.Parse("TWILIO_TIMEOUT_MS", &v)
		if err != nil {
			return err
		}
		cfg.Twilio.TimeoutMS = n
	}
	if v, ok := os.LookupEnv("TWILIO_STATUS_CALLBACK_URL"); ok {
		cfg.Twilio.StatusCallbackURL = v
	}
	if v := os.Getenv("TWILIO_API_BASE_URL"); v != "" {
		cfg.Twilio.APIBaseURL = v
	}
	if v := os.Getenv("NOTIFY_ALLOWED_COUNTRIES"); v != "" {
		cfg.Notify.AllowedCountries = splitList(v)
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		cfg.Logging.File = v
	}
	return nil
}

func applyFlags(cfg *Config, flags map[string]string) error {
	if flags == nil {
		return nil
	}
	if v, ok := flags["host"]; ok && v != "" {
		cfg.Server.Host = v
	}
	if v, ok := flags["port"]; ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Name: "--port", Reason: "must be a valid integer"}
		}
		cfg.Server.Port = port
	}
	if v, ok := flags["log-level"]; ok && v != "" {
		cfg.Logging.Level = v
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
