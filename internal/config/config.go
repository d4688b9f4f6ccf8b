package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

type Config struct {
	// Microsoft Graph (education assignments)
	TenantID          string
	ClientID          string
	ClientSecret      string
	GraphAuthorityURL string
	GraphAPIURL       string
	GraphScope        string

	// Discord
	DiscordToken     string
	DiscordChannelID string

	// Polling
	PollInterval time.Duration
	HTTPTimeout  time.Duration

	// Status server ("0" disables it)
	StatusPort string
	GinMode    string

	// Logging
	LogLevel  string
	LogFormat string

	ShutdownTimeout time.Duration
}

// FileConfig is the optional YAML overlay. It only carries non-secret settings.
type FileConfig struct {
	PollInterval string `yaml:"poll_interval"`
	Graph        struct {
		AuthorityURL string `yaml:"authority_url"`
		APIURL       string `yaml:"api_url"`
		Scope        string `yaml:"scope"`
	} `yaml:"graph"`
}

var (
	DefaultPollInterval      = 5 * time.Minute
	DefaultGraphAuthorityURL = "https://login.microsoftonline.com"
	DefaultGraphAPIURL       = "https://graph.microsoft.com/v1.0"
	DefaultGraphScope        = "https://graph.microsoft.com/.default"

	// envFiles are loaded in order; values already in the environment win.
	envFiles = []string{"discord.env", ".env"}
)

// Load reads the environment (plus discord.env/.env and the optional YAML
// overlay) and validates it. Every missing or malformed required value is
// reported in the returned error.
func Load() (*Config, error) {
	loaded := false
	for _, name := range envFiles {
		if err := godotenv.Load(name); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				log.Printf("Warning: failed to load %s: %v", name, err)
			}
			continue
		}
		loaded = true
	}
	if !loaded {
		log.Println("No discord.env or .env file found, using environment variables")
	}

	var fileConfig FileConfig
	configFilePath := getEnvOrDefault("CONFIG_FILE", "config.yaml")
	configFile, err := os.Open(configFilePath)
	switch {
	case err == nil:
		defer configFile.Close()
		log.Printf("Loading config file: %v", configFilePath)
		if err := LoadConfigFile(configFile, &fileConfig); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configFilePath, err)
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to open config file %s: %w", configFilePath, err)
	}

	pollDefault := DefaultPollInterval
	if fileConfig.PollInterval != "" {
		parsed, err := time.ParseDuration(fileConfig.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid poll_interval %q in %s: %w", fileConfig.PollInterval, configFilePath, err)
		}
		pollDefault = parsed
	}

	cfg := &Config{
		TenantID:          strings.TrimSpace(os.Getenv("TENANT_ID")),
		ClientID:          strings.TrimSpace(os.Getenv("CLIENT_ID")),
		ClientSecret:      strings.TrimSpace(os.Getenv("CLIENT_SECRET")),
		GraphAuthorityURL: getEnvOrDefault("GRAPH_AUTHORITY_URL", firstNonEmpty(fileConfig.Graph.AuthorityURL, DefaultGraphAuthorityURL)),
		GraphAPIURL:       getEnvOrDefault("GRAPH_API_URL", firstNonEmpty(fileConfig.Graph.APIURL, DefaultGraphAPIURL)),
		GraphScope:        getEnvOrDefault("GRAPH_SCOPE", firstNonEmpty(fileConfig.Graph.Scope, DefaultGraphScope)),

		DiscordToken:     strings.TrimSpace(os.Getenv("DISCORD_TOKEN")),
		DiscordChannelID: strings.TrimSpace(os.Getenv("DISCORD_CHANNEL_ID")),

		PollInterval: getEnvAsDuration("POLL_INTERVAL", pollDefault),
		HTTPTimeout:  time.Duration(getEnvAsInt("HTTP_TIMEOUT_SECONDS", 30)) * time.Second,

		StatusPort: getEnvOrDefault("STATUS_PORT", "8080"),
		GinMode:    getEnvOrDefault("GIN_MODE", "release"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),

		ShutdownTimeout: time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 10)) * time.Second,
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that every required setting is present and well formed.
func (c *Config) Validate() error {
	var errs []error

	required := []struct {
		name  string
		value string
	}{
		{"TENANT_ID", c.TenantID},
		{"CLIENT_ID", c.ClientID},
		{"CLIENT_SECRET", c.ClientSecret},
		{"DISCORD_TOKEN", c.DiscordToken},
		{"DISCORD_CHANNEL_ID", c.DiscordChannelID},
	}
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("environment variable %s is not set; check discord.env or the process environment", r.name))
		}
	}

	if c.DiscordChannelID != "" {
		if _, err := strconv.ParseUint(c.DiscordChannelID, 10, 64); err != nil {
			errs = append(errs, fmt.Errorf("DISCORD_CHANNEL_ID %q is not a numeric channel id: %w", c.DiscordChannelID, err))
		}
	}

	if c.DiscordToken != "" && !IsSaneDiscordToken(c.DiscordToken) {
		errs = append(errs, errors.New("DISCORD_TOKEN looks like a placeholder or is too short"))
	}

	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval))
	}

	return errors.Join(errs...)
}

// StatusEnabled reports whether the HTTP status server should be started.
func (c *Config) StatusEnabled() bool {
	return c.StatusPort != "" && c.StatusPort != "0"
}

// TokenURL returns the tenant-scoped OAuth2 token endpoint.
func (c *Config) TokenURL() string {
	return strings.TrimRight(c.GraphAuthorityURL, "/") + "/" + c.TenantID + "/oauth2/v2.0/token"
}

// IsSaneDiscordToken rejects empty values, obvious placeholders and tokens
// too short to be real.
func IsSaneDiscordToken(token string) bool {
	if token == "" {
		return false
	}
	if strings.HasPrefix(token, "xxxxxxxx") || strings.HasPrefix(strings.ToLower(token), "placeholder") {
		return false
	}
	return len(token) >= 20
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func LoadConfigFile(reader io.Reader, config *FileConfig) error {
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	return nil
}
