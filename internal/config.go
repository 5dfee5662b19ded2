package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/ansuz/internal/fetcher"
	"github.com/starford/ansuz/internal/notify"
	"github.com/starford/ansuz/internal/render"
	"github.com/starford/ansuz/internal/retry"
	"github.com/starford/ansuz/internal/syncer"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Auth    AuthConfig        `yaml:"auth"`
	Source  SourceConfig      `yaml:"source"`
	Site    SiteConfig        `yaml:"site"`
	Sync    SyncConfig        `yaml:"sync"`
	Tracker TrackerConfig     `yaml:"tracker"`
	CDN     CDNConfig         `yaml:"cdn"`
	NATS    NATSConfig        `yaml:"nats"`
	Metrics MetricsConfig     `yaml:"metrics"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{
		&c.App, &c.Auth, &c.Source, &c.Site, &c.Sync, &c.Tracker, &c.CDN, &c.NATS,
	} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig holds authentication configuration for the admin API.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// SourceConfig points at the content repository.
type SourceConfig struct {
	Repository  string        `yaml:"repository"` // owner/name[@ref]
	Token       string        `yaml:"token"`
	BaseURL     string        `yaml:"base_url"`
	ContentRoot string        `yaml:"content_root"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Repository, validation.When(c.Repository != "", validation.By(func(v any) error {
			_, err := fetcher.ParseRepo(v.(string))
			return err
		}))),
		validation.Field(&c.BaseURL, is.URL),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

// Repo returns the parsed repository. The build command runs without one,
// so presence is checked here rather than in Validate.
func (c *SourceConfig) Repo() (fetcher.Repo, error) {
	if c.Repository == "" {
		return fetcher.Repo{}, fmt.Errorf("source: repository is required")
	}
	return fetcher.ParseRepo(c.Repository)
}

// SiteConfig describes the generated site and its local inputs.
type SiteConfig struct {
	Title      string `yaml:"title"`
	BaseURL    string `yaml:"base_url"`
	OutputDir  string `yaml:"output_dir"`
	ContentDir string `yaml:"content_dir"` // local source tree for the build command
	StaticDir  string `yaml:"static_dir"`  // optional, copied under static/
	HomeSize   int    `yaml:"home_size"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.OutputDir, validation.Required),
		validation.Field(&c.HomeSize, validation.Min(0)),
	)
}

// Info returns the render-time site description.
func (c *SiteConfig) Info() render.Site {
	return render.Site{Title: c.Title, BaseURL: c.BaseURL}
}

// SyncConfig holds orchestrator limits and triggers.
type SyncConfig struct {
	MaxFileSize     int64         `yaml:"max_file_size"`
	MaxDocumentSize int64         `yaml:"max_document_size"`
	MaxRetries      int           `yaml:"max_retries"`
	BaseDelay       time.Duration `yaml:"base_delay"`
	Interval        time.Duration `yaml:"interval"` // periodic full sync; 0 disables
	WebhookSecret   string        `yaml:"webhook_secret"`
	Branch          string        `yaml:"branch"` // webhook pushes to other branches are ignored
}

// Validate validates the sync configuration.
func (c *SyncConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MaxFileSize, validation.Min(int64(0))),
		validation.Field(&c.MaxDocumentSize, validation.Min(int64(0))),
		validation.Field(&c.MaxRetries, validation.Min(0), validation.Max(10)),
		validation.Field(&c.BaseDelay, validation.Min(time.Duration(0))),
		validation.Field(&c.Interval, validation.When(c.Interval != 0, validation.Min(time.Minute))),
	)
}

// Policy returns the retry policy for publish operations.
func (c *SyncConfig) Policy() retry.Policy {
	return retry.NewPolicy(c.MaxRetries, c.BaseDelay)
}

// TrackerConfig holds the sync history database location.
type TrackerConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the tracker configuration.
func (c *TrackerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// CDNConfig configures cache invalidation. An empty endpoint disables it.
type CDNConfig struct {
	Endpoint       string `yaml:"endpoint"`
	Token          string `yaml:"token"`
	DistributionID string `yaml:"distribution_id"`
}

// Validate validates the CDN configuration.
func (c *CDNConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Endpoint, is.URL),
		validation.Field(&c.DistributionID, validation.When(c.Endpoint != "", validation.Required)),
	)
}

// NATSConfig configures notification publishing. An empty URL disables it.
type NATSConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
}

// Validate validates the NATS configuration.
func (c *NATSConfig) Validate() error {
	if c.URL != "" && c.Subject == "" {
		c.Subject = notify.DefaultSubject
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Subject, validation.When(c.URL != "", validation.Required)),
	)
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Source: SourceConfig{
			BaseURL:     fetcher.DefaultBaseURL,
			ContentRoot: fetcher.DefaultContentRoot,
			Timeout:     fetcher.DefaultTimeout,
		},
		Site: SiteConfig{
			Title:      "Blog",
			OutputDir:  "./public",
			ContentDir: "./content",
			HomeSize:   render.DefaultHomeSize,
		},
		Sync: SyncConfig{
			MaxFileSize:     syncer.DefaultMaxFileSize,
			MaxDocumentSize: syncer.DefaultMaxDocumentSize,
			MaxRetries:      retry.DefaultPolicy().MaxRetries,
			BaseDelay:       retry.DefaultPolicy().BaseDelay,
			Branch:          "main",
		},
		Tracker: TrackerConfig{
			Path: "./ansuz.db",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}
