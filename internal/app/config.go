package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (PRINT_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	Appwrite  AppwriteConfig
	Upload    UploadConfig
	Pricing   PricingConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// AppwriteConfig points at the backing platform project.
type AppwriteConfig struct {
	Endpoint string `default:"https://cloud.appwrite.io/v1" usage:"Platform REST endpoint"`
	Project  string `usage:"Platform project id (PRINT_APPWRITE_PROJECT)"`
	Key      string `usage:"Platform API key (PRINT_APPWRITE_KEY)"`
	Database string `default:"main" usage:"Database id holding the collections"`
	Bucket   string `default:"stl_files" usage:"Object storage bucket for model files"`
}

// UploadConfig bounds one multipart upload request.
type UploadConfig struct {
	MaxFiles    int   `default:"10" usage:"Max files per upload request" flag:"upload-max-files"`
	MaxFileSize int64 `default:"52428800" usage:"Max size of one uploaded file in bytes" flag:"upload-max-file-size"`
}

// PricingConfig tunes quote behavior.
type PricingConfig struct {
	Strict bool `default:"false" usage:"Reject unknown material/quality values instead of falling back to the base multiplier" flag:"pricing-strict"`
}

// RateLimitConfig controls the per-client sliding window rate limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
	SecureCookies    bool     `default:"false" usage:"Mark session cookies Secure" flag:"secure-cookies"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "PRINT",
		Files:     []string{"config.yaml", "/etc/print-api/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.Appwrite.Project == "" {
		return nil, errors.New("platform project is required: set PRINT_APPWRITE_PROJECT")
	}
	if cfg.Appwrite.Key == "" {
		return nil, errors.New("platform API key is required: set PRINT_APPWRITE_KEY")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps hosting-provided environment variables (Railway,
// Render, etc.) that use standard names like PORT to the application's
// PRINT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
