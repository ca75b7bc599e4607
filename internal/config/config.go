// Package config loads booth settings from defaults, a YAML file, a .env
// file and PHOTOBOOTH_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the config file is looked up when --config is not given.
const DefaultPath = "config/config.yaml"

// Storage backends.
const (
	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config is the full booth configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Frames    FramesConfig    `yaml:"frames"`
	Templates TemplatesConfig `yaml:"templates"`
	Capture   CaptureConfig   `yaml:"capture"`
	Printer   PrinterConfig   `yaml:"printer"`
	Email     EmailConfig     `yaml:"email"`
	LogLevel  string          `yaml:"log_level"`
	BoothID   string          `yaml:"booth_id"`
	LockFile  string          `yaml:"lock_file"`
}

type ServerConfig struct {
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	AdminToken     string `yaml:"admin_token"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	// MaxImagePixels rejects images whose header declares more pixels.
	MaxImagePixels int64 `yaml:"max_image_pixels"`
	// CORSOrigin is echoed in Access-Control-Allow-Origin. Empty disables CORS.
	CORSOrigin string `yaml:"cors_origin"`
}

// Addr is the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StorageConfig struct {
	Backend  string `yaml:"backend"`
	Dir      string `yaml:"dir"`
	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
	S3Region string `yaml:"s3_region"`
	// PresignExpiry makes S3 downloads redirect to a signed URL. Zero streams
	// through the server.
	PresignExpiry time.Duration `yaml:"presign_expiry"`
}

type FramesConfig struct {
	DBPath    string `yaml:"db_path"`
	AssetsDir string `yaml:"assets_dir"`
	// RemoteURL, when set, reads the active frame from another booth server
	// instead of the local registry.
	RemoteURL string `yaml:"remote_url"`
}

type TemplatesConfig struct {
	Dir     string `yaml:"dir"`
	Default string `yaml:"default"`
}

type CaptureConfig struct {
	Countdown  int      `yaml:"countdown"`
	StripShots int      `yaml:"strip_shots"`
	Device     string   `yaml:"device"`
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args"`
	Filter     string   `yaml:"filter"`
}

type PrinterConfig struct {
	Queue   string   `yaml:"queue"`
	Command string   `yaml:"command"`
	Options []string `yaml:"options"`
}

type EmailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// PasswordSSMParam names an SSM SecureString holding the password.
	PasswordSSMParam string `yaml:"password_ssm_param"`
	From             string `yaml:"from"`
	EventName        string `yaml:"event_name"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			MaxUploadBytes: 16 << 20,
			MaxImagePixels: 50_000_000,
		},
		Storage: StorageConfig{
			Backend: BackendLocal,
			Dir:     "data",
		},
		Frames: FramesConfig{
			DBPath:    "data/frames.db",
			AssetsDir: "data/frames",
		},
		Templates: TemplatesConfig{
			Default: "strip_2x6",
		},
		Capture: CaptureConfig{
			Countdown:  3,
			StripShots: 2,
			Filter:     "none",
		},
		Email: EmailConfig{
			Port: 587,
		},
		LogLevel: "info",
		LockFile: "data/photobooth.lock",
	}
}

// Load builds the configuration. A missing file at path is not an error;
// the defaults and environment still apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Debug().Str("path", path).Msg("No config file, using defaults")
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDotEnv loads variables from the given .env files without overriding
// ones already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			log.Warn().Err(err).Str("file", f).Msg("Failed to load .env file")
			continue
		}
		log.Debug().Str("file", f).Msg(".env loaded")
	}
}

// ApplyEnv overrides fields from PHOTOBOOTH_* variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("PHOTOBOOTH_HOST", &c.Server.Host)
	str("PHOTOBOOTH_ADMIN_TOKEN", &c.Server.AdminToken)
	str("PHOTOBOOTH_CORS_ORIGIN", &c.Server.CORSOrigin)
	str("PHOTOBOOTH_DATA_DIR", &c.Storage.Dir)
	str("PHOTOBOOTH_STORAGE_BACKEND", &c.Storage.Backend)
	str("PHOTOBOOTH_S3_BUCKET", &c.Storage.S3Bucket)
	str("PHOTOBOOTH_S3_PREFIX", &c.Storage.S3Prefix)
	str("PHOTOBOOTH_FRAMES_DB", &c.Frames.DBPath)
	str("PHOTOBOOTH_FRAMES_DIR", &c.Frames.AssetsDir)
	str("PHOTOBOOTH_TEMPLATES_DIR", &c.Templates.Dir)
	str("PHOTOBOOTH_CAMERA_DEVICE", &c.Capture.Device)
	str("PHOTOBOOTH_PRINTER", &c.Printer.Queue)
	str("PHOTOBOOTH_SMTP_HOST", &c.Email.Host)
	str("PHOTOBOOTH_SMTP_USERNAME", &c.Email.Username)
	str("PHOTOBOOTH_SMTP_PASSWORD", &c.Email.Password)
	str("PHOTOBOOTH_SMTP_FROM", &c.Email.From)
	str("PHOTOBOOTH_LOG_LEVEL", &c.LogLevel)
	str("PHOTOBOOTH_BOOTH_ID", &c.BoothID)

	for key, dst := range map[string]*int{
		"PHOTOBOOTH_PORT":      &c.Server.Port,
		"PHOTOBOOTH_SMTP_PORT": &c.Email.Port,
		"PHOTOBOOTH_COUNTDOWN": &c.Capture.Countdown,
	} {
		if err := integer(key, dst); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks ranges and required combinations.
func (c *Config) Validate() error {
	var problems []string
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d out of range 1..65535", c.Server.Port))
	}
	if c.Server.MaxUploadBytes < 1<<10 || c.Server.MaxUploadBytes > 100<<20 {
		problems = append(problems, fmt.Sprintf("server.max_upload_bytes %d out of range 1KB..100MB", c.Server.MaxUploadBytes))
	}
	if c.Server.MaxImagePixels < 1_000_000 || c.Server.MaxImagePixels > 500_000_000 {
		problems = append(problems, fmt.Sprintf("server.max_image_pixels %d out of range 1M..500M", c.Server.MaxImagePixels))
	}
	if c.Capture.Countdown < 1 || c.Capture.Countdown > 30 {
		problems = append(problems, fmt.Sprintf("capture.countdown %d out of range 1..30", c.Capture.Countdown))
	}
	if c.Capture.StripShots < 1 || c.Capture.StripShots > 10 {
		problems = append(problems, fmt.Sprintf("capture.strip_shots %d out of range 1..10", c.Capture.StripShots))
	}
	switch c.Storage.Backend {
	case BackendLocal:
		if c.Storage.Dir == "" {
			problems = append(problems, "storage.dir is required for the local backend")
		}
	case BackendS3:
		if c.Storage.S3Bucket == "" {
			problems = append(problems, "storage.s3_bucket is required for the s3 backend")
		}
	default:
		problems = append(problems, fmt.Sprintf("storage.backend %q must be local or s3", c.Storage.Backend))
	}
	if c.Storage.PresignExpiry < 0 || c.Storage.PresignExpiry > 7*24*time.Hour {
		problems = append(problems, fmt.Sprintf("storage.presign_expiry %s out of range 0..168h", c.Storage.PresignExpiry))
	}
	if c.Email.Host != "" && c.Email.From == "" {
		problems = append(problems, "email.from is required when email.host is set")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}
