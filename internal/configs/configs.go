/*
Package configs is responsible for loading and parsing the application's configuration settings.

It configures server parameters by reading operating system environment variables,
including the running environment, port, CORS allowed origins, the default shared display link
and the credentials used to sign media-session tokens.
*/
package configs

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultDisplayLink is the shared video every new room starts with.
	DefaultDisplayLink = "https://www.youtube.com/embed/jfKfPfyJRdk"

	// DefaultMediaTokenTTL is the validity period of an issued media-session credential.
	DefaultMediaTokenTTL = 3600 * time.Second

	// DefaultSendQueueSize is the number of outbound frames buffered per session.
	DefaultSendQueueSize = 256
)

// AppConfig contains all configuration parameters required for the application to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Server Settings
	Environment string
	Port        int

	// Security Settings
	AllowedOrigins []string

	// Space Settings
	DefaultDisplayLink string
	SendQueueSize      int

	// Media Credential Settings
	MediaAppID       string
	MediaCertificate string
	MediaTokenTTL    time.Duration
}

// IsDevelopment reports whether the server runs with development defaults.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads and parses the application configuration from environment variables.
// It provides default values for each configuration item and performs necessary type conversions and validation.
// It returns a pointer to the AppConfig struct and any error encountered.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	// --- General Server Settings ---
	cfg.Environment = os.Getenv("ENVIRONMENT")
	if cfg.Environment == "" {
		cfg.Environment = "development"
	}

	port, err := intFromEnv("PORT", 8080)
	if err != nil {
		return nil, err
	}
	cfg.Port = port

	if cfg.Port < 1024 || cfg.Port > 65535 {
		return nil, fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", cfg.Port, 1024, 65535)
	}

	// --- Security Settings ---
	cfg.AllowedOrigins = []string{}
	if originsStr := os.Getenv("ALLOWED_ORIGINS"); originsStr != "" {
		for _, origin := range strings.Split(originsStr, ",") {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, trimmed)
			}
		}
	}

	// --- Space Settings ---
	cfg.DefaultDisplayLink = strings.TrimSpace(os.Getenv("DEFAULT_DISPLAY_LINK"))
	if cfg.DefaultDisplayLink == "" {
		cfg.DefaultDisplayLink = DefaultDisplayLink
	}

	queueSize, err := intFromEnv("SEND_QUEUE_SIZE", DefaultSendQueueSize)
	if err != nil {
		return nil, err
	}
	if queueSize < 1 {
		return nil, fmt.Errorf("SEND_QUEUE_SIZE must be positive, got %d", queueSize)
	}
	cfg.SendQueueSize = queueSize

	// --- Media Credential Settings ---
	cfg.MediaAppID = os.Getenv("MEDIA_APP_ID")
	cfg.MediaCertificate = os.Getenv("MEDIA_APP_CERTIFICATE")
	if cfg.IsDevelopment() {
		if cfg.MediaAppID == "" {
			cfg.MediaAppID = "hzspace-dev"
		}
		if cfg.MediaCertificate == "" {
			cfg.MediaCertificate = "your_default_insecure_certificate_change_me"
		}
	} else {
		if cfg.MediaAppID == "" || cfg.MediaCertificate == "" {
			return nil, fmt.Errorf("MEDIA_APP_ID and MEDIA_APP_CERTIFICATE environment variables are required in %s environment", cfg.Environment)
		}
	}

	ttlSeconds, err := intFromEnv("MEDIA_TOKEN_TTL_SECONDS", int(DefaultMediaTokenTTL/time.Second))
	if err != nil {
		return nil, err
	}
	if ttlSeconds <= 0 {
		return nil, fmt.Errorf("MEDIA_TOKEN_TTL_SECONDS must be positive, got %d", ttlSeconds)
	}
	cfg.MediaTokenTTL = time.Duration(ttlSeconds) * time.Second

	return cfg, nil
}

// intFromEnv parses an integer environment variable, falling back to def when it is unset.
func intFromEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}

	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return value, nil
}
