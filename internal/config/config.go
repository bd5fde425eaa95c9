package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ErrMissingConfiguration is returned when required environment values are
// absent or unparsable. It is fatal at process start; configuration is
// never discovered mid-request.
var ErrMissingConfiguration = errors.New("config: missing required configuration")

// Config carries everything the service reads from the environment.
type Config struct {
	HTTPAddr    string
	DatabaseURL string

	JWTIssuer          string
	AccessTokenSecret  string
	AccessTokenTTL     time.Duration
	RefreshTokenSecret string
	RefreshTokenTTL    time.Duration

	GatewayURL       string
	GatewayKeyID     string
	GatewayKeySecret string

	SMTPHost  string
	SMTPPort  int
	SMTPEmail string
	SMTPPass  string
}

// Load reads configuration from the environment. All missing or invalid
// required keys are reported together so a broken deployment fails with one
// complete message.
func Load() (Config, error) {
	var missing []string

	require := func(key string) string {
		val := strings.TrimSpace(os.Getenv(key))
		if val == "" {
			missing = append(missing, key)
		}
		return val
	}
	optionalInt := func(key string, fallback int) int {
		val := strings.TrimSpace(os.Getenv(key))
		if val == "" {
			return fallback
		}
		parsed, err := strconv.Atoi(val)
		if err != nil || parsed <= 0 {
			missing = append(missing, key+" (invalid number)")
			return 0
		}
		return parsed
	}
	requireDuration := func(key string) time.Duration {
		val := strings.TrimSpace(os.Getenv(key))
		if val == "" {
			missing = append(missing, key)
			return 0
		}
		parsed, err := time.ParseDuration(val)
		if err != nil || parsed <= 0 {
			missing = append(missing, key+" (invalid duration)")
			return 0
		}
		return parsed
	}

	cfg := Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":8080"),
		DatabaseURL: require("GURUKUL_PG_DSN"),

		JWTIssuer:          getenv("JWT_ISSUER", "gurukul"),
		AccessTokenSecret:  require("ACCESS_TOKEN_SECRET"),
		AccessTokenTTL:     requireDuration("ACCESS_TOKEN_EXPIRY"),
		RefreshTokenSecret: require("REFRESH_TOKEN_SECRET"),
		RefreshTokenTTL:    requireDuration("REFRESH_TOKEN_EXPIRY"),

		GatewayURL:       getenv("GATEWAY_URL", "https://api.razorpay.com"),
		GatewayKeyID:     require("GATEWAY_KEY_ID"),
		GatewayKeySecret: require("GATEWAY_KEY_SECRET"),

		SMTPHost:  require("SMTP_HOST"),
		SMTPPort:  optionalInt("SMTP_PORT", 465),
		SMTPEmail: require("SMTP_EMAIL"),
		SMTPPass:  require("SMTP_PASS"),
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingConfiguration, strings.Join(missing, ", "))
	}
	if cfg.AccessTokenSecret == cfg.RefreshTokenSecret {
		return Config{}, fmt.Errorf("%w: ACCESS_TOKEN_SECRET and REFRESH_TOKEN_SECRET must differ", ErrMissingConfiguration)
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

