package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL       string
	Port              string
	IsProduction      bool
	JWTSecret         string
	JWTExpiryDuration time.Duration
	JWTIssuer         string

	// PIN hashing scheme for new accounts: "sha256" (legacy data format) or "bcrypt".
	PINHashScheme string

	// Login throttle in ulule/limiter formatted-rate notation, e.g. "10-M".
	LoginRateLimit string

	// History reads without an explicit limit fall back to this many rows.
	HistoryDefaultLimit int

	CORSAllowedOrigins []string
}

// LoadConfig loads configuration from environment variables and .env file if present.
func LoadConfig() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("JWT_SECRET", "a-very-secret-key-should-be-longer-and-random")
	viper.SetDefault("JWT_EXPIRY_DURATION", "1h")
	viper.SetDefault("JWT_ISSUER", "passbook-backend")
	viper.SetDefault("PIN_HASH_SCHEME", "sha256")
	viper.SetDefault("LOGIN_RATE_LIMIT", "10-M")
	viper.SetDefault("HISTORY_DEFAULT_LIMIT", 500)
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "*")

	viper.AutomaticEnv()

	cfg := &Config{}

	cfg.DatabaseURL = viper.GetString("PGSQL_URL")
	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	cfg.Port = viper.GetString("PORT")
	cfg.IsProduction = viper.GetBool("IS_PRODUCTION")

	cfg.JWTSecret = viper.GetString("JWT_SECRET")
	if cfg.JWTSecret == "a-very-secret-key-should-be-longer-and-random" {
		log.Println("Warning: JWT_SECRET environment variable not set. Using default insecure key.")
	}

	jwtExpiryStr := viper.GetString("JWT_EXPIRY_DURATION")
	jwtExpiryDuration, err := time.ParseDuration(jwtExpiryStr)
	if err != nil {
		jwtExpiryDuration = time.Hour
		log.Printf("Warning: Invalid value for JWT_EXPIRY_DURATION (%q). Defaulting to %s.\n", jwtExpiryStr, jwtExpiryDuration)
	}
	cfg.JWTExpiryDuration = jwtExpiryDuration

	cfg.JWTIssuer = viper.GetString("JWT_ISSUER")

	cfg.PINHashScheme = viper.GetString("PIN_HASH_SCHEME")
	switch cfg.PINHashScheme {
	case "sha256", "bcrypt":
	default:
		log.Printf("Warning: Unknown PIN_HASH_SCHEME (%q). Defaulting to sha256.\n", cfg.PINHashScheme)
		cfg.PINHashScheme = "sha256"
	}

	cfg.LoginRateLimit = viper.GetString("LOGIN_RATE_LIMIT")

	cfg.HistoryDefaultLimit = viper.GetInt("HISTORY_DEFAULT_LIMIT")
	if cfg.HistoryDefaultLimit <= 0 {
		cfg.HistoryDefaultLimit = 500
		log.Printf("Warning: HISTORY_DEFAULT_LIMIT must be positive. Defaulting to %d.\n", cfg.HistoryDefaultLimit)
	}

	originsStr := viper.GetString("CORS_ALLOWED_ORIGINS")
	for _, origin := range strings.Split(originsStr, ",") {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			cfg.CORSAllowedOrigins = append(cfg.CORSAllowedOrigins, trimmed)
		}
	}

	return cfg, nil
}
