package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"study-companion/utils"
)

// Config is everything main needs, read from the environment.
type Config struct {
	Port           string   `env:"PORT" envDefault:"5200"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`

	// StoreDriver selects the document store: memory, mongo or postgres.
	StoreDriver   string `env:"STORE_DRIVER" envDefault:"memory"`
	MongoURI      string `env:"MONGO_URI"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"study_companion"`
	DatabaseURL   string `env:"DATABASE_URL"`

	SecretKey        string        `env:"SECRET_KEY"`
	SessionTTL       time.Duration `env:"SESSION_TTL" envDefault:"168h"`
	RealtimeTokenTTL time.Duration `env:"REALTIME_TOKEN_TTL" envDefault:"5m"`
	CookieSecure     bool          `env:"COOKIE_SECURE" envDefault:"false"`
	AdminUID         string        `env:"ADMIN_UID"`

	TimerTick        time.Duration `env:"TIMER_TICK" envDefault:"1s"`
	TimerStopTimeout time.Duration `env:"TIMER_STOP_TIMEOUT" envDefault:"1s"`
	SweepInterval    time.Duration `env:"ORPHAN_SWEEP_INTERVAL" envDefault:"5m"`
	DisplayNameCache int           `env:"DISPLAY_NAME_CACHE" envDefault:"1024"`

	R2AccountID       string `env:"CLOUDFLARE_ACCOUNT_ID"`
	R2AccessKeyID     string `env:"R2_ACCESS_KEY_ID"`
	R2AccessKeySecret string `env:"R2_ACCESS_KEY_SECRET"`
	R2Bucket          string `env:"R2_BUCKET_NAME"`
	CDNBaseURL        string `env:"CDN_BASE_URL"`

	// UploadDir keeps avatars on local disk, served at /uploads, when R2 is not configured.
	UploadDir string `env:"UPLOAD_DIR"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads .env when present, then the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = randomSecret()
		log.Println("⚠️  SECRET_KEY not set, using a random key; sessions will not survive a restart")
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case "memory":
	case "mongo":
		if c.MongoURI == "" {
			return fmt.Errorf("STORE_DRIVER=mongo requires MONGO_URI")
		}
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("STORE_DRIVER=postgres requires DATABASE_URL")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.TimerTick <= 0 {
		return fmt.Errorf("TIMER_TICK must be positive")
	}
	return nil
}

// R2 returns the avatar bucket settings.
func (c Config) R2() utils.R2Config {
	return utils.R2Config{
		AccountID:       c.R2AccountID,
		AccessKeyID:     c.R2AccessKeyID,
		AccessKeySecret: c.R2AccessKeySecret,
		Bucket:          c.R2Bucket,
		CDNBaseURL:      c.CDNBaseURL,
	}
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		log.Fatal("failed to generate secret key:", err)
	}
	return hex.EncodeToString(buf)
}
