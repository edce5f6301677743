package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI      string
	MongoDatabase string
	JWTSecret     string
	Port          string
	GinMode       string
	UploadDir     string
	CloudinaryURL string

	VAPIDPublicKey  string
	VAPIDPrivateKey string
	VAPIDSubject    string

	CORSOrigins   []string
	AuthRateLimit int
}

var ErrMissingRequired = errors.New("MONGODB_URI and JWT_SECRET must be set")

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173",
	"http://127.0.0.1:5173",
}

// Load reads an optional .env file and then the process environment.
// A missing MONGODB_URI or JWT_SECRET is an error; there is no fallback.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}
	return FromEnv()
}

func FromEnv() (*Config, error) {
	cfg := &Config{
		MongoURI:        os.Getenv("MONGODB_URI"),
		MongoDatabase:   getEnv("MONGODB_DATABASE", "picfeed"),
		JWTSecret:       os.Getenv("JWT_SECRET"),
		Port:            getEnv("PORT", "8080"),
		GinMode:         os.Getenv("GIN_MODE"),
		UploadDir:       getEnv("UPLOAD_DIR", "uploads"),
		CloudinaryURL:   os.Getenv("CLOUDINARY_URL"),
		VAPIDPublicKey:  os.Getenv("VAPID_PUBLIC_KEY"),
		VAPIDPrivateKey: os.Getenv("VAPID_PRIVATE_KEY"),
		VAPIDSubject:    getEnv("VAPID_SUBJECT", "mailto:admin@picfeed.local"),
		CORSOrigins:     defaultOrigins,
		AuthRateLimit:   20,
	}

	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = splitList(origins)
		if len(cfg.CORSOrigins) == 0 {
			return nil, errors.New("CORS_ORIGINS must list at least one origin")
		}
	}

	if v := os.Getenv("AUTH_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, errors.New("AUTH_RATE_LIMIT must be a positive integer")
		}
		cfg.AuthRateLimit = n
	}

	if cfg.MongoURI == "" || cfg.JWTSecret == "" {
		return nil, ErrMissingRequired
	}
	return cfg, nil
}

// PushEnabled reports whether both VAPID keys are configured.
func (c *Config) PushEnabled() bool {
	return c.VAPIDPublicKey != "" && c.VAPIDPrivateKey != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
