// Package config handles loading and validating the application
// configuration from a bzf.json file.
//
// The configuration file is expected to be a JSON object with database
// connection details, HTTP listen address, session signing secret, an
// admin key for the management API, and optional Redis and Gemini
// settings. Values from the environment (BZF_*) override the file, and a
// .env file in the working directory is loaded first when present.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from bzf.json.
// The file is read once at startup; changes require a restart.
type Config struct {
	// DBConn is the PostgreSQL host:port (e.g., "postgres:5432").
	DBConn string `json:"dbConn"`

	// DBName is the PostgreSQL database name.
	DBName string `json:"dbName"`

	// DBUser is the PostgreSQL username.
	DBUser string `json:"dbUser"`

	// DBPass is the PostgreSQL password.
	DBPass string `json:"dbPass"`

	// ListenAddr is the HTTP listen address (default ":3000").
	ListenAddr string `json:"listenAddr"`

	// JWTSecret is the HMAC secret for session tokens.
	JWTSecret string `json:"jwtSecret"`

	// AdminKey is a shared secret for authenticating management API calls.
	// Clients send it as "Authorization: Bearer <adminKey>".
	AdminKey string `json:"adminKey"`

	// ServiceURL is the public base URL, used as the token issuer.
	ServiceURL string `json:"serviceURL,omitempty"`

	// RedisURL enables cross-instance notification fan-out when set
	// (e.g., "redis://redis:6379/0").
	RedisURL string `json:"redisURL,omitempty"`

	// GenAIAPIKey enables the AI studio. Studio endpoints answer 503
	// when empty.
	GenAIAPIKey string `json:"genaiApiKey,omitempty"`

	// GenAITextModel and GenAIImageModel select the Gemini models.
	GenAITextModel  string `json:"genaiTextModel,omitempty"`
	GenAIImageModel string `json:"genaiImageModel,omitempty"`

	// SignupCredits is granted to every new account.
	SignupCredits int64 `json:"signupCredits"`

	// AllowedOrigins lists the browser origins allowed by CORS and the
	// WebSocket upgrader. Empty means same-origin only.
	AllowedOrigins []string `json:"allowedOrigins,omitempty"`
}

// Defaults applied by Load when the corresponding field is empty.
const (
	DefaultListenAddr      = ":3000"
	DefaultTextModel       = "gemini-2.5-flash"
	DefaultImageModel      = "imagen-3.0-generate-002"
	DefaultSignupCredits   = 25
	signupCreditsUnsetMark = -1
)

// Load reads and parses configuration from the given file path, then
// applies environment overrides. It returns an error if the file cannot
// be read, parsed, or is missing required fields.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Config{SignupCredits: signupCreditsUnsetMark}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv overrides file values with BZF_* environment variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"BZF_DB_CONN":       &c.DBConn,
		"BZF_DB_NAME":       &c.DBName,
		"BZF_DB_USER":       &c.DBUser,
		"BZF_DB_PASS":       &c.DBPass,
		"BZF_LISTEN_ADDR":   &c.ListenAddr,
		"BZF_JWT_SECRET":    &c.JWTSecret,
		"BZF_ADMIN_KEY":     &c.AdminKey,
		"BZF_SERVICE_URL":   &c.ServiceURL,
		"BZF_REDIS_URL":     &c.RedisURL,
		"BZF_GENAI_API_KEY": &c.GenAIAPIKey,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}

	if v, ok := lookup("BZF_SIGNUP_CREDITS"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: BZF_SIGNUP_CREDITS: %w", err)
		}
		c.SignupCredits = n
	}
	if v, ok := lookup("BZF_ALLOWED_ORIGINS"); ok {
		c.AllowedOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = DefaultListenAddr
	}
	if c.GenAITextModel == "" {
		c.GenAITextModel = DefaultTextModel
	}
	if c.GenAIImageModel == "" {
		c.GenAIImageModel = DefaultImageModel
	}
	if c.SignupCredits == signupCreditsUnsetMark {
		c.SignupCredits = DefaultSignupCredits
	}
}

// validate checks that all required fields are present.
func (c *Config) validate() error {
	switch {
	case c.DBConn == "":
		return fmt.Errorf("config: dbConn is required")
	case c.DBName == "":
		return fmt.Errorf("config: dbName is required")
	case c.DBUser == "":
		return fmt.Errorf("config: dbUser is required")
	case c.DBPass == "":
		return fmt.Errorf("config: dbPass is required")
	case c.JWTSecret == "":
		return fmt.Errorf("config: jwtSecret is required")
	case len(c.JWTSecret) < 32:
		return fmt.Errorf("config: jwtSecret must be at least 32 characters")
	case c.AdminKey == "":
		return fmt.Errorf("config: adminKey is required")
	case c.SignupCredits < 0:
		return fmt.Errorf("config: signupCredits must not be negative")
	}
	return nil
}

// StudioEnabled reports whether AI generation is configured.
func (c *Config) StudioEnabled() bool {
	return c.GenAIAPIKey != ""
}

// ConnString builds a PostgreSQL connection URI from the config fields.
// The password is URL-encoded to handle special characters safely.
func (c *Config) ConnString() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		url.QueryEscape(c.DBUser),
		url.QueryEscape(c.DBPass),
		c.DBConn,
		url.QueryEscape(c.DBName),
	)
}
