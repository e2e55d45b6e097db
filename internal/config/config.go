package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	EnvLocal = "local"
	EnvDev   = "dev"
	EnvProd  = "prod"

	BackendSQLite = "sqlite"
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

type Config struct {
	APIBaseURL       string        `validate:"required,url"`
	AccessToken      string
	StorageKeyPrefix string        `validate:"required,max=64"`
	StorageBackend   string        `validate:"oneof=sqlite memory redis"`
	StoragePath      string        `validate:"required_if=StorageBackend sqlite"`
	RedisAddr        string        `validate:"required_if=StorageBackend redis"`
	RedisPassword    string
	RedisDB          int           `validate:"gte=0,lte=15"`
	HTTPTimeout      time.Duration `validate:"gt=0"`
	PersistTimeout   time.Duration `validate:"gt=0"`
	Env              string        `validate:"oneof=local dev prod"`
	LogLevel         string        `validate:"oneof=debug info warn error"`
	DevServerAddr    string        `validate:"required"`
}

func Default() Config {
	return Config{
		APIBaseURL:       "http://localhost:3000/api",
		StorageKeyPrefix: "quizteacherfe",
		StorageBackend:   BackendSQLite,
		StoragePath:      "quiz-taker.db",
		HTTPTimeout:      5 * time.Second,
		PersistTimeout:   2 * time.Second,
		Env:              EnvLocal,
		LogLevel:         "info",
		DevServerAddr:    ":3000",
	}
}

var validate = validator.New()

// Load reads the given .env files (".env" when none are named) and then the
// process environment. A missing .env file is not an error.
func Load(files ...string) (Config, error) {
	cfg, err := Read(files...)
	if err != nil {
		return Config{}, err
	}
	return cfg.Checked()
}

// Read is Load without validation. Commands use it so flags can override
// the environment before anything is checked.
func Read(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}
	return ReadEnv(os.Getenv)
}

func FromEnv(getenv func(string) string) (Config, error) {
	cfg, err := ReadEnv(getenv)
	if err != nil {
		return Config{}, err
	}
	return cfg.Checked()
}

// ReadEnv applies the QUIZ_* variables over Default. Only malformed numbers
// and durations fail here.
func ReadEnv(getenv func(string) string) (Config, error) {
	cfg := Default()

	setString(getenv, "QUIZ_API_BASE_URL", &cfg.APIBaseURL)
	setString(getenv, "QUIZ_ACCESS_TOKEN", &cfg.AccessToken)
	setString(getenv, "QUIZ_STORAGE_KEY_PREFIX", &cfg.StorageKeyPrefix)
	setString(getenv, "QUIZ_STORAGE_BACKEND", &cfg.StorageBackend)
	setString(getenv, "QUIZ_STORAGE_PATH", &cfg.StoragePath)
	setString(getenv, "QUIZ_REDIS_ADDR", &cfg.RedisAddr)
	setString(getenv, "QUIZ_REDIS_PASSWORD", &cfg.RedisPassword)
	setString(getenv, "QUIZ_ENV", &cfg.Env)
	setString(getenv, "QUIZ_LOG_LEVEL", &cfg.LogLevel)
	setString(getenv, "QUIZ_DEVSERVER_ADDR", &cfg.DevServerAddr)

	if raw := strings.TrimSpace(getenv("QUIZ_REDIS_DB")); raw != "" {
		db, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("QUIZ_REDIS_DB: %w", err)
		}
		cfg.RedisDB = db
	}
	if err := setDuration(getenv, "QUIZ_HTTP_TIMEOUT", &cfg.HTTPTimeout); err != nil {
		return Config{}, err
	}
	if err := setDuration(getenv, "QUIZ_PERSIST_TIMEOUT", &cfg.PersistTimeout); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Normalize trims values and lowercases the enumerated fields.
func (c Config) Normalize() Config {
	c.APIBaseURL = strings.TrimSpace(c.APIBaseURL)
	c.StorageBackend = strings.ToLower(strings.TrimSpace(c.StorageBackend))
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	return c
}

// Checked returns the normalized config, or an error when it does not
// validate.
func (c Config) Checked() (Config, error) {
	c = c.Normalize()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			messages := make([]string, 0, len(fieldErrs))
			for _, fieldErr := range fieldErrs {
				messages = append(messages, fmt.Sprintf("%s failed %q", fieldErr.Field(), fieldErr.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(messages, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func setString(getenv func(string) string, key string, target *string) {
	if value := strings.TrimSpace(getenv(key)); value != "" {
		*target = value
	}
}

func setDuration(getenv func(string) string, key string, target *time.Duration) error {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*target = parsed
	return nil
}
