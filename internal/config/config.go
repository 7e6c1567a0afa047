package config

import (
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/copyleftdev/verdant/internal/errors"
	"github.com/copyleftdev/verdant/internal/payload"
)

type Config struct {
	Environment string `env:"ENV" envDefault:"development"`
	HTTP        struct {
		Port            int           `env:"HTTP_PORT" envDefault:"8080"`
		ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"30s"`
		WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`
		IdleTimeout     time.Duration `env:"HTTP_IDLE_TIMEOUT" envDefault:"120s"`
		ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	}
	Logging struct {
		Level  string `env:"LOG_LEVEL" envDefault:"info"`
		Format string `env:"LOG_FORMAT" envDefault:"json"`
		Output string `env:"LOG_OUTPUT" envDefault:"stderr"`
	}
	Segmentation struct {
		BufferSize int `env:"SEGMENT_BUFFER_SIZE" envDefault:"16384"`
		MaxRounds  int `env:"SEGMENT_MAX_ROUNDS" envDefault:"50"`
	}
	Routing struct {
		BufferSize    int `env:"ROUTE_BUFFER_SIZE" envDefault:"8192"`
		DefaultStops  int `env:"ROUTE_DEFAULT_STOPS" envDefault:"12"`
		MaxWorkspaces int `env:"ROUTE_MAX_WORKSPACES" envDefault:"16"`
	}
}

// Load reads the given dotenv files into the process environment, then parses
// the environment. With no files, a .env in the working directory is loaded
// if present. Variables already set in the environment win over the files.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(err, "load .env").WithComponent("config")
		}
	} else if err := godotenv.Load(files...); err != nil {
		return nil, errors.Wrapf(err, "load %v", files).WithComponent("config")
	}

	return parse(env.Options{})
}

// FromEnvironment parses a config from environ alone, ignoring the process
// environment.
func FromEnvironment(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}

	// Parse environment variables
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, errors.Wrap(err, "parse environment").WithComponent("config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate reports the first setting the engines cannot run with.
func (c *Config) Validate() error {
	invalid := func(format string, args ...interface{}) error {
		return errors.Errorf(format, args...).WithComponent("config").WithOperation("validate")
	}

	switch {
	case c.HTTP.Port < 1 || c.HTTP.Port > 65535:
		return invalid("HTTP_PORT must be in [1, 65535], got %d", c.HTTP.Port)
	case c.Segmentation.BufferSize < payload.MinBufferSize:
		return invalid("SEGMENT_BUFFER_SIZE must be at least %d, got %d", payload.MinBufferSize, c.Segmentation.BufferSize)
	case c.Segmentation.MaxRounds < 1:
		return invalid("SEGMENT_MAX_ROUNDS must be positive, got %d", c.Segmentation.MaxRounds)
	case c.Routing.BufferSize < payload.MinBufferSize:
		return invalid("ROUTE_BUFFER_SIZE must be at least %d, got %d", payload.MinBufferSize, c.Routing.BufferSize)
	case c.Routing.MaxWorkspaces < 1:
		return invalid("ROUTE_MAX_WORKSPACES must be positive, got %d", c.Routing.MaxWorkspaces)
	}
	return nil
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.HTTP.Port)
}

// GetEnv returns the value of the environment variable or the default value
func GetEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
