package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/renderscope/api/internal/simulator"
)

const defaultJWTSecret = "change-me-in-production"

type Config struct {
	Server     ServerConfig
	Redis      RedisConfig
	JWT        JWTConfig
	RateLimit  RateLimitConfig
	Simulation SimulationConfig
	Worker     WorkerConfig
}

type ServerConfig struct {
	Port     string `validate:"required,numeric"`
	Env      string `validate:"oneof=development staging production test"`
	LogLevel string `validate:"oneof=debug info warn warning error"`
	// Comma separated list of allowed origins
	CORSOrigins string `validate:"required"`
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int `validate:"gte=0"`
}

type JWTConfig struct {
	Secret     string `validate:"required,min=8"`
	Expiration int    `validate:"gt=0"` // hours
}

type RateLimitConfig struct {
	ExportPerHour int `validate:"gt=0"`
}

// WorkerConfig sizes the background export queue
type WorkerConfig struct {
	Concurrency int `validate:"gt=0,lte=64"`
}

type SimulationConfig struct {
	Interval  time.Duration `validate:"gte=10ms"`
	Seed      uint64
	Generator simulator.GeneratorParams
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// Environment variables, e.g. SIMULATION_INTERVAL for simulation.interval
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("server.log_level", "LOG_LEVEL")
	_ = v.BindEnv("jwt.secret", "JWT_SECRET")

	// Defaults
	v.SetDefault("server.port", "3000")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.cors_origins", "*")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("jwt.secret", defaultJWTSecret)
	v.SetDefault("jwt.expiration", 1)
	v.SetDefault("ratelimit.export_per_hour", 60)
	v.SetDefault("worker.concurrency", 4)

	gen := simulator.DefaultGeneratorParams()
	v.SetDefault("simulation.interval", "2s")
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("simulation.projects.min", gen.Projects.Min)
	v.SetDefault("simulation.projects.max", gen.Projects.Max)
	v.SetDefault("simulation.categories.min", gen.Categories.Min)
	v.SetDefault("simulation.categories.max", gen.Categories.Max)
	v.SetDefault("simulation.cameras.min", gen.Cameras.Min)
	v.SetDefault("simulation.cameras.max", gen.Cameras.Max)
	v.SetDefault("simulation.frames.min", gen.Frames.Min)
	v.SetDefault("simulation.frames.max", gen.Frames.Max)

	// Try to read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:        v.GetString("server.port"),
			Env:         v.GetString("server.env"),
			LogLevel:    strings.ToLower(v.GetString("server.log_level")),
			CORSOrigins: v.GetString("server.cors_origins"),
		},
		Redis: RedisConfig{
			Addr:     v.GetString("redis.addr"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:     v.GetString("jwt.secret"),
			Expiration: v.GetInt("jwt.expiration"),
		},
		RateLimit: RateLimitConfig{
			ExportPerHour: v.GetInt("ratelimit.export_per_hour"),
		},
		Worker: WorkerConfig{
			Concurrency: v.GetInt("worker.concurrency"),
		},
		Simulation: SimulationConfig{
			Interval: v.GetDuration("simulation.interval"),
			Seed:     v.GetUint64("simulation.seed"),
			Generator: simulator.GeneratorParams{
				Projects:   intRange(v, "simulation.projects"),
				Categories: intRange(v, "simulation.categories"),
				Cameras:    intRange(v, "simulation.cameras"),
				Frames:     intRange(v, "simulation.frames"),
			},
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks field constraints and the simulation bounds.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	gen := c.Simulation.Generator
	if gen.Projects.Min < 1 || gen.Projects.Max > len(simulator.ProjectNames) {
		return fmt.Errorf("invalid config: simulation.projects must be within 1..%d", len(simulator.ProjectNames))
	}
	if gen.Categories.Max > 4 {
		return fmt.Errorf("invalid config: simulation.categories.max must be at most 4")
	}

	if c.Production() {
		if c.JWT.Secret == defaultJWTSecret {
			return fmt.Errorf("invalid config: jwt.secret must be set in production")
		}
		if c.Server.CORSOrigins == "*" {
			return fmt.Errorf("invalid config: server.cors_origins must list origins in production")
		}
	}

	return nil
}

// Production reports whether the server runs in the production environment.
func (c *Config) Production() bool {
	return c.Server.Env == "production"
}

func intRange(v *viper.Viper, key string) simulator.IntRange {
	return simulator.IntRange{
		Min: v.GetInt(key + ".min"),
		Max: v.GetInt(key + ".max"),
	}
}
