package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"routeplanner/internal/opt"
)

type Config struct {
	Port               string  `yaml:"port"`
	DatabaseURL        string  `yaml:"databaseUrl"`
	RedisURL           string  `yaml:"redisUrl"`
	LogLevel           string  `yaml:"logLevel"`
	RateRPS            float64 `yaml:"rateRps"`
	RateBurst          int     `yaml:"rateBurst"`
	WebhookMaxAttempts int     `yaml:"webhookMaxAttempts"`
	Solver             Solver  `yaml:"solver"`
}

// Solver holds the fleet and search defaults applied when a request leaves them out.
type Solver struct {
	Vehicles            int           `yaml:"vehicles" json:"vehicles"`
	VolumeCapacities    []int         `yaml:"volumeCapacities" json:"volumeCapacities"`
	WeightCapacities    []int         `yaml:"weightCapacities" json:"weightCapacities"`
	LoadTime            int           `yaml:"loadTime" json:"loadTime"`
	UnloadTime          int           `yaml:"unloadTime" json:"unloadTime"`
	SpanCostCoefficient int           `yaml:"spanCostCoefficient" json:"spanCostCoefficient"`
	MaxRouteDistance    int           `yaml:"maxRouteDistance" json:"maxRouteDistance"`
	Horizon             int           `yaml:"horizon" json:"horizon"`
	NoWaiting           bool          `yaml:"noWaiting" json:"noWaiting"`
	TimeLimit           time.Duration `yaml:"timeLimit" json:"-"`
	MaxIterations       int           `yaml:"maxIterations" json:"maxIterations"`
	Workers             int           `yaml:"workers" json:"workers"`
	Annealing           Annealing     `yaml:"annealing" json:"annealing"`
}

type Annealing struct {
	Iterations  int     `yaml:"iterations" json:"iterations"`
	InitialTemp float64 `yaml:"initialTemp" json:"initialTemp"`
	Cooling     float64 `yaml:"cooling" json:"cooling"`
	Seed        int64   `yaml:"seed" json:"seed"`
}

// Default mirrors the reference delivery setup: three vehicles with volume
// capacities 55/80/100 and weight capacities 50/70/90.
func Default() Config {
	p := opt.DefaultParams()
	return Config{
		Port:               "8080",
		LogLevel:           "info",
		RateRPS:            20,
		RateBurst:          40,
		WebhookMaxAttempts: 10,
		Solver: Solver{
			Vehicles:            3,
			VolumeCapacities:    []int{55, 80, 100},
			WeightCapacities:    []int{50, 70, 90},
			SpanCostCoefficient: p.SpanCostCoefficient,
			MaxRouteDistance:    p.MaxRouteDistance,
			Horizon:             p.Horizon,
			TimeLimit:           p.TimeLimit,
		},
	}
}

// LoadDotEnv loads a .env file into the environment when one exists.
func LoadDotEnv(files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load starts from Default, overlays the YAML file at path (if path is not
// empty) and then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)
	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)

	ints := []struct {
		key string
		dst *int
	}{
		{"RATE_BURST", &cfg.RateBurst},
		{"WEBHOOK_MAX_ATTEMPTS", &cfg.WebhookMaxAttempts},
		{"SOLVER_MAX_ITERATIONS", &cfg.Solver.MaxIterations},
		{"SOLVER_WORKERS", &cfg.Solver.Workers},
		{"SOLVER_SPAN_COST", &cfg.Solver.SpanCostCoefficient},
		{"SOLVER_MAX_ROUTE_DISTANCE", &cfg.Solver.MaxRouteDistance},
		{"SOLVER_HORIZON", &cfg.Solver.Horizon},
	}
	for _, it := range ints {
		v := os.Getenv(it.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: %s: %w", it.key, err)
		}
		*it.dst = n
	}
	if v := os.Getenv("RATE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("config: RATE_RPS: %w", err)
		}
		cfg.RateRPS = f
	}
	if v := os.Getenv("SOLVER_TIME_LIMIT_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: SOLVER_TIME_LIMIT_MS: %w", err)
		}
		cfg.Solver.TimeLimit = time.Duration(n) * time.Millisecond
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func (c Config) Validate() error {
	s := c.Solver
	if s.Vehicles < 1 {
		return fmt.Errorf("config: solver.vehicles must be at least 1, got %d", s.Vehicles)
	}
	for name, caps := range map[string][]int{"volumeCapacities": s.VolumeCapacities, "weightCapacities": s.WeightCapacities} {
		if len(caps) != 1 && len(caps) != s.Vehicles {
			return fmt.Errorf("config: solver.%s needs 1 or %d entries, got %d", name, s.Vehicles, len(caps))
		}
	}
	if s.Annealing.Cooling < 0 || s.Annealing.Cooling >= 1 {
		return fmt.Errorf("config: solver.annealing.cooling must be in [0,1), got %v", s.Annealing.Cooling)
	}
	if c.RateRPS < 0 || c.RateBurst < 0 {
		return errors.New("config: rate limits must not be negative")
	}
	return nil
}

// Fleet returns the default fleet.
func (s Solver) Fleet() opt.Fleet {
	return opt.Fleet{
		Vehicles:         s.Vehicles,
		VolumeCapacities: append([]int(nil), s.VolumeCapacities...),
		WeightCapacities: append([]int(nil), s.WeightCapacities...),
		LoadTime:         s.LoadTime,
		UnloadTime:       s.UnloadTime,
	}
}

// Params returns the default engine parameters.
func (s Solver) Params() opt.Params {
	return opt.Params{
		SpanCostCoefficient: s.SpanCostCoefficient,
		MaxRouteDistance:    s.MaxRouteDistance,
		Horizon:             s.Horizon,
		NoWaiting:           s.NoWaiting,
		TimeLimit:           s.TimeLimit,
		MaxIterations:       s.MaxIterations,
		Workers:             s.Workers,
		Annealing: opt.Annealing{
			Iterations:  s.Annealing.Iterations,
			InitialTemp: s.Annealing.InitialTemp,
			Cooling:     s.Annealing.Cooling,
			Seed:        s.Annealing.Seed,
		},
	}
}
