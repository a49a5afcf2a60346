package config

import (
	"os"
	"strconv"

	"github.com/MikeSquared-Agency/trustfit/internal/optimize"
	"github.com/MikeSquared-Agency/trustfit/internal/trust"
)

type Config struct {
	Port        int
	NatsURL     string
	NatsToken   string
	DatabaseURL string
	LogLevel    string
	APIToken    string

	MaxEvaluations int
	MaxIterations  int
	XTolRel        float64
	FTolRel        float64
	FTolAbs        float64
}

func Load() Config {
	return Config{
		Port:        envInt("TRUSTFIT_PORT", 8760),
		NatsURL:     envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:   envStr("NATS_TOKEN", ""),
		DatabaseURL: envStr("DATABASE_URL", ""),
		LogLevel:    envStr("LOG_LEVEL", "info"),
		APIToken:    envStr("TRUSTFIT_API_TOKEN", ""),

		MaxEvaluations: envInt("TRUSTFIT_MAX_EVAL", trust.DefaultMaxEvaluations),
		MaxIterations:  envInt("TRUSTFIT_MAX_ITER", 15),
		XTolRel:        envFloat("TRUSTFIT_XTOL_REL", 1e-1),
		FTolRel:        envFloat("TRUSTFIT_FTOL_REL", 1e-1),
		FTolAbs:        envFloat("TRUSTFIT_FTOL_ABS", 1e-4),
	}
}

// OptimizerSettings maps the stopping criteria onto optimize.Settings.
func (c Config) OptimizerSettings() optimize.Settings {
	s := optimize.DefaultSettings()
	s.MaxIterations = c.MaxIterations
	s.XTolRel = c.XTolRel
	s.FTolRel = c.FTolRel
	s.FTolAbs = c.FTolAbs
	return s
}

// EstimatorOptions returns the trust.Estimator options implied by c.
func (c Config) EstimatorOptions() []trust.Option {
	return []trust.Option{
		trust.WithSettings(c.OptimizerSettings()),
		trust.WithMaxEvaluations(c.MaxEvaluations),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}
