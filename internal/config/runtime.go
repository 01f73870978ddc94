package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Runtime holds process settings that do not belong in taskraid.yml.
type Runtime struct {
	Addr              string        `env:"TASKRAID_ADDR"                envDefault:"127.0.0.1:8080"`
	JWTSecret         string        `env:"TASKRAID_JWT_SECRET"`
	LogLevel          string        `env:"TASKRAID_LOG_LEVEL"           envDefault:"info"`
	LogFile           string        `env:"TASKRAID_LOG_FILE"`
	ClassifierURL     string        `env:"TASKRAID_CLASSIFIER_URL"`
	ClassifierToken   string        `env:"TASKRAID_CLASSIFIER_TOKEN"`
	ClassifierTimeout time.Duration `env:"TASKRAID_CLASSIFIER_TIMEOUT"  envDefault:"10s"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadRuntime reads Runtime from the environment.
func LoadRuntime() (Runtime, error) {
	var rt Runtime
	if err := ParseEnv(&rt); err != nil {
		return rt, err
	}
	return rt, nil
}
