package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// policy defaults; all of these are configuration, not protocol contract
const (
	defaultSessionTimeout   = 1 * time.Hour
	defaultSweepInterval    = 5 * time.Minute
	defaultGraceWindow      = 1 * time.Minute
	defaultExecutionTimeout = 10 * time.Second
	defaultMaxOutputSize    = 10 * 1024
)

// loads configuration from environment variables
func LoadEnvironmentVariables() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		_ = err // not an error - production environments may not have a .env file
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	environment := os.Getenv("ENVIRONMENT")
	if environment == "" {
		environment = "development"
	}

	sessionTimeout, err := durationEnv("SESSION_TIMEOUT", defaultSessionTimeout)
	if err != nil {
		return nil, err
	}

	sweepInterval, err := durationEnv("SESSION_SWEEP_INTERVAL", defaultSweepInterval)
	if err != nil {
		return nil, err
	}

	graceWindow, err := durationEnv("PARTICIPANT_GRACE_WINDOW", defaultGraceWindow)
	if err != nil {
		return nil, err
	}

	executionTimeout, err := durationEnv("CODE_EXECUTION_TIMEOUT", defaultExecutionTimeout)
	if err != nil {
		return nil, err
	}

	maxOutputSize, err := intEnv("MAX_OUTPUT_SIZE", defaultMaxOutputSize)
	if err != nil {
		return nil, err
	}

	return &Config{
		Port:             port,
		Environment:      environment,
		AllowedOrigins:   splitOrigins(os.Getenv("ALLOWED_ORIGINS")),
		SessionTimeout:   sessionTimeout,
		SweepInterval:    sweepInterval,
		GraceWindow:      graceWindow,
		ExecutionTimeout: executionTimeout,
		MaxOutputSize:    maxOutputSize,
	}, nil
}

// parses a duration environment variable with a fallback default
func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(name)
	if value == "" {
		return fallback, nil
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	return d, nil
}

// parses an integer environment variable with a fallback default
func intEnv(name string, fallback int) (int, error) {
	value := os.Getenv(name)
	if value == "" {
		return fallback, nil
	}

	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}

	return n, nil
}

func splitOrigins(raw string) []string {
	if raw == "" {
		return []string{}
	}

	origins := strings.Split(raw, ",")

	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return origins
}
