package config

import "time"

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string

	// session lifecycle policy
	SessionTimeout   time.Duration // idle duration before the sweeper evicts a session
	SweepInterval    time.Duration // how often the sweeper runs
	GraceWindow      time.Duration // how long an inactive participant keeps its role slot
	ExecutionTimeout time.Duration // hard cap on a single code execution
	MaxOutputSize    int           // byte cap on execution output before truncation
}
