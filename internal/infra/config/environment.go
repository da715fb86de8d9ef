package config

import "strings"

// Environment selects which EnviroSense backend deployment the client targets.
type Environment string

const (
	// EnvDevelopment targets a backend running on the local machine.
	EnvDevelopment Environment = "development"
	// EnvProduction targets the hosted EnviroSense deployment.
	EnvProduction Environment = "production"
	// EnvTest targets the isolated backend used by automated tests.
	EnvTest Environment = "test"
)

// ParseEnvironment maps a raw environment key to one of the known deployments.
// Unrecognized or empty keys map to production.
func ParseEnvironment(raw string) Environment {
	switch Environment(strings.ToLower(strings.TrimSpace(raw))) {
	case EnvDevelopment:
		return EnvDevelopment
	case EnvTest:
		return EnvTest
	default:
		return EnvProduction
	}
}

// String returns the environment key.
func (e Environment) String() string {
	return string(e)
}
