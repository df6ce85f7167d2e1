package config

import "strings"

// Environment constants
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// IsProductionLike returns true for staging and production.
// Use this when you need to enforce production-like configuration requirements.
func IsProductionLike(environment string) bool {
	env := strings.ToLower(environment)
	return env == EnvStaging || env == EnvProduction
}
