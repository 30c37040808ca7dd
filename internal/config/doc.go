// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation.
// After the file is parsed, PODSYNC_* environment variables override individual
// fields (see the env tags on each struct).
package config
