// Package config loads and validates application configuration from
// environment variables (prefix FORMLENS) and an optional YAML file.
// Environment variables take precedence over file values.
package config
