// Package config provides configuration loading and validation for the weather station service.
// It handles YAML-based configuration with struct validation and supports overriding
// the admin credential through environment variables.
package config
