// Package config defines the engine configuration surface and its YAML
// loading. Default() is a complete working configuration; a YAML file only
// needs to name what it overrides.
package config
