package config

import "os"

// ConfigPath is the default config file location, overridable via
// OMNIDIGEST_CONFIG for containerized deployments.
var ConfigPath = defaultConfigPath()

func defaultConfigPath() string {
	if v := os.Getenv("OMNIDIGEST_CONFIG"); v != "" {
		return v
	}
	return "config.yaml"
}
