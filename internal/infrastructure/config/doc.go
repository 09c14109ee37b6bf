// Package config loads config.yaml for the EnOcean service.
//
// Load reads the YAML file, applies GRAYLOGIC_* environment overrides
// through envconfig and validates the result. Broker and InfluxDB secrets
// belong in the environment rather than in the file:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//		return err
//	}
//	devices := cfg.EnOcean.ConfigFile
package config
