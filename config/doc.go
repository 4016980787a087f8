// Package config loads service configuration from a YAML file, a .env file
// and environment variables.
//
// Values are layered in this order, later sources winning:
//
//  1. config.yml (found in ./cmd/<service>/, ./config/ or the working directory)
//  2. variables from the .env file
//  3. process environment
//
// Environment keys are matched against nested config keys by trying every
// split of the underscore-separated name, so LOGGING_LEVEL sets
// logging.level. WithEnvPrefix restricts binding to prefixed variables:
//
//	var cfg AppConfig
//	err := config.LoadConfig("tablemut", &cfg, config.WithEnvPrefix("TABLEMUT"))
package config
