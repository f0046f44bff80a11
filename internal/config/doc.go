// Package config handles configuration loading for ergo.
//
// # Overview
//
// Configuration is assembled from three layers, highest precedence first:
//
//  1. The user's YAML file
//  2. Fragments in the include directory (general.include, default "ergo.d",
//     relative to the config file): *.yaml, *.yml and *.conf as YAML, *.toml as TOML
//  3. The built-in defaults (defaults.yaml, also written by "ergo init")
//
// Maps merge key by key. Lists are taken whole from the highest layer that sets them.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. The --config flag
//  2. Path from ERGO_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/ergo/ergo.yaml
//
// # Environment Variable Expansion
//
// A .env file next to the config file is loaded first (existing variables win).
// Values can then reference environment variables:
//
//	ao:
//	  accounts:
//	    - username: ergo
//	      password: "${ERGO_PASSWORD}"
//
// # Accounts and Dimensions
//
// Each account names a dimension; its host and port come from ao.dimensions
// unless the account sets them itself.
//
// # Validation
//
// Load() validates field constraints with go-playground/validator and reports
// them by YAML path, then checks durations, backoff bounds and that no
// character is configured twice.
package config
