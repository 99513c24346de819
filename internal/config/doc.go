// Package config loads and validates runtime configuration for rcon-status.
//
// Values come from an optional `config.yaml` (searched in `.` and `config/`),
// a `.env` file, and the environment. The server to channel mapping can only
// be expressed in the config file; scalar settings can be overridden with
// `RS_`-prefixed variables or the legacy names listed in config.go.
package config
