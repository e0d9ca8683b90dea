// Package config provides environment-based configuration.
//
// Loads a flat Config struct from environment variables with defaults,
// validates required fields and platform credential pairing.
package config
