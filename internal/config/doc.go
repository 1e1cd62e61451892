// Package config loads, normalizes, and validates wordsync configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENROUTER_API_KEY and HF_TOKEN, optionally sourced from a .env file. The
// Config type centralizes every knob the CLI and the reconciliation engine
// need.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
