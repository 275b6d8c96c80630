// Package config loads, normalizes, and validates stillframe configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// BOT_TOKEN, WORKDIR, and MAX_OUTPUT_MB. The Config type centralizes every knob
// the bot daemon and CLI need so the working directory, state database, and
// render limits are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
