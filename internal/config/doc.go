// Package config loads the bridge's YAML configuration.
//
// Load parses the `bridge:` section of config.yaml, fills defaults, and
// validates. Watch re-loads the file on change so the timeout policy can
// be adjusted without a restart; an invalid edit keeps the previous
// configuration active.
package config
