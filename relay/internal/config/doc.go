// Package config loads the relay server configuration file (relay.yaml).
//
// Load(path) reads the YAML file, applies defaults (:8475 listen address,
// 1h event TTL, "cfgsync" document event name, "x-cfgsync-key" auth header),
// then validates required fields and enums. API keys are never stored in the
// file itself — auth.key_env names the environment variable that holds the
// expected value.
package config
