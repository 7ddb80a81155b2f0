// Package config loads and merges diffsum configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (DIFFSUM_* names, then the OPENAI_* and
//     UNIT_TEST_MODE names the shell scripts used)
//  3. Config file ($XDG_CONFIG_HOME/diffsum/config.yaml or --config)
//  4. Built-in defaults
//
// Use [Load] to obtain a merged [Config], [Save] to write a config file, and
// [SetField] to update a single key.
package config
