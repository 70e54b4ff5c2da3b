// Package config loads the settings of the bundlecfg shell itself (HTTP port,
// timeouts, rate limiting, watch debounce, unknown-field policy, working
// directory) from environment variables and CLI flags with precedence:
// CLI flags > Environment variables > Defaults. The build configuration
// document is handled by package buildconfig.
package config
