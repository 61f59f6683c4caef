// Package config loads the server settings from an optional config.yaml and
// TASKPLAN_* environment variables, the latter taking precedence, and
// validates them before any component is wired.
package config
