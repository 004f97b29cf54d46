// Package config defines the run configuration for the updater and provides
// helpers to load, validate and save it in YAML format.
//
// The Config type holds the release channel, database connection parameters,
// installation path and ownership settings, the web server service and its
// init system, and the log sink selection. Validation runs before any side
// effect of an upgrade.
package config
