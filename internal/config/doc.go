// Package config defines the settings of the polymarket upgrade command and
// provides helpers to load, validate and save them in YAML format.
//
// Every field has a default, so the command works without a settings file;
// the file only exists to point the updater at a mirror or a test registry,
// to change the privileged helper, or to bound a run with a different timeout.
package config
