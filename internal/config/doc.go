// Package config defines the settings shared by the server and the operator
// CLI and provides helpers to load, validate and save them in YAML format.
//
// Secrets (the Postgres DSN and MQTT credentials) may also be supplied through
// the environment or a .env file so they do not have to live in the YAML file.
package config
