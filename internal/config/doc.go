// Package config loads hubauthd settings.
//
// Loading order:
//  1. Defaults (defaultConfig)
//  2. YAML file, when a path is given
//  3. HUBAUTH_* environment variables
//
// The result is validated before it is returned. Secrets (JWT keys, SMTP
// and Redis passwords, database DSN) are normally supplied through the
// environment rather than the file.
package config
