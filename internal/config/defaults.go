// Package config provides default values for configuration.
package config

import "time"

// Server defaults
const (
	DefaultBaseURL = "http://localhost:8080"
)

// Database defaults
const (
	DefaultDatabasePath = "/data/daykeeper.db"
)

// Google defaults
const (
	DefaultGoogleScopes = "https://www.googleapis.com/auth/calendar"
)

// Sync defaults
const (
	DefaultSyncPollInterval = 5 * time.Minute
	DefaultRenewalInterval  = 1 * time.Hour
)

// Logging defaults
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)
