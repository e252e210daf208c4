package config

import "time"

// Database connection pool settings
const (
	DBMaxOpenConns    = 25
	DBMaxIdleConns    = 5
	DBConnMaxLifetime = 5 * time.Minute
)

// HTTP server timeouts
const (
	ServerRequestTimeout  = 60 * time.Second
	ServerReadTimeout     = 15 * time.Second
	ServerWriteTimeout    = 60 * time.Second
	ServerIdleTimeout     = 120 * time.Second
	ServerShutdownTimeout = 30 * time.Second
)

// Database ping timeout for startup and health checks
const DBPingTimeout = 5 * time.Second

// Longest sheerid link accepted from callbacks and operators.
const MaxSheeridURLLength = 2048

// Verification history page size
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 200
)

// Default JSON body limit for non-import routes
const DefaultBodyLimit = 1 << 20
