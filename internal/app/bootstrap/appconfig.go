// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// WAFFLE's CoreConfig carries the framework-level settings: env, log level,
// HTTP port and server timeouts, shutdown_timeout, db_connect_timeout and
// index_boot_timeout. Everything the assignment service itself needs lives
// here. Values come from flags, KNOCKWISE_* environment variables, config.*
// files and the defaults in appConfigKeys, in that order of precedence.
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Blank runs jobs under an in-process lock, which is only safe with a
	// single instance.
	RedisURL string

	JWTSecret string // HMAC key for bearer tokens

	// Mutating API requests allowed per client IP per minute; 0 disables.
	WriteRateLimit int

	// Background jobs
	ActivationSchedule string // cron spec for the scheduled-assignment activator
	ReconcileSchedule  string // cron spec for the derived-state reconcile pass; "off" disables it
	ActivationLockTTL  time.Duration
	JobTimeout         time.Duration

	AuditLogAdmin  string // all | db | log | off
	AuditLogSystem string

	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
	TimeoutLong   time.Duration
}
