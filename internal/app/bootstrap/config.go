// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// EnvPrefix namespaces environment variables for both WAFFLE core and app
// keys: mongo_uri is read from KNOCKWISE_MONGO_URI, http_port from
// KNOCKWISE_HTTP_PORT.
const EnvPrefix = "KNOCKWISE"

// appConfigKeys defines the configuration keys for KnockWise.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, jwt_secret, etc.
//   - Environment variables: KNOCKWISE_MONGO_URI, KNOCKWISE_JWT_SECRET, etc.
//   - Command-line flags: --mongo_uri, --jwt_secret, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "knockwise", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "redis_url", Default: "", Desc: "Redis URL for job locks (blank uses an in-process lock)"},
	{Name: "jwt_secret", Default: "", Desc: "HMAC secret for bearer tokens (required to serve)"},
	{Name: "write_rate_limit", Default: 60, Desc: "Mutating API requests per client IP per minute (0 disables)"},

	// Background jobs
	{Name: "activation_schedule", Default: "@every 1m", Desc: "Cron spec for the scheduled-assignment activator"},
	{Name: "reconcile_schedule", Default: "@hourly", Desc: "Cron spec for the derived-state reconcile pass ('off' disables)"},
	{Name: "activation_lock_ttl", Default: "5m", Desc: "TTL of the activator's distributed lock (e.g., 5m)"},
	{Name: "job_timeout", Default: "5m", Desc: "Upper bound on a single job run (e.g., 5m)"},

	// Audit logging settings
	{Name: "audit_log_admin", Default: "all", Desc: "Admin event logging: 'all' (db+log), 'db', 'log', or 'off'"},
	{Name: "audit_log_system", Default: "all", Desc: "Job event logging: 'all' (db+log), 'db', 'log', or 'off'"},

	// Per-operation deadlines
	{Name: "timeout_short", Default: "5s", Desc: "Deadline for single-document reads"},
	{Name: "timeout_medium", Default: "10s", Desc: "Deadline for lists and single writes"},
	{Name: "timeout_long", Default: "60s", Desc: "Deadline for the assignment protocol and sweeps"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config.* files,
// KNOCKWISE_* environment variables and command-line flags, merged with
// precedence flags > env > files > defaults. It registers its flags on the
// global flag set, so it runs once per process.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, EnvPrefix, appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}
	return coreCfg, appConfigFrom(appValues), nil
}

// appConfigFrom maps loaded values onto AppConfig. Unparseable durations
// fall back to their defaults.
func appConfigFrom(v config.AppConfigValues) AppConfig {
	return AppConfig{
		MongoURI:         v.String("mongo_uri"),
		MongoDatabase:    v.String("mongo_database"),
		MongoMaxPoolSize: uint64(v.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(v.Int("mongo_min_pool_size")),

		RedisURL:       v.String("redis_url"),
		JWTSecret:      v.String("jwt_secret"),
		WriteRateLimit: v.Int("write_rate_limit"),

		ActivationSchedule: v.String("activation_schedule"),
		ReconcileSchedule:  v.String("reconcile_schedule"),
		ActivationLockTTL:  v.Duration("activation_lock_ttl", 5*time.Minute),
		JobTimeout:         v.Duration("job_timeout", 5*time.Minute),

		AuditLogAdmin:  v.String("audit_log_admin"),
		AuditLogSystem: v.String("audit_log_system"),

		TimeoutShort:  v.Duration("timeout_short", 5*time.Second),
		TimeoutMedium: v.Duration("timeout_medium", 10*time.Second),
		TimeoutLong:   v.Duration("timeout_long", 60*time.Second),
	}
}

// ValidateConfig performs app-specific config validation before anything
// connects. Serving needs a JWT secret and parseable job schedules on top of
// what ValidateJobConfig checks.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := ValidateJobConfig(coreCfg, appCfg, logger); err != nil {
		return err
	}

	if appCfg.JWTSecret == "" {
		return errors.New("jwt_secret is required")
	}
	if coreCfg.Env == "prod" && len(appCfg.JWTSecret) < 32 {
		return errors.New("jwt_secret must be at least 32 bytes in prod")
	}
	if coreCfg.Env == "prod" && appCfg.RedisURL == "" {
		logger.Warn("redis_url is empty; background jobs use an in-process lock and must run on a single instance")
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	if _, err := parser.Parse(appCfg.ActivationSchedule); err != nil {
		return fmt.Errorf("activation_schedule: %w", err)
	}
	if appCfg.ReconcileSchedule != "off" {
		if _, err := parser.Parse(appCfg.ReconcileSchedule); err != nil {
			return fmt.Errorf("reconcile_schedule: %w", err)
		}
	}
	return nil
}

// ValidateJobConfig checks what every command needs: a usable MongoDB
// target, sane pool sizes and known audit settings. The one-shot commands
// use it directly since they never serve requests.
func ValidateJobConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}
	if appCfg.MongoDatabase == "" {
		return errors.New("mongo_database is required")
	}
	if appCfg.WriteRateLimit < 0 {
		return fmt.Errorf("write_rate_limit must not be negative, got %d", appCfg.WriteRateLimit)
	}
	if appCfg.MongoMinPoolSize > appCfg.MongoMaxPoolSize {
		return fmt.Errorf("mongo_min_pool_size (%d) exceeds mongo_max_pool_size (%d)", appCfg.MongoMinPoolSize, appCfg.MongoMaxPoolSize)
	}
	for key, val := range map[string]string{"audit_log_admin": appCfg.AuditLogAdmin, "audit_log_system": appCfg.AuditLogSystem} {
		switch val {
		case "all", "db", "log", "off":
		default:
			return fmt.Errorf("%s must be one of all, db, log, off; got %q", key, val)
		}
	}
	return nil
}
