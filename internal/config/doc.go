// Package config loads twmarket configuration.
//
// Configuration is resolved in this order of precedence:
//
//	1. Environment variables (TWM_*), including values from an optional .env file
//	2. config.yaml or configs/config.yaml (or the file named by TWM_CONFIG_FILE)
//	3. Defaults from struct tags
//
// Example:
//
//	TWM_DATABASE_DRIVER=sqlite
//	TWM_DATABASE_DSN=file:twmarket.db
//	TWM_REDIS_ADDR=localhost:6379
//	TWM_PIPELINE_STEP_SPACING=5s
//	TWM_MONITOR_MAX_SUBSCRIPTIONS=5
//
// Load configuration at application startup:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// Tests use config.Default(), which needs no environment.
package config
