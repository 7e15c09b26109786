// Package config loads and validates hiregate configuration.
//
// # Overview
//
// Values start from Default, are overlaid by an optional YAML file named in
// HIREGATE_CONFIG_FILE, and finally by HIREGATE_* environment variables.
//
// # Configuration Structure
//
// Server settings:
//
//	HIREGATE_HOST="0.0.0.0"
//	HIREGATE_PORT="8080"
//	HIREGATE_ALLOWED_ORIGINS="https://app.example.com"
//
// Identity settings:
//
//	HIREGATE_IDENTITY_MODE="jwt"  # jwt, oidc
//	HIREGATE_JWT_SECRET="..."
//	HIREGATE_OIDC_ISSUER_URL="https://accounts.example.com"
//	HIREGATE_OIDC_CLIENT_ID="hiregate"
//
// Storage settings:
//
//	HIREGATE_DATABASE_URL="postgres://localhost/hiregate"
//	HIREGATE_DATABASE_MAX_CONNS="20"
//	HIREGATE_REDIS_URL="redis://localhost:6379"  # empty keeps rate limits in process
//
// Membership settings:
//
//	HIREGATE_DEMO_ORG_SLUG="demo,sandbox"
//	HIREGATE_PUBLIC_BASE_URL="https://app.example.com"
//	HIREGATE_JOIN_REQUEST_COOLDOWN="168h"
//
// Observability settings:
//
//	HIREGATE_LOG_LEVEL="info"  # debug, info, warn, error
//	HIREGATE_LOG_FORMAT="json" # json, text
//	HIREGATE_OTEL_ENABLED="true"
//	HIREGATE_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(cfg.Server.Addr())
package config
