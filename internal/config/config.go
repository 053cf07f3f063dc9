// Package config provides the environment-backed configuration loader used by
// cmd/assignment-service.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/procureline/engine/internal/models"
)

// Config holds the runtime config for the assignment service.
type Config struct {
	Addr        string // ASSIGNMENT_SERVICE_ADDR (default :8070)
	DatabaseURL string // ASSIGNMENT_DATABASE_URL or DATABASE_URL

	// Audit backend: "memory", "file" or "pg". File mode needs AuditDir;
	// pg mode needs DatabaseURL.
	AuditBackend string // ASSIGNMENT_AUDIT_BACKEND (default memory)
	AuditDir     string // ASSIGNMENT_AUDIT_DIR (default ./audit-events)

	// Streaming pipeline; active only when brokers and topic are set and the
	// audit backend is pg.
	KafkaBrokers []string // ASSIGNMENT_KAFKA_BROKERS (csv)
	KafkaTopic   string   // ASSIGNMENT_KAFKA_TOPIC (default assignment-audit)
	S3Bucket     string   // ASSIGNMENT_S3_BUCKET
	S3Prefix     string   // ASSIGNMENT_S3_PREFIX (default audit)

	Criteria models.VendorSelectionCriteria
}

const (
	defaultAddr       = ":8070"
	defaultAuditDir   = "./audit-events"
	defaultKafkaTopic = "assignment-audit"
	defaultS3Prefix   = "audit"
)

// Load reads the service configuration from environment variables. Selection
// weights default to the standard criteria; any override must still sum to 1.
func Load() (Config, error) {
	defaults := models.DefaultCriteria()
	cfg := Config{
		Addr:         getEnv("ASSIGNMENT_SERVICE_ADDR", defaultAddr),
		DatabaseURL:  firstNonEmpty(os.Getenv("ASSIGNMENT_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		AuditBackend: getEnv("ASSIGNMENT_AUDIT_BACKEND", "memory"),
		AuditDir:     getEnv("ASSIGNMENT_AUDIT_DIR", defaultAuditDir),
		KafkaBrokers: parseCSV(os.Getenv("ASSIGNMENT_KAFKA_BROKERS")),
		KafkaTopic:   getEnv("ASSIGNMENT_KAFKA_TOPIC", defaultKafkaTopic),
		S3Bucket:     os.Getenv("ASSIGNMENT_S3_BUCKET"),
		S3Prefix:     getEnv("ASSIGNMENT_S3_PREFIX", defaultS3Prefix),
		Criteria: models.VendorSelectionCriteria{
			PriceWeight:        getFloat("ASSIGNMENT_WEIGHT_PRICE", defaults.PriceWeight),
			QualityWeight:      getFloat("ASSIGNMENT_WEIGHT_QUALITY", defaults.QualityWeight),
			ReliabilityWeight:  getFloat("ASSIGNMENT_WEIGHT_RELIABILITY", defaults.ReliabilityWeight),
			AvailabilityWeight: getFloat("ASSIGNMENT_WEIGHT_AVAILABILITY", defaults.AvailabilityWeight),
			PreferenceWeight:   getFloat("ASSIGNMENT_WEIGHT_PREFERENCE", defaults.PreferenceWeight),
		},
	}

	switch cfg.AuditBackend {
	case "memory", "file":
	case "pg":
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("ASSIGNMENT_AUDIT_BACKEND=pg requires DATABASE_URL or ASSIGNMENT_DATABASE_URL")
		}
	default:
		return Config{}, fmt.Errorf("unknown audit backend %q (want memory, file or pg)", cfg.AuditBackend)
	}
	return cfg, nil
}

// StreamingEnabled reports whether the Kafka/S3 pipeline should run.
func (c Config) StreamingEnabled() bool {
	return c.AuditBackend == "pg" && len(c.KafkaBrokers) > 0 && c.S3Bucket != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func getFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return fallback
}

func parseCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if v := strings.TrimSpace(p); v != "" {
			out = append(out, v)
		}
	}
	return out
}
