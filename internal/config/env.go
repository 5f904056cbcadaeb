package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RAGDOC_"

// LoadDotEnv loads KEY=VALUE pairs from the given files into the process
// environment without overriding variables that are already set. Missing
// files are skipped. With no arguments ".env" is tried.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides cfg fields from RAGDOC_* environment variables.
// Malformed numeric values are reported as errors.
func ApplyEnv(cfg *Config) error {
	var errs []string
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, EnvPrefix+key)
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst **float64) {
		if v, ok := lookup(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, EnvPrefix+key)
				return
			}
			*dst = &f
		}
	}

	if v, ok := lookup("DEBUG"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, EnvPrefix+"DEBUG")
		} else {
			cfg.Debug = b
		}
	}
	str("HOST", &cfg.Server.Host)
	integer("PORT", &cfg.Server.Port)
	if v, ok := lookup("MAX_UPLOAD_BYTES"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errs = append(errs, EnvPrefix+"MAX_UPLOAD_BYTES")
		} else {
			cfg.Server.MaxUploadBytes = n
		}
	}
	integer("RATE_LIMIT_PER_HOUR", &cfg.Server.RateLimitPerHour)
	str("PERSIST_DIR", &cfg.Storage.PersistDir)
	str("DATABASE_PATH", &cfg.Storage.DatabasePath)
	str("BLEVE_INDEX_PATH", &cfg.Storage.BleveIndexPath)
	str("EMBEDDING_PROVIDER", &cfg.Embedding.Provider)
	str("EMBEDDING_MODEL_PATH", &cfg.Embedding.ModelPath)
	str("EMBEDDING_URL", &cfg.Embedding.OllamaURL)
	str("EMBEDDING_MODEL", &cfg.Embedding.Model)
	str("VECTOR_INDEX_TYPE", &cfg.Vector.IndexType)
	integer("MAX_CHUNK_SIZE", &cfg.Chunking.MaxChunkSize)
	integer("OVERLAP_SIZE", &cfg.Chunking.OverlapSize)
	integer("TOP_K", &cfg.Retrieval.TopK)
	float("SCORE_THRESHOLD", &cfg.Retrieval.ScoreThreshold)
	str("GENERATION_URL", &cfg.Generation.URL)
	str("GENERATION_MODEL", &cfg.Generation.Model)
	float("GENERATION_TEMPERATURE", &cfg.Generation.Temperature)
	if v, ok := lookup("GENERATION_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, EnvPrefix+"GENERATION_TIMEOUT")
		} else {
			cfg.Generation.Timeout = d
		}
	}
	if v, ok := lookup("WATCH_DIRS"); ok {
		cfg.Watch.Directories = splitList(v)
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid environment values: %s", strings.Join(errs, ", "))
	}
	return nil
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
