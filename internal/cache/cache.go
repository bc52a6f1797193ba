package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache keeps short lived values such as processing run summaries
type Cache interface {
	// Get returns the value stored under key and whether it was found
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores value under key. A zero expiration uses the cache default.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration)

	Delete(ctx context.Context, key string)

	// List returns the unexpired values whose keys start with prefix
	List(ctx context.Context, prefix string) []interface{}
}

const (
	PrefixProcessingRun = "processing_run:v1"

	// KeyLatestProcessingRun points at the summary of the most recent run
	KeyLatestProcessingRun = "processing_run:latest"
)

// GenerateKey joins prefix and params with colons, e.g. processing_run:v1:run_01HZ...
func GenerateKey(prefix string, params ...interface{}) string {
	parts := make([]string, 0, len(params)+1)
	parts = append(parts, prefix)
	for _, param := range params {
		parts = append(parts, fmt.Sprint(param))
	}
	return strings.Join(parts, ":")
}
