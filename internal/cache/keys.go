package cache

import (
	"strconv"
	"strings"
	"time"

	"refcache-api/internal/config"
)

// Namespace is the Redis key prefix for the service.
const Namespace = "refcache"

// TTLClass represents a config-driven TTL bucket.
type TTLClass string

const (
	TTLShort  TTLClass = "short"
	TTLMedium TTLClass = "medium"
	TTLLong   TTLClass = "long"
)

// TTLSet normalises cache TTLs from config into time.Duration values.
type TTLSet struct {
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

// NewTTLSet converts config TTLs (in seconds) into durations. Negative values disable caching.
func NewTTLSet(cfg config.CacheTTL) TTLSet {
	return TTLSet{
		Short:  durationOrDefault(cfg.Short, 10*time.Second),
		Medium: durationOrDefault(cfg.Medium, time.Minute),
		Long:   durationOrDefault(cfg.Long, 5*time.Minute),
	}
}

func durationOrDefault(seconds int, fallback time.Duration) time.Duration {
	if seconds < 0 {
		return 0
	}
	if seconds == 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}

func (t TTLSet) Duration(class TTLClass) time.Duration {
	switch class {
	case TTLShort:
		return t.Short
	case TTLMedium:
		return t.Medium
	case TTLLong:
		return t.Long
	default:
		return 0
	}
}

func formatKey(parts ...string) string {
	values := make([]string, 0, len(parts)+1)
	values = append(values, Namespace)
	for _, part := range parts {
		clean := strings.TrimSpace(part)
		if clean == "" {
			continue
		}
		values = append(values, clean)
	}
	return strings.Join(values, ":")
}

// SearchKey holds the local catalog matches for a normalised term under a
// catalog generation. Bumping the generation orphans every older entry.
func SearchKey(term string, limit int, generation int64) string {
	return formatKey("search", strconv.FormatInt(generation, 10), strconv.Itoa(limit), strings.ToLower(strings.TrimSpace(term)))
}

// SearchGenerationKey holds the current catalog generation for search entries.
func SearchGenerationKey() string {
	return formatKey("search-gen")
}

// SearchTTL is how long local search matches stay cached.
func SearchTTL(t TTLSet) time.Duration {
	return t.Duration(TTLMedium)
}
