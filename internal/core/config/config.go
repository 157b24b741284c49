package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type InvalidationCfg struct {
	Enabled bool
	Topic   string
	Brokers string
	GroupID string
}

type Config struct {
	Addr       string
	LogLevel   string
	LogConsole bool
	LogSampleN int

	NBNBaseURL         string
	NBNDataResourceUID string
	NBNPageSize        int

	CacheDriver    string
	CacheTTL       time.Duration
	CacheOpTimeout time.Duration
	RedisAddr      string

	SiteH3Res int

	MetricsEnabled bool
	MetricsPath    string

	Invalidation InvalidationCfg
}

const (
	DefaultCacheTTL = time.Hour
	DefaultSiteRes  = 7
)

func FromEnv() Config {
	pageSize := getint("NBN_PAGE_SIZE", 9)
	if pageSize < 0 {
		pageSize = 9
	}
	res := getint("SITE_H3_RES", DefaultSiteRes)
	if res < 0 || res > 15 {
		res = DefaultSiteRes
	}
	ttl := getduration("CACHE_TTL", DefaultCacheTTL)
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}

	return Config{
		Addr:       getenv("ADDR", ":8090"),
		LogLevel:   getenv("LOG_LEVEL", "info"),
		LogConsole: getbool("LOG_CONSOLE", false),
		LogSampleN: getint("LOG_SAMPLE_N", 0),

		NBNBaseURL:         getenv("NBN_BASE_URL", "https://records-ws.nbnatlas.org/"),
		NBNDataResourceUID: getenv("NBN_DATA_RESOURCE_UID", "dr782"),
		NBNPageSize:        pageSize,

		CacheDriver:    strings.ToLower(getenv("CACHE_DRIVER", "memory")),
		CacheTTL:       ttl,
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),

		SiteH3Res: res,

		MetricsEnabled: getbool("METRICS_ENABLED", false),
		MetricsPath:    getenv("METRICS_PATH", "/metrics"),

		Invalidation: InvalidationCfg{
			Enabled: getbool("INVALIDATION_ENABLED", false),
			Topic:   getenv("KAFKA_TOPIC", "nbn-cache-invalidation"),
			Brokers: getenv("KAFKA_BROKERS", "localhost:9092"),
			GroupID: getenv("KAFKA_GROUP_ID", "nbn-facade"),
		},
	}
}

func getenv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			return d
		}
	}
	return def
}

// SplitCSV splits a comma separated list and drops empty items.
func SplitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
