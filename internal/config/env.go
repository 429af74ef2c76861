package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// applyEnv：环境变量优先级最高；未设置的保留原值，格式错误返回错误
func (c *Config) applyEnv() error {
	envStr("ADDR", &c.Addr)
	envStr("API_BASE", &c.APIBase)
	var backend string
	if envStr("TOILET_BACKEND", &backend) {
		c.Backend = Backend(strings.ToLower(backend))
	}

	envStr("PG_HOST", &c.Postgres.Host)
	envStr("PG_PORT", &c.Postgres.Port)
	envStr("PG_USER", &c.Postgres.User)
	envStr("PG_PASSWORD", &c.Postgres.Password)
	envStr("PG_DB", &c.Postgres.DB)
	envStr("PG_SSLMODE", &c.Postgres.SSLMode)

	envStr("REDIS_HOST", &c.Redis.Host)
	envStr("REDIS_PORT", &c.Redis.Port)
	envStr("REDIS_PASS", &c.Redis.Password)

	envStr("TOKYO_CSV_URL", &c.Tokyo.CSVURL)
	envStr("SYNC_TZ", &c.Sync.TZ)
	envStr("ES_URL", &c.Elastic.URL)
	envStr("ES_INDEX", &c.Elastic.Index)
	envStr("KAFKA_TOPIC", &c.Kafka.Topic)
	envStr("MINIO_ENDPOINT", &c.S3.Endpoint)
	envStr("MINIO_ACCESS_KEY", &c.S3.AccessKey)
	envStr("MINIO_SECRET_KEY", &c.S3.SecretKey)
	envStr("MINIO_BUCKET", &c.S3.Bucket)
	envStr("GEOIP_PATH", &c.GeoIP.Path)
	envList("OVERPASS_ENDPOINTS", &c.Overpass.Endpoints)
	envList("KAFKA_BROKERS", &c.Kafka.Brokers)

	ints := []struct {
		key string
		dst *int
	}{
		{"PG_MAX_OPEN_CONNS", &c.Postgres.MaxOpenConns},
		{"PG_MAX_IDLE_CONNS", &c.Postgres.MaxIdleConns},
		{"REDIS_DB", &c.Redis.DB},
		{"OVERPASS_MAX_PER_CITY", &c.Overpass.MaxPerCity},
		{"SYNC_HOUR", &c.Sync.Hour},
		{"SYNC_CLEANUP_DAYS", &c.Sync.CleanupDays},
		{"RATE_LIMIT_QPS", &c.RateLimit.QPS},
	}
	for _, it := range ints {
		if err := envInt(it.key, it.dst); err != nil {
			return err
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"REDIS_ENABLED", &c.Redis.Enabled},
		{"SYNC_ENABLED", &c.Sync.Enabled},
		{"MINIO_USE_SSL", &c.S3.UseSSL},
		{"RATE_LIMIT_ENABLED", &c.RateLimit.Enabled},
	}
	for _, it := range bools {
		if err := envBool(it.key, it.dst); err != nil {
			return err
		}
	}

	durs := []struct {
		key string
		dst *time.Duration
	}{
		{"PG_CONN_MAX_IDLE", &c.Postgres.ConnMaxIdleTime},
		{"PG_CONNECT_TIMEOUT", &c.Postgres.ConnectTimeout},
		{"CACHE_TTL", &c.Redis.CacheTTL},
		{"OVERPASS_CITY_DELAY", &c.Overpass.CityDelay},
		{"TOKYO_CACHE_TTL", &c.Tokyo.CacheTTL},
	}
	for _, it := range durs {
		if err := envDuration(it.key, it.dst); err != nil {
			return err
		}
	}
	// 区域查询超时跟随点查询超时的 3 倍
	var pt time.Duration
	if err := envDuration("OVERPASS_TIMEOUT", &pt); err != nil {
		return err
	}
	if pt > 0 {
		c.Overpass.PointTimeout = pt
		c.Overpass.AreaTimeout = 3 * pt
	}
	return nil
}

func envStr(key string, dst *string) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return false
	}
	*dst = v
	return true
}

func envList(key string, dst *[]string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
