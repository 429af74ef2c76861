// 包 config：启动配置。默认值 → 可选 YAML 文件（CONFIG_FILE）→ 环境变量，启动时校验一次
package config

import (
	"errors"
	"fmt"
	"os"
	"time"
	_ "time/tzdata"

	"toilet-finder/internal/model"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Backend：查询服务使用的数据源
type Backend string

const (
	BackendPostgres Backend = "postgres"
	BackendTokyo    Backend = "tokyo"
	BackendOverpass Backend = "overpass"
	BackendElastic  Backend = "elastic"
)

type Config struct {
	Addr      string    `yaml:"addr"`
	APIBase   string    `yaml:"api_base"`
	Backend   Backend   `yaml:"backend"`
	Postgres  Postgres  `yaml:"postgres"`
	Redis     Redis     `yaml:"redis"`
	Overpass  Overpass  `yaml:"overpass"`
	Tokyo     Tokyo     `yaml:"tokyo"`
	Sync      Sync      `yaml:"sync"`
	Elastic   Elastic   `yaml:"elastic"`
	Kafka     Kafka     `yaml:"kafka"`
	S3        S3        `yaml:"s3"`
	GeoIP     GeoIP     `yaml:"geoip"`
	RateLimit RateLimit `yaml:"rate_limit"`
}

type Postgres struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

type Redis struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host"`
	Port     string        `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type Overpass struct {
	Endpoints    []string      `yaml:"endpoints"`
	PointTimeout time.Duration `yaml:"point_timeout"`
	AreaTimeout  time.Duration `yaml:"area_timeout"`
	MaxSize      int64         `yaml:"max_size"`
	CityDelay    time.Duration `yaml:"city_delay"`
	MaxPerCity   int           `yaml:"max_per_city"`
	CacheSize    int           `yaml:"cache_size"`
	CacheTTL     time.Duration `yaml:"cache_ttl"`
	Cities       []model.City  `yaml:"cities"`
}

// Columns：CSV 表头别名，按顺序取第一个非空列
type Columns struct {
	Name       []string `yaml:"name"`
	Address    []string `yaml:"address"`
	Latitude   []string `yaml:"latitude"`
	Longitude  []string `yaml:"longitude"`
	Hours      []string `yaml:"hours"`
	Accessible []string `yaml:"accessible"`
}

type Tokyo struct {
	CSVURL   string        `yaml:"csv_url"`
	Timeout  time.Duration `yaml:"timeout"`
	CacheTTL time.Duration `yaml:"cache_ttl"`
	Bounds   model.BBox    `yaml:"bounds"`
	Columns  Columns       `yaml:"columns"`
}

type Sync struct {
	Enabled         bool          `yaml:"enabled"`
	Hour            int           `yaml:"hour"`
	TZ              string        `yaml:"tz"`
	FreshnessWindow time.Duration `yaml:"freshness_window"`
	CleanupDays     int           `yaml:"cleanup_days"`
	AreaMaxResults  int           `yaml:"area_max_results"`
	LockTTL         time.Duration `yaml:"lock_ttl"`
}

type Elastic struct {
	URL   string `yaml:"url"`
	Index string `yaml:"index"`
}

type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type S3 struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
	Bucket    string `yaml:"bucket"`
}

type GeoIP struct {
	Path string `yaml:"path"`
}

type RateLimit struct {
	Enabled bool `yaml:"enabled"`
	QPS     int  `yaml:"qps"`
}

// Load：读取 .env、CONFIG_FILE 与环境变量并校验
func Load() (Config, error) {
	_ = godotenv.Load(".env")
	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// LoadFile：用 YAML 文件覆盖当前配置；未出现的字段保留原值
func (c *Config) LoadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

// Validate：启动时一次性校验，失败则拒绝启动
func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendPostgres, BackendTokyo, BackendOverpass, BackendElastic:
	default:
		errs = append(errs, fmt.Errorf("invalid backend %q", c.Backend))
	}
	if len(c.Overpass.Endpoints) == 0 {
		errs = append(errs, errors.New("overpass: at least one endpoint required"))
	}
	if c.Overpass.PointTimeout <= 0 {
		errs = append(errs, errors.New("overpass: point timeout must be positive"))
	}
	if c.Overpass.AreaTimeout < c.Overpass.PointTimeout {
		errs = append(errs, errors.New("overpass: area timeout must not be shorter than point timeout"))
	}
	if c.Overpass.MaxPerCity <= 0 {
		errs = append(errs, errors.New("overpass: max per city must be positive"))
	}
	for _, city := range c.Overpass.Cities {
		if city.Name == "" || !city.Bounds.Valid() {
			errs = append(errs, fmt.Errorf("overpass: invalid city %q", city.Name))
		}
	}
	if !c.Tokyo.Bounds.Valid() {
		errs = append(errs, errors.New("tokyo: invalid bounds"))
	}
	if c.Tokyo.CacheTTL <= 0 {
		errs = append(errs, errors.New("tokyo: cache ttl must be positive"))
	}
	if c.Sync.CleanupDays < 1 {
		errs = append(errs, errors.New("sync: cleanup days must be >= 1"))
	}
	if c.Sync.Hour < 0 || c.Sync.Hour > 23 {
		errs = append(errs, fmt.Errorf("sync: invalid hour %d", c.Sync.Hour))
	}
	if c.Sync.FreshnessWindow <= 0 {
		errs = append(errs, errors.New("sync: freshness window must be positive"))
	}
	if _, err := time.LoadLocation(c.Sync.TZ); err != nil {
		errs = append(errs, fmt.Errorf("sync: invalid tz: %w", err))
	}
	if c.Backend == BackendElastic && c.Elastic.URL == "" {
		errs = append(errs, errors.New("elastic backend requires ES_URL"))
	}
	if c.RateLimit.Enabled && c.RateLimit.QPS <= 0 {
		errs = append(errs, errors.New("rate limit: qps must be positive"))
	}
	return errors.Join(errs...)
}
