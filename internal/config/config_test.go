package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v; want nil", err)
	}
}

func TestDefaults(t *testing.T) {
	c := Default()
	if c.Overpass.PointTimeout != 30*time.Second || c.Overpass.AreaTimeout != 90*time.Second {
		t.Fatalf("timeouts = %v/%v; want 30s/90s", c.Overpass.PointTimeout, c.Overpass.AreaTimeout)
	}
	if len(c.Overpass.Endpoints) != 4 || !strings.Contains(c.Overpass.Endpoints[0], "overpass.osm.jp") {
		t.Fatalf("endpoints = %v; want 4 mirrors starting at overpass.osm.jp", c.Overpass.Endpoints)
	}
	if len(c.Overpass.Cities) != 6 {
		t.Fatalf("cities = %d; want 6", len(c.Overpass.Cities))
	}
	if c.Sync.FreshnessWindow != 24*time.Hour || c.Sync.CleanupDays != 30 {
		t.Fatalf("sync = %+v; want 24h freshness, 30 cleanup days", c.Sync)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"backend", func(c *Config) { c.Backend = "mongo" }, "invalid backend"},
		{"no endpoints", func(c *Config) { c.Overpass.Endpoints = nil }, "at least one endpoint"},
		{"area timeout", func(c *Config) { c.Overpass.AreaTimeout = time.Second }, "area timeout"},
		{"tokyo bounds", func(c *Config) { c.Tokyo.Bounds.North = c.Tokyo.Bounds.South }, "tokyo: invalid bounds"},
		{"cleanup days", func(c *Config) { c.Sync.CleanupDays = 0 }, "cleanup days"},
		{"hour", func(c *Config) { c.Sync.Hour = 24 }, "invalid hour"},
		{"elastic url", func(c *Config) { c.Backend = BackendElastic }, "ES_URL"},
		{"city", func(c *Config) { c.Overpass.Cities[0].Bounds.East = c.Overpass.Cities[0].Bounds.West }, "invalid city"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate() = %v; want error containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TOILET_BACKEND", "Tokyo")
	t.Setenv("OVERPASS_ENDPOINTS", "http://a/api, http://b/api")
	t.Setenv("OVERPASS_TIMEOUT", "10s")
	t.Setenv("SYNC_CLEANUP_DAYS", "7")
	t.Setenv("REDIS_ENABLED", "true")
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Backend != BackendTokyo {
		t.Fatalf("Backend = %q; want tokyo", c.Backend)
	}
	if len(c.Overpass.Endpoints) != 2 || c.Overpass.Endpoints[1] != "http://b/api" {
		t.Fatalf("Endpoints = %v", c.Overpass.Endpoints)
	}
	if c.Overpass.PointTimeout != 10*time.Second || c.Overpass.AreaTimeout != 30*time.Second {
		t.Fatalf("timeouts = %v/%v; want 10s/30s", c.Overpass.PointTimeout, c.Overpass.AreaTimeout)
	}
	if c.Sync.CleanupDays != 7 || !c.Redis.Enabled {
		t.Fatalf("CleanupDays = %d, Redis.Enabled = %v", c.Sync.CleanupDays, c.Redis.Enabled)
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("SYNC_HOUR", "three")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "SYNC_HOUR") {
		t.Fatalf("Load() = %v; want SYNC_HOUR error", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
backend: overpass
overpass:
  point_timeout: 20s
  area_timeout: 60s
  cities:
    - name: 부산
      country: 대한민국
      bounds: {south: 35.0, west: 128.8, north: 35.3, east: 129.3}
tokyo:
  columns:
    name: [施設名称]
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_FILE", path)
	c, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if c.Backend != BackendOverpass || c.Overpass.PointTimeout != 20*time.Second {
		t.Fatalf("Backend = %q, PointTimeout = %v", c.Backend, c.Overpass.PointTimeout)
	}
	if len(c.Overpass.Cities) != 1 || c.Overpass.Cities[0].Name != "부산" {
		t.Fatalf("Cities = %+v; want only 부산", c.Overpass.Cities)
	}
	if got := c.Tokyo.Columns.Name; len(got) != 1 || got[0] != "施設名称" {
		t.Fatalf("Columns.Name = %v", got)
	}
	// 未出现在文件中的列别名保留默认值
	if len(c.Tokyo.Columns.Latitude) != 3 {
		t.Fatalf("Columns.Latitude = %v; want defaults", c.Tokyo.Columns.Latitude)
	}
}
