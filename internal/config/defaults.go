package config

import (
	"time"

	"toilet-finder/internal/model"
)

const (
	DefaultPointTimeout = 30 * time.Second
	DefaultMaxSize      = 536870912
	DefaultCSVURL       = "https://www.city.koto.lg.jp/012107/documents/131083%5Fkotocity%5Fpublic%5Ftoilet.csv"
)

// DefaultEndpoints：Overpass 镜像，按顺序故障转移
var DefaultEndpoints = []string{
	"https://overpass.osm.jp/api/interpreter",
	"https://overpass.private.coffee/api/interpreter",
	"https://overpass.openstreetmap.ru/api/interpreter",
	"https://overpass-api.de/api/interpreter",
}

func DefaultCities() []model.City {
	return []model.City{
		{Name: "서울", Country: "대한민국", Bounds: model.BBox{South: 37.4, West: 126.7, North: 37.7, East: 127.3}},
		{Name: "도쿄", Country: "일본", Bounds: model.BBox{South: 35.5, West: 139.5, North: 35.8, East: 140.0}},
		{Name: "뉴욕", Country: "미국", Bounds: model.BBox{South: 40.4, West: -74.3, North: 40.9, East: -73.7}},
		{Name: "런던", Country: "영국", Bounds: model.BBox{South: 51.3, West: -0.5, North: 51.7, East: 0.3}},
		{Name: "파리", Country: "프랑스", Bounds: model.BBox{South: 48.8, West: 2.2, North: 48.95, East: 2.5}},
		{Name: "베를린", Country: "독일", Bounds: model.BBox{South: 52.4, West: 13.1, North: 52.6, East: 13.8}},
	}
}

func DefaultColumns() Columns {
	return Columns{
		Name:       []string{"名称", "施設名", "name"},
		Address:    []string{"住所", "所在地", "address"},
		Latitude:   []string{"緯度", "latitude", "lat"},
		Longitude:  []string{"経度", "longitude", "lon"},
		Hours:      []string{"利用時間", "営業時間"},
		Accessible: []string{"バリアフリー", "車椅子", "wheelchair", "多目的"},
	}
}

// Default：编译期默认值
func Default() Config {
	return Config{
		Addr:    ":8000",
		APIBase: "/api",
		Backend: BackendPostgres,
		Postgres: Postgres{
			Host:            "localhost",
			Port:            "5432",
			User:            "postgres",
			DB:              "toilet_finder",
			SSLMode:         "disable",
			MaxOpenConns:    20,
			MaxIdleConns:    10,
			ConnMaxIdleTime: 30 * time.Second,
			ConnectTimeout:  2 * time.Second,
		},
		Redis: Redis{
			Host:     "127.0.0.1",
			Port:     "6379",
			CacheTTL: 5 * time.Minute,
		},
		Overpass: Overpass{
			Endpoints:    append([]string(nil), DefaultEndpoints...),
			PointTimeout: DefaultPointTimeout,
			AreaTimeout:  3 * DefaultPointTimeout,
			MaxSize:      DefaultMaxSize,
			CityDelay:    5 * time.Second,
			MaxPerCity:   2000,
			CacheSize:    1024,
			CacheTTL:     10 * time.Minute,
			Cities:       DefaultCities(),
		},
		Tokyo: Tokyo{
			CSVURL:   DefaultCSVURL,
			Timeout:  30 * time.Second,
			CacheTTL: time.Hour,
			Bounds:   model.BBox{South: 35.5, West: 139.5, North: 35.9, East: 140.0},
			Columns:  DefaultColumns(),
		},
		Sync: Sync{
			Hour:            3,
			TZ:              "Asia/Seoul",
			FreshnessWindow: 24 * time.Hour,
			CleanupDays:     30,
			AreaMaxResults:  5000,
			LockTTL:         30 * time.Minute,
		},
		Elastic: Elastic{Index: "toilets"},
		Kafka:   Kafka{Topic: "toilet-sync"},
		S3:      S3{Bucket: "toilet-snapshots"},
		RateLimit: RateLimit{
			QPS: 200,
		},
	}
}
