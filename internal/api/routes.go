// 包 api：集中注册 HTTP API 路由以解耦主入口，便于在 <API_BASE> 前缀下挂载
package api

import (
	"net/http"
	"time"
)

// Deps：路由依赖；Overpass/Tokyo 为 nil 时不注册对应同步接口，Cache 为 nil 时不缓存
type Deps struct {
	Nearest        Nearest
	Finder         Finder
	Overpass       AreaSync
	Tokyo          FeedJob
	Cache          Cache
	CacheTTL       time.Duration
	Locator        Locator
	AreaMaxResults int
	Started        time.Time
}

type handlers struct {
	nearest  Nearest
	finder   Finder
	overpass AreaSync
	tokyo    FeedJob
	cache    Cache
	cacheTTL time.Duration
	locator  Locator
	areaMax  int
}

// 构建并返回 API 路由：独立 ServeMux 便于在主入口挂载到 /api 前缀
func BuildRoutes(d Deps) *http.ServeMux {
	h := &handlers{
		nearest:  d.Nearest,
		finder:   d.Finder,
		overpass: d.Overpass,
		tokyo:    d.Tokyo,
		cache:    d.Cache,
		cacheTTL: d.CacheTTL,
		locator:  d.Locator,
		areaMax:  d.AreaMaxResults,
	}
	if h.areaMax <= 0 {
		h.areaMax = 5000
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /toilets/nearby", h.nearby)
	mux.HandleFunc("GET /toilets/{id}", h.byID)
	if h.overpass != nil {
		mux.HandleFunc("POST /overpass-sync/sync", h.overpassSync)
		mux.HandleFunc("POST /overpass-sync/sync/area", h.overpassSyncArea)
		mux.HandleFunc("GET /overpass-sync/info", h.overpassInfo)
		mux.HandleFunc("GET /overpass-sync/stats", h.overpassStats)
		mux.HandleFunc("GET /overpass-sync/cities", h.overpassCities)
		mux.HandleFunc("DELETE /overpass-sync/cleanup", h.overpassCleanup)
	}
	if h.tokyo != nil {
		mux.HandleFunc("POST /tokyo-sync/sync", h.tokyoSync)
		mux.HandleFunc("GET /tokyo-sync/info", h.tokyoInfo)
		mux.HandleFunc("GET /tokyo-sync/stats", h.tokyoStats)
		mux.HandleFunc("POST /tokyo-sync/cleanup", h.tokyoCleanup)
	}
	mux.Handle("GET /health", Health(d.Started))
	return mux
}

// Health：进程存活探针，uptime 单位为秒
func Health(started time.Time) http.Handler {
	if started.IsZero() {
		started = time.Now()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":    "OK",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"uptime":    time.Since(started).Seconds(),
		})
	})
}
