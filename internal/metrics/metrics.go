package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var msBuckets = []float64{1, 5, 10, 20, 50, 100, 200, 500, 1000, 5000, 30000}

var (
	NearbyRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toilet_nearby_requests_total",
		Help: "Total number of nearby search requests by result",
	}, []string{"result"})
	NearbyDurationMs = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "toilet_nearby_duration_ms",
		Help:    "Nearby search duration in milliseconds",
		Buckets: msBuckets,
	})
	NearbyEmptyTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "toilet_nearby_empty_total",
		Help: "Total nearby searches that found nothing within the radius",
	})
	CacheHitsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "toilet_cache_hits_total",
		Help: "Total nearby response cache hits",
	})
	CacheMissesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "toilet_cache_misses_total",
		Help: "Total nearby response cache misses",
	})
	OverpassRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toilet_overpass_requests_total",
		Help: "Total Overpass requests by endpoint",
	}, []string{"endpoint"})
	OverpassFailTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toilet_overpass_fail_total",
		Help: "Total Overpass request failures by endpoint",
	}, []string{"endpoint"})
	OverpassFailoverTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toilet_overpass_failover_total",
		Help: "Total mirror switches caused by network-class errors",
	}, []string{"endpoint"})
	OverpassDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "toilet_overpass_duration_ms",
		Help:    "Overpass call duration in milliseconds by query kind",
		Buckets: msBuckets,
	}, []string{"kind"})
	FeedFetchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toilet_feed_fetch_total",
		Help: "Legacy feed loads by branch (api, cache, mock)",
	}, []string{"branch"})
	SyncRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toilet_sync_runs_total",
		Help: "Sync runs by job and result",
	}, []string{"job", "result"})
	SyncRecordsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toilet_sync_records_total",
		Help: "Persisted sync records by job and outcome (saved, updated, failed)",
	}, []string{"job", "outcome"})
	SyncDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "toilet_sync_duration_ms",
		Help:    "Sync run duration in milliseconds",
		Buckets: []float64{100, 1000, 5000, 30000, 60000, 300000, 900000},
	}, []string{"job"})
	SyncState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "toilet_sync_state",
		Help: "Current sync state per job (0 idle, 1 fetching, 2 validating, 3 persisting, 4 succeeded, 5 failed)",
	}, []string{"job"})
	SyncHealthScore = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "toilet_sync_health_score",
		Help: "Last evaluated data health score per job (0-100)",
	}, []string{"job"})
	CleanupDeletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "toilet_cleanup_deleted_total",
		Help: "Rows removed by retention cleanup",
	}, []string{"prefix"})
)

func init() {
	prometheus.MustRegister(NearbyRequestsTotal)
	prometheus.MustRegister(NearbyDurationMs)
	prometheus.MustRegister(NearbyEmptyTotal)
	prometheus.MustRegister(CacheHitsTotal)
	prometheus.MustRegister(CacheMissesTotal)
	prometheus.MustRegister(OverpassRequestsTotal)
	prometheus.MustRegister(OverpassFailTotal)
	prometheus.MustRegister(OverpassFailoverTotal)
	prometheus.MustRegister(OverpassDurationMs)
	prometheus.MustRegister(FeedFetchTotal)
	prometheus.MustRegister(SyncRunsTotal)
	prometheus.MustRegister(SyncRecordsTotal)
	prometheus.MustRegister(SyncDurationMs)
	prometheus.MustRegister(SyncState)
	prometheus.MustRegister(SyncHealthScore)
	prometheus.MustRegister(CleanupDeletedTotal)
}

// 文档注释：返回 Prometheus 指标监听器
// 背景：统一暴露注册指标，供 Prometheus 抓取；在主入口挂载到 <API_BASE>/metrics。
func Handler() http.Handler { return promhttp.Handler() }
