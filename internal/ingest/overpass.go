package ingest

import (
	"context"
	"fmt"
	"time"

	"toilet-finder/internal/apperr"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/metrics"
	"toilet-finder/internal/model"
	"toilet-finder/internal/store"
)

const (
	JobOverpass    = "overpass"
	OverpassPrefix = "overpass_"
)

// AreaSource：在线地图 API 的批量拉取能力
type AreaSource interface {
	FetchCities(ctx context.Context) ([]model.Facility, error)
	FetchArea(ctx context.Context, name string, b model.BBox, maxResults int) ([]model.Facility, error)
	Cities() []model.City
}

// Orchestrator：城市级批量同步任务
type Orchestrator struct {
	pipeline
	src       AreaSource
	freshness time.Duration
}

// NewOrchestrator：freshness 为定时同步的新鲜度窗口
func NewOrchestrator(src AreaSource, st BulkStore, hooks Hooks, freshness time.Duration) *Orchestrator {
	return &Orchestrator{
		pipeline:  pipeline{store: st, hooks: hooks, now: time.Now},
		src:       src,
		freshness: freshness,
	}
}

func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// SyncAll：全部配置城市
func (o *Orchestrator) SyncAll(ctx context.Context) Result {
	return o.execute(ctx, run{job: JobOverpass, label: "Overpass 화장실 데이터", fetch: o.src.FetchCities})
}

// SyncArea：调用方指定的包围盒；maxResults<=0 取默认 5000
func (o *Orchestrator) SyncArea(ctx context.Context, name string, b model.BBox, maxResults int) Result {
	if maxResults <= 0 {
		maxResults = 5000
	}
	return o.execute(ctx, run{
		job:   JobOverpass,
		label: name + " 지역",
		area:  name,
		fetch: func(ctx context.Context) ([]model.Facility, error) {
			return o.src.FetchArea(ctx, name, b, maxResults)
		},
	})
}

// Info：数据源说明与库内统计
type Info struct {
	Source          string      `json:"source"`
	Coverage        string      `json:"coverage"`
	SupportedCities []string    `json:"supportedCities"`
	Database        store.Stats `json:"database"`
	LastSync        *time.Time  `json:"lastSync"`
}

// Cities：同步覆盖的城市及其包围盒
func (o *Orchestrator) Cities() []model.City { return o.src.Cities() }

// Info：统计查询失败时返回错误
func (o *Orchestrator) Info(ctx context.Context) (Info, error) {
	st, err := o.store.StatsBySourcePrefix(ctx, OverpassPrefix)
	if err != nil {
		return Info{}, fmt.Errorf("overpass info: %w", err)
	}
	cities := o.src.Cities()
	names := make([]string, 0, len(cities))
	for _, c := range cities {
		names = append(names, c.Name)
	}
	return Info{
		Source:          "Overpass API (OpenStreetMap)",
		Coverage:        "전 세계 주요 도시",
		SupportedCities: names,
		Database:        st,
		LastSync:        st.LastUpdated,
	}, nil
}

// needsSync：从未同步或上次同步超过新鲜度窗口
func needsSync(last *time.Time, now time.Time, window time.Duration) bool {
	return last == nil || now.Sub(*last) >= window
}

// ScheduledSync：仅在数据过期时运行；返回是否实际执行了同步
func (o *Orchestrator) ScheduledSync(ctx context.Context) bool {
	info, err := o.Info(ctx)
	if err != nil {
		logger.L().Error("scheduled_sync_info_error", "job", JobOverpass, "err", err)
		return false
	}
	if !needsSync(info.LastSync, o.now(), o.freshness) {
		logger.L().Info("scheduled_sync_skip", "job", JobOverpass, "last_sync", info.LastSync)
		return false
	}
	r := o.SyncAll(ctx)
	logger.L().Info("scheduled_sync_done", "job", JobOverpass, "success", r.Success, "message", r.Message)
	return true
}

// Cleanup：手动清理，错误向上传递
func (o *Orchestrator) Cleanup(ctx context.Context, days int) (int64, error) {
	return cleanup(ctx, o.store, OverpassPrefix, days)
}

// ScheduledCleanup：定时清理，失败记录日志并返回 0
func (o *Orchestrator) ScheduledCleanup(ctx context.Context, days int) int64 {
	return scheduledCleanup(ctx, o.store, OverpassPrefix, days)
}

func cleanup(ctx context.Context, st BulkStore, prefix string, days int) (int64, error) {
	if days < 1 {
		return 0, apperr.Validation("days", "must be >= 1")
	}
	return st.Cleanup(ctx, prefix, days)
}

func scheduledCleanup(ctx context.Context, st BulkStore, prefix string, days int) int64 {
	n, err := cleanup(ctx, st, prefix, days)
	if err != nil {
		logger.L().Error("scheduled_cleanup_error", "prefix", prefix, "days", days, "err", err)
		return 0
	}
	return n
}

// Health：存量健康度评分
type Health struct {
	Status string   `json:"status"`
	Score  int      `json:"score"`
	Issues []string `json:"issues"`
}

const day = 24 * time.Hour

// EvaluateHealth：从 100 分起扣分；>=80 healthy，>=60 warning，否则 critical
func EvaluateHealth(info Info, now time.Time) Health {
	db := info.Database
	score := 100
	issues := []string{}
	if db.Total == 0 {
		issues = append(issues, "데이터베이스에 화장실 데이터가 없습니다")
		score -= 50
	}
	if info.LastSync != nil {
		if d := int(now.Sub(*info.LastSync) / day); d > 7 {
			issues = append(issues, fmt.Sprintf("마지막 동기화가 %d일 전입니다", d))
			score -= 20
		}
	} else {
		issues = append(issues, "초기 데이터 동기화가 필요합니다")
		score -= 30
	}
	if db.Total == 0 || float64(db.Accessible)/float64(db.Total) < 0.3 {
		issues = append(issues, "접근성 정보가 부족합니다")
		score -= 15
	}
	var sum int
	for _, n := range db.ByCategory {
		sum += n
	}
	if sum > 0 && float64(db.ByCategory[model.Public])/float64(sum) < 0.5 {
		issues = append(issues, "공공 화장실 비율이 낮습니다")
		score -= 10
	}
	if score < 0 {
		score = 0
	}
	status := "critical"
	switch {
	case score >= 80:
		status = "healthy"
	case score >= 60:
		status = "warning"
	}
	return Health{Status: status, Score: score, Issues: issues}
}

// Recommendations：与 EvaluateHealth 使用同一组输入
func Recommendations(info Info, h Health, now time.Time) []string {
	out := []string{}
	if info.Database.Total == 0 {
		out = append(out, "초기 데이터 동기화를 실행하세요")
	}
	if h.Score < 80 {
		out = append(out, "시스템 상태를 개선하기 위해 데이터 동기화를 권장합니다")
	}
	if info.LastSync != nil && now.Sub(*info.LastSync) >= 7*day {
		out = append(out, "주간 데이터 동기화를 설정하세요")
	}
	if info.Database.Total > 1000 {
		out = append(out, "오래된 데이터 정리를 고려해보세요")
	}
	return out
}

// Report：/stats 返回的健康报告
type Report struct {
	Health          Health   `json:"health"`
	Info            Info     `json:"info"`
	Recommendations []string `json:"recommendations"`
}

// Report：评分同时写入健康度指标
func (o *Orchestrator) Report(ctx context.Context) (Report, error) {
	info, err := o.Info(ctx)
	if err != nil {
		return Report{}, err
	}
	now := o.now()
	h := EvaluateHealth(info, now)
	metrics.SyncHealthScore.WithLabelValues(JobOverpass).Set(float64(h.Score))
	return Report{Health: h, Info: info, Recommendations: Recommendations(info, h, now)}, nil
}
