package ingest

import (
	"context"
	"fmt"
	"time"

	"toilet-finder/internal/logger"
	"toilet-finder/internal/metrics"
	"toilet-finder/internal/model"
	"toilet-finder/internal/store"
	"toilet-finder/internal/tokyo"
)

const (
	JobTokyo    = "tokyo"
	TokyoPrefix = "tokyo_"
)

// FeedSource：市政 CSV 数据源
type FeedSource interface {
	ForDatabase(ctx context.Context) (tokyo.Snapshot, error)
	Info() tokyo.Info
}

// FeedSync：CSV 数据集同步任务，与城市同步共用同一流水线
type FeedSync struct {
	pipeline
	src FeedSource
}

func NewFeedSync(src FeedSource, st BulkStore, hooks Hooks) *FeedSync {
	return &FeedSync{pipeline: pipeline{store: st, hooks: hooks, now: time.Now}, src: src}
}

func (f *FeedSync) WithClock(now func() time.Time) *FeedSync {
	f.now = now
	return f
}

// Sync：拉取全量数据入库；内置数据也会入库，分支记录在日志中
func (f *FeedSync) Sync(ctx context.Context) Result {
	return f.execute(ctx, run{
		job:   JobTokyo,
		label: "도쿄 화장실 데이터",
		fetch: func(ctx context.Context) ([]model.Facility, error) {
			snap, err := f.src.ForDatabase(ctx)
			if err != nil {
				return nil, err
			}
			logger.L().Info("feed_sync_fetched", "source", snap.Source, "count", len(snap.Facilities))
			return snap.Facilities, nil
		},
	})
}

// FeedInfo：数据源状态、库内统计与是否需要同步
type FeedInfo struct {
	API       tokyo.Info  `json:"api"`
	Database  store.Stats `json:"database"`
	NeedsSync bool        `json:"needsSync"`
}

// feedNeedsSync：数据源从未加载则不需要；库为空则需要；否则库早于数据源时需要
func feedNeedsSync(api, db *time.Time) bool {
	if api == nil {
		return false
	}
	if db == nil {
		return true
	}
	return db.Before(*api)
}

func (f *FeedSync) Info(ctx context.Context) (FeedInfo, error) {
	st, err := f.store.StatsBySourcePrefix(ctx, TokyoPrefix)
	if err != nil {
		return FeedInfo{}, fmt.Errorf("tokyo info: %w", err)
	}
	api := f.src.Info()
	return FeedInfo{API: api, Database: st, NeedsSync: feedNeedsSync(api.LastUpdate, st.LastUpdated)}, nil
}

// ScheduledSync：needsSync 为真时运行；返回是否实际执行了同步
func (f *FeedSync) ScheduledSync(ctx context.Context) bool {
	info, err := f.Info(ctx)
	if err != nil {
		logger.L().Error("scheduled_sync_info_error", "job", JobTokyo, "err", err)
		return false
	}
	if !info.NeedsSync {
		logger.L().Info("scheduled_sync_skip", "job", JobTokyo, "api_source", info.API.Source)
		return false
	}
	r := f.Sync(ctx)
	logger.L().Info("scheduled_sync_done", "job", JobTokyo, "success", r.Success, "message", r.Message)
	return true
}

func (f *FeedSync) Cleanup(ctx context.Context, days int) (int64, error) {
	return cleanup(ctx, f.store, TokyoPrefix, days)
}

func (f *FeedSync) ScheduledCleanup(ctx context.Context, days int) int64 {
	return scheduledCleanup(ctx, f.store, TokyoPrefix, days)
}

// FeedHealth：信息接口附带的简要评估
func FeedHealth(info FeedInfo, now time.Time) Health {
	db := info.Database
	score := 100
	issues := []string{}
	if db.Total == 0 {
		issues = append(issues, "데이터베이스에 화장실 데이터가 없습니다")
		score -= 50
	}
	if info.NeedsSync {
		issues = append(issues, "API와 데이터베이스 간 동기화가 필요합니다")
		score -= 20
	}
	if db.LastUpdated != nil {
		if d := int(now.Sub(*db.LastUpdated) / day); d > 7 {
			issues = append(issues, fmt.Sprintf("마지막 업데이트가 %d일 전입니다", d))
			score -= 15
		}
	}
	if db.Total == 0 || float64(db.Accessible)/float64(db.Total) < 0.5 {
		issues = append(issues, "접근성 정보가 부족합니다")
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

func FeedRecommendations(info FeedInfo, h Health) []string {
	var out []string
	if info.Database.Total == 0 {
		out = append(out, "도쿄 API 데이터를 동기화하여 화장실 정보를 가져오세요")
	}
	if info.NeedsSync {
		out = append(out, "최신 데이터를 위해 동기화를 실행하세요")
	}
	if h.Status == "critical" {
		out = append(out, "시스템 상태가 심각합니다. 즉시 데이터 동기화를 실행하세요")
	}
	if len(out) == 0 {
		out = append(out, "시스템이 정상 상태입니다")
	}
	return out
}

// FeedReport：/tokyo-sync/stats 的健康报告
type FeedReport struct {
	Health          Health   `json:"health"`
	Info            FeedInfo `json:"info"`
	Recommendations []string `json:"recommendations"`
}

func (f *FeedSync) Report(ctx context.Context) (FeedReport, error) {
	info, err := f.Info(ctx)
	if err != nil {
		return FeedReport{}, err
	}
	h := FeedHealth(info, f.now())
	metrics.SyncHealthScore.WithLabelValues(JobTokyo).Set(float64(h.Score))
	return FeedReport{Health: h, Info: info, Recommendations: FeedRecommendations(info, h)}, nil
}
