// 包 ingest：外部数据同步入库。单次运行经历 拉取 → 校验 → 入库 三个阶段，结果以 Result 返回
// 背景：同步入口从不向调用方抛错，失败转换为 Success=false 的结果；信息查询与手动清理例外
package ingest

import (
	"context"
	"fmt"
	"strings"
	"time"

	"toilet-finder/internal/events"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/metrics"
	"toilet-finder/internal/model"
	"toilet-finder/internal/store"
)

// State：单次运行的状态机
type State int

const (
	Idle State = iota
	Fetching
	Validating
	Persisting
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case Fetching:
		return "FETCHING"
	case Validating:
		return "VALIDATING"
	case Persisting:
		return "PERSISTING"
	case Succeeded:
		return "SUCCEEDED"
	case Failed:
		return "FAILED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Statistics：Total 为校验后的记录数
type Statistics struct {
	Total      int      `json:"total"`
	Saved      int      `json:"saved"`
	Updated    int      `json:"updated"`
	Failed     int      `json:"failed"`
	DurationMs int64    `json:"duration"`
	Cities     []string `json:"cities,omitempty"`
}

type Result struct {
	Success    bool       `json:"success"`
	Message    string     `json:"message"`
	Statistics Statistics `json:"statistics"`
	Error      string     `json:"error,omitempty"`
	Snapshot   string     `json:"snapshot,omitempty"`
	State      State      `json:"-"`
}

// BulkStore：同步任务依赖的持久化能力
type BulkStore interface {
	BulkUpsert(ctx context.Context, fs []model.Facility) (store.BulkResult, error)
	StatsBySourcePrefix(ctx context.Context, prefix string) (store.Stats, error)
	Cleanup(ctx context.Context, prefix string, days int) (int64, error)
}

// 过于笼统的名称；带有效地址时仍保留
var genericNames = map[string]bool{
	"화장실":           true,
	"toilet":        true,
	"restroom":      true,
	"wc":            true,
	"public toilet": true,
}

// Valid：名称与坐标齐全且在范围内；笼统名称仅在地址非默认时通过
// 约束：坐标为 0 视为缺失
func Valid(f model.Facility) bool {
	name := strings.TrimSpace(f.Name)
	if name == "" || f.Latitude == 0 || f.Longitude == 0 {
		return false
	}
	if !f.Location().Valid() {
		return false
	}
	if genericNames[strings.ToLower(name)] {
		return f.Address != "" && f.Address != model.DefaultAddress
	}
	return true
}

func filterValid(fs []model.Facility) []model.Facility {
	out := make([]model.Facility, 0, len(fs))
	for _, f := range fs {
		if Valid(f) {
			out = append(out, f)
		}
	}
	return out
}

// extractCities：地址首个空格分隔片段，按首次出现顺序去重，最多 10 个
func extractCities(fs []model.Facility) []string {
	var out []string
	seen := map[string]bool{}
	for _, f := range fs {
		if f.Address == "" || f.Address == model.DefaultAddress {
			continue
		}
		tok := strings.Fields(f.Address)
		if len(tok) == 0 || seen[tok[0]] {
			continue
		}
		seen[tok[0]] = true
		out = append(out, tok[0])
		if len(out) == 10 {
			break
		}
	}
	return out
}

// run：一次完整的同步运行
type run struct {
	job   string
	label string
	area  string
	fetch func(ctx context.Context) ([]model.Facility, error)
}

// pipeline：各同步任务共用的阶段执行与钩子调用
type pipeline struct {
	store BulkStore
	hooks Hooks
	now   func() time.Time
}

func (p *pipeline) setState(job string, s State) {
	metrics.SyncState.WithLabelValues(job).Set(float64(s))
	logger.L().Debug("sync_state", "job", job, "state", s.String())
}

func (p *pipeline) execute(ctx context.Context, r run) (res Result) {
	t0 := p.now()
	var cities []string
	if r.area != "" {
		cities = []string{r.area}
	}
	fail := func(msg string, err error) Result {
		out := Result{
			Message:    msg,
			Statistics: Statistics{DurationMs: p.now().Sub(t0).Milliseconds(), Cities: cities},
			State:      Failed,
		}
		if err != nil {
			out.Error = err.Error()
		}
		p.setState(r.job, Failed)
		metrics.SyncRunsTotal.WithLabelValues(r.job, "failed").Inc()
		logger.L().Error("sync_failed", "job", r.job, "area", r.area, "message", msg, "err", err)
		return out
	}
	defer func() {
		if v := recover(); v != nil {
			res = fail(r.label+" 동기화 중 오류 발생", fmt.Errorf("panic: %v", v))
		}
	}()

	logger.L().Info("sync_start", "job", r.job, "area", r.area)
	p.setState(r.job, Fetching)
	raw, err := r.fetch(ctx)
	if err != nil {
		return fail(r.label+" 동기화 중 오류 발생", err)
	}
	if len(raw) == 0 {
		return fail(r.label+"에서 데이터를 가져올 수 없습니다", nil)
	}

	p.setState(r.job, Validating)
	valid := filterValid(raw)
	logger.L().Info("sync_validated", "job", r.job, "fetched", len(raw), "valid", len(valid))

	p.setState(r.job, Persisting)
	br, err := p.store.BulkUpsert(ctx, valid)
	if err != nil {
		return fail(r.label+" 동기화 중 오류 발생", err)
	}
	if cities == nil {
		cities = extractCities(valid)
	}
	res = Result{
		Success: true,
		Message: fmt.Sprintf("%s 동기화 완료: 신규 %d개, 업데이트 %d개", r.label, br.Saved, br.Updated),
		Statistics: Statistics{
			Total:   len(valid),
			Saved:   br.Saved,
			Updated: br.Updated,
			Failed:  br.Failed,
			Cities:  cities,
		},
		State: Succeeded,
	}
	res.Snapshot = p.hooks.afterPersist(ctx, r.job, t0, raw, valid)
	res.Statistics.DurationMs = p.now().Sub(t0).Milliseconds()
	p.hooks.notify(ctx, events.Event{
		Job:        r.job,
		Success:    true,
		Message:    res.Message,
		Total:      res.Statistics.Total,
		Saved:      br.Saved,
		Updated:    br.Updated,
		Failed:     br.Failed,
		DurationMs: res.Statistics.DurationMs,
		Snapshot:   res.Snapshot,
		At:         p.now(),
	})

	p.setState(r.job, Succeeded)
	metrics.SyncRunsTotal.WithLabelValues(r.job, "succeeded").Inc()
	metrics.SyncRecordsTotal.WithLabelValues(r.job, "saved").Add(float64(br.Saved))
	metrics.SyncRecordsTotal.WithLabelValues(r.job, "updated").Add(float64(br.Updated))
	metrics.SyncRecordsTotal.WithLabelValues(r.job, "failed").Add(float64(br.Failed))
	metrics.SyncDurationMs.WithLabelValues(r.job).Observe(float64(res.Statistics.DurationMs))
	logger.L().Info("sync_done", "job", r.job, "total", len(valid), "saved", br.Saved, "updated", br.Updated,
		"failed", br.Failed, "duration_ms", res.Statistics.DurationMs)
	return res
}
