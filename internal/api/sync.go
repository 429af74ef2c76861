package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"toilet-finder/internal/ingest"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/model"
)

// AreaSync：城市级批量同步任务
type AreaSync interface {
	SyncAll(ctx context.Context) ingest.Result
	SyncArea(ctx context.Context, name string, b model.BBox, maxResults int) ingest.Result
	Info(ctx context.Context) (ingest.Info, error)
	Report(ctx context.Context) (ingest.Report, error)
	Cities() []model.City
	Cleanup(ctx context.Context, days int) (int64, error)
}

// FeedJob：CSV 数据集同步任务
type FeedJob interface {
	Sync(ctx context.Context) ingest.Result
	Info(ctx context.Context) (ingest.FeedInfo, error)
	Report(ctx context.Context) (ingest.FeedReport, error)
	Cleanup(ctx context.Context, days int) (int64, error)
}

// writeResult：成功 200，运行失败 400
func writeResult(w http.ResponseWriter, r ingest.Result) {
	status := http.StatusOK
	env := syncEnvelope{Success: r.Success, Message: r.Message, Data: r.Statistics}
	if !r.Success {
		status = http.StatusBadRequest
		env.Data = nil
		env.Error = r.Error
	}
	writeJSON(w, status, env)
}

// writeFailure：向上传递的错误，500 且附带原因
func writeFailure(w http.ResponseWriter, event, msg string, err error) {
	logger.L().Error(event, "err", err)
	writeJSON(w, http.StatusInternalServerError, syncEnvelope{Message: msg, Error: err.Error()})
}

// syncCtx：客户端断开不影响已开始的同步
func syncCtx(r *http.Request) context.Context { return context.WithoutCancel(r.Context()) }

// parseDays：缺省 30，必须为 >=1 的整数
func parseDays(r *http.Request) (int, bool) {
	s := r.URL.Query().Get("days")
	if s == "" {
		return 30, true
	}
	n, err := strconv.Atoi(s)
	return n, err == nil && n >= 1
}

func (h *handlers) cleanup(w http.ResponseWriter, r *http.Request, fn func(context.Context, int) (int64, error), event, failMsg string) {
	days, valid := parseDays(r)
	if !valid {
		writeJSON(w, http.StatusBadRequest, syncEnvelope{Message: "유효하지 않은 일수입니다. 1 이상의 숫자를 입력해주세요."})
		return
	}
	n, err := fn(r.Context(), days)
	if err != nil {
		writeFailure(w, event, failMsg, err)
		return
	}
	writeJSON(w, http.StatusOK, syncEnvelope{
		Success: true,
		Message: fmt.Sprintf("%d일 이상 된 데이터 %d개가 정리되었습니다", days, n),
		Data:    map[string]any{"deletedCount": n, "olderThanDays": days},
	})
}

type areaRequest struct {
	AreaName   string   `json:"areaName"`
	North      *float64 `json:"north"`
	South      *float64 `json:"south"`
	East       *float64 `json:"east"`
	West       *float64 `json:"west"`
	MaxResults int      `json:"maxResults"`
}

func (h *handlers) overpassSync(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.overpass.SyncAll(syncCtx(r)))
}

func (h *handlers) overpassSyncArea(w http.ResponseWriter, r *http.Request) {
	var req areaRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req)
	if err != nil || req.AreaName == "" || req.North == nil || req.South == nil || req.East == nil || req.West == nil {
		writeJSON(w, http.StatusBadRequest, syncEnvelope{Message: "필수 파라미터가 누락되었습니다. (areaName, north, south, east, west)"})
		return
	}
	b := model.BBox{South: *req.South, West: *req.West, North: *req.North, East: *req.East}
	if !b.Valid() {
		writeJSON(w, http.StatusBadRequest, syncEnvelope{Message: "올바르지 않은 좌표 범위입니다. (north > south, east > west)"})
		return
	}
	limit := req.MaxResults
	if limit <= 0 {
		limit = h.areaMax
	}
	logger.L().Info("area_sync_request", "area", req.AreaName, "bbox", b, "max", limit)
	writeResult(w, h.overpass.SyncArea(syncCtx(r), req.AreaName, b, limit))
}

type syncHint struct {
	LastSync       *time.Time `json:"lastSync,omitempty"`
	NeedsSync      *bool      `json:"needsSync,omitempty"`
	Recommendation string     `json:"recommendation"`
}

func (h *handlers) overpassInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.overpass.Info(r.Context())
	if err != nil {
		writeFailure(w, "overpass_info_error", "Overpass 데이터 정보 조회 중 오류가 발생했습니다", err)
		return
	}
	hint := syncHint{LastSync: info.LastSync, Recommendation: "초기 데이터 동기화가 필요합니다"}
	if info.LastSync != nil {
		hint.Recommendation = "정기적인 데이터 동기화를 권장합니다"
	}
	ok(w, struct {
		ingest.Info
		Sync syncHint `json:"sync"`
	}{info, hint})
}

func (h *handlers) overpassStats(w http.ResponseWriter, r *http.Request) {
	rep, err := h.overpass.Report(r.Context())
	if err != nil {
		writeFailure(w, "overpass_stats_error", "Overpass 시스템 통계 조회 중 오류가 발생했습니다", err)
		return
	}
	ok(w, rep)
}

func (h *handlers) overpassCities(w http.ResponseWriter, r *http.Request) {
	cities := h.overpass.Cities()
	ok(w, map[string]any{
		"cities": cities,
		"total":  len(cities),
		"note":   "사용자 정의 지역도 좌표 범위를 제공하여 동기화 가능합니다",
	})
}

func (h *handlers) overpassCleanup(w http.ResponseWriter, r *http.Request) {
	h.cleanup(w, r, h.overpass.Cleanup, "overpass_cleanup_error", "Overpass 데이터 정리 중 오류가 발생했습니다")
}

func (h *handlers) tokyoSync(w http.ResponseWriter, r *http.Request) {
	writeResult(w, h.tokyo.Sync(syncCtx(r)))
}

func (h *handlers) tokyoInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.tokyo.Info(r.Context())
	if err != nil {
		writeFailure(w, "tokyo_info_error", "데이터 정보 조회 중 오류가 발생했습니다", err)
		return
	}
	hint := syncHint{NeedsSync: &info.NeedsSync, Recommendation: "데이터가 최신 상태입니다"}
	if info.NeedsSync {
		hint.Recommendation = "데이터 동기화를 권장합니다"
	}
	ok(w, struct {
		ingest.FeedInfo
		Sync syncHint `json:"sync"`
	}{info, hint})
}

func (h *handlers) tokyoStats(w http.ResponseWriter, r *http.Request) {
	rep, err := h.tokyo.Report(r.Context())
	if err != nil {
		writeFailure(w, "tokyo_stats_error", "시스템 통계 조회 중 오류가 발생했습니다", err)
		return
	}
	ok(w, rep)
}

func (h *handlers) tokyoCleanup(w http.ResponseWriter, r *http.Request) {
	h.cleanup(w, r, h.tokyo.Cleanup, "tokyo_cleanup_error", "데이터 정리 중 오류가 발생했습니다")
}
