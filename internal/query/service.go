// 包 query：近邻查询服务。校验参数、计算距离、稳定排序并截断，对外统一失败语义
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"toilet-finder/internal/apperr"
	"toilet-finder/internal/geo"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/metrics"
	"toilet-finder/internal/model"
)

const (
	DefaultRadius = 1000.0
	DefaultLimit  = 10
)

// Source：活动数据源的近邻查询能力
type Source interface {
	FindNearby(ctx context.Context, loc model.Location, radius float64) ([]model.Facility, error)
}

// Result：Total 为半径内全部命中数，不受 limit 影响
type Result struct {
	Facilities []model.WithDistance `json:"toilets"`
	Total      int                  `json:"total"`
}

type Service struct {
	src Source
}

func NewService(src Source) *Service { return &Service{src: src} }

// Normalize：零值取默认；负数与越界坐标为参数错误
func Normalize(loc model.Location, radius float64, limit int) (float64, int, error) {
	if !loc.Valid() {
		return 0, 0, apperr.Validation("coordinates", fmt.Sprintf("(%v,%v) out of range", loc.Latitude, loc.Longitude))
	}
	if radius == 0 {
		radius = DefaultRadius
	}
	if limit == 0 {
		limit = DefaultLimit
	}
	if radius < 0 {
		return 0, 0, apperr.Validation("radius", "must be positive")
	}
	if limit < 0 {
		return 0, 0, apperr.Validation("limit", "must be positive")
	}
	return radius, limit, nil
}

// FindNearest：数据源失败统一为 apperr.ErrSearchFailed，细节只写日志
func (s *Service) FindNearest(ctx context.Context, loc model.Location, radius float64, limit int) (Result, error) {
	radius, limit, err := Normalize(loc, radius, limit)
	if err != nil {
		return Result{}, err
	}
	t0 := time.Now()
	fs, err := s.src.FindNearby(ctx, loc, radius)
	metrics.NearbyDurationMs.Observe(float64(time.Since(t0).Milliseconds()))
	if err != nil {
		metrics.NearbyRequestsTotal.WithLabelValues("error").Inc()
		logger.L().Error("nearby_search_error", "lat", loc.Latitude, "lon", loc.Longitude, "radius", radius,
			"unsupported", errors.Is(err, apperr.ErrUnsupported), "err", err)
		return Result{}, apperr.ErrSearchFailed
	}
	out := make([]model.WithDistance, 0, len(fs))
	for _, f := range fs {
		d := geo.Distance(loc, f.Location())
		if d > radius {
			continue
		}
		out = append(out, model.WithDistance{Facility: f, Distance: d})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	total := len(out)
	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Distance = geo.Meters(out[i].Distance)
	}
	metrics.NearbyRequestsTotal.WithLabelValues("ok").Inc()
	if total == 0 {
		metrics.NearbyEmptyTotal.Inc()
	}
	logger.L().Debug("nearby_search", "lat", loc.Latitude, "lon", loc.Longitude, "radius", radius, "limit", limit, "total", total)
	return Result{Facilities: out, Total: total}, nil
}
