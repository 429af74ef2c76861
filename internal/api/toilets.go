package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"toilet-finder/internal/apperr"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/metrics"
	"toilet-finder/internal/model"
	"toilet-finder/internal/query"
)

// Nearest：近邻查询用例
type Nearest interface {
	FindNearest(ctx context.Context, loc model.Location, radius float64, limit int) (query.Result, error)
}

// Finder：按 ID 查询，未命中返回 nil
type Finder interface {
	FindByID(ctx context.Context, id string) (*model.Facility, error)
}

// Locator：客户端 IP 到坐标的估算
type Locator interface {
	Locate(ip string) (model.Location, bool)
}

var errBadRange = errors.New("radius and limit must be positive integers")

// parseRange：缺省为 0，交由 query.Normalize 取默认值
func parseRange(r *http.Request) (float64, int, error) {
	q := r.URL.Query()
	var radius float64
	var limit int
	if s := q.Get("radius"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return 0, 0, errBadRange
		}
		radius = v
	}
	if s := q.Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			return 0, 0, errBadRange
		}
		limit = v
	}
	return radius, limit, nil
}

// 文档注释：解析查询中心点
// 背景：经纬度同时缺省且配置了 GeoIP 时，以客户端 IP 所在城市作为中心点。
// 约束：只给出其一视为缺参；无法解析或越界为坐标错误。
func (h *handlers) center(r *http.Request) (model.Location, string, string) {
	q := r.URL.Query()
	latS, lonS := strings.TrimSpace(q.Get("latitude")), strings.TrimSpace(q.Get("longitude"))
	if latS == "" && lonS == "" && h.locator != nil {
		ip := getClientIP(r)
		if loc, ok := h.locator.Locate(ip); ok {
			logger.L().Debug("nearby_geoip_center", "ip", ip, "lat", loc.Latitude, "lon", loc.Longitude)
			return loc, "", ""
		}
	}
	if latS == "" || lonS == "" {
		return model.Location{}, CodeInvalidParameters, "위도와 경도는 필수 파라미터입니다."
	}
	lat, err1 := strconv.ParseFloat(latS, 64)
	lon, err2 := strconv.ParseFloat(lonS, 64)
	loc := model.Location{Latitude: lat, Longitude: lon}
	if err1 != nil || err2 != nil || !loc.Valid() {
		return model.Location{}, CodeInvalidCoordinates, "올바르지 않은 좌표값입니다."
	}
	return loc, "", ""
}

func (h *handlers) nearby(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	loc, code, msg := h.center(r)
	if code != "" {
		fail(w, http.StatusBadRequest, code, msg)
		return
	}
	radius, limit, err := parseRange(r)
	if err == nil {
		radius, limit, err = query.Normalize(loc, radius, limit)
	}
	if err != nil {
		fail(w, http.StatusBadRequest, CodeInvalidParameters, "반경과 개수는 양의 정수여야 합니다.")
		return
	}
	key := nearbyKey(loc.Latitude, loc.Longitude, radius, limit)
	if h.cache != nil {
		b, hit, err := h.cache.Get(ctx, key)
		if err != nil {
			logger.L().Warn("nearby_cache_get_error", "key", key, "err", err)
		}
		if hit {
			metrics.CacheHitsTotal.Inc()
			ok(w, json.RawMessage(b))
			return
		}
		metrics.CacheMissesTotal.Inc()
	}
	res, err := h.nearest.FindNearest(ctx, loc, radius, limit)
	if err != nil {
		if apperr.IsValidation(err) {
			fail(w, http.StatusBadRequest, CodeInvalidParameters, err.Error())
			return
		}
		fail(w, http.StatusInternalServerError, CodeInternal, "주변 화장실 검색 중 오류가 발생했습니다.")
		return
	}
	if h.cache != nil {
		if b, err := json.Marshal(res); err == nil {
			if err := h.cache.Set(ctx, key, b, h.cacheTTL); err != nil {
				logger.L().Warn("nearby_cache_set_error", "key", key, "err", err)
			}
		}
	}
	ok(w, res)
}

type toiletData struct {
	Toilet *model.Facility `json:"toilet"`
}

func (h *handlers) byID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	if id == "" {
		fail(w, http.StatusBadRequest, CodeMissingID, "화장실 ID가 필요합니다.")
		return
	}
	f, err := h.finder.FindByID(r.Context(), id)
	if errors.Is(err, apperr.ErrUnsupported) {
		// 实时数据源无法按 ID 查询，按未命中处理
		logger.L().Debug("toilet_by_id_unsupported", "id", id)
		f, err = nil, nil
	}
	if err != nil {
		logger.L().Error("toilet_by_id_error", "id", id, "err", err)
		fail(w, http.StatusInternalServerError, CodeInternal, "화장실 정보 조회 중 오류가 발생했습니다.")
		return
	}
	ok(w, toiletData{Toilet: f})
}
