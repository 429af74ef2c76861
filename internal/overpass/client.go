// 包 overpass：OpenStreetMap Overpass API 客户端（实时查询数据源）
// 背景：公共镜像稳定性参差，按顺序故障转移；当前可用镜像在调用间保留
package overpass

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"toilet-finder/internal/apperr"
	"toilet-finder/internal/cache"
	"toilet-finder/internal/config"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/metrics"
	"toilet-finder/internal/model"
)

const userAgent = "ToiletFinder/1.0 (+https://github.com/toilet-finder)"

type Options struct {
	Endpoints    []string
	PointTimeout time.Duration
	AreaTimeout  time.Duration
	MaxSize      int64
	CityDelay    time.Duration
	MaxPerCity   int
	CacheSize    int
	CacheTTL     time.Duration
	Cities       []model.City
	HTTPClient   *http.Client
}

// OptionsFromConfig：由启动配置构造客户端参数
func OptionsFromConfig(c config.Overpass) Options {
	return Options{
		Endpoints:    c.Endpoints,
		PointTimeout: c.PointTimeout,
		AreaTimeout:  c.AreaTimeout,
		MaxSize:      c.MaxSize,
		CityDelay:    c.CityDelay,
		MaxPerCity:   c.MaxPerCity,
		CacheSize:    c.CacheSize,
		CacheTTL:     c.CacheTTL,
		Cities:       c.Cities,
	}
}

type Client struct {
	opts  Options
	hc    *http.Client
	cur   atomic.Int64
	cache *cache.LRU[[]model.Facility]
	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

func New(opts Options) *Client {
	if opts.PointTimeout <= 0 {
		opts.PointTimeout = config.DefaultPointTimeout
	}
	if opts.AreaTimeout <= 0 {
		opts.AreaTimeout = 3 * opts.PointTimeout
	}
	if opts.MaxSize <= 0 {
		opts.MaxSize = config.DefaultMaxSize
	}
	if len(opts.Endpoints) == 0 {
		opts.Endpoints = config.DefaultEndpoints
	}
	if opts.Cities == nil {
		opts.Cities = config.DefaultCities()
	}
	hc := opts.HTTPClient
	if hc == nil {
		// 超时由每次尝试的 context 控制
		hc = &http.Client{}
	}
	c := &Client{opts: opts, hc: hc, now: time.Now, sleep: sleepCtx}
	if opts.CacheSize > 0 && opts.CacheTTL > 0 {
		c.cache = cache.NewLRU[[]model.Facility](opts.CacheSize, opts.CacheTTL)
	}
	return c
}

// Cities：批量同步使用的城市列表
func (c *Client) Cities() []model.City { return c.opts.Cities }

// Endpoints：镜像列表（只读副本）
func (c *Client) Endpoints() []string { return append([]string(nil), c.opts.Endpoints...) }

// pointKey：精确中心点（6 位小数）+ 半径；around: 结果只对本中心点完整
func pointKey(loc model.Location, radius float64) string {
	return fmt.Sprintf("%.6f,%.6f:%s", loc.Latitude, loc.Longitude, strconv.FormatFloat(radius, 'f', -1, 64))
}

// FindNearby：半径查询；结果按中心点+半径缓存
func (c *Client) FindNearby(ctx context.Context, loc model.Location, radius float64) ([]model.Facility, error) {
	key := pointKey(loc, radius)
	if c.cache != nil {
		if v, ok := c.cache.Get(key); ok {
			logger.L().Debug("overpass_cache_hit", "key", key, "count", len(v))
			return v, nil
		}
	}
	elems, err := c.post(ctx, "point", PointQuery(loc, radius, c.opts.PointTimeout), c.opts.PointTimeout)
	if err != nil {
		return nil, err
	}
	out := Parse(elems, c.now())
	if c.cache != nil {
		c.cache.Set(key, out)
	}
	return out, nil
}

// FetchArea：单个包围盒批量拉取，与点查询共用故障转移
func (c *Client) FetchArea(ctx context.Context, name string, b model.BBox, maxResults int) ([]model.Facility, error) {
	t0 := time.Now()
	logger.L().Info("overpass_area_start", "area", name)
	elems, err := c.post(ctx, "area", AreaQuery(b, maxResults, c.opts.AreaTimeout, c.opts.MaxSize), c.opts.AreaTimeout)
	if err != nil {
		return nil, fmt.Errorf("fetch area %s: %w", name, err)
	}
	out := Parse(elems, c.now())
	logger.L().Info("overpass_area_done", "area", name, "elements", len(elems), "parsed", len(out), "duration_ms", time.Since(t0).Milliseconds())
	return out, nil
}

// FetchCities：依次拉取全部城市，城市之间强制间隔
// 约束：单个城市失败只记录并跳过；仅在 ctx 取消时返回错误
func (c *Client) FetchCities(ctx context.Context) ([]model.Facility, error) {
	var all []model.Facility
	for i, city := range c.opts.Cities {
		if i > 0 {
			if err := c.sleep(ctx, c.opts.CityDelay); err != nil {
				return all, err
			}
		}
		fs, err := c.FetchArea(ctx, city.Name, city.Bounds, c.opts.MaxPerCity)
		if err != nil {
			if ctx.Err() != nil {
				return all, ctx.Err()
			}
			logger.L().Warn("overpass_city_skip", "city", city.Name, "err", err)
			continue
		}
		all = append(all, fs...)
	}
	return all, nil
}

// statusError：镜像返回非 200
type statusError struct {
	Code int
	Body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("overpass status %d: %s", e.Code, e.Body)
}

// post：按当前镜像开始依次尝试；网络类错误切换镜像，其他错误立即返回
func (c *Client) post(ctx context.Context, kind, query string, timeout time.Duration) ([]Element, error) {
	n := len(c.opts.Endpoints)
	t0 := time.Now()
	defer func() {
		metrics.OverpassDurationMs.WithLabelValues(kind).Observe(float64(time.Since(t0).Milliseconds()))
	}()
	var lastErr error
	for attempt := 0; attempt < n; attempt++ {
		idx := int(c.cur.Load()) % n
		ep := c.opts.Endpoints[idx]
		metrics.OverpassRequestsTotal.WithLabelValues(ep).Inc()
		logger.L().Debug("overpass_req", "endpoint", ep, "kind", kind, "attempt", attempt+1)
		elems, err := c.do(ctx, ep, query, timeout)
		if err == nil {
			logger.L().Debug("overpass_resp", "endpoint", ep, "elements", len(elems))
			return elems, nil
		}
		metrics.OverpassFailTotal.WithLabelValues(ep).Inc()
		lastErr = err
		if !isNetworkError(ctx, err) {
			logger.L().Error("overpass_error", "endpoint", ep, "kind", kind, "err", err)
			return nil, fmt.Errorf("overpass %s: %w", kind, err)
		}
		next := (idx + 1) % n
		c.cur.CompareAndSwap(int64(idx), int64(next))
		metrics.OverpassFailoverTotal.WithLabelValues(ep).Inc()
		logger.L().Warn("overpass_failover", "endpoint", ep, "next", c.opts.Endpoints[next], "err", err)
	}
	logger.L().Error("overpass_exhausted", "kind", kind, "endpoints", n, "err", lastErr)
	return nil, fmt.Errorf("%w: all %d overpass endpoints failed: %w", apperr.ErrSourceUnavailable, n, lastErr)
}

func (c *Client) do(ctx context.Context, endpoint, query string, timeout time.Duration) ([]Element, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(query))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &statusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	var r response
	if err := json.NewDecoder(io.LimitReader(resp.Body, c.opts.MaxSize)).Decode(&r); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("decode overpass response: %w", err)
	}
	if r.Remark != "" {
		logger.L().Warn("overpass_remark", "endpoint", endpoint, "remark", r.Remark)
	}
	return r.Elements, nil
}

// isNetworkError：超时、DNS、连接拒绝/重置、5xx 及 429 视为可切换镜像
// 约束：调用方主动取消不触发切换
func isNetworkError(parent context.Context, err error) bool {
	if parent.Err() != nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.Code >= 500 || se.Code == http.StatusTooManyRequests
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ENETUNREACH) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
