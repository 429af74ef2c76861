// 包 tokyo：市政公开 CSV 数据源（江东区公共厕所）
// 背景：数据集体量小且更新慢，整份解析后驻留内存；拉取失败或无可用行时切换到内置数据
package tokyo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"toilet-finder/internal/cache"
	"toilet-finder/internal/config"
	"toilet-finder/internal/geo"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/metrics"
	"toilet-finder/internal/model"
)

// Source：最近一次加载走的分支
type Source string

const (
	SourceAPI   Source = "api"
	SourceCache Source = "cache"
	SourceMock  Source = "mock"
)

const maxBody = 32 << 20

type Options struct {
	CSVURL     string
	Timeout    time.Duration
	CacheTTL   time.Duration
	Bounds     model.BBox
	Columns    config.Columns
	HTTPClient *http.Client
}

func OptionsFromConfig(c config.Tokyo) Options {
	return Options{CSVURL: c.CSVURL, Timeout: c.Timeout, CacheTTL: c.CacheTTL, Bounds: c.Bounds, Columns: c.Columns}
}

// Snapshot：一次加载的结果；Raw 仅在 api 分支保留原始字节
type Snapshot struct {
	Facilities []model.Facility
	Source     Source
	FetchedAt  time.Time
	Raw        []byte
}

// Info：数据源状态；LastUpdate 为 nil 表示尚未加载
type Info struct {
	LastUpdate *time.Time `json:"lastUpdate"`
	TotalCount int        `json:"totalCount"`
	Source     Source     `json:"source"`
}

type Client struct {
	opts  Options
	hc    *http.Client
	now   func() time.Time
	group singleflight.Group

	mu     sync.RWMutex
	entry  *cache.Entry[[]model.Facility]
	mocked bool
}

func New(opts Options) *Client {
	if opts.CSVURL == "" {
		opts.CSVURL = config.DefaultCSVURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = time.Hour
	}
	if len(opts.Columns.Name) == 0 && len(opts.Columns.Latitude) == 0 {
		opts.Columns = config.DefaultColumns()
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
	}
	return &Client{opts: opts, hc: hc, now: time.Now}
}

// WithClock：替换时钟，仅供测试
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// All：新鲜缓存直接返回，否则重新加载
func (c *Client) All(ctx context.Context) (Snapshot, error) {
	c.mu.RLock()
	e := c.entry
	c.mu.RUnlock()
	if !cache.IsStale(e, c.now(), c.opts.CacheTTL) {
		metrics.FeedFetchTotal.WithLabelValues(string(SourceCache)).Inc()
		return Snapshot{Facilities: e.Value, Source: SourceCache, FetchedAt: e.FetchedAt}, nil
	}
	return c.Refresh(ctx)
}

// Refresh：强制从远端加载并替换缓存；并发刷新合并为一次
func (c *Client) Refresh(ctx context.Context) (Snapshot, error) {
	v, err, _ := c.group.Do("refresh", func() (any, error) {
		return c.load(ctx), nil
	})
	if err != nil {
		return Snapshot{}, err
	}
	return v.(Snapshot), nil
}

// load：拉取失败或无可用行时切换到内置数据，分支记录在 Snapshot.Source
func (c *Client) load(ctx context.Context) Snapshot {
	now := c.now()
	raw, err := c.fetch(ctx)
	var rows []model.Facility
	if err == nil {
		rows, err = parser{cols: c.opts.Columns, bounds: c.opts.Bounds, now: now}.parse(raw)
	}
	snap := Snapshot{Facilities: rows, Source: SourceAPI, FetchedAt: now, Raw: raw}
	if err != nil || len(rows) == 0 {
		logger.L().Warn("feed_mock_fallback", "url", c.opts.CSVURL, "rows", len(rows), "err", err)
		snap = Snapshot{Facilities: mockFacilities(now), Source: SourceMock, FetchedAt: now}
	}
	metrics.FeedFetchTotal.WithLabelValues(string(snap.Source)).Inc()
	c.mu.Lock()
	c.entry = cache.NewEntry(snap.Facilities, now)
	c.mocked = snap.Source == SourceMock
	c.mu.Unlock()
	logger.L().Info("feed_loaded", "source", snap.Source, "count", len(snap.Facilities))
	return snap
}

func (c *Client) fetch(ctx context.Context) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.CSVURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "ToiletFinder/1.0")
	req.Header.Set("Accept", "text/csv")
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch feed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch feed: status %d", resp.StatusCode)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read feed: %w", err)
	}
	return b, nil
}

// FindNearby：在内存数据集上按半径过滤
func (c *Client) FindNearby(ctx context.Context, loc model.Location, radius float64) ([]model.Facility, error) {
	snap, err := c.All(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Facility
	for _, f := range snap.Facilities {
		if geo.WithinRadius(loc, f.Location(), radius) {
			out = append(out, f)
		}
	}
	logger.L().Debug("feed_nearby", "source", snap.Source, "candidates", len(snap.Facilities), "matched", len(out))
	return out, nil
}

// ForDatabase：入库用的完整数据，始终重新加载；过滤零坐标与空名称
func (c *Client) ForDatabase(ctx context.Context) (Snapshot, error) {
	snap, err := c.Refresh(ctx)
	if err != nil {
		return snap, err
	}
	valid := make([]model.Facility, 0, len(snap.Facilities))
	for _, f := range snap.Facilities {
		if f.Latitude == 0 || f.Longitude == 0 || strings.TrimSpace(f.Name) == "" {
			continue
		}
		valid = append(valid, f)
	}
	snap.Facilities = valid
	return snap, nil
}

// Info：未加载时 Source 为 api
func (c *Client) Info() Info {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.entry == nil {
		return Info{Source: SourceAPI}
	}
	at := c.entry.FetchedAt
	src := SourceCache
	if c.mocked {
		src = SourceMock
	}
	return Info{LastUpdate: &at, TotalCount: len(c.entry.Value), Source: src}
}
