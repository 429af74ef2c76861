// 包 repository：统一的设施数据源接口与按配置选择的实现
// 背景：查询服务与 HTTP 层只依赖 Repository；只读数据源对写操作固定返回 apperr.ErrUnsupported
package repository

import (
	"context"
	"fmt"

	"toilet-finder/internal/apperr"
	"toilet-finder/internal/config"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/model"
)

// Repository：近邻查询与单条 CRUD；未命中以 nil/false 表示
type Repository interface {
	FindNearby(ctx context.Context, loc model.Location, radius float64) ([]model.Facility, error)
	FindByID(ctx context.Context, id string) (*model.Facility, error)
	Save(ctx context.Context, f model.Facility) (model.Facility, error)
	Update(ctx context.Context, id string, p model.Patch) (*model.Facility, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// ReadOnly：嵌入后拒绝全部写操作
type ReadOnly struct{}

func (ReadOnly) Save(context.Context, model.Facility) (model.Facility, error) {
	return model.Facility{}, apperr.ErrUnsupported
}

func (ReadOnly) Update(context.Context, string, model.Patch) (*model.Facility, error) {
	return nil, apperr.ErrUnsupported
}

func (ReadOnly) Delete(context.Context, string) (bool, error) {
	return false, apperr.ErrUnsupported
}

// Nearby：只具备近邻查询能力的数据源（tokyo.Client、overpass.Client）
type Nearby interface {
	FindNearby(ctx context.Context, loc model.Location, radius float64) ([]model.Facility, error)
}

// Lookup：近邻查询与按 id 读取（search.Index）
type Lookup interface {
	Nearby
	FindByID(ctx context.Context, id string) (*model.Facility, error)
}

// Feed：内存 CSV 数据源；按 id 读取未实现，恒为未命中
type Feed struct {
	ReadOnly
	Nearby
}

func NewFeed(src Nearby) *Feed { return &Feed{Nearby: src} }

func (*Feed) FindByID(context.Context, string) (*model.Facility, error) { return nil, nil }

// Live：在线地图 API；上游无法按单个 id 查询
type Live struct {
	ReadOnly
	Nearby
}

func NewLive(src Nearby) *Live { return &Live{Nearby: src} }

func (*Live) FindByID(context.Context, string) (*model.Facility, error) {
	return nil, apperr.ErrUnsupported
}

// Index：搜索索引只读视图，写入由同步任务完成
type Index struct {
	ReadOnly
	Lookup
}

func NewIndex(src Lookup) *Index { return &Index{Lookup: src} }

// Deps：启动时构建的各数据源，未启用的为 nil
type Deps struct {
	Store    Repository
	Tokyo    Nearby
	Overpass Nearby
	Search   Lookup
}

// Select：按配置选择唯一的活动数据源，进程内只调用一次
func Select(backend config.Backend, d Deps) (Repository, error) {
	var r Repository
	switch backend {
	case config.BackendPostgres:
		if d.Store != nil {
			r = d.Store
		}
	case config.BackendTokyo:
		if d.Tokyo != nil {
			r = NewFeed(d.Tokyo)
		}
	case config.BackendOverpass:
		if d.Overpass != nil {
			r = NewLive(d.Overpass)
		}
	case config.BackendElastic:
		if d.Search != nil {
			r = NewIndex(d.Search)
		}
	default:
		return nil, fmt.Errorf("unknown backend %q", backend)
	}
	if r == nil {
		return nil, fmt.Errorf("backend %q selected but not configured", backend)
	}
	logger.L().Info("repository_selected", "backend", backend)
	return r, nil
}
