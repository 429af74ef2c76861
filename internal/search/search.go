// 包 search：Elasticsearch 设施索引。同步成功后批量写入，近邻查询使用 geo_distance 过滤与距离排序
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/olivere/elastic/v7"

	"toilet-finder/internal/geo"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/model"
)

// 单次近邻查询的命中上限；查询层另行截断 limit
const maxHits = 1000

const mapping = `{
  "mappings": {
    "properties": {
      "name":           {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "location":       {"type": "geo_point"},
      "address":        {"type": "text"},
      "type":           {"type": "keyword"},
      "accessibility":  {"type": "boolean"},
      "operatingHours": {"type": "keyword"},
      "createdAt":      {"type": "date"},
      "updatedAt":      {"type": "date"}
    }
  }
}`

// doc：索引文档，location 为 geo_point
type doc struct {
	Name           string            `json:"name"`
	Location       *elastic.GeoPoint `json:"location"`
	Address        string            `json:"address"`
	Type           model.Category    `json:"type"`
	Accessible     bool              `json:"accessibility"`
	OperatingHours string            `json:"operatingHours,omitempty"`
	CreatedAt      time.Time         `json:"createdAt"`
	UpdatedAt      time.Time         `json:"updatedAt"`
}

func toDoc(f model.Facility) doc {
	return doc{
		Name:           f.Name,
		Location:       elastic.GeoPointFromLatLon(f.Latitude, f.Longitude),
		Address:        f.Address,
		Type:           f.Category,
		Accessible:     f.Accessible,
		OperatingHours: f.OperatingHours,
		CreatedAt:      f.CreatedAt,
		UpdatedAt:      f.UpdatedAt,
	}
}

func (d doc) facility(id string) model.Facility {
	f := model.Facility{
		ID:             id,
		Name:           d.Name,
		Address:        d.Address,
		Category:       d.Type,
		Accessible:     d.Accessible,
		OperatingHours: d.OperatingHours,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.Location != nil {
		f.Latitude, f.Longitude = d.Location.Lat, d.Location.Lon
	}
	return f
}

// Index：设施索引客户端
type Index struct {
	client *elastic.Client
	name   string
}

// Open：连接 Elasticsearch；关闭嗅探与健康检查，单节点或经代理访问时可直接使用
func Open(url, index string) (*Index, error) {
	c, err := elastic.NewClient(elastic.SetURL(url), elastic.SetSniff(false), elastic.SetHealthcheck(false))
	if err != nil {
		return nil, fmt.Errorf("elastic client: %w", err)
	}
	return &Index{client: c, name: index}, nil
}

// EnsureIndex：索引不存在时按映射创建
func (x *Index) EnsureIndex(ctx context.Context) error {
	ok, err := x.client.IndexExists(x.name).Do(ctx)
	if err != nil {
		return fmt.Errorf("index exists %s: %w", x.name, err)
	}
	if ok {
		return nil
	}
	res, err := x.client.CreateIndex(x.name).BodyString(mapping).Do(ctx)
	if err != nil {
		return fmt.Errorf("create index %s: %w", x.name, err)
	}
	if !res.Acknowledged {
		logger.L().Warn("es_index_not_acknowledged", "index", x.name)
	}
	logger.L().Info("es_index_created", "index", x.name)
	return nil
}

// FindNearby：geo_distance 过滤后按弧长距离升序
func (x *Index) FindNearby(ctx context.Context, loc model.Location, radius float64) ([]model.Facility, error) {
	q := elastic.NewGeoDistanceQuery("location").
		Lat(loc.Latitude).Lon(loc.Longitude).
		Distance(strconv.FormatFloat(radius, 'f', -1, 64) + "m").
		DistanceType("arc")
	sort := elastic.NewGeoDistanceSort("location").
		Point(loc.Latitude, loc.Longitude).
		Asc().
		Unit("m").
		DistanceType("arc").
		IgnoreUnmapped(true)
	res, err := x.client.Search().
		Index(x.name).
		Query(elastic.NewBoolQuery().Filter(q)).
		SortBy(sort).
		Size(maxHits).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("es nearby: %w", err)
	}
	var out []model.Facility
	for _, hit := range res.Hits.Hits {
		var d doc
		if err := json.Unmarshal(hit.Source, &d); err != nil {
			logger.L().Warn("es_hit_decode_error", "id", hit.Id, "err", err)
			continue
		}
		f := d.facility(hit.Id)
		// ES 的 arc 距离与 haversine 在边界处可能相差毫米级
		if !geo.WithinRadius(loc, f.Location(), radius) {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// FindByID：未命中返回 nil, nil
func (x *Index) FindByID(ctx context.Context, id string) (*model.Facility, error) {
	res, err := x.client.Get().Index(x.name).Id(id).Do(ctx)
	if elastic.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("es get %s: %w", id, err)
	}
	if !res.Found {
		return nil, nil
	}
	var d doc
	if err := json.Unmarshal(res.Source, &d); err != nil {
		return nil, fmt.Errorf("es decode %s: %w", id, err)
	}
	f := d.facility(id)
	return &f, nil
}

// IndexFacilities：批量写入，返回失败条数；同 id 文档被覆盖
func (x *Index) IndexFacilities(ctx context.Context, fs []model.Facility) (int, error) {
	if len(fs) == 0 {
		return 0, nil
	}
	bulk := x.client.Bulk().Index(x.name)
	for _, f := range fs {
		bulk.Add(elastic.NewBulkIndexRequest().Id(f.ID).Doc(toDoc(f)))
	}
	res, err := bulk.Do(ctx)
	if err != nil {
		return len(fs), fmt.Errorf("es bulk: %w", err)
	}
	failed := res.Failed()
	for _, it := range failed {
		if it.Error != nil {
			logger.L().Debug("es_bulk_item_error", "id", it.Id, "reason", it.Error.Reason)
		}
	}
	logger.L().Info("es_bulk_done", "index", x.name, "total", len(fs), "failed", len(failed))
	return len(failed), nil
}
