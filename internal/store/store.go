// 包 store: PostgreSQL 持久化数据源，提供设施 CRUD、批量对账写入、按来源统计与过期清理
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"toilet-finder/internal/apperr"
	"toilet-finder/internal/geo"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/model"
)

// Store: 数据库访问入口，持有连接池
type Store struct {
	db  *sql.DB
	now func() time.Time
}

func AttachDB(db *sql.DB) *Store { return &Store{db: db, now: time.Now} }

// Close: 关闭数据库连接
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) DB() *sql.DB { return s.db }

const columns = "id, name, latitude, longitude, address, type, accessibility, operating_hours, created_at, updated_at"

type scanner interface {
	Scan(dest ...any) error
}

func scanFacility(sc scanner, extra ...any) (model.Facility, error) {
	var f model.Facility
	var cat string
	var hours sql.NullString
	dest := append([]any{&f.ID, &f.Name, &f.Latitude, &f.Longitude, &f.Address, &cat, &f.Accessible, &hours, &f.CreatedAt, &f.UpdatedAt}, extra...)
	if err := sc.Scan(dest...); err != nil {
		return f, err
	}
	f.Category = model.Category(cat)
	f.OperatingHours = hours.String
	return f, nil
}

func nullable(s string) sql.NullString { return sql.NullString{String: s, Valid: s != ""} }

// validate：入库前校验；不合法的记录不进入数据库
func validate(f model.Facility) error {
	if strings.TrimSpace(f.ID) == "" {
		return apperr.Validation("id", "must not be empty")
	}
	if strings.TrimSpace(f.Name) == "" {
		return apperr.Validation("name", "must not be empty")
	}
	if !f.Location().Valid() {
		return apperr.Validation("coordinates", fmt.Sprintf("(%v,%v) out of range", f.Latitude, f.Longitude))
	}
	if f.Category != "" && !f.Category.Valid() {
		return apperr.Validation("type", string(f.Category))
	}
	return nil
}

// 距离表达式：$1 纬度、$2 经度；asin 参数截断到 1 以免浮点越界
const distanceExpr = `2 * 6371000 * asin(least(1, sqrt(
        power(sin(radians(latitude - $1::float8) / 2), 2) +
        cos(radians($1::float8)) * cos(radians(latitude)) * power(sin(radians(longitude - $2::float8) / 2), 2)
    )))`

// FindNearby: 包围盒预筛选 + 服务端 haversine 过滤与升序排序
// 约束：返回前用 geo.Distance 复核半径，与查询层使用同一距离定义
func (s *Store) FindNearby(ctx context.Context, loc model.Location, radius float64) ([]model.Facility, error) {
	b := geo.Bounds(loc, radius)
	q := `SELECT ` + columns + `, distance FROM (
        SELECT ` + columns + `, ` + distanceExpr + ` AS distance
        FROM toilets
        WHERE latitude BETWEEN $3 AND $4 AND longitude BETWEEN $5 AND $6
    ) t WHERE distance <= $7::float8 ORDER BY distance`
	rows, err := s.db.QueryContext(ctx, q, loc.Latitude, loc.Longitude, b.South, b.North, b.West, b.East, radius)
	if err != nil {
		return nil, fmt.Errorf("find nearby: %w", err)
	}
	defer rows.Close()
	var out []model.Facility
	for rows.Next() {
		var d float64
		f, err := scanFacility(rows, &d)
		if err != nil {
			return nil, fmt.Errorf("scan nearby: %w", err)
		}
		if !geo.WithinRadius(loc, f.Location(), radius) {
			continue
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("find nearby: %w", err)
	}
	logger.L().Debug("db_nearby", "lat", loc.Latitude, "lon", loc.Longitude, "radius", radius, "count", len(out))
	return out, nil
}

// FindByID: 未命中返回 nil, nil
func (s *Store) FindByID(ctx context.Context, id string) (*model.Facility, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM toilets WHERE id = $1`, id)
	f, err := scanFacility(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by id: %w", err)
	}
	return &f, nil
}

const upsertSQL = `INSERT INTO toilets (` + columns + `)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
    ON CONFLICT (id) DO UPDATE SET
        name = EXCLUDED.name,
        latitude = EXCLUDED.latitude,
        longitude = EXCLUDED.longitude,
        address = EXCLUDED.address,
        type = EXCLUDED.type,
        accessibility = EXCLUDED.accessibility,
        operating_hours = EXCLUDED.operating_hours,
        updated_at = EXCLUDED.updated_at`

func (s *Store) upsertArgs(f model.Facility) []any {
	now := s.now()
	created := f.CreatedAt
	if created.IsZero() {
		created = now
	}
	cat := f.Category
	if cat == "" {
		cat = model.Public
	}
	return []any{f.ID, f.Name, f.Latitude, f.Longitude, f.Address, string(cat), f.Accessible, nullable(f.OperatingHours), created, now}
}

// Save: 按 id 插入或覆盖；created_at 只在首次插入时写入
func (s *Store) Save(ctx context.Context, f model.Facility) (model.Facility, error) {
	if err := validate(f); err != nil {
		return model.Facility{}, err
	}
	row := s.db.QueryRowContext(ctx, upsertSQL+` RETURNING `+columns, s.upsertArgs(f)...)
	out, err := scanFacility(row)
	if err != nil {
		return model.Facility{}, fmt.Errorf("save %s: %w", f.ID, err)
	}
	return out, nil
}

// buildUpdate: 由补丁生成 SET 子句；参数从 $1 开始编号
func buildUpdate(p model.Patch) ([]string, []any) {
	var sets []string
	var args []any
	add := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Latitude != nil {
		add("latitude", *p.Latitude)
	}
	if p.Longitude != nil {
		add("longitude", *p.Longitude)
	}
	if p.Address != nil {
		add("address", *p.Address)
	}
	if p.Category != nil {
		add("type", string(*p.Category))
	}
	if p.Accessible != nil {
		add("accessibility", *p.Accessible)
	}
	if p.OperatingHours != nil {
		add("operating_hours", nullable(*p.OperatingHours))
	}
	return sets, args
}

// Update: 部分字段更新，updated_at 由服务端设置；未命中返回 nil, nil
func (s *Store) Update(ctx context.Context, id string, p model.Patch) (*model.Facility, error) {
	if p.Empty() {
		return s.FindByID(ctx, id)
	}
	if p.Latitude != nil && (*p.Latitude < -90 || *p.Latitude > 90) {
		return nil, apperr.Validation("latitude", "out of range")
	}
	if p.Longitude != nil && (*p.Longitude < -180 || *p.Longitude > 180) {
		return nil, apperr.Validation("longitude", "out of range")
	}
	if p.Category != nil && !p.Category.Valid() {
		return nil, apperr.Validation("type", string(*p.Category))
	}
	sets, args := buildUpdate(p)
	args = append(args, id)
	q := fmt.Sprintf(`UPDATE toilets SET %s, updated_at = now() WHERE id = $%d RETURNING %s`, strings.Join(sets, ", "), len(args), columns)
	f, err := scanFacility(s.db.QueryRowContext(ctx, q, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("update %s: %w", id, err)
	}
	return &f, nil
}

// Delete: 返回是否删除了记录
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM toilets WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", id, err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}
