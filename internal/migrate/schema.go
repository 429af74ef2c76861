package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"toilet-finder/internal/logger"
)

// 背景：首次运行自动创建设施表与索引
// 约束：使用 IF NOT EXISTS，可重复执行；来源通过 id 前缀区分，不单独建列
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS toilets (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            latitude DOUBLE PRECISION NOT NULL CHECK (latitude BETWEEN -90 AND 90),
            longitude DOUBLE PRECISION NOT NULL CHECK (longitude BETWEEN -180 AND 180),
            address TEXT NOT NULL DEFAULT '',
            type TEXT NOT NULL DEFAULT 'PUBLIC' CHECK (type IN ('PUBLIC', 'PRIVATE', 'COMMERCIAL')),
            accessibility BOOLEAN NOT NULL DEFAULT FALSE,
            operating_hours TEXT,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )`,
		`CREATE INDEX IF NOT EXISTS idx_toilets_lat_lon ON toilets(latitude, longitude)`,
		`CREATE INDEX IF NOT EXISTS idx_toilets_updated_at ON toilets(updated_at)`,
		// 前缀统计与清理使用 LIKE 'prefix%'
		`CREATE INDEX IF NOT EXISTS idx_toilets_id_pattern ON toilets(id text_pattern_ops)`,
	}
	for i, s := range stmts {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("schema stmt %d: %w", i, err)
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
