package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"toilet-finder/internal/apperr"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/metrics"
	"toilet-finder/internal/model"
)

// BulkResult: 批量对账结果；Failed 为单条失败计数，不作为错误返回
type BulkResult struct {
	Saved   int `json:"saved"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

// isConnError: 连接级错误导致整批回滚
// 约束：pq 错误类 08（连接异常）、25（事务状态无效）、53（资源不足）、57（管理员干预）视为连接级
func isConnError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, sql.ErrTxDone) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "25", "53", "57":
			return true
		}
		return false
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// BulkUpsert: 单事务内逐条对账；每条记录包在保存点中，失败只回滚该条
// 背景：PostgreSQL 中语句失败会使整个事务进入中止态，保存点用于隔离单条失败
// 约束：连接级错误回滚整批并返回 *apperr.TxError
func (s *Store) BulkUpsert(ctx context.Context, fs []model.Facility) (BulkResult, error) {
	var r BulkResult
	if len(fs) == 0 {
		return r, nil
	}
	t0 := time.Now()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return r, &apperr.TxError{Op: "begin", Err: err}
	}
	abort := func(op string, err error) (BulkResult, error) {
		_ = tx.Rollback()
		logger.L().Error("bulk_upsert_rollback", "op", op, "err", err, "processed", r.Saved+r.Updated+r.Failed)
		return BulkResult{}, &apperr.TxError{Op: op, Err: err}
	}
	q := upsertSQL + ` RETURNING (xmax = 0)`
	for _, f := range fs {
		if err := validate(f); err != nil {
			r.Failed++
			logger.L().Debug("bulk_upsert_invalid", "id", f.ID, "err", err)
			continue
		}
		if _, err := tx.ExecContext(ctx, "SAVEPOINT rec"); err != nil {
			return abort("savepoint", err)
		}
		var inserted bool
		err := tx.QueryRowContext(ctx, q, s.upsertArgs(f)...).Scan(&inserted)
		if err != nil {
			if isConnError(err) {
				return abort("upsert", err)
			}
			if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT rec"); rbErr != nil {
				return abort("rollback savepoint", rbErr)
			}
			r.Failed++
			logger.L().Warn("bulk_upsert_record_failed", "id", f.ID, "err", err)
			continue
		}
		if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT rec"); err != nil {
			return abort("release savepoint", err)
		}
		if inserted {
			r.Saved++
		} else {
			r.Updated++
		}
	}
	if err := tx.Commit(); err != nil {
		return abort("commit", err)
	}
	logger.L().Info("bulk_upsert_done", "total", len(fs), "saved", r.Saved, "updated", r.Updated, "failed", r.Failed, "duration_ms", time.Since(t0).Milliseconds())
	return r, nil
}

// Stats: 按 id 前缀统计的存量概况
type Stats struct {
	Total       int                    `json:"total"`
	ByCategory  map[model.Category]int `json:"byType"`
	Accessible  int                    `json:"accessible"`
	LastUpdated *time.Time             `json:"lastUpdated"`
}

// likePrefix: 转义 LIKE 元字符后追加 %，前缀中的 _ 按字面匹配
func likePrefix(prefix string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(prefix) + "%"
}

// StatsBySourcePrefix: 四个相互独立的读查询并发执行
func (s *Store) StatsBySourcePrefix(ctx context.Context, prefix string) (Stats, error) {
	pat := likePrefix(prefix)
	st := Stats{ByCategory: map[model.Category]int{}}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.db.QueryRowContext(gctx, `SELECT COUNT(*) FROM toilets WHERE id LIKE $1`, pat).Scan(&st.Total)
	})
	byCat := map[model.Category]int{}
	g.Go(func() error {
		rows, err := s.db.QueryContext(gctx, `SELECT type, COUNT(*) FROM toilets WHERE id LIKE $1 GROUP BY type`, pat)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var cat string
			var n int
			if err := rows.Scan(&cat, &n); err != nil {
				return err
			}
			byCat[model.Category(cat)] = n
		}
		return rows.Err()
	})
	g.Go(func() error {
		return s.db.QueryRowContext(gctx, `SELECT COUNT(*) FROM toilets WHERE id LIKE $1 AND accessibility`, pat).Scan(&st.Accessible)
	})
	var last sql.NullTime
	g.Go(func() error {
		return s.db.QueryRowContext(gctx, `SELECT MAX(updated_at) FROM toilets WHERE id LIKE $1`, pat).Scan(&last)
	})
	if err := g.Wait(); err != nil {
		return Stats{}, fmt.Errorf("stats %s: %w", prefix, err)
	}
	st.ByCategory = byCat
	if last.Valid {
		t := last.Time
		st.LastUpdated = &t
	}
	return st, nil
}

// Cleanup: 删除前缀匹配且 updated_at 早于 now-days 的记录
func (s *Store) Cleanup(ctx context.Context, prefix string, days int) (int64, error) {
	if days < 1 {
		return 0, apperr.Validation("days", "must be >= 1")
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM toilets WHERE id LIKE $1 AND updated_at < now() - make_interval(days => $2)`,
		likePrefix(prefix), days)
	if err != nil {
		return 0, fmt.Errorf("cleanup %s: %w", prefix, err)
	}
	n, _ := res.RowsAffected()
	metrics.CleanupDeletedTotal.WithLabelValues(prefix).Add(float64(n))
	logger.L().Info("cleanup_done", "prefix", prefix, "days", days, "deleted", n)
	return n, nil
}
