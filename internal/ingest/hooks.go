package ingest

import (
	"context"
	"time"

	"toilet-finder/internal/events"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/model"
)

// Indexer：入库成功后同步写入搜索索引，返回失败条数
type Indexer interface {
	IndexFacilities(ctx context.Context, fs []model.Facility) (int, error)
}

// Archiver：保存本次拉取的原始快照，返回对象 key
type Archiver interface {
	Archive(ctx context.Context, job string, at time.Time, fs []model.Facility) (string, error)
}

// Notifier：发布同步完成事件
type Notifier interface {
	Publish(ctx context.Context, ev events.Event) error
}

// Hooks：均为可选；失败只记录日志，不改变同步结果
type Hooks struct {
	Indexer  Indexer
	Archiver Archiver
	Notifier Notifier
}

func (h Hooks) afterPersist(ctx context.Context, job string, at time.Time, raw, valid []model.Facility) string {
	if h.Indexer != nil {
		if n, err := h.Indexer.IndexFacilities(ctx, valid); err != nil {
			logger.L().Warn("sync_index_error", "job", job, "err", err)
		} else if n > 0 {
			logger.L().Warn("sync_index_partial", "job", job, "failed", n)
		}
	}
	var key string
	if h.Archiver != nil {
		k, err := h.Archiver.Archive(ctx, job, at, raw)
		if err != nil {
			logger.L().Warn("sync_archive_error", "job", job, "err", err)
		}
		key = k
	}
	return key
}

func (h Hooks) notify(ctx context.Context, ev events.Event) {
	if h.Notifier == nil {
		return
	}
	if err := h.Notifier.Publish(ctx, ev); err != nil {
		logger.L().Warn("sync_notify_error", "job", ev.Job, "err", err)
	}
}
