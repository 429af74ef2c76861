package utils

import (
	"context"
	"time"

	"toilet-finder/internal/archive"
	"toilet-finder/internal/config"
	"toilet-finder/internal/events"
	"toilet-finder/internal/ingest"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/search"
)

// Sinks：同步完成后的可选下游，未配置或连接失败的为 nil
type Sinks struct {
	Index   *search.Index
	Events  *events.Publisher
	Archive *archive.Store
}

// 文档注释：按配置打开搜索索引、事件流与快照归档
// 背景：三者都只是附加输出，任何一个不可用都不应阻止服务启动；失败仅记录日志。
// 约束：ES_URL、KAFKA_BROKERS、S3_ENDPOINT 为空即视为未启用。
func OpenSinks(ctx context.Context, c config.Config) Sinks {
	l := logger.L()
	var s Sinks
	if c.Elastic.URL != "" {
		idx, err := search.Open(c.Elastic.URL, c.Elastic.Index)
		if err == nil {
			cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err = idx.EnsureIndex(cctx)
			cancel()
		}
		if err != nil {
			l.Error("es_open_error", "url", c.Elastic.URL, "err", err)
		} else {
			s.Index = idx
			l.Info("es_ready", "index", c.Elastic.Index)
		}
	}
	if len(c.Kafka.Brokers) > 0 {
		s.Events = events.NewKafka(c.Kafka.Brokers, c.Kafka.Topic)
		l.Info("kafka_ready", "brokers", c.Kafka.Brokers, "topic", c.Kafka.Topic)
	}
	if c.S3.Endpoint != "" {
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		arc, err := archive.Open(cctx, c.S3)
		cancel()
		if err != nil {
			l.Error("archive_open_error", "endpoint", c.S3.Endpoint, "err", err)
		} else {
			s.Archive = arc
		}
	}
	return s
}

// Hooks：仅填入已打开的下游，避免接口持有 nil 指针
func (s Sinks) Hooks() ingest.Hooks {
	var h ingest.Hooks
	if s.Index != nil {
		h.Indexer = s.Index
	}
	if s.Events != nil {
		h.Notifier = s.Events
	}
	if s.Archive != nil {
		h.Archiver = s.Archive
	}
	return h
}

func (s Sinks) Close() {
	if s.Events != nil {
		if err := s.Events.Close(); err != nil {
			logger.L().Warn("kafka_close_error", "err", err)
		}
	}
}
