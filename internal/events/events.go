// 包 events：同步完成事件发布到 Kafka，供下游（缓存失效、报表）订阅
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"toilet-finder/internal/logger"
)

const TypeSyncFinished = "sync.finished"

// Event：一次同步运行的结果摘要；以 Job 作为消息 key，同一任务的事件落在同一分区
type Event struct {
	Type       string    `json:"type"`
	Job        string    `json:"job"`
	Success    bool      `json:"success"`
	Message    string    `json:"message,omitempty"`
	Total      int       `json:"total"`
	Saved      int       `json:"saved"`
	Updated    int       `json:"updated"`
	Failed     int       `json:"failed"`
	DurationMs int64     `json:"durationMs"`
	Snapshot   string    `json:"snapshot,omitempty"`
	At         time.Time `json:"at"`
}

// Writer：kafka.Writer 的最小子集，测试中可替换
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Publisher struct {
	w Writer
}

// NewKafka：按 broker 列表与 topic 构建异步关闭的写入器
func NewKafka(brokers []string, topic string) *Publisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		BatchTimeout:           100 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return &Publisher{w: w}
}

func NewPublisher(w Writer) *Publisher { return &Publisher{w: w} }

// Publish：序列化并写入一条事件
func (p *Publisher) Publish(ctx context.Context, ev Event) error {
	if ev.Type == "" {
		ev.Type = TypeSyncFinished
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(ev.Job),
		Value: b,
		Time:  ev.At,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(ev.Type)},
		},
	}
	if err := p.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", ev.Type, err)
	}
	logger.L().Debug("event_published", "type", ev.Type, "job", ev.Job)
	return nil
}

func (p *Publisher) Close() error { return p.w.Close() }
