package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
)

// mockWriter 记录写入的消息
type mockWriter struct {
	msgs []kafka.Message
	err  error
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if m.err != nil {
		return m.err
	}
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error { return nil }

func TestPublish(t *testing.T) {
	w := &mockWriter{}
	p := NewPublisher(w)
	at := time.Date(2024, 5, 1, 3, 0, 0, 0, time.UTC)
	if err := p.Publish(context.Background(), Event{Job: "overpass", Success: true, Total: 3, Saved: 2, Updated: 1, At: at}); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d; want 1", len(w.msgs))
	}
	m := w.msgs[0]
	if string(m.Key) != "overpass" || !m.Time.Equal(at) {
		t.Fatalf("message key/time = %q/%v", m.Key, m.Time)
	}
	var ev Event
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != TypeSyncFinished || ev.Saved != 2 || ev.Updated != 1 {
		t.Fatalf("decoded event = %+v", ev)
	}
	if len(m.Headers) != 1 || string(m.Headers[0].Value) != TypeSyncFinished {
		t.Fatalf("headers = %+v", m.Headers)
	}
}

func TestPublishError(t *testing.T) {
	boom := errors.New("broker down")
	p := NewPublisher(&mockWriter{err: boom})
	if err := p.Publish(context.Background(), Event{Job: "tokyo"}); !errors.Is(err, boom) {
		t.Fatalf("Publish() error = %v; want wrapped %v", err, boom)
	}
}
