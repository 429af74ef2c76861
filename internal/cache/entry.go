// 包 cache：进程内缓存原语。Entry 记录取数时间，新鲜度由纯函数 IsStale 判定
package cache

import "time"

// Entry：缓存值及其取数时间
type Entry[V any] struct {
	Value     V
	FetchedAt time.Time
}

func NewEntry[V any](v V, at time.Time) *Entry[V] {
	return &Entry[V]{Value: v, FetchedAt: at}
}

// IsStale：nil 视为过期；now-FetchedAt >= window 视为过期
func IsStale[V any](e *Entry[V], now time.Time, window time.Duration) bool {
	if e == nil {
		return true
	}
	return now.Sub(e.FetchedAt) >= window
}
