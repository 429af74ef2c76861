package ingest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"

	"toilet-finder/internal/logger"
)

// Job：可被每日调度的同步任务
type Job interface {
	ScheduledSync(ctx context.Context) bool
	ScheduledCleanup(ctx context.Context, days int) int64
}

// Locker：跨副本互斥；未获取到锁时 ok 为 false
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(), ok bool, err error)
}

// nextDailyAt：下一个 hour:00（loc 时区），严格晚于 now
func nextDailyAt(now time.Time, loc *time.Location, hour int) time.Time {
	n := now.In(loc)
	t := time.Date(n.Year(), n.Month(), n.Day(), hour, 0, 0, 0, loc)
	if !t.After(n) {
		t = time.Date(n.Year(), n.Month(), n.Day()+1, hour, 0, 0, 0, loc)
	}
	return t
}

// Schedule：每日调度参数
type Schedule struct {
	Name        string
	Hour        int
	Location    *time.Location
	CleanupDays int
	Locker      Locker
	LockTTL     time.Duration
}

// StartDaily：后台协程每日运行 ScheduledSync 与 ScheduledCleanup，ctx 取消后退出
// 约束：配置了 Locker 时以 sync:lock:<name> 互斥，未抢到锁的副本跳过本轮
func StartDaily(ctx context.Context, s Schedule, job Job) {
	l := logger.L()
	if s.Location == nil {
		s.Location = time.UTC
	}
	go func() {
		for {
			next := nextDailyAt(time.Now(), s.Location, s.Hour)
			l.Info("schedule_next", "job", s.Name, "next", next)
			t := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				t.Stop()
				l.Info("schedule_stopped", "job", s.Name)
				return
			case <-t.C:
			}
			runOnce(ctx, s, job)
		}
	}()
}

func runOnce(ctx context.Context, s Schedule, job Job) {
	l := logger.L()
	if s.Locker != nil {
		release, ok, err := s.Locker.TryLock(ctx, "sync:lock:"+s.Name, s.LockTTL)
		if err != nil {
			l.Error("schedule_lock_error", "job", s.Name, "err", err)
			return
		}
		if !ok {
			l.Info("schedule_lock_busy", "job", s.Name)
			return
		}
		defer release()
	}
	l.Info("schedule_run", "job", s.Name)
	ran := job.ScheduledSync(ctx)
	deleted := job.ScheduledCleanup(ctx, s.CleanupDays)
	l.Info("schedule_done", "job", s.Name, "synced", ran, "cleaned", deleted)
}

// 仅删除自己持有的锁
var unlockScript = redis.NewScript(`if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`)

// RedisLocker：基于 SET NX PX 的锁，值为随机令牌
type RedisLocker struct {
	rc *redis.Client
}

func NewRedisLocker(rc *redis.Client) *RedisLocker { return &RedisLocker{rc: rc} }

func (r *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return nil, false, err
	}
	token := hex.EncodeToString(b)
	ok, err := r.rc.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	release := func() {
		// 父 ctx 可能已取消，释放使用独立超时
		c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := unlockScript.Run(c, r.rc, []string{key}, token).Err(); err != nil {
			logger.L().Warn("schedule_unlock_error", "key", key, "err", err)
		}
	}
	return release, true, nil
}
