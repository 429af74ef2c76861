// 程序入口：仅负责读取配置、初始化依赖并启动服务；API 注册在 internal/api 以便扩展
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"toilet-finder/internal/api"
	"toilet-finder/internal/config"
	"toilet-finder/internal/geoip"
	"toilet-finder/internal/ingest"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/metrics"
	"toilet-finder/internal/middleware"
	"toilet-finder/internal/migrate"
	"toilet-finder/internal/overpass"
	"toilet-finder/internal/query"
	"toilet-finder/internal/repository"
	"toilet-finder/internal/store"
	"toilet-finder/internal/tokyo"
	"toilet-finder/internal/utils"
)

func main() {
	// 日志初始化
	l := logger.Setup()
	l.Debug("log_init_ok")
	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		l.Error("server_exit", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	l := logger.L()
	started := time.Now()
	l.Debug("config_api_base", "base", cfg.APIBase, "backend", cfg.Backend)

	db, err := utils.OpenPostgres(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	l.Info("db_open_ok")
	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	if err := db.PingContext(pctx); err != nil {
		l.Error("db_ping_error", "err", err)
	} else {
		l.Info("db_ping_ok")
	}
	cancel()
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		l.Error("schema_error", "err", err)
		return err
	}
	st := store.AttachDB(db)

	rc := utils.OpenRedis(cfg.Redis)
	if rc == nil {
		l.Info("redis_disabled")
	} else {
		defer rc.Close()
		if err := rc.Ping(ctx).Err(); err != nil {
			l.Error("redis_ping_error", "err", err)
		} else {
			l.Info("redis_ping_ok")
		}
	}

	ov := overpass.New(overpass.OptionsFromConfig(cfg.Overpass))
	tk := tokyo.New(tokyo.OptionsFromConfig(cfg.Tokyo))
	sinks := utils.OpenSinks(ctx, cfg)
	defer sinks.Close()

	deps := repository.Deps{Store: st, Tokyo: tk, Overpass: ov}
	if sinks.Index != nil {
		deps.Search = sinks.Index
	}
	repo, err := repository.Select(cfg.Backend, deps)
	if err != nil {
		return err
	}

	// 背景：坐标缺省时按客户端 IP 估算中心点；库文件缺失不影响启动
	var locator api.Locator
	if cfg.GeoIP.Path != "" {
		if g, err := geoip.Open(cfg.GeoIP.Path); err != nil {
			l.Error("geoip_open_error", "path", cfg.GeoIP.Path, "err", err)
		} else {
			defer g.Close()
			locator = g
			l.Info("geoip_ready", "path", cfg.GeoIP.Path)
		}
	}

	hooks := sinks.Hooks()
	orch := ingest.NewOrchestrator(ov, st, hooks, cfg.Sync.FreshnessWindow)
	feed := ingest.NewFeedSync(tk, st, hooks)
	if cfg.Sync.Enabled {
		tz, _ := time.LoadLocation(cfg.Sync.TZ)
		var locker ingest.Locker
		if rc != nil {
			locker = ingest.NewRedisLocker(rc)
		}
		for name, job := range map[string]ingest.Job{ingest.JobOverpass: orch, ingest.JobTokyo: feed} {
			ingest.StartDaily(ctx, ingest.Schedule{
				Name:        name,
				Hour:        cfg.Sync.Hour,
				Location:    tz,
				CleanupDays: cfg.Sync.CleanupDays,
				Locker:      locker,
				LockTTL:     cfg.Sync.LockTTL,
			}, job)
		}
	} else {
		l.Info("schedule_disabled")
	}

	var cache api.Cache
	if rc != nil {
		cache = api.NewRedisCache(rc)
	}
	apiMux := api.BuildRoutes(api.Deps{
		Nearest:        query.NewService(repo),
		Finder:         repo,
		Overpass:       orch,
		Tokyo:          feed,
		Cache:          cache,
		CacheTTL:       cfg.Redis.CacheTTL,
		Locator:        locator,
		AreaMaxResults: cfg.Sync.AreaMaxResults,
		Started:        started,
	})
	base := strings.TrimRight(cfg.APIBase, "/")
	mux := http.NewServeMux()
	mux.Handle(base+"/metrics", metrics.Handler())
	mux.Handle(base+"/", http.StripPrefix(base, apiMux))
	mux.Handle("/health", api.Health(started))

	handler := logger.AccessMiddleware(l)(mux)
	handler = middleware.Wrap(handler, cfg.RateLimit)
	s := &http.Server{Addr: cfg.Addr, Handler: handler, ReadHeaderTimeout: 10 * time.Second}

	errc := make(chan error, 1)
	go func() {
		l.Info("listening", "addr", cfg.Addr, "base", base)
		errc <- s.ListenAndServe()
	}()
	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	l.Info("shutdown_begin")
	sctx, scancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer scancel()
	if err := s.Shutdown(sctx); err != nil {
		return err
	}
	l.Info("shutdown_ok")
	return nil
}
