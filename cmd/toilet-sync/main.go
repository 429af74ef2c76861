// toilet-sync：一次性同步与清理工具，供 cron 或运维手动执行；结果以 JSON 输出到标准输出
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"toilet-finder/internal/config"
	"toilet-finder/internal/ingest"
	"toilet-finder/internal/logger"
	"toilet-finder/internal/migrate"
	"toilet-finder/internal/model"
	"toilet-finder/internal/overpass"
	"toilet-finder/internal/store"
	"toilet-finder/internal/tokyo"
	"toilet-finder/internal/utils"
)

// parseArea：<name>:<south>,<west>,<north>,<east>
func parseArea(s string) (string, model.BBox, error) {
	name, coords, found := strings.Cut(s, ":")
	parts := strings.Split(coords, ",")
	if !found || strings.TrimSpace(name) == "" || len(parts) != 4 {
		return "", model.BBox{}, fmt.Errorf("area %q: want name:south,west,north,east", s)
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return "", model.BBox{}, fmt.Errorf("area %q: %w", s, err)
		}
		v[i] = f
	}
	b := model.BBox{South: v[0], West: v[1], North: v[2], East: v[3]}
	if !b.Valid() {
		return "", model.BBox{}, fmt.Errorf("area %q: need north > south and east > west", s)
	}
	return strings.TrimSpace(name), b, nil
}

func main() {
	job := flag.String("job", ingest.JobOverpass, "sync job: overpass or tokyo")
	area := flag.String("area", "", "overpass only: sync one area, name:south,west,north,east")
	maxResults := flag.Int("max", 0, "overpass area: max results (default from config)")
	cleanupDays := flag.Int("cleanup", 0, "delete this job's rows older than N days instead of syncing")
	flag.Parse()

	l := logger.Setup()
	cfg, err := config.Load()
	if err != nil {
		l.Error("config_error", "err", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg, *job, *area, *maxResults, *cleanupDays); err != nil {
		l.Error("toilet_sync_failed", "job", *job, "err", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, job, area string, maxResults, cleanupDays int) error {
	l := logger.L()
	db, err := utils.OpenPostgres(cfg.Postgres)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := migrate.EnsureSchema(ctx, db); err != nil {
		return err
	}
	st := store.AttachDB(db)
	sinks := utils.OpenSinks(ctx, cfg)
	defer sinks.Close()
	hooks := sinks.Hooks()

	var res ingest.Result
	switch job {
	case ingest.JobOverpass:
		o := ingest.NewOrchestrator(overpass.New(overpass.OptionsFromConfig(cfg.Overpass)), st, hooks, cfg.Sync.FreshnessWindow)
		if cleanupDays > 0 {
			return report(o.Cleanup(ctx, cleanupDays))
		}
		if area != "" {
			name, b, err := parseArea(area)
			if err != nil {
				return err
			}
			if maxResults <= 0 {
				maxResults = cfg.Sync.AreaMaxResults
			}
			res = o.SyncArea(ctx, name, b, maxResults)
		} else {
			res = o.SyncAll(ctx)
		}
	case ingest.JobTokyo:
		f := ingest.NewFeedSync(tokyo.New(tokyo.OptionsFromConfig(cfg.Tokyo)), st, hooks)
		if cleanupDays > 0 {
			return report(f.Cleanup(ctx, cleanupDays))
		}
		res = f.Sync(ctx)
	default:
		return fmt.Errorf("unknown job %q", job)
	}
	if err := json.NewEncoder(os.Stdout).Encode(res); err != nil {
		return err
	}
	l.Info("toilet_sync_done", "job", job, "success", res.Success, "message", res.Message)
	if !res.Success {
		return fmt.Errorf("sync %s: %s", job, res.Error)
	}
	return nil
}

func report(deleted int64, err error) error {
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(map[string]int64{"deletedCount": deleted})
}
