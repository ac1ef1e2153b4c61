package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/zeromicro/go-zero/core/logx"

	"refcache-api/internal/cli"
	"refcache-api/internal/config"
	"refcache-api/internal/svc"
)

const (
	runTimeout      = 30 * time.Minute // upper bound for one catalog or crossref run
	shutdownTimeout = 10 * time.Second // grace period for in-flight runs
)

var configFile = flag.String("f", "etc/refcache.yaml", "the config file")

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	logx.Must(err)
	logx.MustSetup(cfg.Log)
	defer logx.Close()

	cli.LogConfigSummary(cfg)
	svcCtx := svc.MustNewServiceContext(*cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	if len(cfg.Catalog.Lists) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			every(ctx, "catalog", cfg.Catalog.IntervalDuration(), func(ctx context.Context) {
				if _, err := svcCtx.Catalog.LoadCatalog(ctx); err != nil {
					logx.WithContext(ctx).Errorf("[catalog] run failed: %v", err)
				}
			})
		}()
	} else {
		logx.Info("[main] no catalog lists configured, catalog import disabled")
	}

	if len(cfg.Crossref.Isins) > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			every(ctx, "crossref", cfg.Crossref.IntervalDuration(), func(ctx context.Context) {
				if _, err := svcCtx.Catalog.RefreshCrossref(ctx, cfg.Crossref.Isins, false); err != nil {
					logx.WithContext(ctx).Errorf("[crossref] run failed: %v", err)
				}
			})
		}()
	} else {
		logx.Info("[main] no crossref watchlist configured, crossref refresh disabled")
	}

	logx.Info("[main] importer started")
	<-ctx.Done()
	logx.Info("[main] shutdown signal received, waiting for running jobs")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logx.Info("[main] all jobs stopped cleanly")
	case <-time.After(shutdownTimeout):
		logx.Info("[main] shutdown timeout exceeded, forcing exit")
	}
}

// every runs job immediately and then on each tick until ctx is cancelled.
func every(ctx context.Context, name string, interval time.Duration, job func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	run := func() {
		runCtx, cancel := context.WithTimeout(ctx, runTimeout)
		defer cancel()
		start := time.Now()
		job(runCtx)
		logx.Infof("[%s] run finished in %s", name, time.Since(start).Round(time.Millisecond))
	}

	run()
	for {
		select {
		case <-ctx.Done():
			logx.Infof("[%s] stopping", name)
			return
		case <-ticker.C:
			run()
		}
	}
}
