package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fernweh-site/fernweh/internal/cache"
	"github.com/fernweh-site/fernweh/internal/config"
	"github.com/fernweh-site/fernweh/internal/feed"
	"github.com/fernweh-site/fernweh/internal/metrics"
	"github.com/fernweh-site/fernweh/internal/region"
	"github.com/fernweh-site/fernweh/internal/relay"
	"github.com/fernweh-site/fernweh/internal/server"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the configuration file")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("Configuration failed")
	}
	log.SetLevel(cfg.Logging.ParseLevel())

	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("Server exited")
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openCache(cfg.Cache)
	if err != nil {
		return err
	}
	defer store.Close()
	log.WithField("backend", store.Backend()).Info("Cache ready")
	go purgeLoop(ctx, store, log)

	regions, watcher, err := openRegions(cfg.Regions, log)
	if err != nil {
		return err
	}
	if watcher != nil {
		defer watcher.Close()
	}

	m := metrics.New()
	pool := relay.NewPool(cfg.Relays.URLs, cfg.Relays.QueryTimeout(), log)
	feeds := feed.NewService(pool, regions, store, m, log, feed.Config{
		Authors:  cfg.Feed.Authors,
		PageSize: cfg.Feed.PageSize,
		CacheTTL: cfg.Feed.CacheTTL(),
	})

	srv := server.New(feeds, m, log)
	return srv.Start(ctx, cfg.Server.Addr)
}

func openCache(cfg config.CacheConfig) (cache.Store, error) {
	if cfg.Backend == "sqlite" {
		return cache.NewSQLite(cfg.Path, cfg.MaxEntries)
	}
	return cache.NewMemory(cfg.MaxEntries), nil
}

// openRegions loads the region descriptors and, when configured, keeps them
// hot-reloaded. No regions file means region filtering is simply unavailable.
func openRegions(cfg config.RegionsConfig, log *logrus.Logger) (*region.Set, *region.Watcher, error) {
	if cfg.Path == "" {
		return nil, nil, nil
	}
	descriptors, err := region.Load(cfg.Path)
	if err != nil {
		return nil, nil, err
	}
	set := region.NewSet(descriptors)
	log.WithField("regions", len(descriptors)).Info("Region descriptors loaded")

	if !cfg.Watch {
		return set, nil, nil
	}
	watcher, err := region.NewWatcher(set, cfg.Path, log)
	if err != nil {
		return nil, nil, err
	}
	return set, watcher, nil
}

// purgeLoop drops expired cache entries in the background.
func purgeLoop(ctx context.Context, store cache.Store, log *logrus.Logger) {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			dropped, err := store.Purge()
			if err != nil {
				log.WithError(err).Warn("Cache purge failed")
				continue
			}
			if dropped > 0 {
				log.WithField("dropped", dropped).Debug("Purged expired cache entries")
			}
		}
	}
}
