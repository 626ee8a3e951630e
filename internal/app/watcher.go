package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samvad-hq/campaign-desk/internal/config"
	"github.com/samvad-hq/campaign-desk/internal/logger"
	"github.com/samvad-hq/campaign-desk/internal/storage"
	"github.com/samvad-hq/campaign-desk/internal/watch"
	"github.com/samvad-hq/campaign-desk/pkg/publishers"
	"github.com/samvad-hq/campaign-desk/pkg/targets"
)

// Watcher is the campaign watcher runtime. It owns the poll loop, the
// publisher fan-out and the revision store.
type Watcher struct {
	cfg      *config.Config
	fanout   *publishers.Fanout
	service  *watch.Service
	interval time.Duration
	log      logger.Logger
	store    storage.Store
}

// NewWatcher builds a watcher runtime from config files.
func NewWatcher(ctx context.Context, cfg *config.Config, log logger.Logger) (*Watcher, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = &logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	if err := targets.Load(cfg.TargetsFile); err != nil {
		return nil, fmt.Errorf("load targets registry: %w", err)
	}
	log.InfoObj("targets registry loaded", "targets_meta", targetSummary(targets.All()))

	publisherReg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabledPublishers := publisherReg.Enabled()
	if len(enabledPublishers) == 0 {
		return nil, fmt.Errorf("no publishers configured")
	}

	pubClients, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabledPublishers, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}
	fanout := publishers.NewFanout(pubClients)
	publisherSummaries := make([]map[string]string, 0, len(enabledPublishers))
	for _, pubCfg := range enabledPublishers {
		publisherSummaries = append(publisherSummaries, map[string]string{
			"id":   pubCfg.ID,
			"type": pubCfg.Type,
		})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(publisherSummaries),
		"publishers": publisherSummaries,
	})

	store, err := storage.NewStore(cfg.StorageType, cfg.BBoltPath, storage.Options{
		RevisionTTL:     cfg.StorageTTL,
		CleanupInterval: cfg.StorageCleanupInterval,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("init storage: %w", err), fanout.Close())
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type":                     cfg.StorageType,
		"path":                     cfg.BBoltPath,
		"revision_ttl_seconds":     int(cfg.StorageTTL.Seconds()),
		"cleanup_interval_seconds": int(cfg.StorageCleanupInterval.Seconds()),
	})

	return &Watcher{
		cfg:      cfg,
		fanout:   fanout,
		service:  watch.NewService(store, fanout, watch.WithLogger(log)),
		interval: cfg.WatchInterval,
		log:      log,
		store:    store,
	}, nil
}

// Run polls until ctx is cancelled, then releases publishers and storage.
func (w *Watcher) Run(ctx context.Context) error {
	if w == nil || w.service == nil {
		return fmt.Errorf("watcher is not initialized")
	}
	defer w.close()

	w.log.InfoObj("watcher loop starting", "watcher_state", map[string]any{
		"targets_count":    len(targets.All()),
		"publishers_count": w.fanout.Size(),
		"watch_interval":   w.interval.String(),
	})

	if err := w.RunOnce(ctx); err != nil {
		w.log.ErrorObj("initial watch pass failed", "error", err.Error())
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.InfoObj("watcher loop exiting", "reason", ctx.Err().Error())
			return nil
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.log.ErrorObj("scheduled watch pass failed", "error", err.Error())
			}
		}
	}
}

// RunOnce re-reads the targets file and performs one watch pass. A targets
// file that fails to load keeps the previously loaded targets.
func (w *Watcher) RunOnce(ctx context.Context) error {
	if err := targets.Load(w.cfg.TargetsFile); err != nil {
		w.log.WarnObj("targets reload failed; keeping previous targets", "targets_file", map[string]any{
			"path":  w.cfg.TargetsFile,
			"error": err.Error(),
		})
	}
	tgts := targets.All()

	start := time.Now()
	w.log.InfoObj("watch pass started", "watch_meta", map[string]any{
		"targets_count": len(tgts),
		"started_at":    start.UTC(),
	})
	if err := w.service.Run(ctx, tgts); err != nil {
		return err
	}
	w.log.InfoObj("watch pass completed", "watch_meta", map[string]any{
		"targets_count": len(tgts),
		"elapsed_ms":    time.Since(start).Milliseconds(),
	})
	return nil
}

func (w *Watcher) close() {
	if err := w.fanout.Close(); err != nil {
		w.log.ErrorObj("publishers close failed", "error", err.Error())
	}
	if w.store == nil {
		return
	}
	if err := w.store.Close(); err != nil {
		w.log.ErrorObj("storage close failed", "error", err.Error())
	}
}

func targetSummary(tgts []targets.Target) map[string]any {
	ids := make([]string, 0, len(tgts))
	for _, t := range tgts {
		ids = append(ids, t.ID)
	}
	return map[string]any{"count": len(ids), "ids": ids}
}
