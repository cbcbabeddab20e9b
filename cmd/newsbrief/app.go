package main

import (
	"fmt"

	"go.uber.org/zap"

	"newsbrief/internal/config"
	"newsbrief/internal/discovery"
	"newsbrief/internal/extractor"
	"newsbrief/internal/fetch"
	"newsbrief/internal/langdetect"
	"newsbrief/internal/pipeline"
	"newsbrief/internal/queue"
	"newsbrief/internal/store"
	"newsbrief/internal/summarizer"
)

// storeMode says whether a command needs article bodies. The hybrid store
// opened without Badger leaves the data directory lock to the worker.
type storeMode int

const (
	clientMode storeMode = iota
	fullMode
)

func openStore(cfg config.Config, mode storeMode) (store.Store, error) {
	switch cfg.Store.Driver {
	case config.DriverSQLite:
		return store.NewSQLStore(cfg.Store.SQLitePath)
	case config.DriverHybrid:
		badgerPath := cfg.Store.BadgerPath
		if mode == clientMode {
			badgerPath = ""
		}
		return store.NewHybridStore(cfg.Store.RedisAddr, badgerPath)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

func openQueue(cfg config.Config) (*queue.RedisQueue, error) {
	return queue.Dial(cfg.Queue.RedisAddr, cfg.Queue.Key)
}

// components is everything the worker and the inline commands share.
type components struct {
	orchestrator *pipeline.Orchestrator
	engines      *summarizer.Factory
}

func buildComponents(cfg config.Config, st store.Store, q pipeline.Enqueuer, logger *zap.Logger) (*components, error) {
	client := fetch.New(cfg.HTTP.Timeout, cfg.HTTP.UserAgent)

	registry := discovery.NewRegistry()
	registry.Register(config.KindListing, discovery.NewHTMLDiscoverer(client, logger))
	registry.Register(config.KindFeed, discovery.NewFeedDiscoverer(client, logger))

	engines, err := summarizer.NewFactory(cfg.Summarizer, logger)
	if err != nil {
		return nil, fmt.Errorf("summarizer: %w", err)
	}

	orch := pipeline.New(pipeline.Deps{
		Store:       st,
		Discoverers: registry,
		Extractor:   extractor.NewDefault(client, logger),
		Detector:    langdetect.New(),
		Queue:       q,
		Logger:      logger,
	}, cfg)

	return &components{orchestrator: orch, engines: engines}, nil
}

// newEngine adapts the factory to the worker's EngineFactory.
func (c *components) newEngine() pipeline.Summarizer {
	return c.engines.New()
}
