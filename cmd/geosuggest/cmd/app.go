package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/geosuggest"
	"github.com/kailas-cloud/geosuggest/internal/config"
	dbRedis "github.com/kailas-cloud/geosuggest/internal/db/redis"
	"github.com/kailas-cloud/geosuggest/internal/domain/layer"
	"github.com/kailas-cloud/geosuggest/internal/repository/hosted"
	"github.com/kailas-cloud/geosuggest/internal/repository/memory"
	"github.com/kailas-cloud/geosuggest/internal/repository/packaged"
	"github.com/kailas-cloud/geosuggest/internal/transport/geocoder"
	healthuc "github.com/kailas-cloud/geosuggest/internal/usecase/health"
)

// app is the wired runtime shared by the subcommands.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *dbRedis.Store
	hosted   *hosted.Repo
	packages []*packaged.Store
	geocoder *geocoder.Client
	layers   *layer.StaticMap
	engine   *geosuggest.Engine
}

// connectStore opens the hosted layer store when one is configured.
func connectStore(ctx context.Context, cfg config.Config, logger *zap.Logger) (*dbRedis.Store, error) {
	if !cfg.Database.Enabled() {
		return nil, nil
	}
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Database.Addrs,
		Password: cfg.Database.Password,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s store: %w", cfg.Database.Driver, err)
	}
	timeout := time.Duration(cfg.Database.ReadinessTimeout) * time.Second
	if err := store.WaitForReady(ctx, timeout); err != nil {
		store.Close()
		return nil, fmt.Errorf("database not ready: %w", err)
	}
	logger.Info("Database connection established",
		zap.String("driver", cfg.Database.Driver),
		zap.Strings("addrs", cfg.Database.Addrs),
	)
	return store, nil
}

// newApp loads every layer source named by cfg and the optional dataset file,
// then builds the engine over them. Call close when done.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger, dataPath string) (*app, error) {
	configs, err := cfg.LayerConfigs()
	if err != nil {
		return nil, fmt.Errorf("layers: %w", err)
	}
	extent, err := cfg.Map.Extent()
	if err != nil {
		return nil, fmt.Errorf("map: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	var nodes []layer.Node

	a.store, err = connectStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	if a.store != nil {
		a.hosted = hosted.New(a.store, 0, logger.Named("hosted"))
		tree, err := a.hosted.LoadTree(ctx, cfg.Hosted.Services)
		if err != nil {
			return nil, fmt.Errorf("load hosted layers: %w", err)
		}
		nodes = append(nodes, tree...)
	}

	for _, p := range cfg.Packages {
		pkg, err := packaged.Open(p.Path, logger.Named("packaged"))
		if err != nil {
			return nil, fmt.Errorf("open package %s: %w", p.Path, err)
		}
		a.packages = append(a.packages, pkg)
		tree, err := pkg.LoadTree(ctx)
		if err != nil {
			return nil, fmt.Errorf("load package %s: %w", p.Path, err)
		}
		nodes = append(nodes, tree...)
	}

	if dataPath != "" {
		ds, err := readDataset(dataPath)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, ds.Tree()...)
	}

	a.layers = layer.NewStaticMap(extent, nodes...)

	opts := []geosuggest.Option{
		geosuggest.WithLogger(logger),
		geosuggest.WithCacheSize(cfg.Search.CacheSize),
		geosuggest.WithWarmPaging(cfg.Search.PageSize, cfg.Search.WarmPageTimeout()),
		geosuggest.WithQueryTimeout(cfg.Search.QueryTimeout()),
		geosuggest.WithLazyLoad(cfg.Search.LazyConcurrency, cfg.Search.LazyLimitPerField),
		geosuggest.WithLimits(cfg.Search.MaxSuggestions, cfg.Search.MaxResults),
		geosuggest.WithDebounce(cfg.Search.Debounce(), cfg.Search.MinChars),
	}
	if cfg.Geocoder.Enabled() {
		a.geocoder = geocoder.NewClient(&geocoder.Config{
			BaseURL:        cfg.Geocoder.BaseURL,
			APIKey:         cfg.Geocoder.APIKey,
			MaxSuggestions: cfg.Geocoder.MaxSuggestions,
			RatePerSec:     cfg.Geocoder.RatePerSec,
			Timeout:        cfg.Geocoder.Timeout(),
			Logger:         logger.Named("geocoder"),
		})
		opts = append(opts, geosuggest.WithGeocoder(a.geocoder, cfg.Geocoder.Country))
	}

	a.engine, err = geosuggest.New(a.layers, configs, opts...)
	if err != nil {
		return nil, fmt.Errorf("create engine: %w", err)
	}

	ok = true
	return a, nil
}

// health builds the health service over the engine and every backend.
func (a *app) health() *healthuc.Service {
	pingers := make(map[string]healthuc.Pinger, len(a.packages)+1)
	if a.store != nil {
		pingers["database"] = a.store
	}
	for _, p := range a.packages {
		pingers["package:"+p.Name()] = p
	}
	var gc healthuc.GeocoderChecker
	if a.geocoder != nil {
		gc = a.geocoder
	}
	return healthuc.New(a.engine, gc, pingers)
}

func (a *app) close() {
	if a.engine != nil {
		a.engine.Close()
	}
	for _, p := range a.packages {
		if err := p.Close(); err != nil {
			a.logger.Warn("Failed to close package", zap.String("package", p.Name()), zap.Error(err))
		}
	}
	if a.store != nil {
		a.store.Close()
	}
}

func readDataset(path string) (memory.Dataset, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return memory.Dataset{}, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	ds, err := memory.DecodeDataset(f)
	if err != nil {
		return memory.Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(ds.Services) == 0 {
		return memory.Dataset{}, errors.New(path + ": dataset has no services")
	}
	return ds, nil
}
