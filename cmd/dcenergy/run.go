package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/example/dc-energy/pkg/calculation"
	"github.com/example/dc-energy/pkg/config"
	"github.com/example/dc-energy/pkg/energymodel"
	"github.com/example/dc-energy/pkg/equipment"
	"github.com/example/dc-energy/pkg/history"
	"github.com/example/dc-energy/pkg/projectfile"
	"github.com/example/dc-energy/pkg/report"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

type options struct {
	configPath string
	logLevel   string
	redisAddr  string
}

// env is everything a subcommand needs, built from configuration and flags.
type env struct {
	cfg     config.Config
	logger  *zap.Logger
	store   energymodel.Store
	catalog *equipment.MemoryCatalog
	engine  *calculation.Engine
	history history.Store
	closers []func() error
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		_ = e.closers[i]()
	}
}

func loadConfig(opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.redisAddr != "" {
		cfg.Store.Backend = config.BackendRedis
		cfg.Store.Redis.Addr = opts.redisAddr
	}
	return cfg, cfg.Validate()
}

func setup(ctx context.Context, opts *options) (*env, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		return nil, err
	}
	e := &env{cfg: cfg, logger: logger}
	e.closers = append(e.closers, func() error {
		_ = logger.Sync()
		return nil
	})

	switch cfg.Store.Backend {
	case config.BackendRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		e.closers = append(e.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			e.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.Store.Redis.Addr, err)
		}
		prefix := cfg.Store.Redis.KeyPrefix
		e.store = energymodel.NewRedisStore(client, prefix, logger)
		if cfg.History.Enabled {
			e.history = history.NewRedisStore(client, prefix, cfg.History.Retention, logger)
		}
	default:
		e.store = energymodel.NewMemoryStore(logger)
		if cfg.History.Enabled {
			e.history = history.NewMemoryStore(cfg.History.Retention)
		}
	}
	logger.Debug("Store ready",
		zap.String("backend", cfg.Store.Backend),
		zap.Bool("history", e.history != nil))

	e.catalog, err = equipment.NewCatalog(cfg.Catalog.SeedFile, logger)
	if err != nil {
		e.Close()
		return nil, err
	}

	var engineOpts []calculation.Option
	if e.history != nil {
		engineOpts = append(engineOpts, calculation.WithRecorder(e.history))
	}
	e.engine, err = calculation.NewEngine(e.store, e.catalog, logger, engineOpts...)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.engine.Attach()
	return e, nil
}

// applyAll applies each definition and returns one report row per project.
func (e *env) applyAll(ctx context.Context, defs []*projectfile.Definition) ([]report.Row, error) {
	applier := projectfile.NewApplier(e.store, e.logger)

	rows := make([]report.Row, 0, len(defs))
	for _, def := range defs {
		p, err := applier.Apply(ctx, def)
		if err != nil {
			return nil, fmt.Errorf("applying %s: %w", def.Path, err)
		}
		rec, err := e.store.Load(ctx, p.ID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, report.NewRow(def.Datacenter.Name, rec))
	}
	return rows, nil
}

func runCalculate(ctx context.Context, opts *options, path string) error {
	def, err := projectfile.Load(path)
	if err != nil {
		return err
	}

	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.Close()

	applier := projectfile.NewApplier(e.store, e.logger)
	p, err := applier.Apply(ctx, def)
	if err != nil {
		return err
	}
	rec, err := e.store.Load(ctx, p.ID)
	if err != nil {
		return err
	}

	printProject(os.Stdout, def.Datacenter.Name, rec)
	return nil
}

func runReport(ctx context.Context, opts *options, dir string) error {
	defs, err := projectfile.LoadDir(dir)
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		return fmt.Errorf("no project files in %s", dir)
	}

	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.Close()

	rows, err := e.applyAll(ctx, defs)
	if err != nil {
		return err
	}
	printReport(os.Stdout, rows, report.Summarize(rows))
	return nil
}

func runCatalog(opts *options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	logger, err := cfg.Log.BuildLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	catalog, err := equipment.NewCatalog(cfg.Catalog.SeedFile, logger)
	if err != nil {
		return err
	}
	printCatalog(os.Stdout, catalog.Rows())
	return nil
}

func runHistory(ctx context.Context, opts *options, projectID string, since time.Duration) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.Close()

	if e.history == nil {
		return errors.New("history is disabled in the configuration")
	}
	snaps, err := e.history.Since(ctx, projectID, time.Now().Add(-since))
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		return fmt.Errorf("project %s: %w", projectID, history.ErrNoHistory)
	}
	printHistory(os.Stdout, snaps)
	return nil
}

// summaryRows loads the current records of every tracked project.
func (e *env) summaryRows(ctx context.Context, w *projectfile.Watcher) ([]report.Row, error) {
	projects := w.Projects()
	rows := make([]report.Row, 0, len(projects))
	for _, p := range projects {
		rec, err := e.store.Load(ctx, p.ProjectID)
		if err != nil {
			return nil, err
		}
		rows = append(rows, report.NewRow(p.Definition.Datacenter.Name, rec))
	}
	return rows, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (e *env) serveMux(w *projectfile.Watcher) *http.ServeMux {
	mux := http.NewServeMux()
	calculation.RegisterMetrics(mux)
	mux.HandleFunc("/health", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
		_, _ = rw.Write([]byte("OK"))
	})
	mux.HandleFunc("/portfolio-summary", func(rw http.ResponseWriter, r *http.Request) {
		rows, err := e.summaryRows(r.Context(), w)
		if err != nil {
			e.logger.Error("Failed to build portfolio summary", zap.Error(err))
			writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, report.Summarize(rows))
	})
	mux.HandleFunc("/history", func(rw http.ResponseWriter, r *http.Request) {
		if e.history == nil {
			writeJSON(rw, http.StatusNotFound, map[string]string{"error": "history is disabled"})
			return
		}
		projectID := r.URL.Query().Get("project")
		if projectID == "" {
			writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "project is required"})
			return
		}
		window := 24 * time.Hour
		if v := r.URL.Query().Get("since"); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil || d <= 0 {
				writeJSON(rw, http.StatusBadRequest, map[string]string{"error": "invalid since duration"})
				return
			}
			window = d
		}
		snaps, err := e.history.Since(r.Context(), projectID, time.Now().Add(-window))
		if err != nil {
			writeJSON(rw, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(rw, http.StatusOK, snaps)
	})
	return mux
}

func runServe(ctx context.Context, opts *options, dir, addr string, reload time.Duration) error {
	e, err := setup(ctx, opts)
	if err != nil {
		return err
	}
	defer e.Close()

	w := projectfile.NewWatcher(dir, projectfile.NewApplier(e.store, e.logger), e.logger)
	n, err := w.Sync(ctx)
	if err != nil {
		if n == 0 {
			return err
		}
		e.logger.Warn("Some project files could not be applied", zap.Error(err))
	}

	if addr == "" {
		addr = e.cfg.Metrics.Addr
	}
	if reload < 0 {
		reload = e.cfg.Serve.ReloadInterval
	}
	if reload > 0 {
		go func() {
			_ = w.Run(ctx, reload)
		}()
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           e.serveMux(w),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		e.logger.Info("Shutting down metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	e.logger.Info("Serving project metrics",
		zap.String("addr", addr),
		zap.Int("projects", len(w.Projects())),
		zap.Duration("reload", reload))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %w", err)
	}
	return nil
}
