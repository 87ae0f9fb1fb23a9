package calculation

import (
	"context"
	"fmt"
	"time"

	"github.com/example/dc-energy/pkg/energymodel"
	"github.com/example/dc-energy/pkg/equipment"
	"github.com/example/dc-energy/pkg/history"
	"go.uber.org/zap"
)

// Engine recomputes every derived figure of a project from its inputs and
// configurations. One pass runs the whole pipeline inside a single store
// update, so readers never observe a partially recomputed project.
type Engine struct {
	store    energymodel.Store
	catalog  equipment.Catalog
	steps    []Step
	recorder history.Recorder
	locks    *energymodel.ProjectLocks
	logger   *zap.Logger
	now      func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithPipeline replaces the default step list.
func WithPipeline(steps []Step) Option {
	return func(e *Engine) {
		e.steps = steps
	}
}

// WithRecorder records a PUE snapshot after every pass that changed a value.
func WithRecorder(r history.Recorder) Option {
	return func(e *Engine) {
		e.recorder = r
	}
}

// NewEngine creates an engine over store and catalog.
func NewEngine(store energymodel.Store, catalog equipment.Catalog, logger *zap.Logger, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:   store,
		catalog: catalog,
		steps:   DefaultPipeline(),
		locks:   energymodel.NewProjectLocks(),
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := validatePipeline(e.steps); err != nil {
		return nil, fmt.Errorf("invalid calculation pipeline: %w", err)
	}
	return e, nil
}

// Steps lists the pipeline step names in execution order.
func (e *Engine) Steps() []string {
	names := make([]string, len(e.steps))
	for i, s := range e.steps {
		names[i] = s.Name
	}
	return names
}

// Attach subscribes the engine to the store so every persisted change to a
// project triggers a recalculation of that project, and a deleted project
// takes its exported PUE and recorded history with it.
func (e *Engine) Attach() {
	e.store.OnSave(func(ctx context.Context, projectID string, kinds []energymodel.Kind) error {
		e.logger.Debug("Project saved", zap.String("project", projectID), zap.Any("kinds", kinds))
		return e.Recalculate(ctx, projectID)
	})
	e.store.OnDelete(e.Forget)
}

// Forget drops the per-project state the engine keeps outside the store.
func (e *Engine) Forget(ctx context.Context, projectID string) error {
	recordPUE(projectID, "input", nil)
	recordPUE(projectID, "calculated", nil)

	if e.recorder != nil {
		if err := e.recorder.Delete(ctx, projectID); err != nil {
			return fmt.Errorf("forgetting project %s: %w", projectID, err)
		}
	}
	e.logger.Debug("Forgot deleted project", zap.String("project", projectID))
	return nil
}

type passKey struct{}

type passMarker struct {
	projectID string
	parent    *passMarker
}

func withPass(ctx context.Context, projectID string) context.Context {
	parent, _ := ctx.Value(passKey{}).(*passMarker)
	return context.WithValue(ctx, passKey{}, &passMarker{projectID: projectID, parent: parent})
}

func inPass(ctx context.Context, projectID string) bool {
	m, _ := ctx.Value(passKey{}).(*passMarker)
	for ; m != nil; m = m.parent {
		if m.projectID == projectID {
			return true
		}
	}
	return false
}

// Recalculate runs the pipeline for one project. Calls made while a pass for
// the same project is already on ctx return immediately, which is how the
// engine's own writes end the save hook chain.
func (e *Engine) Recalculate(ctx context.Context, projectID string) error {
	if inPass(ctx, projectID) {
		recalculationsTotal.WithLabelValues("reentrant").Inc()
		return nil
	}
	ctx = withPass(ctx, projectID)

	unlock := e.locks.Lock(projectID)
	defer unlock()

	logger := e.logger.With(zap.String("project", projectID))
	start := time.Now()

	var p *pass
	err := e.store.Update(ctx, projectID, func(rec *energymodel.Records) error {
		p = &pass{ctx: ctx, rec: rec, catalog: e.catalog, logger: logger}
		return e.run(p)
	})
	if err != nil {
		recalculationsTotal.WithLabelValues("failed").Inc()
		logger.Error("Recalculation failed", zap.Error(err))
		return fmt.Errorf("recalculating project %s: %w", projectID, err)
	}

	for kind, n := range p.written {
		fieldWritesTotal.WithLabelValues(string(kind)).Add(float64(n))
	}

	result := p.rec.Result.Calculated
	recordPUE(projectID, "input", result.PUEInput)
	recordPUE(projectID, "calculated", result.PUE)

	outcome := "updated"
	if p.writes == 0 {
		outcome = "unchanged"
	}
	recalculationsTotal.WithLabelValues(outcome).Inc()

	if e.recorder != nil && p.writes > 0 {
		snap := history.NewSnapshot(projectID, p.rec.Result, e.now().UTC())
		if err := e.recorder.Record(ctx, snap); err != nil {
			logger.Warn("Failed to record PUE snapshot", zap.Error(err))
		}
	}

	logger.Info("Recalculated project",
		zap.Int("writes", p.writes),
		zap.Strings("skipped", p.skipped),
		zap.Duration("duration", time.Since(start)))
	return nil
}

func (e *Engine) run(p *pass) error {
	for _, s := range e.steps {
		if err := p.ctx.Err(); err != nil {
			return err
		}

		if missing, ok := unmet(s, p.rec); !ok {
			level := zap.WarnLevel
			if missing == s.Requires[0] && missing.subsystem() {
				// The step's own subsystem is simply not installed.
				level = zap.DebugLevel
			}
			if ce := p.logger.Check(level, "Skipping calculation step"); ce != nil {
				ce.Write(zap.String("step", s.Name), zap.String("missing", string(missing)))
			}
			e.skipped(p, s, "missing_"+string(missing))
			if s.OnSkip != nil {
				s.OnSkip(p, missing)
			}
			continue
		}

		err := s.Run(p)
		if se, ok := asSkip(err); ok {
			p.logger.Warn("Skipping calculation step",
				zap.String("step", s.Name),
				zap.String("reason", se.reason),
				zap.NamedError("cause", se.err))
			e.skipped(p, s, se.reason)
			continue
		}
		if err != nil {
			return fmt.Errorf("step %s: %w", s.Name, err)
		}
	}
	return nil
}

func (e *Engine) skipped(p *pass, s Step, reason string) {
	stepSkipsTotal.WithLabelValues(s.Name, reason).Inc()
	p.skipped = append(p.skipped, s.Name)
}

func unmet(s Step, rec *energymodel.Records) (Requirement, bool) {
	for _, r := range s.Requires {
		if !r.met(rec) {
			return r, false
		}
	}
	return "", true
}
