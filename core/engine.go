package core

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/signalsfoundry/spacecraft-simulator/core/relative"
	"github.com/signalsfoundry/spacecraft-simulator/core/scheduler"
	"github.com/signalsfoundry/spacecraft-simulator/core/telemetry"
	"github.com/signalsfoundry/spacecraft-simulator/internal/logging"
	"github.com/signalsfoundry/spacecraft-simulator/kb"
	"github.com/signalsfoundry/spacecraft-simulator/model"
	"github.com/signalsfoundry/spacecraft-simulator/timectrl"
)

const tracerName = "github.com/signalsfoundry/spacecraft-simulator/core"

// MetricsRecorder receives per-tick measurements from the engine.
type MetricsRecorder interface {
	ObserveStep(d time.Duration)
	SetSpacecraftCount(n int)
	SetDisturbanceTorque(spacecraft, disturbance string, norm float64)
	SetRelativeDistance(target, reference string, distance float64)
	ForgetSpacecraft(name string)
}

// EngineOption customises an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger. The default drops everything.
func WithLogger(l logging.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m MetricsRecorder) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// WithSchedulerRecorder observes every component execution.
func WithSchedulerRecorder(r scheduler.ExecutionRecorder) EngineOption {
	return func(e *Engine) { e.schedOpts = append(e.schedOpts, scheduler.WithRecorder(r)) }
}

// WithTelemetry writes a CSV row to w on every log tick.
func WithTelemetry(w io.Writer) EngineOption {
	return func(e *Engine) {
		if w != nil {
			e.sink = telemetry.NewSink(w)
		}
	}
}

// WithMode selects real-time or accelerated pacing. Accelerated is the default.
func WithMode(m timectrl.Mode) EngineOption {
	return func(e *Engine) { e.mode = m }
}

// Engine steps every spacecraft of a scenario on the base tick. Per tick
// it advances the clock, refreshes environment and disturbances, runs the
// component scheduler, propagates dynamics, recomputes relative states and
// writes telemetry when a log tick is due.
type Engine struct {
	mu sync.Mutex

	scenario model.Scenario
	mode     timectrl.Mode

	clock     *timectrl.TimeController
	arena     *kb.KnowledgeBase
	scheduler *scheduler.Scheduler
	schedOpts []scheduler.Option
	tracker   *relative.Tracker

	spacecraft map[int]*Spacecraft

	sink        *telemetry.Sink
	headerDirty bool

	log     logging.Logger
	metrics MetricsRecorder
	tracer  trace.Tracer

	tickListeners []func(int64)
}

// NewEngine builds an engine for sc. Construction is fail-fast: the first
// invalid spacecraft, component or disturbance aborts it.
func NewEngine(ctx context.Context, sc model.Scenario, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		scenario:   sc,
		mode:       timectrl.Accelerated,
		spacecraft: make(map[int]*Spacecraft),
		log:        logging.Noop(),
		tracer:     otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}

	ctx, span := e.tracer.Start(ctx, "engine.New", trace.WithAttributes(
		attribute.String("scenario", sc.Name),
		attribute.Int("spacecraft", len(sc.Spacecraft)),
	))
	defer span.End()

	clock, err := timectrl.NewTimeController(sc.StartTime, sc.StepWidth, e.mode, timectrl.Intervals{
		Attitude: sc.AttitudeInterval,
		Orbit:    sc.OrbitInterval,
		Log:      sc.LogInterval,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.clock = clock
	e.arena = kb.NewKnowledgeBase()
	e.scheduler = scheduler.New(e.schedOpts...)
	e.tracker = relative.NewTracker(e.arena)
	if e.sink != nil {
		e.sink.Add(e.tracker)
		e.headerDirty = true
	}

	for _, def := range sc.Spacecraft {
		if err := e.AddSpacecraft(ctx, def); err != nil {
			e.tracker.Close()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
	}

	e.log.Info(ctx, "engine constructed",
		logging.String("scenario", sc.Name),
		logging.Int("spacecraft", len(sc.Spacecraft)),
		logging.String("step_width", sc.StepWidth.String()),
		logging.Uint64("seed", sc.Seed),
	)
	return e, nil
}

// AddSpacecraft builds def and registers it with the arena, the scheduler
// and the relative tracker. On failure nothing stays registered.
func (e *Engine) AddSpacecraft(ctx context.Context, def model.SpacecraftDefinition) (err error) {
	ctx, span := e.tracer.Start(ctx, "engine.AddSpacecraft", trace.WithAttributes(attribute.Int("spacecraft.id", def.ID)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.spacecraft[def.ID]; exists {
		return fmt.Errorf("engine: spacecraft %d already exists: %w", def.ID, model.ErrInvalidConfiguration)
	}
	sc, err := NewSpacecraft(def, e.scenario.CenterBody, e.clock, e.scenario.Seed)
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	if err := e.arena.AddSpacecraft(sc.ID, sc.Name, sc.Dynamics); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	var registered []scheduler.Component
	rollback := func() {
		for _, c := range registered {
			_ = e.scheduler.Unregister(c)
		}
		_ = e.arena.RemoveSpacecraft(sc.ID)
	}
	for _, s := range sc.Components.Scheduled() {
		if err := e.scheduler.Register(s.Component, s.Prescaler); err != nil {
			rollback()
			return fmt.Errorf("engine: spacecraft %d: %w", sc.ID, err)
		}
		registered = append(registered, s.Component)
	}
	if err := e.tracker.RegisterSpacecraft(sc.ID); err != nil {
		rollback()
		return fmt.Errorf("engine: %w", err)
	}
	e.spacecraft[sc.ID] = sc

	if e.sink != nil {
		e.sink.Remove(e.tracker)
		for _, l := range sc.Loggables() {
			e.sink.Add(l)
		}
		e.sink.Add(e.tracker)
		e.headerDirty = true
	}

	log := e.log.With(logging.Int("spacecraft_id", sc.ID), logging.String("spacecraft", sc.Name))
	for _, c := range sc.Components.Corrections {
		log.Warn(ctx, "noise range corrected",
			logging.String("component", c.Component),
			logging.Int("axis", c.Axis),
			logging.Float64("range_to_const", c.ToConst),
			logging.Float64("range_to_zero", c.ToZero),
		)
	}
	log.Info(ctx, "spacecraft added", logging.Int("components", len(sc.Components.Scheduled())))
	if e.metrics != nil {
		e.metrics.SetSpacecraftCount(len(e.spacecraft))
	}
	return nil
}

// RemoveSpacecraft unregisters spacecraft id everywhere. The tracker drops
// it through the arena removal event.
func (e *Engine) RemoveSpacecraft(ctx context.Context, id int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sc, ok := e.spacecraft[id]
	if !ok {
		return fmt.Errorf("engine: spacecraft %d not found: %w", id, model.ErrUnknownEntity)
	}
	for _, s := range sc.Components.Scheduled() {
		if err := e.scheduler.Unregister(s.Component); err != nil {
			return fmt.Errorf("engine: spacecraft %d: %w", id, err)
		}
	}
	if err := e.arena.RemoveSpacecraft(id); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	delete(e.spacecraft, id)

	if e.sink != nil {
		for _, l := range sc.Loggables() {
			e.sink.Remove(l)
		}
		e.headerDirty = true
	}
	if e.metrics != nil {
		e.metrics.ForgetSpacecraft(sc.Name)
		e.metrics.SetSpacecraftCount(len(e.spacecraft))
	}
	e.log.Info(ctx, "spacecraft removed", logging.Int("spacecraft_id", id), logging.String("spacecraft", sc.Name))
	return nil
}

// RegisterTickListener adds fn, called with the tick count after every
// completed step.
func (e *Engine) RegisterTickListener(fn func(int64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tickListeners = append(e.tickListeners, fn)
}

// Step advances the simulation by one base tick, ignoring the pacing mode.
func (e *Engine) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now, flags := e.clock.Step()
	return e.tick(ctx, now, flags)
}

// Run steps the engine steps times, or the scenario's step count when
// steps is zero. A negative count runs until ctx is done. The first step
// error aborts the run.
func (e *Engine) Run(ctx context.Context, steps int64) error {
	if steps == 0 {
		steps = e.scenario.Steps
	}
	ctx, log := logging.WithRunLogger(ctx, e.log)
	ctx, span := e.tracer.Start(ctx, "engine.Run", trace.WithAttributes(
		attribute.String("scenario", e.scenario.Name),
		attribute.Int64("steps", steps),
		attribute.String("run_id", logging.RunIDFromContext(ctx)),
	))
	defer span.End()

	log.Info(ctx, "run started", logging.Int64("steps", steps), logging.Int("spacecraft", e.arena.Len()))
	start := time.Now()
	err := e.clock.Run(ctx, steps, func(now time.Time, flags timectrl.Flags) error {
		return e.tick(ctx, now, flags)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Error(ctx, "run aborted", logging.Int64("tick", e.clock.Count()), logging.Err(err))
		return err
	}
	log.Info(ctx, "run finished",
		logging.Int64("ticks", e.clock.Count()),
		logging.Float64("sim_elapsed_s", e.clock.Elapsed().Seconds()),
		logging.String("wall_elapsed", time.Since(start).String()),
	)
	return nil
}

func (e *Engine) tick(ctx context.Context, now time.Time, flags timectrl.Flags) error {
	start := time.Now()
	count := e.clock.Count()

	e.mu.Lock()
	ids := e.arena.IDs()
	for _, id := range ids {
		if err := e.spacecraft[id].updateEnvironment(now, flags); err != nil {
			e.mu.Unlock()
			return fmt.Errorf("engine: tick %d: %w", count, err)
		}
	}
	e.scheduler.Tick()
	for _, id := range ids {
		if err := e.spacecraft[id].propagate(now, flags); err != nil {
			e.mu.Unlock()
			return fmt.Errorf("engine: tick %d: %w", count, err)
		}
	}
	if err := e.tracker.Update(); err != nil {
		e.mu.Unlock()
		return fmt.Errorf("engine: tick %d: %w", count, err)
	}
	if flags.LogDue {
		if err := e.writeTelemetryLocked(); err != nil {
			e.mu.Unlock()
			return fmt.Errorf("engine: tick %d: %w", count, err)
		}
	}
	e.recordLocked(ids, time.Since(start))
	listeners := append([]func(int64){}, e.tickListeners...)
	e.mu.Unlock()

	for _, fn := range listeners {
		fn(count)
	}
	e.log.Debug(ctx, "tick", logging.Int64("tick", count))
	return nil
}

func (e *Engine) writeTelemetryLocked() error {
	if e.sink == nil {
		return nil
	}
	if e.headerDirty {
		if err := e.sink.WriteHeader(); err != nil {
			return err
		}
		e.headerDirty = false
	}
	return e.sink.WriteValues(e.clock.Elapsed().Seconds())
}

func (e *Engine) recordLocked(ids []int, d time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObserveStep(d)
	for _, id := range ids {
		sc := e.spacecraft[id]
		for _, v := range sc.Disturbances.Variants() {
			e.metrics.SetDisturbanceTorque(sc.Name, v.Kind.String(), r3.Norm(v.Torque_b()))
		}
	}
	e.tracker.Distances(func(target, reference int, distance float64) {
		e.metrics.SetRelativeDistance(e.spacecraft[target].Name, e.spacecraft[reference].Name, distance)
	})
}

// Close detaches the relative tracker from the arena.
func (e *Engine) Close() {
	e.tracker.Close()
}

// Clock returns the simulation clock.
func (e *Engine) Clock() *timectrl.TimeController { return e.clock }

// Arena returns the spacecraft registry.
func (e *Engine) Arena() *kb.KnowledgeBase { return e.arena }

// Scheduler returns the component scheduler.
func (e *Engine) Scheduler() *scheduler.Scheduler { return e.scheduler }

// Tracker returns the relative state tracker.
func (e *Engine) Tracker() *relative.Tracker { return e.tracker }

// Spacecraft returns the bundle of id.
func (e *Engine) Spacecraft(id int) (*Spacecraft, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	sc, ok := e.spacecraft[id]
	return sc, ok
}
