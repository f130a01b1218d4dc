package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"llm-spot-trader/internal/events"
	"llm-spot-trader/internal/interfaces"
	"llm-spot-trader/internal/logger"
	"llm-spot-trader/internal/metrics"
	"llm-spot-trader/internal/store"
	"llm-spot-trader/internal/types"
)

var (
	ErrAlreadyRunning     = errors.New("bot is already running")
	ErrMissingCredentials = errors.New("missing credentials")
)

type stopKey struct{}

// withStop attaches the runner's stop channel so pauses inside a cycle can
// end early without cancelling in-flight calls.
func withStop(ctx context.Context, stop <-chan struct{}) context.Context {
	return context.WithValue(ctx, stopKey{}, stop)
}

func stopSignal(ctx context.Context) <-chan struct{} {
	ch, _ := ctx.Value(stopKey{}).(<-chan struct{})
	return ch
}

// sleepCtx waits d and reports false when ctx ends or a stop is requested.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	stop := stopSignal(ctx)
	select {
	case <-stop:
		return false
	default:
	}
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	case <-stop:
		return false
	}
}

// Runner drives the engine on one worker goroutine. States are stopped and
// running; Stop only prevents the next cycle.
type Runner struct {
	cfg      *store.Config
	engine   interfaces.Engine
	notifier interfaces.Notifier
	eventLog interfaces.EventLog
	bus      *events.Bus
	metrics  *metrics.Registry
	interval time.Duration

	mu      sync.Mutex
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

func NewRunner(cfg *store.Config, eng interfaces.Engine, deps Deps) *Runner {
	return &Runner{
		cfg:      cfg,
		engine:   eng,
		notifier: deps.Notifier,
		eventLog: deps.EventLog,
		bus:      deps.Bus,
		metrics:  deps.Metrics,
		interval: cfg.ScanInterval(),
	}
}

func (r *Runner) Running() bool { return r.running.Load() }

// Status is the engine status with the runner state filled in.
func (r *Runner) Status() types.Status {
	st := r.engine.Status()
	st.Running = r.Running()
	return st
}

// Start launches the worker. It fails with ErrAlreadyRunning or
// ErrMissingCredentials and leaves the current state untouched. A worker
// still finishing its cycle after Stop is waited for first, so cycles never
// overlap.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running.Load() {
		return ErrAlreadyRunning
	}
	if missing := r.cfg.MissingCredentials(); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}
	if r.done != nil {
		select {
		case <-r.done:
		default:
			logger.Info(ctx, "Waiting for previous cycle to finish")
			<-r.done
		}
	}

	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.running.Store(true)
	go r.loop(ctx, r.stop, r.done)

	logger.Info(ctx, "Bot started", "mode", r.cfg.Mode, "universe", len(r.cfg.Universe), "interval", r.interval.String())
	r.announce(ctx, "Bot started", fmt.Sprintf("Mode: %s\nUniverse: %d symbols\nInterval: %s", r.cfg.Mode, len(r.cfg.Universe), r.interval), types.SeveritySuccess)
	r.bus.Publish(events.Event{Type: events.EventBotStarted, Data: map[string]any{"mode": r.cfg.Mode}})
	return nil
}

// Stop requests the worker to exit after the current cycle. Calling it
// while stopped is a no-op.
func (r *Runner) Stop(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running.Load() {
		return
	}
	close(r.stop)
	r.running.Store(false)

	logger.Info(ctx, "Bot stop requested")
	r.announce(ctx, "Bot stopped", "", types.SeverityError)
	r.bus.Publish(events.Event{Type: events.EventBotStopped, Data: map[string]any{}})
}

// Wait blocks until the worker of the last Start has exited.
func (r *Runner) Wait() {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (r *Runner) loop(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ctx = withStop(ctx, stop)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			r.running.Store(false)
			return
		default:
		}
		r.runCycle(ctx)
		if !sleepCtx(ctx, r.interval) {
			if ctx.Err() != nil {
				r.running.Store(false)
			}
			return
		}
	}
}

// runCycle recovers panics so one bad cycle never ends the loop.
func (r *Runner) runCycle(ctx context.Context) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("cycle panic: %v", p)
			r.metrics.ObserveCycle(0, "panic")
			logger.ErrorWithErr(ctx, "Recovered from panic in cycle", err, "stack", string(debug.Stack()))
			r.announce(ctx, "Cycle error", err.Error(), types.SeverityError)
			r.bus.PublishError("engine", "cycle panic", err)
		}
	}()

	res, err := r.engine.Cycle(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorWithErr(ctx, "Cycle failed", err)
		r.announce(ctx, "Cycle error", err.Error(), types.SeverityError)
		r.bus.PublishError("engine", "cycle failed", err)
		return
	}
	if res != nil {
		r.bus.Publish(events.Event{Type: events.EventCycleCompleted, Data: map[string]any{
			"portfolio_value": res.PortfolioValue,
			"cash":            res.Cash,
			"exits":           len(res.Exits),
			"entry":           res.Entry != nil,
		}})
	}
}

func (r *Runner) announce(ctx context.Context, title, body string, sev types.Severity) {
	if r.notifier != nil {
		r.notifier.Notify(ctx, title, body, sev)
	}
	if r.eventLog != nil {
		msg := title
		if body != "" {
			msg += ": " + strings.ReplaceAll(body, "\n", ", ")
		}
		r.eventLog.Record(ctx, msg, "system")
	}
}
