package action

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tmarsden/edgeflow-core/internal/actuator"
	"github.com/tmarsden/edgeflow-core/internal/catalog"
	"github.com/tmarsden/edgeflow-core/internal/console"
	"github.com/tmarsden/edgeflow-core/internal/remote"
	"github.com/tmarsden/edgeflow-core/internal/variable"
	"github.com/tmarsden/edgeflow-core/internal/watch"
)

// Default engine timings.
const (
	DefaultQueueSize         = 16
	DefaultAdmissionWait     = 100 * time.Millisecond
	DefaultSyncTimeout       = 30 * time.Second
	DefaultRemoteSyncTimeout = 60 * time.Second
	DefaultExecTimeout       = 30 * time.Second
)

// Config holds the engine timings and limits.
type Config struct {
	// QueueSize bounds the number of admitted-but-not-started actions.
	QueueSize int

	// AdmissionWait bounds how long enqueue blocks on a full queue
	// before failing with ErrQueueFull.
	AdmissionWait time.Duration

	// SyncTimeout is the completion wait for synchronous callers.
	// Remote kinds use RemoteSyncTimeout instead.
	SyncTimeout       time.Duration
	RemoteSyncTimeout time.Duration

	// DefaultExecTimeout bounds a single remote or CLI execution when
	// the action carries no timeout of its own.
	DefaultExecTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	}
	if c.AdmissionWait <= 0 {
		c.AdmissionWait = DefaultAdmissionWait
	}
	if c.SyncTimeout <= 0 {
		c.SyncTimeout = DefaultSyncTimeout
	}
	if c.RemoteSyncTimeout <= 0 {
		c.RemoteSyncTimeout = DefaultRemoteSyncTimeout
	}
	if c.DefaultExecTimeout <= 0 {
		c.DefaultExecTimeout = DefaultExecTimeout
	}
}

// Catalog is the slice of the host/command catalog the engine consumes.
type Catalog interface {
	GetHost(ctx context.Context, id string) (*catalog.Host, error)
	GetCommand(ctx context.Context, id string) (*catalog.Command, error)
	TouchCommandExec(ctx context.Context, id string)
}

// Keystore resolves key ids to private key material.
type Keystore interface {
	LoadPrivateKey(keyID string) ([]byte, error)
}

// Watcher starts service readiness watches.
type Watcher interface {
	Start(cfg watch.Config) error
}

// Hub receives engine events for broadcast to connected clients.
// A nil Hub is valid and drops events.
type Hub interface {
	Broadcast(event string, payload any)
}

// Recorder receives per-execution metrics. A nil Recorder is valid.
type Recorder interface {
	RecordExecution(kind Kind, status Status, duration time.Duration)
}

// Logger is the minimal logging interface this package needs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Deps are the engine's collaborators. Variables and Dialer are required
// for the corresponding action kinds; the rest may be nil, in which case
// actions needing them fail with a clear cause.
type Deps struct {
	Variables *variable.Store
	Dialer    remote.Dialer
	Keystore  Keystore
	Catalog   Catalog
	Console   console.Console
	Devices   *actuator.Registry
	GPIO      actuator.GPIO
	Watches   Watcher
	Hub       Hub
	Recorder  Recorder
	Logger    Logger
}

// Callback is invoked by the worker after an async action completes.
type Callback func(Result)

// queueEntry is a snapshot of an action plus exactly one completion
// mechanism: a callback, a result channel, or neither.
type queueEntry struct {
	action     Action
	enqueuedAt time.Time

	// callback is set for async entries that want notification.
	callback Callback

	// resultCh is set for synchronous entries. Buffered with capacity 1
	// so the worker's send never blocks even when the caller has timed
	// out and abandoned the channel.
	resultCh chan Result
}

// Engine owns the queue, the single worker, the local host table and the
// aggregate statistics.
type Engine struct {
	cfg  Config
	deps Deps

	queue  chan queueEntry
	stopCh chan struct{}
	done   chan struct{}

	startMu sync.Mutex
	started bool

	hostsMu sync.Mutex
	hosts   map[string]*catalog.Host

	statsMu sync.Mutex
	stats   Stats
}

// New creates an engine. Call Start to launch the worker.
func New(cfg Config, deps Deps) *Engine {
	cfg.applyDefaults()
	if deps.Logger == nil {
		deps.Logger = noopLogger{}
	}
	return &Engine{
		cfg:    cfg,
		deps:   deps,
		queue:  make(chan queueEntry, cfg.QueueSize),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
		hosts:  make(map[string]*catalog.Host),
	}
}

// Start launches the worker goroutine. Starting twice is an error.
func (e *Engine) Start() error {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	if e.started {
		return fmt.Errorf("action: engine already started")
	}
	e.started = true
	go e.worker()
	e.deps.Logger.Info("action engine started", "queue_size", e.cfg.QueueSize)
	return nil
}

// Close stops the worker and waits for it to drain its current action.
// Queued entries are cancelled.
func (e *Engine) Close() error {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	if !e.started {
		return nil
	}
	e.started = false

	close(e.stopCh)
	<-e.done
	e.CancelAll()
	e.deps.Logger.Info("action engine stopped")
	return nil
}

func (e *Engine) isStarted() bool {
	e.startMu.Lock()
	defer e.startMu.Unlock()
	return e.started
}

// worker is the only goroutine that executes handlers. Exactly one
// exists, which gives the engine strict one-at-a-time semantics.
func (e *Engine) worker() {
	defer close(e.done)
	for {
		select {
		case <-e.stopCh:
			return
		case entry := <-e.queue:
			e.process(entry)
		}
	}
}

// process runs one queue entry: delay, dispatch, notify, count.
func (e *Engine) process(entry queueEntry) {
	if entry.action.DelayMS > 0 {
		select {
		case <-e.stopCh:
			e.finish(entry, Result{
				Status:    StatusCancelled,
				Output:    "engine stopped",
				Timestamp: time.Now(),
			})
			return
		case <-time.After(time.Duration(entry.action.DelayMS) * time.Millisecond):
		}
	}

	started := time.Now()
	result, err := e.dispatch(&entry.action)
	if err != nil {
		e.deps.Logger.Warn("action failed",
			"kind", entry.action.Kind,
			"error", err,
			"output", result.Output,
		)
	}

	e.statsMu.Lock()
	e.stats.TotalExecuted++
	switch result.Status {
	case StatusSuccess:
		e.stats.TotalSuccess++
	case StatusTimeout:
		e.stats.TotalTimeout++
	default:
		e.stats.TotalFailed++
	}
	e.statsMu.Unlock()

	e.finish(entry, result)

	if e.deps.Recorder != nil {
		e.deps.Recorder.RecordExecution(entry.action.Kind, result.Status, time.Since(started))
	}
	if e.deps.Hub != nil {
		e.deps.Hub.Broadcast("action.executed", map[string]any{
			"kind":        entry.action.Kind,
			"status":      result.Status,
			"duration_ms": result.DurationMS,
		})
	}
}

// finish delivers the result to whichever completion mechanism the entry
// carries.
func (e *Engine) finish(entry queueEntry, result Result) {
	if entry.callback != nil {
		entry.callback(result)
	}
	if entry.resultCh != nil {
		entry.resultCh <- result
	}
}

// admit places an entry on the queue within the admission wait window.
func (e *Engine) admit(entry queueEntry) error {
	if !e.isStarted() {
		return ErrNotRunning
	}

	select {
	case e.queue <- entry:
	case <-time.After(e.cfg.AdmissionWait):
		return fmt.Errorf("%w: admission wait %v expired", ErrQueueFull, e.cfg.AdmissionWait)
	}

	e.statsMu.Lock()
	if depth := len(e.queue); depth > e.stats.QueueHighWater {
		e.stats.QueueHighWater = depth
	}
	e.statsMu.Unlock()
	return nil
}

// syncWait picks the completion wait for a synchronous caller. Remote
// kinds get the longer window.
func (e *Engine) syncWait(kind Kind) time.Duration {
	if kind == KindRemoteCommand || kind == KindRemoteCommandRef {
		return e.cfg.RemoteSyncTimeout
	}
	return e.cfg.SyncTimeout
}

// ExecuteSync enqueues an action and blocks until it completes or the
// kind-dependent wait expires. On wait expiry the handler may still be
// running; its late result lands in the abandoned buffered channel and
// is garbage collected.
func (e *Engine) ExecuteSync(action Action) (Result, error) {
	if err := action.Validate(); err != nil {
		return Result{Status: StatusFailed, Output: err.Error(), Timestamp: time.Now()}, err
	}

	entry := queueEntry{
		action:     action.DeepCopy(),
		enqueuedAt: time.Now(),
		resultCh:   make(chan Result, 1),
	}
	if err := e.admit(entry); err != nil {
		return Result{Status: StatusFailed, Output: err.Error(), Timestamp: time.Now()}, err
	}

	select {
	case result := <-entry.resultCh:
		var err error
		switch result.Status {
		case StatusSuccess:
		case StatusTimeout:
			err = ErrExecutionTimeout
		default:
			err = ErrExecutionFailed
		}
		return result, err
	case <-time.After(e.syncWait(action.Kind)):
		return Result{
			Status:    StatusTimeout,
			Output:    "execution timeout",
			Timestamp: time.Now(),
		}, ErrExecutionTimeout
	}
}

// EnqueueAsync admits an action and returns immediately. The optional
// callback runs on the worker goroutine after completion.
func (e *Engine) EnqueueAsync(action Action, callback Callback) error {
	if err := action.Validate(); err != nil {
		return err
	}
	return e.admit(queueEntry{
		action:     action.DeepCopy(),
		enqueuedAt: time.Now(),
		callback:   callback,
	})
}

// ExecuteSequence runs actions synchronously in order. With stopOnError
// the first failure aborts the remainder; results for executed actions
// are returned either way.
func (e *Engine) ExecuteSequence(actions []Action, stopOnError bool) ([]Result, error) {
	results := make([]Result, 0, len(actions))
	var firstErr error
	for i := range actions {
		result, err := e.ExecuteSync(actions[i])
		results = append(results, result)
		if err != nil {
			e.deps.Logger.Warn("sequence action failed",
				"index", i,
				"kind", actions[i].Kind,
				"error", err,
			)
			if firstErr == nil {
				firstErr = err
			}
			if stopOnError {
				return results, err
			}
		}
	}
	return results, firstErr
}

// CancelAll drops every queued-but-not-started entry. In-flight
// execution is not interrupted. Returns the number of dropped entries.
func (e *Engine) CancelAll() int {
	cancelled := 0
	for {
		select {
		case entry := <-e.queue:
			e.finish(entry, Result{
				Status:    StatusCancelled,
				Output:    "cancelled",
				Timestamp: time.Now(),
			})
			cancelled++
		default:
			if cancelled > 0 {
				e.deps.Logger.Info("cancelled pending actions", "count", cancelled)
			}
			return cancelled
		}
	}
}

// QueueDepth returns the number of admitted, not yet dequeued entries.
func (e *Engine) QueueDepth() int {
	return len(e.queue)
}

// Stats returns a copy of the aggregate counters.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	return e.stats
}

// ResetStats zeroes all counters.
func (e *Engine) ResetStats() {
	e.statsMu.Lock()
	defer e.statsMu.Unlock()
	e.stats = Stats{}
}
