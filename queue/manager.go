package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"sync"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docqa/core"
)

const (
	defaultRetention    = 10 * time.Minute
	defaultReapInterval = time.Minute
)

// keyQueue tracks the serialization state of one resource key.
// active means a request for this key currently holds the key; waiting holds
// requests queued behind it in FIFO admission order.
type keyQueue struct {
	active  bool
	waiting []*request
}

// Manager admits and tracks long-running requests, guaranteeing at most one
// active request per resource key while unrelated keys run in parallel.
//
// The request table and key queues are guarded by a single mutex that is held
// only for table mutations, never across the execution of work.
type Manager struct {
	mu       sync.Mutex
	requests map[string]*request
	keys     map[string]*keyQueue

	pool         *ants.Pool
	retention    time.Duration
	workTimeout  time.Duration
	reapInterval time.Duration
	stop         chan struct{}
	stopOnce     sync.Once
	logger       *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager) error

// WithPoolSize sets the worker pool size. The pool bounds how many requests
// across all keys run simultaneously; size it above the expected number of
// concurrently active keys. A saturated pool delays execution, never
// admission: extra requests stay pending until a worker frees.
// Default is 4x NumCPU, minimum 8.
func WithPoolSize(size int) Option {
	return func(m *Manager) error {
		if size < 1 {
			size = 1
		}
		if m.pool != nil {
			m.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		m.pool = pool
		return nil
	}
}

// WithRetention sets how long terminal requests remain pollable before the
// reaper removes them. Default is 10 minutes.
func WithRetention(retention time.Duration) Option {
	return func(m *Manager) error {
		if retention <= 0 {
			return fmt.Errorf("%w: retention must be positive", core.ErrInvalidParameter)
		}
		m.retention = retention
		return nil
	}
}

// WithWorkTimeout sets a hard deadline applied to every request's work.
// Work exceeding the deadline transitions the request to failed with a
// timeout error. Zero (the default) disables the deadline.
func WithWorkTimeout(timeout time.Duration) Option {
	return func(m *Manager) error {
		if timeout < 0 {
			return fmt.Errorf("%w: work timeout must not be negative", core.ErrInvalidParameter)
		}
		m.workTimeout = timeout
		return nil
	}
}

// WithReapInterval sets how often the background reaper sweeps expired
// terminal requests. Default is one minute.
func WithReapInterval(interval time.Duration) Option {
	return func(m *Manager) error {
		if interval <= 0 {
			return fmt.Errorf("%w: reap interval must be positive", core.ErrInvalidParameter)
		}
		m.reapInterval = interval
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) error {
		if logger == nil {
			logger = slog.Default()
		}
		m.logger = logger
		return nil
	}
}

// NewManager creates a request queue manager and starts its reaper.
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{
		requests:     make(map[string]*request),
		keys:         make(map[string]*keyQueue),
		retention:    defaultRetention,
		reapInterval: defaultReapInterval,
		stop:         make(chan struct{}),
		logger:       slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(m); err != nil {
			if m.pool != nil {
				m.pool.Release()
			}
			return nil, err
		}
	}

	if m.pool == nil {
		size := runtime.NumCPU() * 4
		if size < 8 {
			size = 8
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return nil, err
		}
		m.pool = pool
	}

	m.logger = m.logger.With("component", "request-queue")

	go m.reapLoop()

	return m, nil
}

// Submit admits a request and returns its id immediately, never blocking on
// the work itself. Requests sharing a resource key execute in FIFO admission
// order; requests on distinct keys never wait on each other.
func (m *Manager) Submit(kind core.RequestKind, resourceKey string, work Work) (string, error) {
	if err := core.ValidateRequestKind(kind); err != nil {
		return "", err
	}
	if resourceKey == "" {
		return "", fmt.Errorf("%w: resource key cannot be empty", core.ErrInvalidParameter)
	}
	if work == nil {
		return "", fmt.Errorf("%w: work cannot be nil", core.ErrInvalidParameter)
	}

	req := &request{
		id:          uuid.NewString(),
		kind:        kind,
		resourceKey: resourceKey,
		state:       core.RequestStatePending,
		createdAt:   time.Now().UTC(),
		work:        work,
		done:        make(chan struct{}),
	}

	m.mu.Lock()
	m.requests[req.id] = req
	kq, ok := m.keys[resourceKey]
	if !ok {
		kq = &keyQueue{}
		m.keys[resourceKey] = kq
	}
	dispatch := !kq.active
	if dispatch {
		kq.active = true
	} else {
		kq.waiting = append(kq.waiting, req)
	}
	m.mu.Unlock()

	m.logger.Debug("request admitted", "id", req.id, "kind", kind.String(), "key", resourceKey, "queued", !dispatch)

	if dispatch {
		// The pool blocks when every worker is busy, so the hand-off happens
		// off the admission path: the caller gets the id back immediately and
		// the request stays pending until a worker frees.
		go func() {
			if err := m.pool.Submit(func() { m.runChain(req) }); err != nil {
				m.failUndispatched(req, err)
			}
		}()
	}

	return req.id, nil
}

// Poll returns the current state of a request. It fails with a not-found
// error if the id is unknown or has already been reaped.
//
// Expiry is evaluated and the removal performed inside the same critical
// section as the read, so a concurrent reaper can never delete an entry out
// from under a poller.
func (m *Manager) Poll(requestID string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[requestID]
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: request %s", core.ErrNotFound, requestID)
	}
	if m.expired(req, time.Now()) {
		delete(m.requests, requestID)
		return Snapshot{}, fmt.Errorf("%w: request %s", core.ErrNotFound, requestID)
	}
	return req.snapshot(), nil
}

// AwaitCompletion blocks until the request reaches a terminal state, the
// timeout elapses, or ctx is canceled.
//
// On timeout it returns a timeout error without canceling the underlying
// work; the request keeps running and remains pollable. If the work failed,
// the stored error is returned alongside the snapshot.
func (m *Manager) AwaitCompletion(ctx context.Context, requestID string, timeout time.Duration) (Snapshot, error) {
	m.mu.Lock()
	req, ok := m.requests[requestID]
	if !ok || m.expired(req, time.Now()) {
		if ok {
			delete(m.requests, requestID)
		}
		m.mu.Unlock()
		return Snapshot{}, fmt.Errorf("%w: request %s", core.ErrNotFound, requestID)
	}
	done := req.done
	m.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		m.mu.Lock()
		snap := req.snapshot()
		m.mu.Unlock()
		return snap, snap.Err
	case <-timer.C:
		return Snapshot{}, fmt.Errorf("%w: request %s still running after %s", core.ErrTimeout, requestID, timeout)
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}

// Ack acknowledges a terminal request and removes it from the table without
// waiting for the retention window.
func (m *Manager) Ack(requestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[requestID]
	if !ok {
		return fmt.Errorf("%w: request %s", core.ErrNotFound, requestID)
	}
	if !req.state.Terminal() {
		return fmt.Errorf("%w: request %s is still %s", core.ErrInvalidParameter, requestID, req.state)
	}
	delete(m.requests, requestID)
	return nil
}

// Stats reports the number of requests per state, for observability.
func (m *Manager) Stats() map[core.RequestState]int {
	m.mu.Lock()
	defer m.mu.Unlock()

	stats := make(map[core.RequestState]int, 4)
	for _, req := range m.requests {
		stats[req.state]++
	}
	return stats
}

// Close stops the reaper and releases the worker pool. Requests already
// running are allowed to finish.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.pool.Release()
}

// runChain executes a request and then any requests queued behind its
// resource key, in FIFO order, reusing the current worker.
func (m *Manager) runChain(req *request) {
	for req != nil {
		m.runOne(req)

		m.mu.Lock()
		kq := m.keys[req.resourceKey]
		if kq == nil || len(kq.waiting) == 0 {
			if kq != nil {
				delete(m.keys, req.resourceKey)
			}
			req = nil
		} else {
			next := kq.waiting[0]
			kq.waiting = kq.waiting[1:]
			req = next
		}
		m.mu.Unlock()
	}
}

// runOne transitions a request to running, executes its work, and records
// the terminal state. The table mutex is never held while work executes.
func (m *Manager) runOne(req *request) {
	m.mu.Lock()
	req.state = core.RequestStateRunning
	req.startedAt = time.Now().UTC()
	m.mu.Unlock()

	ctx := context.Background()
	if m.workTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.workTimeout)
		defer cancel()
	}

	result, err := invoke(ctx, req.work)
	if err != nil && errors.Is(err, context.DeadlineExceeded) {
		err = fmt.Errorf("%w: work exceeded %s", core.ErrTimeout, m.workTimeout)
	}

	m.mu.Lock()
	req.finishedAt = time.Now().UTC()
	if err != nil {
		req.state = core.RequestStateFailed
		req.err = err
	} else {
		req.state = core.RequestStateCompleted
		req.result = result
	}
	m.mu.Unlock()
	close(req.done)

	if err != nil {
		m.logger.Warn("request failed", "id", req.id, "key", req.resourceKey, "err", err)
	} else {
		m.logger.Debug("request completed", "id", req.id, "key", req.resourceKey)
	}
}

// failUndispatched fails a request whose hand-off to the pool did not
// succeed. Requests queued behind the same key fail with it: the chain that
// would have run them never started.
func (m *Manager) failUndispatched(req *request, err error) {
	m.mu.Lock()
	failed := []*request{req}
	if kq := m.keys[req.resourceKey]; kq != nil {
		failed = append(failed, kq.waiting...)
		delete(m.keys, req.resourceKey)
	}
	now := time.Now().UTC()
	for _, r := range failed {
		r.state = core.RequestStateFailed
		r.err = err
		r.finishedAt = now
	}
	m.mu.Unlock()
	for _, r := range failed {
		close(r.done)
	}

	m.logger.Error("request dispatch failed", "id", req.id, "key", req.resourceKey, "queued", len(failed)-1, "err", err)
}

// invoke runs work, converting panics into errors so a misbehaving work
// function can never take down the queue's worker.
func invoke(ctx context.Context, work Work) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("work panicked: %v", r)
		}
	}()
	return work(ctx)
}

// reapLoop periodically removes expired terminal requests to bound memory.
func (m *Manager) reapLoop() {
	ticker := time.NewTicker(m.reapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.reap(time.Now())
		}
	}
}

// reap deletes expired entries under the table mutex, the same critical
// section Poll reads under.
func (m *Manager) reap(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, req := range m.requests {
		if m.expired(req, now) {
			delete(m.requests, id)
		}
	}
}

// expired reports whether a terminal request has outlived the retention
// window. Caller must hold the table mutex.
func (m *Manager) expired(req *request, now time.Time) bool {
	return req.state.Terminal() && now.Sub(req.finishedAt) > m.retention
}
