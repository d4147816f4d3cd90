// internal/core/services/connectivity_monitor.go
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/domain"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/pkg/logger"
)

// MonitorConfig holds the monitor timings
type MonitorConfig struct {
	TickInterval   time.Duration
	SimulatedDelay time.Duration
}

// DefaultMonitorConfig returns the default timings
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		TickInterval:   30 * time.Second,
		SimulatedDelay: 2 * time.Second,
	}
}

// ConnectivityMonitor drives sync passes from connectivity edges and a periodic tick.
//
// A pass moves ONLINE_IDLE to ONLINE_SYNCING, waits the simulated delay, drains
// the queue and records the last synced time. Losing connectivity cancels the
// running pass before it drains, leaving the queue for the next reconnection.
type ConnectivityMonitor struct {
	provider ports.ConnectivityProvider
	queue    ports.SyncQueue
	clock    ports.Clock
	config   MonitorConfig
	logger   *slog.Logger

	mu           sync.Mutex
	online       bool
	syncing      bool
	queued       int
	lastSyncedAt *time.Time
	lastError    string
	cancelPass   context.CancelFunc
	interrupted  bool
	passSeq      uint64
	baseCtx      context.Context

	subMu       sync.Mutex
	subscribers map[int]chan domain.SyncStatus
	nextSub     int

	unsubscribe func()
	stop        chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

var _ ports.SyncMonitor = (*ConnectivityMonitor)(nil)

// NewConnectivityMonitor creates a monitor whose initial state follows provider
func NewConnectivityMonitor(provider ports.ConnectivityProvider, queue ports.SyncQueue, clock ports.Clock, config MonitorConfig, logger *slog.Logger) *ConnectivityMonitor {
	if clock == nil {
		clock = SystemClock{}
	}
	defaults := DefaultMonitorConfig()
	if config.TickInterval <= 0 {
		config.TickInterval = defaults.TickInterval
	}
	if config.SimulatedDelay < 0 {
		config.SimulatedDelay = 0
	}

	return &ConnectivityMonitor{
		provider:    provider,
		queue:       queue,
		clock:       clock,
		config:      config,
		logger:      logger.With(slog.String("service", "connectivity_monitor")),
		online:      provider.IsOnline(),
		baseCtx:     context.Background(),
		subscribers: make(map[int]chan domain.SyncStatus),
		stop:        make(chan struct{}),
	}
}

// Start subscribes to connectivity edges and runs the tick loop in the
// background until ctx ends or Stop is called.
func (m *ConnectivityMonitor) Start(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.online = m.provider.IsOnline()
	m.mu.Unlock()

	m.unsubscribe = m.provider.OnChange(m.handleChange)

	m.logger.InfoContext(ctx, "connectivity monitor started",
		slog.String("state", string(m.state())),
		slog.Duration("tick_interval", m.config.TickInterval),
		slog.Duration("simulated_delay", m.config.SimulatedDelay))

	m.wg.Add(1)
	go m.loop(ctx)

	// a queue left over from a previous session syncs as soon as possible
	m.triggerIfQueued(ctx)
}

// Stop ends the tick loop, cancels any running pass and waits for background work
func (m *ConnectivityMonitor) Stop() {
	m.stopOnce.Do(func() {
		close(m.stop)
		if m.unsubscribe != nil {
			m.unsubscribe()
		}
		m.mu.Lock()
		if m.cancelPass != nil {
			m.cancelPass()
		}
		m.mu.Unlock()
	})
	m.wg.Wait()

	m.subMu.Lock()
	for id, ch := range m.subscribers {
		close(ch)
		delete(m.subscribers, id)
	}
	m.subMu.Unlock()
}

// Status returns a fresh snapshot, re-reading the queue depth
func (m *ConnectivityMonitor) Status(ctx context.Context) domain.SyncStatus {
	m.refreshDepth(ctx)
	return m.snapshot()
}

// Subscribe returns a channel receiving a snapshot on every transition and
// tick. Slow readers only see the latest snapshot. The returned function
// unsubscribes.
func (m *ConnectivityMonitor) Subscribe() (<-chan domain.SyncStatus, func()) {
	ch := make(chan domain.SyncStatus, 1)

	m.subMu.Lock()
	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = ch
	m.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.subMu.Lock()
			if _, ok := m.subscribers[id]; ok {
				delete(m.subscribers, id)
				close(ch)
			}
			m.subMu.Unlock()
		})
	}
}

// SyncNow runs one pass and blocks until it finishes
func (m *ConnectivityMonitor) SyncNow(ctx context.Context) (*domain.SyncResult, error) {
	return m.runPass(ctx)
}

func (m *ConnectivityMonitor) loop(ctx context.Context) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stop:
			return
		case <-m.clock.After(m.config.TickInterval):
			m.tick(ctx)
		}
	}
}

func (m *ConnectivityMonitor) tick(ctx context.Context) {
	depth := m.refreshDepth(ctx)

	m.mu.Lock()
	start := m.online && !m.syncing && depth > 0
	m.mu.Unlock()

	if !start {
		m.publish()
		return
	}

	if _, err := m.runPass(ctx); err != nil && !errors.Is(err, domain.ErrSyncInProgress) {
		m.logger.WarnContext(ctx, "scheduled sync failed", slog.String("error", err.Error()))
	}
}

func (m *ConnectivityMonitor) handleChange(online bool) {
	m.mu.Lock()
	prev := m.online
	m.online = online
	if !online && m.cancelPass != nil {
		m.interrupted = true
		m.cancelPass()
	}
	ctx := m.baseCtx
	m.mu.Unlock()

	if prev == online {
		return
	}

	if !online {
		m.logger.WarnContext(ctx, "connectivity lost")
		m.publish()
		return
	}

	m.logger.InfoContext(ctx, "connectivity restored")
	m.publish()
	m.triggerIfQueued(ctx)
}

// triggerIfQueued starts a background pass when online with a non-empty queue
func (m *ConnectivityMonitor) triggerIfQueued(ctx context.Context) {
	select {
	case <-m.stop:
		return
	default:
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		if m.refreshDepth(ctx) == 0 {
			return
		}
		if _, err := m.runPass(ctx); err != nil &&
			!errors.Is(err, domain.ErrSyncInProgress) && !errors.Is(err, domain.ErrOffline) {
			m.logger.WarnContext(ctx, "reconnect sync failed", slog.String("error", err.Error()))
		}
	}()
}

func (m *ConnectivityMonitor) runPass(ctx context.Context) (*domain.SyncResult, error) {
	m.mu.Lock()
	if !m.online {
		m.mu.Unlock()
		return nil, domain.ErrOffline
	}
	if m.syncing {
		m.mu.Unlock()
		return nil, domain.ErrSyncInProgress
	}
	m.passSeq++
	seq := m.passSeq
	m.interrupted = false
	passCtx, cancel := context.WithCancel(context.WithValue(ctx, logger.ContextKeySyncPass, seq))
	m.syncing = true
	m.cancelPass = cancel
	m.mu.Unlock()
	defer cancel()

	m.publish()

	started := m.clock.Now()
	m.logger.InfoContext(passCtx, "sync pass started", slog.Uint64("pass", seq))

	var (
		drained int
		err     error
	)
	select {
	case <-passCtx.Done():
		err = passCtx.Err()
	case <-m.clock.After(m.config.SimulatedDelay):
		drained, err = m.queue.Drain(passCtx)
	}
	finished := m.clock.Now()

	m.mu.Lock()
	m.syncing = false
	m.cancelPass = nil
	interrupted := m.interrupted
	m.interrupted = false
	// a reconnect that arrived while this pass was winding down found it
	// still running, so the follow-up pass is started from here
	rerun := interrupted && m.online
	baseCtx := m.baseCtx
	if err == nil {
		m.lastSyncedAt = &finished
		m.lastError = ""
	} else {
		if interrupted {
			err = fmt.Errorf("%w: connectivity lost during pass %d: %v", domain.ErrSyncInterrupted, seq, err)
		}
		m.lastError = err.Error()
	}
	m.mu.Unlock()

	m.refreshDepth(ctx)
	m.publish()

	if err != nil {
		m.logger.WarnContext(passCtx, "sync pass aborted",
			slog.Uint64("pass", seq),
			slog.String("error", err.Error()))
		if rerun {
			m.triggerIfQueued(baseCtx)
		}
		return nil, err
	}

	m.logger.InfoContext(passCtx, "sync pass completed",
		slog.Uint64("pass", seq),
		slog.Int("drained", drained),
		slog.Duration("duration", finished.Sub(started)))

	return &domain.SyncResult{
		Drained:    drained,
		StartedAt:  started,
		FinishedAt: finished,
		Duration:   finished.Sub(started),
	}, nil
}

func (m *ConnectivityMonitor) refreshDepth(ctx context.Context) int {
	depth, err := m.queue.Depth(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.logger.WarnContext(ctx, "failed to read queue depth", slog.String("error", err.Error()))
		return m.queued
	}
	m.queued = depth
	return depth
}

func (m *ConnectivityMonitor) state() domain.SyncState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *ConnectivityMonitor) stateLocked() domain.SyncState {
	switch {
	case !m.online:
		return domain.SyncStateOffline
	case m.syncing:
		return domain.SyncStateOnlineSyncing
	default:
		return domain.SyncStateOnlineIdle
	}
}

func (m *ConnectivityMonitor) snapshot() domain.SyncStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := domain.SyncStatus{
		State:     m.stateLocked(),
		Online:    m.online,
		Syncing:   m.syncing,
		Queued:    m.queued,
		LastError: m.lastError,
	}
	if m.lastSyncedAt != nil {
		t := *m.lastSyncedAt
		status.LastSyncedAt = &t
	}
	return status
}

func (m *ConnectivityMonitor) publish() {
	status := m.snapshot()

	m.subMu.Lock()
	defer m.subMu.Unlock()

	for _, ch := range m.subscribers {
		select {
		case ch <- status:
		default:
			// replace the stale snapshot
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- status:
			default:
			}
		}
	}
}
