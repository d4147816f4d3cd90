// internal/adapters/connectivity/probe.go
package connectivity

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/Colin-nwk/ubuxa-agent-sub000/internal/core/ports"
)

// ProbeConfig holds probe configuration
type ProbeConfig struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
	// Initial is reported until the first probe completes
	Initial bool
}

// Probe derives connectivity from periodic HTTP requests to a health URL.
// Any response below 500 counts as online.
type Probe struct {
	config ProbeConfig
	client *http.Client
	logger *slog.Logger

	mu     sync.RWMutex
	online bool
	subs   listeners

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

var _ ports.ConnectivityProvider = (*Probe)(nil)

// NewProbe creates a probe. Call Start to begin polling.
func NewProbe(config ProbeConfig, logger *slog.Logger) (*Probe, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("probe url is required")
	}
	if config.Interval <= 0 {
		config.Interval = 15 * time.Second
	}
	if config.Timeout <= 0 {
		config.Timeout = 3 * time.Second
	}

	return &Probe{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
		online: config.Initial,
		logger: logger.With(slog.String("component", "connectivity"), slog.String("mode", "probe")),
		stop:   make(chan struct{}),
	}, nil
}

// IsOnline returns the result of the latest probe
func (p *Probe) IsOnline() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.online
}

// OnChange registers cb for online/offline edges
func (p *Probe) OnChange(cb func(online bool)) func() {
	return p.subs.add(cb)
}

// Start probes once synchronously, then keeps polling until ctx ends or Stop
func (p *Probe) Start(ctx context.Context) {
	p.Check(ctx)

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-p.stop:
				return
			case <-ticker.C:
				p.Check(ctx)
			}
		}
	}()
}

// Stop ends polling
func (p *Probe) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
	p.wg.Wait()
}

// Check runs one probe, updates the state and reports an edge if any
func (p *Probe) Check(ctx context.Context) bool {
	online := p.probe(ctx)

	p.mu.Lock()
	changed := p.online != online
	p.online = online
	p.mu.Unlock()

	if changed {
		p.logger.InfoContext(ctx, "connectivity changed",
			slog.Bool("online", online),
			slog.String("url", p.config.URL))
		p.subs.notify(online)
	}
	return online
}

func (p *Probe) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, p.config.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.config.URL, nil)
	if err != nil {
		p.logger.ErrorContext(ctx, "invalid probe request", slog.String("error", err.Error()))
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.DebugContext(ctx, "probe failed", slog.String("error", err.Error()))
		return false
	}
	resp.Body.Close()

	return resp.StatusCode < http.StatusInternalServerError
}
