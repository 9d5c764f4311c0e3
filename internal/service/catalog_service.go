// Package service contains application services wiring the domain core to
// its ports.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/codemode-gw/codemode/internal/domain/catalog"
	"github.com/codemode-gw/codemode/internal/port/outbound"
	"github.com/codemode-gw/codemode/internal/telemetry"
)

// upstreamConn is the live connection state for one configured upstream:
// its reusable MCPClient plus the status last observed by discovery.
type upstreamConn struct {
	desc      catalog.UpstreamDescriptor
	client    outbound.MCPClient
	status    catalog.ConnectionStatus
	lastError string
}

// CatalogService builds the Catalog from configured upstreams, keeps it
// refreshed on a timer, and retries upstreams that failed or returned zero
// tools at the last attempt. It owns the long-lived MCPClient per upstream
// that the execution sandbox's callMCPTool dispatches through.
type CatalogService struct {
	store         *catalog.Store
	clientFactory outbound.ClientFactory
	logger        *slog.Logger
	retryInterval time.Duration
	metrics       *telemetry.Metrics

	mu      sync.RWMutex
	conns   map[string]*upstreamConn

	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool
	stopMu  sync.Mutex
}

// NewCatalogService creates a CatalogService backed by the given Store
// (which may start out empty — call Discover to populate it). metrics may
// be nil.
func NewCatalogService(store *catalog.Store, clientFactory outbound.ClientFactory, logger *slog.Logger, metrics *telemetry.Metrics) *CatalogService {
	ctx, cancel := context.WithCancel(context.Background())
	return &CatalogService{
		store:         store,
		clientFactory: clientFactory,
		logger:        logger,
		retryInterval: 60 * time.Second,
		metrics:       metrics,
		conns:         make(map[string]*upstreamConn),
		ctx:           ctx,
		cancel:        cancel,
	}
}

// Connect registers an upstream and (re)establishes its client connection,
// reusing an existing client if one is already connected.
func (s *CatalogService) Connect(desc catalog.UpstreamDescriptor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conns[desc.Name]; ok {
		return
	}
	s.conns[desc.Name] = &upstreamConn{desc: desc, client: s.clientFactory(desc), status: catalog.StatusConnecting}
}

// DiscoverAll runs initialize + tools/list against every connected upstream
// and atomically swaps a freshly built Catalog into the Store
// (copy-on-write, spec §9). Upstreams that fail are kept in the catalog,
// marked degraded, with their previously known tool set retained.
func (s *CatalogService) DiscoverAll(ctx context.Context) {
	s.mu.RLock()
	conns := make([]*upstreamConn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.RUnlock()

	prev := s.store.Snapshot()
	builder := catalog.NewBuilder()

	for _, c := range conns {
		tools, status, errMsg := s.discoverOne(ctx, c)

		s.mu.Lock()
		c.status = status
		c.lastError = errMsg
		s.mu.Unlock()

		if len(tools) == 0 && status != catalog.StatusConnected {
			// Keep the previously known tool set for a degraded upstream
			// so in-flight callers are not stranded by a transient blip.
			if prevTools, ok := prev.Tools(c.desc.Name); ok {
				tools = prevTools
			}
		}

		if err := builder.AddUpstream(c.desc, tools, status); err != nil {
			s.logger.Error("catalog rejected upstream", "upstream", c.desc.Name, "error", err)
		}
	}

	next := builder.Build()
	s.store.Swap(next)

	if s.metrics != nil {
		connected := 0
		for _, up := range next.Upstreams() {
			if _, status, ok := next.Upstream(up.Name); ok && status == catalog.StatusConnected {
				connected++
			}
		}
		s.metrics.ActiveUpstreams.Set(float64(connected))
	}
}

func (s *CatalogService) discoverOne(ctx context.Context, c *upstreamConn) ([]catalog.ToolDescriptor, catalog.ConnectionStatus, string) {
	if err := c.client.Initialize(ctx); err != nil {
		s.logger.Warn("upstream initialize failed", "upstream", c.desc.Name, "error", err)
		return nil, catalog.StatusDegraded, err.Error()
	}
	tools, err := c.client.ListTools(ctx)
	if err != nil {
		s.logger.Warn("upstream tools/list failed", "upstream", c.desc.Name, "error", err)
		return nil, catalog.StatusDegraded, err.Error()
	}
	s.logger.Info("discovered tools", "upstream", c.desc.Name, "tools", len(tools))
	return tools, catalog.StatusConnected, ""
}

// Client returns the shared, long-lived MCPClient for a connected upstream.
func (s *CatalogService) Client(upstreamName string) (outbound.MCPClient, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conns[upstreamName]
	if !ok {
		return nil, false
	}
	return c.client, true
}

// StartPeriodicRefresh runs DiscoverAll on a timer until the service is
// stopped or ctx is cancelled.
func (s *CatalogService) StartPeriodicRefresh(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.retryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.DiscoverAll(ctx)
			case <-ctx.Done():
				return
			case <-s.ctx.Done():
				return
			}
		}
	}()
}

// Stop cancels background refresh and closes every upstream client. Safe to
// call multiple times.
func (s *CatalogService) Stop(ctx context.Context) {
	s.stopMu.Lock()
	if s.stopped {
		s.stopMu.Unlock()
		return
	}
	s.stopped = true
	s.stopMu.Unlock()

	s.cancel()

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conns {
		_ = c.client.Close(ctx)
	}
}
