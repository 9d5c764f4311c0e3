// Package cmd provides the CLI commands for Codemode Gateway.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	stdhttp "net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	httpadapter "github.com/codemode-gw/codemode/internal/adapter/inbound/http"
	"github.com/codemode-gw/codemode/internal/adapter/inbound/mcpserver"
	"github.com/codemode-gw/codemode/internal/adapter/outbound/cel"
	"github.com/codemode-gw/codemode/internal/adapter/outbound/credentials"
	"github.com/codemode-gw/codemode/internal/adapter/outbound/mcpclient"
	"github.com/codemode-gw/codemode/internal/adapter/outbound/memory"
	"github.com/codemode-gw/codemode/internal/config"
	"github.com/codemode-gw/codemode/internal/domain/allowlist"
	"github.com/codemode-gw/codemode/internal/domain/catalog"
	"github.com/codemode-gw/codemode/internal/domain/policy"
	"github.com/codemode-gw/codemode/internal/domain/ratelimit"
	"github.com/codemode-gw/codemode/internal/port/outbound"
	"github.com/codemode-gw/codemode/internal/sandbox/exec"
	"github.com/codemode-gw/codemode/internal/sandbox/typecheck"
	"github.com/codemode-gw/codemode/internal/service"
	"github.com/codemode-gw/codemode/internal/telemetry"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the gateway",
	Long: `Start the Codemode Gateway: connect to every configured upstream MCP
server, build the initial function catalog, and serve list_functions,
get_function_details, and execute over streamable-HTTP MCP.

Examples:
  # Start with config file settings
  codemode-gw start

  # Start with a specific config file
  codemode-gw --config /path/to/config.yaml start`,
	RunE: runStart,
}

var devMode bool

func init() {
	startCmd.Flags().BoolVar(&devMode, "dev", false, "Enable development mode (verbose logging, permissive default policy)")
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if devMode {
		cfg.DevMode = true
	}
	cfg.SetDevDefaults()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop() // Restore default: next Ctrl+C = immediate exit.
	}()

	logLevel := parseLogLevel(cfg.Server.LogLevel)
	if cfg.DevMode {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	logger.Debug("log level configured", "level", cfg.Server.LogLevel, "effective", logLevel.String())

	if configFile := config.ConfigFileUsed(); configFile != "" {
		logger.Info("loaded config", "file", configFile)
	}

	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("codemode-gw stopped")
	return nil
}

// run wires every collaborator the gateway needs and serves the downstream
// MCP transport until ctx is cancelled.
func run(ctx context.Context, cfg *config.GatewayConfig, logger *slog.Logger) error {
	registry := prometheus.NewRegistry()
	metrics := telemetry.NewMetrics(registry)
	httpMetrics := httpadapter.NewMetrics(registry)

	tracerProvider, err := telemetry.NewTracerProvider(ctx, "codemode-gw", os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to start tracer provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tracerProvider.Shutdown(shutdownCtx)
	}()

	// Resolve auth refs per upstream and build the credential provider
	// (spec §4.1, §4.6).
	refs := make(map[string]string, len(cfg.Servers))
	for _, s := range cfg.Servers {
		refs[s.Name] = s.AuthRef
	}
	credProvider := credentials.New(refs)

	var clientFactory outbound.ClientFactory = func(desc catalog.UpstreamDescriptor) outbound.MCPClient {
		return mcpclient.New(desc, credProvider)
	}

	store := catalog.NewStore(nil)
	catalogService := service.NewCatalogService(store, clientFactory, logger, metrics)

	baseURLs := make([]string, 0, len(cfg.Servers))
	for _, s := range cfg.Servers {
		catalogService.Connect(catalog.UpstreamDescriptor{Name: s.Name, URL: s.URL})
		baseURLs = append(baseURLs, s.URL)
	}

	catalogService.DiscoverAll(ctx)
	catalogService.StartPeriodicRefresh(ctx)
	defer catalogService.Stop(context.Background())

	connected := 0
	for _, up := range store.Snapshot().Upstreams() {
		if _, status, ok := store.Snapshot().Upstream(up.Name); ok && status == catalog.StatusConnected {
			connected++
		}
	}
	logger.Info("catalog discovery complete", "upstreams", len(cfg.Servers), "connected", connected)

	allow, err := allowlist.New(baseURLs, nil)
	if err != nil {
		return fmt.Errorf("failed to build host allow-list: %w", err)
	}

	gate, err := buildPolicyGate(cfg)
	if err != nil {
		return fmt.Errorf("failed to build policy gate: %w", err)
	}
	logger.Info("policy gate configured", "rules", len(cfg.Policy.Rules))

	checker := typecheck.NewChecker("")
	if cfg.TypeCheck.CompilerPath != "" {
		c, err := typecheck.NewCheckerFromFile(cfg.TypeCheck.CompilerPath)
		if err != nil {
			return fmt.Errorf("failed to load TypeScript compiler bundle: %w", err)
		}
		checker = c
		logger.Info("type-check sandbox running in full-compiler mode", "compiler_path", cfg.TypeCheck.CompilerPath)
	} else {
		logger.Info("type-check sandbox running in fallback mode (no compiler_path configured)")
	}

	sandbox := exec.New(catalogService.Client, allow, gate, metrics).WithSoftCapCalls(cfg.Execution.SoftCapCalls)

	var limiter *memory.MemoryRateLimiter
	if cfg.RateLimit.Enabled {
		limiter = memory.NewRateLimiter()
		limiter.StartCleanup(ctx)
		defer limiter.Stop()
		sandbox = sandbox.WithRateLimit(limiter, ratelimit.RateLimitConfig{
			Rate:   cfg.RateLimit.CallsPerMinute,
			Burst:  cfg.RateLimit.Burst,
			Period: time.Minute,
		})
		logger.Info("rate limiting enabled", "calls_per_minute", cfg.RateLimit.CallsPerMinute, "burst", cfg.RateLimit.Burst)
	}

	gatewayService := service.NewGatewayService(store, checker, sandbox, logger, metrics)
	if d, err := time.ParseDuration(cfg.Execution.DefaultTimeout); err == nil {
		gatewayService = gatewayService.WithDefaultTimeout(d)
	} else {
		logger.Warn("invalid execution.default_timeout, using built-in default", "value", cfg.Execution.DefaultTimeout, "error", err)
	}
	mcpHandler := mcpserver.New(gatewayService, "codemode-gw", Version)

	healthChecker := httpadapter.NewHealthChecker(store, Version)

	mux := stdhttp.NewServeMux()
	mux.Handle("/mcp", mcpHandler)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.Handle("/health", healthChecker.Handler())

	handler := httpadapter.MetricsMiddleware(httpMetrics)(httpadapter.RequestLoggingMiddleware(logger)(mux))

	server := &stdhttp.Server{
		Addr:         cfg.Server.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	serveErrCh := make(chan error, 1)
	go func() {
		logger.Info("codemode-gw listening", "addr", cfg.Server.HTTPAddr, "dev_mode", cfg.DevMode)
		if err := server.ListenAndServe(); err != nil && err != stdhttp.ErrServerClosed {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-serveErrCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildPolicyGate compiles the configured policy rules into a StaticGate,
// or returns policy.AllowAllGate{} when none are configured — the pure
// additive default (spec §4 is silent on access control; the gate never
// default-denies).
func buildPolicyGate(cfg *config.GatewayConfig) (policy.Gate, error) {
	if len(cfg.Policy.Rules) == 0 {
		return policy.AllowAllGate{}, nil
	}

	evaluator, err := cel.NewEvaluator()
	if err != nil {
		return nil, fmt.Errorf("creating CEL evaluator: %w", err)
	}

	rules := make([]policy.Rule, len(cfg.Policy.Rules))
	for i, r := range cfg.Policy.Rules {
		rules[i] = policy.Rule{Name: r.Name, Condition: r.Condition, Action: policy.Action(r.Action)}
	}

	return policy.NewStaticGate(rules, evaluator)
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// pidFilePath returns the standard location for the Codemode Gateway PID file.
func pidFilePath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".codemode-gw", "server.pid")
	}
	return filepath.Join(os.TempDir(), "codemode-gw-server.pid")
}

// writePIDFile writes the current process PID to the given path, creating
// parent directories as needed.
func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}
