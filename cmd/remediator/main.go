// Command remediator wires every component described in the engine's design
// into a running process: config -> logger -> tracer -> cluster client ->
// store -> runbook table -> tool registry -> adjudicator backend ->
// workflow engine -> analysis composer -> dedup controller -> ingress
// adapter -> HTTP server, then runs until an OS signal asks it to stop.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fleetward/remediator/internal/config"
	"github.com/fleetward/remediator/internal/httpapi"
	"github.com/fleetward/remediator/internal/logging"
	"github.com/fleetward/remediator/internal/telemetry"
	"github.com/fleetward/remediator/pkg/adjudicator"
	"github.com/fleetward/remediator/pkg/analysis"
	"github.com/fleetward/remediator/pkg/dedup"
	"github.com/fleetward/remediator/pkg/ingress"
	"github.com/fleetward/remediator/pkg/k8s"
	"github.com/fleetward/remediator/pkg/runbook"
	"github.com/fleetward/remediator/pkg/store"
	"github.com/fleetward/remediator/pkg/toolset"
	"github.com/fleetward/remediator/pkg/workflow"
)

// ingressConcurrency bounds how many alerts from one webhook batch are
// fanned out at once. No environment knob names this in the external
// interface table, so it is fixed here rather than left unbounded.
const ingressConcurrency = 8

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tracer, shutdownTracer, err := telemetry.Setup(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("setup telemetry: %w", err)
	}
	defer shutdownTracer(context.Background())

	cluster, err := k8s.NewClient(cfg.Kubernetes, logger)
	if err != nil {
		return fmt.Errorf("build cluster client: %w", err)
	}

	policy, err := toolset.NewPolicy(ctx)
	if err != nil {
		return fmt.Errorf("compile safety policy: %w", err)
	}
	policyClient := toolset.NewPolicyAwareClient(cluster, policy, isLastReadyFunc(cluster))

	db, err := store.Open(cfg.Database.URL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := store.Migrate(db.DB); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	st := store.NewStore(db, logger)

	runbookTable, err := runbook.Load(cfg.Runbook.Dir, toolset.IsKnownAction)
	if err != nil {
		return fmt.Errorf("load runbooks: %w", err)
	}
	runbooks := runbook.NewHolder(runbookTable)
	if cfg.Runbook.Watch {
		if err := runbook.Watch(ctx, cfg.Runbook.Dir, toolset.IsKnownAction, logger, func(reloaded *runbook.Table) {
			runbooks.Store(reloaded)
			logger.Info("runbooks reloaded", zap.Int("count", reloaded.Count()))
		}); err != nil {
			return fmt.Errorf("watch runbooks: %w", err)
		}
	}

	registry := toolset.NewRegistry()
	for _, tool := range toolset.NewDiagnosticTools(cluster, runbooks) {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("register diagnostic tool %s: %w", tool.Name, err)
		}
	}
	for _, tool := range toolset.NewMutatingTools(policyClient) {
		if err := registry.Register(tool); err != nil {
			return fmt.Errorf("register mutating tool %s: %w", tool.Name, err)
		}
	}

	backend, err := buildAdjudicatorBackend(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build adjudicator backend: %w", err)
	}

	narrator, err := buildNarrator(cfg)
	if err != nil {
		return fmt.Errorf("build analysis narrator: %w", err)
	}

	engine := workflow.NewEngine(registry, backend, tracer, toolset.NewSchemaValidator())

	var notifier analysis.Notifier
	if cfg.Slack.WebhookURL != "" {
		notifier = analysis.NewSlackNotifier(cfg.Slack.WebhookURL)
	}
	composer := analysis.New(st, narrator, notifier, logger)

	controller := dedup.New(st, runbooks, engine, composer, cfg.AgentMode, logger)

	notifications, stopListener, err := dedup.NewInvalidationListener(cfg.Database.URL, logger)
	if err != nil {
		return fmt.Errorf("start invalidation listener: %w", err)
	}
	defer stopListener()
	go controller.ListenForInvalidation(ctx, notifications)

	adapter := ingress.New(controller, controller, ingressConcurrency, logger)

	api := httpapi.New(adapter, st, composer, registry, logger)
	apiServer := &http.Server{Addr: ":" + cfg.Server.Port, Handler: api.Router()}
	metricsServer := &http.Server{Addr: ":" + cfg.Server.MetricsPort, Handler: promhttp.Handler()}

	errs := make(chan error, 2)
	go func() { errs <- serve(apiServer, "api") }()
	go func() { errs <- serve(metricsServer, "metrics") }()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errs:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	_ = apiServer.Shutdown(shutdownCtx)
	_ = metricsServer.Shutdown(shutdownCtx)

	return nil
}

func serve(srv *http.Server, name string) error {
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

// isLastReadyFunc builds the safety policy's last-ready-node check: a node
// action is only flagged as touching the cluster's last ready node when
// at most one node currently reports Ready.
func isLastReadyFunc(cluster k8s.Client) func(ctx context.Context) (bool, error) {
	return func(ctx context.Context) (bool, error) {
		ready, err := cluster.CountReadyNodes(ctx)
		if err != nil {
			return false, err
		}
		return ready <= 1, nil
	}
}

// buildAdjudicatorBackend selects the provider per cfg.LLM.Provider, then
// wraps it with the circuit breaker (always) and the Redis determinism
// cache (only when REDIS_URL is configured).
func buildAdjudicatorBackend(ctx context.Context, cfg *config.Config) (adjudicator.Backend, error) {
	var backend adjudicator.Backend
	var err error

	switch cfg.LLM.Provider {
	case "anthropic":
		backend, err = adjudicator.NewAnthropicBackend(cfg.LLM)
	case "bedrock":
		backend, err = adjudicator.NewBedrockBackend(ctx, cfg.LLM)
	default:
		backend, err = adjudicator.NewOpenAIBackend(cfg.LLM)
	}
	if err != nil {
		return nil, err
	}

	backend = adjudicator.NewBreakerBackend(backend)

	if cfg.Redis.URL != "" {
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		backend = adjudicator.NewCachedBackend(backend, redis.NewClient(opts))
	}

	return backend, nil
}

// buildNarrator always builds a dedicated Anthropic backend for the
// Analysis Composer: it is the only backend that implements the free-form
// Narrator contract (pkg/adjudicator's ChooseTool is tool-identity
// constrained), independent of which provider LLM_PROVIDER selects for
// workflow adjudication. ANTHROPIC_API_KEY is therefore required
// regardless of LLM_PROVIDER.
func buildNarrator(cfg *config.Config) (adjudicator.Narrator, error) {
	backend, err := adjudicator.NewAnthropicBackend(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("analysis narration requires ANTHROPIC_API_KEY: %w", err)
	}
	narrator, ok := backend.(adjudicator.Narrator)
	if !ok {
		return nil, fmt.Errorf("anthropic backend does not implement Narrator")
	}
	return narrator, nil
}
