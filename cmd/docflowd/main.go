// Command docflowd is the docflow session runtime daemon: it wires
// configuration, the signal bus, the session registry, the render
// orchestrator, and the checkpoint/audit stores into an HTTP+WebSocket
// API server, then serves until signaled to stop.
//
// Grounded on pkg/app/container.go's composition-root shape (one
// NewContainer call wiring every repository and service by hand) and
// the graceful-shutdown pattern used throughout the teacher's service
// entrypoints, generalized to os/signal.NotifyContext since no main.go
// survived retrieval for this repo.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docflow/docflow/internal/agent"
	"github.com/docflow/docflow/internal/api"
	"github.com/docflow/docflow/internal/audit"
	"github.com/docflow/docflow/internal/bus"
	"github.com/docflow/docflow/internal/checkpoint"
	"github.com/docflow/docflow/internal/config"
	"github.com/docflow/docflow/internal/domain"
	"github.com/docflow/docflow/internal/frontmatter"
	"github.com/docflow/docflow/internal/logger"
	"github.com/docflow/docflow/internal/mdrender"
	"github.com/docflow/docflow/internal/registry"
	"github.com/docflow/docflow/internal/render"
	"github.com/docflow/docflow/internal/rendersvc"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("loading config", "error", err.Error())
		os.Exit(1)
	}

	log := logger.New(slog.LevelInfo)
	log.InfoCF("main", "starting docflowd", logger.Fields{"workspace": cfg.WorkspaceRoot})

	auditStore, err := audit.Open(cfg.AuditDBPath)
	if err != nil {
		log.ErrorCF("main", "opening audit store failed", logger.Fields{"error": err.Error()})
		os.Exit(1)
	}
	defer auditStore.Close()

	signalBus := bus.New(
		bus.WithMaxQueueLen(cfg.MaxQueueLen),
		bus.WithMaxPayloadBytes(cfg.PayloadTruncateBytes),
	)

	renderer := mdrender.New()
	orchestrator := render.New(renderer, cfg.RenderCircuitThreshold, cfg.RenderCircuitCooldown())
	worker := rendersvc.NewWorker(signalBus, 0)

	sessionRegistry := registry.New(cfg.HistoryDepth)
	checkpoints := checkpoint.NewStore(cfg.CheckpointDir)
	authorizer := agent.NewAuthorizer(nil)
	authorizer.Custom = api.NewOAuth2Hook(cfg, cfg.PolicyURL)

	deps := agent.Deps{
		WorkspaceRoot:    cfg.WorkspaceRoot,
		Frontmatter:      frontmatter.NewRegistry(),
		Checkpoints:      checkpoints,
		CheckpointOnEdit: true,
		Bus:              signalBus,
		Audit:            auditStore,
		Renderer:         orchestrator,
		RenderWorker:     worker,
		Authorizer:       authorizer,
		Retry: agent.RetryPolicy{
			MaxAttempts: cfg.RetryMaxAttempts,
			BaseBackoff: cfg.RetryBaseBackoff(),
			MaxBackoff:  cfg.RetryMaxBackoff(),
		},
	}

	manager := api.NewManager(sessionRegistry, deps)
	wsHub := api.NewWSHub(signalBus, log)
	server := api.NewServer(cfg, log, manager, wsHub)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	worker.Run(ctx, rendersvc.DefaultConcurrency)

	go sessionRegistry.RunIdleReclaimer(ctx, 30*time.Second, cfg.IdleReclaim(), func(ids []domain.SessionID) {
		manager.ForgetAll(ids)
		log.InfoCF("main", "reclaimed idle sessions", logger.Fields{"count": len(ids)})
	})

	if err := server.Start(ctx); err != nil {
		log.ErrorCF("main", "server failed to start", logger.Fields{"error": err.Error()})
		os.Exit(1)
	}

	<-ctx.Done()
	log.InfoC("main", "shutting down")
	if err := server.Stop(); err != nil {
		log.ErrorCF("main", "graceful shutdown failed", logger.Fields{"error": err.Error()})
	}
}
