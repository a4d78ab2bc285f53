// Command aide-server runs the personal assistant server: memory-backed
// agent, session management, and the WebSocket streaming protocol.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/entrhq/aide/pkg/agent"
	"github.com/entrhq/aide/pkg/assistant/tools"
	"github.com/entrhq/aide/pkg/config"
	"github.com/entrhq/aide/pkg/llm/openai"
	"github.com/entrhq/aide/pkg/logging"
	"github.com/entrhq/aide/pkg/memory"
	"github.com/entrhq/aide/pkg/server"
	"github.com/entrhq/aide/pkg/session"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "aide-server: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to config.yaml (defaults to ~/.aide/config.yaml)")
	addr := flag.String("addr", "", "listen address override")
	flag.Parse()

	// Optional; env vars may also come from the shell.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	log, err := logging.NewLogger("main")
	if err != nil {
		return err
	}
	defer log.Close()

	dataDir, err := cfg.DataDir()
	if err != nil {
		return err
	}
	store, err := memory.NewFileStore(dataDir)
	if err != nil {
		return err
	}
	facade := memory.NewFacade(store)

	providerOpts := []openai.ProviderOption{openai.WithModel(cfg.LLM.Model)}
	if cfg.LLM.BaseURL != "" {
		providerOpts = append(providerOpts, openai.WithBaseURL(cfg.LLM.BaseURL))
	}
	provider, err := openai.NewProvider(cfg.LLM.APIKey, providerOpts...)
	if err != nil {
		return err
	}

	chain := tools.NewResolverChain(cfg.Session.OwnerUserID)
	var toolsetOpts []tools.ToolsetOption
	if cfg.Session.OwnerUserID != "" {
		toolsetOpts = append(toolsetOpts, tools.WithFixedUserID(cfg.Session.OwnerUserID))
	}
	toolset := tools.NewMemoryToolset(facade, toolsetOpts...)
	registry := tools.NewRegistry()
	registry.RegisterAll(toolset.Tools())
	registry.RegisterAll(toolset.PlannerTools())

	runner := agent.NewRunner(provider, registry, facade, agent.WithResolverChain(chain))

	provisioner := session.NewFallbackProvisioner(
		session.NewDockerProvisioner(cfg.Session.SandboxImage),
		session.NewFilesystemProvisioner(dataDir),
	)
	sessions := session.NewManager(provisioner, cfg.Approval.AutoApprove,
		session.WithOwnerUserID(cfg.Session.OwnerUserID),
		session.WithIdleTimeout(cfg.IdleTimeout()),
		session.WithSweepInterval(cfg.SweepInterval()))
	if err := sessions.Start(); err != nil {
		return err
	}

	srv := server.New(cfg, runner, sessions, facade)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		sessions.Stop(context.Background())
		return err
	case sig := <-sigCh:
		log.Infof("received %s, shutting down", sig)
		if err := srv.Shutdown(); err != nil {
			log.Errorf("shutdown: %v", err)
		}
		sessions.Stop(context.Background())
		return nil
	}
}
