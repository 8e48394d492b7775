// Command pinnokio starts the orchestration service: it loads config,
// wires the stores, LLM client, session registry, agent loop, scheduler
// and callback resumer, and serves the WS/HTTP surface.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/kabsikabs/pinnokio/internal/agentloop"
	"github.com/kabsikabs/pinnokio/internal/authbootstrap"
	"github.com/kabsikabs/pinnokio/internal/callbackresumer"
	"github.com/kabsikabs/pinnokio/internal/config"
	"github.com/kabsikabs/pinnokio/internal/connmode"
	"github.com/kabsikabs/pinnokio/internal/contextctx"
	"github.com/kabsikabs/pinnokio/internal/llmclient"
	"github.com/kabsikabs/pinnokio/internal/lptclient"
	"github.com/kabsikabs/pinnokio/internal/scheduler"
	"github.com/kabsikabs/pinnokio/internal/sessionregistry"
	"github.com/kabsikabs/pinnokio/internal/store"
	"github.com/kabsikabs/pinnokio/internal/streambus"
	"github.com/kabsikabs/pinnokio/internal/tooldispatch"
	"github.com/kabsikabs/pinnokio/pkg/logger"
	"github.com/kabsikabs/pinnokio/pkg/wsserver"
)

func main() {
	if err := run(); err != nil {
		slog.Error("pinnokio exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := "config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, _ := logger.ParseLevel(cfg.LogLevel)
	logger.Init(level, os.Stderr, cfg.LogFormat)
	log := logger.GetLogger()

	docs, err := store.Open(store.Config{Dialect: cfg.Store.Dialect, DSN: cfg.ResolveDSN(), MaxConns: cfg.Store.MaxConns, MaxIdle: cfg.Store.MaxIdle})
	if err != nil {
		return err
	}
	defer docs.Close()

	transcripts := store.NewInMemoryTranscriptStore()
	ephemeral := store.NewInMemoryEphemeralStore()

	loader := contextctx.NewLoader(docs)

	newLLM := func(userID, companyID string) (llmclient.Client, error) {
		return llmclient.NewHTTPClient(llmclient.HTTPClientConfig{
			Endpoint:    cfg.LLM.Endpoint,
			APIKey:      cfg.ResolveAPIKey(),
			Model:       cfg.LLM.Model,
			MaxTokens:   cfg.LLM.MaxTokens,
			Temperature: cfg.LLM.Temperature,
			Timeout:     cfg.LLM.Timeout,
		})
	}

	registry := sessionregistry.New(sessionregistry.Config{
		ContextTTL:    cfg.Session.ContextTTL,
		IdleTimeout:   cfg.Session.IdleTimeout,
		SweepInterval: cfg.Session.SweepInterval,
	}, loader, newLLM, log)
	defer registry.Close()

	lpt := lptclient.New(docs, lptclient.Config{
		BaseURL:     cfg.Worker.BaseURL,
		Paths:       cfg.Worker.Paths,
		CallbackURL: cfg.Worker.CallbackURL,
		Timeout:     cfg.Worker.Timeout,
	}, registry)

	toolRegistry := tooldispatch.NewRegistry()
	toolRegistry.Register(tooldispatch.NewGetUserContextTool(registry))
	toolRegistry.Register(tooldispatch.NewGetStructuredDataTool(docs))
	if cfg.Vector.Endpoint != "" {
		vectors := tooldispatch.NewHTTPVectorStore(cfg.Vector.Endpoint, cfg.Vector.Timeout)
		toolRegistry.Register(tooldispatch.NewSearchVectorStoreTool(vectors, registry))
	}
	toolRegistry.Register(tooldispatch.NewAPBookkeeperTool())
	toolRegistry.Register(tooldispatch.NewDocumentRouterTool())
	toolRegistry.Register(tooldispatch.NewBankMatcherTool())
	dispatcher := tooldispatch.NewDispatcher(toolRegistry, lpt)

	summarizerLLM, err := newLLM("", "")
	if err != nil {
		return err
	}
	summarizer := agentloop.NewLLMSummarizer(summarizerLLM)

	loop := agentloop.New(agentloop.Config{
		MaxIterations: cfg.AgentLoop.MaxIterations,
		MaxTurns:      cfg.AgentLoop.MaxTurns,
		TokenBudget:   cfg.AgentLoop.TokenBudget,
	}, toolRegistry, dispatcher, summarizer, log)

	oracle := connmode.NewOracle(ephemeral)
	hub := streambus.NewHub(log)
	bus := streambus.New(transcripts, hub, oracle)

	resumer := callbackresumer.New(docs, registry, loop, bus, oracle, log)

	verifier, err := authbootstrap.NewTokenVerifier(context.Background(), authbootstrap.Config{
		JWKSURL:  cfg.Auth.JWKSURL,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	})
	if err != nil {
		return err
	}
	bootstrap := authbootstrap.New(verifier, ephemeral)

	sched := scheduler.New(docs, lpt, log)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sched.Start(ctx)
	defer sched.Stop()

	server := wsserver.New(hub, bootstrap, oracle, registry, loop, bus, resumer, log)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info("shutting down")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	return httpServer.Shutdown(shutdownCtx)
}
