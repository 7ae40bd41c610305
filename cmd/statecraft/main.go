// Command statecraft runs the nation game server: player actions over
// HTTP, and the world ticking forward on its own.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vkotenev/statecraft/internal/api"
	"github.com/vkotenev/statecraft/internal/config"
	"github.com/vkotenev/statecraft/internal/events"
	"github.com/vkotenev/statecraft/internal/game"
	"github.com/vkotenev/statecraft/internal/gameclock"
	"github.com/vkotenev/statecraft/internal/llm"
	"github.com/vkotenev/statecraft/internal/notify"
	"github.com/vkotenev/statecraft/internal/projects"
	"github.com/vkotenev/statecraft/internal/scheduler"
	"github.com/vkotenev/statecraft/internal/semstore"
	"github.com/vkotenev/statecraft/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	configPath := flag.String("config", "statecraft.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("configuration invalid", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Stores ────────────────────────────────────────────────────────
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		slog.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("database opened", "path", cfg.DBPath)

	sem, err := semstore.Open(cfg.SemStorePath)
	if err != nil {
		slog.Error("failed to open semantic store", "error", err)
		os.Exit(1)
	}
	defer sem.Close()
	slog.Info("semantic store opened", "path", cfg.SemStorePath)

	// ── Game clock ────────────────────────────────────────────────────
	clock, err := gameclock.New(db, cfg.Clock)
	if err != nil {
		slog.Error("failed to load game clock", "error", err)
		os.Exit(1)
	}
	slog.Info("game clock running", "year", gameclock.FormatYear(clock.CurrentYear()))

	// ── Text model ────────────────────────────────────────────────────
	var inner llm.Generator
	switch cfg.Provider {
	case "anthropic":
		inner, err = llm.NewAnthropic(cfg.AnthropicKey, cfg.Generation.Model, cfg.Generation.MinInterval)
	case "gemini":
		inner, err = llm.NewGemini(ctx, cfg.GeminiKey, cfg.Generation.Model)
	default:
		err = fmt.Errorf("unknown provider %q", cfg.Provider)
	}
	if err != nil {
		slog.Error("failed to build text model client", "provider", cfg.Provider, "error", err)
		os.Exit(1)
	}
	gen := llm.NewGate(inner, cfg.Generation.Timeout)
	slog.Info("text model ready", "provider", cfg.Provider, "model", cfg.Generation.Model)

	// ── Engine ────────────────────────────────────────────────────────
	inbox := notify.NewMemorySink()
	sink := notify.Tee{notify.LogSink{}, inbox}

	applier := game.NewApplier(db, sem, gen, sink, clock, cfg.Generation, cfg.Apply.PersistRetries)
	manager := projects.NewManager(db, sem, gen, applier, clock, sink, cfg.Generation)
	pipeline := game.NewPipeline(db, sem, applier, gen, clock, manager, cfg.Generation, true)
	eventGen := events.NewGenerator(db, sem, gen, applier, clock, sink, cfg.Generation, 0)

	// ── Scheduler ─────────────────────────────────────────────────────
	runner := scheduler.NewRunner()
	scheduler.RegisterWorldJobs(runner, scheduler.Deps{
		Store:   db,
		Clock:   clock,
		Gen:     gen,
		Applier: applier,
		Sweeper: manager,
		Events:  eventGen,
		Sink:    sink,
		GenCfg:  cfg.Generation,
		Sched:   cfg.Scheduler,
	}, time.Now().UnixNano())
	runner.Start(ctx)

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.AdminKey == "" {
		slog.Warn("STATECRAFT_ADMIN_KEY not set — admin endpoints disabled")
	}
	server := &api.Server{
		Resolver:   pipeline,
		Store:      db,
		Clock:      clock,
		Jobs:       runner,
		Inbox:      inbox,
		Port:       cfg.HTTPPort,
		AdminKey:   cfg.AdminKey,
		ResetClock: func() error { return clock.Reset(db) },
	}
	server.Start()

	fmt.Printf("Statecraft is running. Year %s. API: http://localhost:%d/api/v1/status\n",
		gameclock.FormatYear(clock.CurrentYear()), cfg.HTTPPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	cancel()
	runner.Wait()
	fmt.Println("Statecraft stopped.")
}
