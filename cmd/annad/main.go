// annad is Anna's host-resident daemon: it loads configuration, starts the
// background Scheduler, and serves the RPC Server until told to stop.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/anna-project/annad/pkg/advice"
	"github.com/anna-project/annad/pkg/cleanup"
	"github.com/anna-project/annad/pkg/config"
	"github.com/anna-project/annad/pkg/database"
	"github.com/anna-project/annad/pkg/events"
	"github.com/anna-project/annad/pkg/executor"
	"github.com/anna-project/annad/pkg/facts"
	"github.com/anna-project/annad/pkg/llm"
	"github.com/anna-project/annad/pkg/masking"
	"github.com/anna-project/annad/pkg/probe"
	"github.com/anna-project/annad/pkg/qa"
	"github.com/anna-project/annad/pkg/recipe"
	"github.com/anna-project/annad/pkg/rollback"
	"github.com/anna-project/annad/pkg/rpc"
	"github.com/anna-project/annad/pkg/scheduler"
	"github.com/anna-project/annad/pkg/telemetry"
	"github.com/anna-project/annad/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("ANNAD_CONFIG_DIR", "/etc/anna"),
		"Path to configuration directory")
	socketPath := flag.String("socket",
		getEnv("ANNAD_SOCKET", ""),
		"Path to the Unix-domain RPC socket (default: discovery order in §4.11)")
	debugAddr := flag.String("debug-addr",
		getEnv("ANNAD_DEBUG_ADDR", "127.0.0.1:8900"),
		"Loopback address for the /healthz and /metricz debug HTTP side-channel")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("could not load %s: %v (continuing with existing environment)", envPath, err)
	}

	logger := slog.Default()
	logger.Info("starting annad", "version", version.Full(), "config_dir", *configDir)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Initialize(ctx, *configDir)
	if err != nil {
		log.Fatalf("failed to initialize configuration: %v", err)
	}
	configHolder := rpc.NewConfigHolder(cfg)

	dbConfig, err := database.LoadConfigFromEnv()
	if err != nil {
		log.Fatalf("failed to load database config: %v", err)
	}
	dbClient, err := database.NewClient(ctx, dbConfig)
	if err != nil {
		log.Fatalf("failed to open telemetry database: %v", err)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logger.Error("error closing database client", "error", err)
		}
	}()

	telemetryStore := telemetry.New(dbClient, config.DefaultRetentionConfig().RingBufferCapacity)

	factsPath := filepath.Join(dataDir(), "facts.json")
	factsStore, err := facts.New(factsPath, facts.ReadBootID)
	if err != nil {
		log.Fatalf("failed to open learned-facts store: %v", err)
	}

	masker := masking.NewService()
	probes := probe.NewRegistry()
	probe.RegisterBuiltins(probes, masker)

	ledgerPath := filepath.Join(dataDir(), "rollback.json")
	ledger, err := rollback.New(ledgerPath)
	if err != nil {
		log.Fatalf("failed to open rollback ledger: %v", err)
	}

	executorSvc := executor.New(ledger, rpc.ConfirmFromRequest(), logger)
	recipes := recipe.DefaultRegistry(logger)
	adviceEngine := advice.DefaultEngine()
	eventsManager := events.NewManager()

	llmBaseURL := getEnv("ANNA_LLM_BASE_URL", "http://127.0.0.1:8090")
	llmClient, err := llm.NewClient(llmBaseURL, llm.WithLogger(logger))
	if err != nil {
		log.Fatalf("failed to configure LLM client: %v", err)
	}

	loopFactory := func(publisher *events.Publisher) *qa.Loop {
		return qa.New(
			qa.NewLLMTranslator(llmClient, publisher),
			qa.NewLLMJunior(llmClient, publisher),
			qa.NewLLMSenior(llmClient, publisher),
			probes,
			publisher,
		)
	}

	runTask := func(taskCtx context.Context, task config.ScheduledTask) {
		logger.Info("running scheduled task", "task", task.Name)
		if dropped, err := factsStore.CheckAndInvalidate(facts.StatPackageLogMtime); err != nil {
			logger.Error("scheduled task: fact invalidation failed", "task", task.Name, "error", err)
		} else if dropped {
			logger.Info("scheduled task dropped stale package facts", "task", task.Name)
		}
	}

	sched := scheduler.New(&cfg.Scheduler, factsStore, telemetryStore, probes, runTask, logger)
	sched.Start(ctx)
	defer sched.Stop()

	cleanupSvc := cleanup.NewService(config.DefaultRetentionConfig(), factsStore, telemetryStore)
	cleanupSvc.Start(ctx)
	defer cleanupSvc.Stop()

	rpcServer := rpc.NewServer(rpc.Deps{
		Config:    configHolder,
		Facts:     factsStore,
		Telemetry: telemetryStore,
		Probes:    probes,
		Scheduler: sched,
		Advice:    adviceEngine,
		Recipes:   recipes,
		Executor:  executorSvc,
		Ledger:    ledger,
		Events:    eventsManager,
		LoopFn:    loopFactory,
		Logger:    logger,
	})

	resolvedSocket := rpc.ResolveSocketPath(*socketPath)
	listener, err := rpc.Listen(resolvedSocket)
	if err != nil {
		log.Fatalf("failed to bind RPC socket %s: %v", resolvedSocket, err)
	}
	logger.Info("rpc server listening", "socket", resolvedSocket)

	go rpcServer.Serve(listener)
	defer rpcServer.Stop()

	debugServer := rpc.NewDebugServer(rpcServer)
	debugListener, err := listenDebugAddr(*debugAddr)
	if err != nil {
		logger.Error("failed to bind debug HTTP listener, continuing without it", "addr", *debugAddr, "error", err)
	} else {
		logger.Info("debug http server listening", "addr", *debugAddr)
		go func() {
			if err := debugServer.StartWithListener(debugListener); err != nil {
				logger.Warn("debug http server stopped", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), debugShutdownTimeout)
			defer shutdownCancel()
			_ = debugServer.Shutdown(shutdownCtx)
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down annad")
}

// debugShutdownTimeout bounds the debug HTTP server's graceful shutdown.
const debugShutdownTimeout = 5 * time.Second

// dataDir resolves the XDG-style data directory Anna's on-disk stores live
// under, mirroring database.LoadConfigFromEnv's own XDG_DATA_HOME fallback.
func dataDir() string {
	if path := os.Getenv("ANNAD_DATA_DIR"); path != "" {
		return path
	}
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "/var/lib"
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	dir := filepath.Join(dataHome, "anna")
	_ = os.MkdirAll(dir, 0o750)
	return dir
}

func listenDebugAddr(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}
