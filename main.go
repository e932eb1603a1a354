// intentd runs the goal-inference stack: a demo world (or an external
// environment feed in production deployments) produces one snapshot per
// control cycle, the scheduler infers per-agent goal beliefs, and the
// HTTP API exposes live beliefs, metrics, and stored runs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/intent.report/internal/api"
	"github.com/banshee-data/intent.report/internal/config"
	"github.com/banshee-data/intent.report/internal/geom"
	"github.com/banshee-data/intent.report/internal/infer"
	"github.com/banshee-data/intent.report/internal/monitoring"
	"github.com/banshee-data/intent.report/internal/runner"
	"github.com/banshee-data/intent.report/internal/sim"
	sqlitestore "github.com/banshee-data/intent.report/internal/storage/sqlite"
	"github.com/banshee-data/intent.report/internal/version"
)

var (
	listen     = flag.String("listen", ":8080", "Listen address")
	dbFile     = flag.String("db", "beliefs.db", "Belief store path (empty disables persistence)")
	configPath = flag.String("config", "", "Tuning config JSON (defaults to built-in values)")
	demoAgents = flag.Int("demo-agents", 3, "Number of demo agents")
	demoNoise  = flag.Float64("demo-noise", 0.05, "Demo velocity noise std dev (m/s)")
	debugLog   = flag.Bool("debug", false, "Enable per-tick debug diagnostics")
	showVer    = flag.Bool("version", false, "Print version and exit")
)

// demoGoals is the goal layout of the lab walking experiment: three
// waypoints on a 6x6 m arena.
var demoGoals = []geom.Vec2{{X: 3, Y: 0}, {X: 0, Y: 3}, {X: -3, Y: 0}}

func loadTuning() *config.TuningConfig {
	if *configPath == "" {
		cfg, err := config.LoadTuningConfig(config.DefaultConfigPath)
		if err != nil {
			log.Printf("no %s, using built-in defaults: %v", config.DefaultConfigPath, err)
			return config.EmptyTuningConfig()
		}
		return cfg
	}
	cfg, err := config.LoadTuningConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func buildDemoWorld(tuning *config.TuningConfig) *sim.World {
	predictor := &sim.PreferredSpeedPredictor{PreferredSpeed: 0.5, ArrivalRadius: 0.2}
	world, err := sim.NewWorld(sim.WorldConfig{
		Goals:          demoGoals,
		PreferredSpeed: 0.5,
		VelocityNoise:  *demoNoise,
		StepSeconds:    tuning.GetControlPeriod(),
		Seed:           time.Now().UnixNano(),
		StartUnixNanos: time.Now().UnixNano(),
	}, predictor)
	if err != nil {
		log.Fatalf("failed to build demo world: %v", err)
	}
	for i := 0; i < *demoAgents; i++ {
		id := uuid.NewString()[:8]
		pos := geom.Vec2{X: float64(i) - 1, Y: -2}
		if err := world.AddAgent(id, pos, i%len(demoGoals)); err != nil {
			log.Fatalf("failed to add demo agent: %v", err)
		}
	}
	return world
}

func main() {
	flag.Parse()

	if *showVer {
		fmt.Println("intentd", version.String())
		return
	}

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("intentd %s starting", version.String())

	tuning := loadTuning()
	monitoring.SetDebug(*debugLog)

	filter, err := infer.NewFilter(infer.FilterConfigFromTuning(tuning))
	if err != nil {
		log.Fatalf("failed to build filter: %v", err)
	}
	sched := infer.NewScheduler(filter, infer.SchedulerConfigFromTuning(tuning))
	if tuning.GetResetPriors() {
		sched.RequestReset()
	}

	var store *sqlitestore.BeliefStore
	var sink runner.Sink
	if *dbFile != "" {
		store, err = sqlitestore.Open(*dbFile)
		if err != nil {
			log.Fatalf("failed to open belief store: %v", err)
		}
		defer store.Close()

		paramsJSON, _ := json.Marshal(tuning)
		runID := uuid.NewString()
		if err := store.CreateRun(sqlitestore.Run{
			RunID:            runID,
			StartedUnixNanos: time.Now().UnixNano(),
			HypothesisCount:  len(demoGoals),
			ParamsJSON:       paramsJSON,
			Notes:            "intentd live session",
		}); err != nil {
			log.Fatalf("failed to create run: %v", err)
		}
		sink = sqlitestore.NewRunRecorder(store, runID)
		log.Printf("recording run %s to %s", runID, *dbFile)
	}

	world := buildDemoWorld(tuning)
	run, err := runner.New(sched, world, sink, tuning.GetTickInterval())
	if err != nil {
		log.Fatalf("failed to build runner: %v", err)
	}

	var wg sync.WaitGroup
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Inference loop
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := run.Run(ctx); err != nil && err != context.Canceled {
			log.Printf("inference loop stopped: %v", err)
			stop()
		}
		log.Print("inference loop terminated")
	}()

	// HTTP server
	wg.Add(1)
	go func() {
		defer wg.Done()

		mux := http.NewServeMux()
		srv := api.NewServer(run, sched, store, tuning)
		mux.Handle("/api/", http.StripPrefix("/api", srv.ServeMux()))
		srv.AttachChartRoutes(mux)

		server := &http.Server{
			Addr:    *listen,
			Handler: api.LoggingMiddleware(mux),
		}

		go func() {
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Fatalf("failed to start server: %v", err)
			}
		}()

		<-ctx.Done()
		log.Println("shutting down HTTP server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}()

	wg.Wait()
	log.Printf("Graceful shutdown complete")
}
