// replay feeds a recorded snapshot log (one JSON TickInput per line)
// through the inference scheduler and stores the resulting belief
// traces, so filter tunings can be compared offline against the same
// experiment data.
//
// Usage:
//
//	replay -in session.jsonl -db beliefs.db [-config tuning.json] [-notes "floor sweep 0.002"]
package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/intent.report/internal/config"
	"github.com/banshee-data/intent.report/internal/infer"
	sqlitestore "github.com/banshee-data/intent.report/internal/storage/sqlite"
)

var (
	inFile     = flag.String("in", "", "Snapshot log: one TickInput JSON per line (required)")
	dbFile     = flag.String("db", "beliefs.db", "Belief store path")
	configPath = flag.String("config", "", "Tuning config JSON (defaults to built-in values)")
	notes      = flag.String("notes", "", "Free-form note stored with the run")
)

func main() {
	flag.Parse()
	if *inFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	tuning := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		tuning, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
	}

	filter, err := infer.NewFilter(infer.FilterConfigFromTuning(tuning))
	if err != nil {
		log.Fatalf("failed to build filter: %v", err)
	}
	sched := infer.NewScheduler(filter, infer.SchedulerConfigFromTuning(tuning))

	store, err := sqlitestore.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open belief store: %v", err)
	}
	defer store.Close()

	in, err := os.Open(*inFile)
	if err != nil {
		log.Fatalf("failed to open snapshot log: %v", err)
	}
	defer in.Close()

	runID := uuid.NewString()
	paramsJSON, _ := json.Marshal(tuning)

	var created bool
	var ticks, skipped int

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var snap infer.TickInput
		if err := json.Unmarshal(raw, &snap); err != nil {
			log.Fatalf("line %d: invalid snapshot: %v", line, err)
		}

		if !created {
			if err := store.CreateRun(sqlitestore.Run{
				RunID:            runID,
				StartedUnixNanos: time.Now().UnixNano(),
				HypothesisCount:  snap.HypothesisCount,
				ParamsJSON:       paramsJSON,
				Notes:            *notes,
			}); err != nil {
				log.Fatalf("failed to create run: %v", err)
			}
			created = true
		}

		res, err := sched.Tick(snap)
		if err != nil {
			log.Fatalf("line %d: tick failed: %v", line, err)
		}
		if err := store.RecordTick(runID, res); err != nil {
			log.Fatalf("line %d: failed to record tick: %v", line, err)
		}
		ticks++
		skipped += len(res.Skipped)
	}
	if err := scanner.Err(); err != nil {
		log.Fatalf("failed to read snapshot log: %v", err)
	}
	if !created {
		log.Fatal("snapshot log contained no snapshots")
	}

	m := sched.Metrics()
	fmt.Printf("run %s: %d ticks, %d agent-skips, %d live tracks, mean entropy %.3f bits, degenerate ratio %.4f\n",
		runID, ticks, skipped, m.ActiveTracks, m.MeanEntropyBits, m.DegenerateRatio)
}
