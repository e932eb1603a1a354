// belief-plot renders a stored belief trace to a PNG: one line per goal
// hypothesis, belief mass on the Y axis, time on the X axis. Useful for
// eyeballing convergence speed and floor recoveries after a replay.
//
// Usage:
//
//	belief-plot -db beliefs.db -run <run-id> -agent <agent-id> [-out beliefs.png]
package main

import (
	"flag"
	"fmt"
	"image/color"
	"log"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	sqlitestore "github.com/banshee-data/intent.report/internal/storage/sqlite"
)

var (
	dbFile  = flag.String("db", "beliefs.db", "Belief store path")
	runID   = flag.String("run", "", "Run ID (required; see 'replay' output or /api/runs)")
	agentID = flag.String("agent", "", "Agent ID (required; lists agents when omitted)")
	outFile = flag.String("out", "beliefs.png", "Output PNG path")
)

// lineColors cycles per goal hypothesis.
var lineColors = []color.RGBA{
	{R: 214, G: 39, B: 40, A: 255},
	{R: 31, G: 119, B: 180, A: 255},
	{R: 44, G: 160, B: 44, A: 255},
	{R: 255, G: 127, B: 14, A: 255},
	{R: 148, G: 103, B: 189, A: 255},
	{R: 140, G: 86, B: 75, A: 255},
}

func main() {
	flag.Parse()
	if *runID == "" {
		flag.Usage()
		os.Exit(2)
	}

	store, err := sqlitestore.Open(*dbFile)
	if err != nil {
		log.Fatalf("failed to open belief store: %v", err)
	}
	defer store.Close()

	if *agentID == "" {
		agents, err := store.ListAgents(*runID)
		if err != nil {
			log.Fatalf("failed to list agents: %v", err)
		}
		if len(agents) == 0 {
			log.Fatalf("run %s has no recorded agents", *runID)
		}
		fmt.Printf("run %s agents (pick one with -agent):\n", *runID)
		for _, a := range agents {
			fmt.Printf("  %s\n", a)
		}
		return
	}

	rows, err := store.AgentSeries(*runID, *agentID)
	if err != nil {
		log.Fatalf("failed to load series: %v", err)
	}
	if len(rows) == 0 {
		log.Fatalf("no belief rows for agent %s in run %s", *agentID, *runID)
	}

	n := len(rows[0].Belief)
	start := rows[0].UnixNanos

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Goal beliefs - agent %s", *agentID)
	p.X.Label.Text = "Time (s)"
	p.Y.Label.Text = "Belief"
	p.Y.Min, p.Y.Max = 0, 1

	for g := 0; g < n; g++ {
		pts := make(plotter.XYs, 0, len(rows))
		for _, row := range rows {
			if g >= len(row.Belief) {
				continue // hypothesis count changed mid-run
			}
			pts = append(pts, plotter.XY{
				X: float64(row.UnixNanos-start) / 1e9,
				Y: row.Belief[g],
			})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			log.Fatalf("goal %d: %v", g, err)
		}
		line.Color = lineColors[g%len(lineColors)]
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("goal %d", g), line)
	}
	p.Legend.Top = true

	if err := p.Save(10*vg.Inch, 5*vg.Inch, *outFile); err != nil {
		log.Fatalf("failed to save plot: %v", err)
	}
	fmt.Printf("wrote %s (%d ticks, %d goals)\n", *outFile, len(rows), n)
}
