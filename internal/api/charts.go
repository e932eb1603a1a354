package api

import (
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleBeliefChart renders an interactive line chart (HTML) of one
// agent's stored belief traces, one series per goal hypothesis. This is
// a debugging-only endpoint to eyeball filter behaviour without a
// frontend. Query params: run_id, agent_id.
func (s *Server) handleBeliefChart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if s.store == nil {
		s.writeJSONError(w, http.StatusNotFound, "persistence is disabled")
		return
	}
	runID := r.URL.Query().Get("run_id")
	agentID := r.URL.Query().Get("agent_id")
	if runID == "" || agentID == "" {
		s.writeJSONError(w, http.StatusBadRequest, "run_id and agent_id are required")
		return
	}

	series, err := s.store.AgentSeries(runID, agentID)
	if err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to load series: %v", err))
		return
	}
	if len(series) == 0 {
		s.writeJSONError(w, http.StatusNotFound, "no belief ticks for this run/agent")
		return
	}

	n := len(series[0].Belief)
	start := series[0].UnixNanos

	xAxis := make([]string, len(series))
	perGoal := make([][]opts.LineData, n)
	for g := range perGoal {
		perGoal[g] = make([]opts.LineData, len(series))
	}
	for i, row := range series {
		xAxis[i] = fmt.Sprintf("%.2fs", float64(row.UnixNanos-start)/1e9)
		for g := 0; g < n; g++ {
			v := 0.0
			if g < len(row.Belief) {
				v = row.Belief[g]
			}
			perGoal[g][i] = opts.LineData{Value: v}
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    fmt.Sprintf("Goal beliefs for agent %s", agentID),
			Subtitle: fmt.Sprintf("run %s, %d hypotheses", runID, n),
		}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: 1, Name: "belief"}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)
	line.SetXAxis(xAxis)
	for g := 0; g < n; g++ {
		line.AddSeries(fmt.Sprintf("goal %d", g), perGoal[g])
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := line.Render(w); err != nil {
		s.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
	}
}

// AttachChartRoutes mounts the debug chart endpoints on mux.
func (s *Server) AttachChartRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/charts/beliefs", s.handleBeliefChart)
}
