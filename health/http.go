package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

const (
	PathLiveness  = "/healthz"
	PathReadiness = "/readyz"
	PathDetailed  = "/health"
)

// probeTimeout caps a readiness probe below the aggregator timeout so load
// balancers get an answer before their own deadline.
const probeTimeout = 5 * time.Second

// Mux is satisfied by *http.ServeMux and chi.Router.
type Mux interface {
	Handle(pattern string, h http.Handler)
}

// Mount registers the three probes on mux.
func Mount(mux Mux, agg *Aggregator) {
	mux.Handle(PathLiveness, http.HandlerFunc(live))
	mux.Handle(PathReadiness, readiness{agg})
	mux.Handle(PathDetailed, detailed{agg})
}

// live answers as long as the process serves HTTP at all.
func live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

type readiness struct{ agg *Aggregator }

func (h readiness) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), probeTimeout)
	defer cancel()

	status := h.agg.Run(ctx).Status
	body := "OK"
	if status != StatusHealthy {
		body = status.String()
	}
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(status.HTTPStatus())
	_, _ = w.Write([]byte(body))
}

// detailed serves the full report as JSON, or a single check when the
// request names one with ?check=.
type detailed struct{ agg *Aggregator }

type checkView struct {
	Status   Status         `json:"status"`
	Message  string         `json:"message,omitempty"`
	Duration string         `json:"duration"`
	Details  map[string]any `json:"details,omitempty"`
	Error    string         `json:"error,omitempty"`
}

type reportView struct {
	Status    Status               `json:"status"`
	Timestamp time.Time            `json:"timestamp"`
	Checks    map[string]checkView `json:"checks"`
}

func viewOf(r Result) checkView {
	v := checkView{Status: r.Status, Message: r.Message, Duration: r.Duration.String(), Details: r.Details}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return v
}

func (h detailed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if name := r.URL.Query().Get("check"); name != "" {
		result, err := h.agg.RunOne(r.Context(), name)
		if errors.Is(err, ErrCheckerNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, result.Status.HTTPStatus(), viewOf(result))
		return
	}

	report := h.agg.Run(r.Context())
	view := reportView{
		Status:    report.Status,
		Timestamp: report.Checked.UTC().Truncate(time.Second),
		Checks:    make(map[string]checkView, len(report.Checks)),
	}
	for name, result := range report.Checks {
		view.Checks[name] = viewOf(result)
	}
	writeJSON(w, report.Status.HTTPStatus(), view)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
