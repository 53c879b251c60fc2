package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"alertbus/internal/dispatch"
	"alertbus/internal/routing"
	"alertbus/internal/stats"
	"alertbus/internal/voice"
	"alertbus/internal/workers"
	"alertbus/pkg/errors"
	"alertbus/pkg/logger"
)

const maxRulesBody = 1 << 20

// Handlers serve the read-only operational API plus rule import
type Handlers struct {
	stats      *stats.Aggregator
	router     *routing.AlertRouter
	voice      *voice.Pipeline
	dispatcher *dispatch.Dispatcher
	scheduler  *workers.Scheduler
	log        *logger.Logger
}

// NewHandlers wires the API. Voice, dispatcher and scheduler may be nil.
func NewHandlers(aggregator *stats.Aggregator, router *routing.AlertRouter, pipeline *voice.Pipeline, dispatcher *dispatch.Dispatcher, scheduler *workers.Scheduler, log *logger.Logger) *Handlers {
	if log == nil {
		log = logger.Get()
	}
	return &Handlers{
		stats:      aggregator,
		router:     router,
		voice:      pipeline,
		dispatcher: dispatcher,
		scheduler:  scheduler,
		log:        log.With("component", "api"),
	}
}

// Register mounts every route on mux
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stats/summary", h.summary)
	mux.HandleFunc("GET /api/stats/hourly", h.hourly)
	mux.HandleFunc("GET /api/stats/daily", h.daily)
	mux.HandleFunc("GET /api/stats/top-types", h.topTypes)
	mux.HandleFunc("GET /api/stats/failures", h.failures)
	mux.HandleFunc("GET /api/stats/thresholds", h.thresholds)
	mux.HandleFunc("GET /api/stats/report", h.report)
	mux.HandleFunc("GET /api/stats/dashboard", h.dashboard)

	mux.HandleFunc("GET /api/routing/rules", h.listRules)
	mux.HandleFunc("POST /api/routing/rules", h.importRules)
	mux.HandleFunc("GET /api/routing/stats", h.routingStats)

	mux.HandleFunc("GET /api/voice/stats", h.voiceStats)
	mux.HandleFunc("GET /api/dispatches", h.dispatches)
	mux.HandleFunc("GET /api/workers", h.workers)
}

func (h *Handlers) summary(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.GetSummary())
}

func (h *Handlers) hourly(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.GetHourlyBreakdown())
}

func (h *Handlers) daily(w http.ResponseWriter, r *http.Request) {
	days, err := intParam(r, "days", 7)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stats.GetDailyBreakdown(days))
}

func (h *Handlers) topTypes(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 10)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stats.GetTopTypes(limit))
}

func (h *Handlers) failures(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.stats.GetRecentFailures(limit))
}

func (h *Handlers) thresholds(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.CheckThresholds())
}

func (h *Handlers) report(w http.ResponseWriter, r *http.Request) {
	period := stats.Period(r.URL.Query().Get("period"))
	switch period {
	case "":
		period = stats.PeriodDaily
	case stats.PeriodDaily, stats.PeriodWeekly, stats.PeriodHourly:
	default:
		writeError(w, http.StatusBadRequest, errors.NewValidationError("period", "must be daily, weekly or hourly", period))
		return
	}
	writeJSON(w, http.StatusOK, h.stats.Report(period))
}

func (h *Handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.DashboardData())
}

func (h *Handlers) listRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.router.ExportRules())
}

// importRules accepts an exported rule set; ?replace=false merges by rule id
func (h *Handlers) importRules(w http.ResponseWriter, r *http.Request) {
	replace := r.URL.Query().Get("replace") != "false"

	body, err := io.ReadAll(io.LimitReader(r.Body, maxRulesBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, errors.Wrap(err, "read body"))
		return
	}

	n, err := h.router.ImportJSON(body, replace)
	if err != nil {
		h.log.Warnw("Rejected rule import", "error", err)
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	h.log.Infow("Routing rules imported", "count", n, "replace", replace)
	writeJSON(w, http.StatusOK, map[string]interface{}{"imported": n, "replace": replace})
}

func (h *Handlers) routingStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.router.GetStats())
}

func (h *Handlers) voiceStats(w http.ResponseWriter, r *http.Request) {
	if h.voice == nil {
		writeError(w, http.StatusNotFound, errors.Wrap(errors.ErrNotFound, "voice pipeline disabled"))
		return
	}
	writeJSON(w, http.StatusOK, h.voice.Stats())
}

func (h *Handlers) dispatches(w http.ResponseWriter, r *http.Request) {
	if h.dispatcher == nil {
		writeJSON(w, http.StatusOK, []dispatch.Record{})
		return
	}
	limit, err := intParam(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, h.dispatcher.RecentDispatches(limit))
}

func (h *Handlers) workers(w http.ResponseWriter, r *http.Request) {
	if h.scheduler == nil {
		writeJSON(w, http.StatusOK, []workers.WorkerHealth{})
		return
	}
	writeJSON(w, http.StatusOK, h.scheduler.Health())
}

func intParam(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, errors.NewValidationError(name, "must be a positive integer", raw)
	}
	return v, nil
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}
