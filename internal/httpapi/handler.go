package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"peeringmatcher/internal/metrics"
	"peeringmatcher/internal/peering"
	"peeringmatcher/internal/report"
)

// Runner computes one overlap report.
type Runner interface {
	Run(ctx context.Context, ids []peering.NetworkID) (report.Report, error)
}

// Pinger reports whether the registry behind the runner is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	log     zerolog.Logger
	runner  Runner
	pinger  Pinger
	metrics *metrics.Metrics
	timeout time.Duration
}

func NewHandler(log zerolog.Logger, runner Runner, pinger Pinger, m *metrics.Metrics) *Handler {
	return &Handler{log: log, runner: runner, pinger: pinger, metrics: m, timeout: 60 * time.Second}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(h.timeout))
	r.Use(h.accessLog)

	// Health
	r.Get("/healthz", h.handleHealthz)
	r.Get("/readyz", h.handleReadyZ)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	// API
	r.Route("/api", func(r chi.Router) {
		r.Route("/v1", func(r chi.Router) {
			r.Get("/common", h.handleCommon)
		})
	})

	return r
}

func (h *Handler) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		// Label by route pattern so query strings and unknown paths stay bounded.
		path := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			path = rctx.RoutePattern()
		}
		h.metrics.ObserveHTTPRequest(r.Method, path, status, time.Since(start))

		h.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("query", r.URL.RawQuery).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Int64("duration_ms", time.Since(start).Milliseconds()).
			Msg("http_request")
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	resp := map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": msg,
		},
	}
	if details != nil {
		resp["error"].(map[string]any)["details"] = details
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (h *Handler) handleReadyZ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if h.pinger == nil {
		h.writeError(w, http.StatusServiceUnavailable, "registry_unavailable", "registry not configured", nil)
		return
	}

	if err := h.pinger.Ping(ctx); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, "registry_unavailable", "registry not ready", map[string]any{"error": err.Error()})
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

type networkJSON struct {
	ASN  uint32 `json:"asn"`
	Name string `json:"name"`
}

type rowJSON struct {
	Location  string     `json:"location"`
	Addresses [][]string `json:"addresses"`
}

type tableJSON struct {
	Header []string  `json:"header"`
	Rows   []rowJSON `json:"rows"`
}

type commonJSON struct {
	GeneratedAt time.Time     `json:"generated_at"`
	Requested   []uint32      `json:"requested"`
	Networks    []networkJSON `json:"networks"`
	Exchanges   tableJSON     `json:"exchanges"`
	Facilities  tableJSON     `json:"facilities"`
}

func toTable(t report.Table) tableJSON {
	rows := make([]rowJSON, 0, len(t.Rows))
	for _, row := range t.Rows {
		addrs := make([][]string, 0, len(row.Cells))
		for _, cell := range row.Cells {
			list := []string{}
			if cell != "" {
				list = strings.Split(cell, "\n")
			}
			addrs = append(addrs, list)
		}
		rows = append(rows, rowJSON{Location: row.Label, Addresses: addrs})
	}
	return tableJSON{Header: t.Header, Rows: rows}
}

func toCommon(rep report.Report) commonJSON {
	out := commonJSON{
		GeneratedAt: rep.GeneratedAt,
		Requested:   make([]uint32, 0, len(rep.Requested)),
		Networks:    make([]networkJSON, 0, len(rep.Networks)),
		Exchanges:   toTable(rep.Exchanges),
		Facilities:  toTable(rep.Facilities),
	}
	for _, id := range rep.Requested {
		out.Requested = append(out.Requested, uint32(id))
	}
	for _, n := range rep.Networks {
		out.Networks = append(out.Networks, networkJSON{ASN: uint32(n.ID), Name: n.Name})
	}
	return out
}

// queryASNs accepts both repeated and comma separated asn parameters.
func queryASNs(r *http.Request) []string {
	var out []string
	for _, v := range r.URL.Query()["asn"] {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (h *Handler) handleCommon(w http.ResponseWriter, r *http.Request) {
	raw := queryASNs(r)
	if len(raw) == 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_input", "at least one asn query parameter is required", nil)
		return
	}
	ids, err := peering.ParseNetworkIDs(raw)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
		return
	}

	rep, err := h.runner.Run(r.Context(), ids)
	if err != nil {
		h.writeRunError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, toCommon(rep))
}

func (h *Handler) writeRunError(w http.ResponseWriter, err error) {
	var (
		invalid     *peering.InvalidInputError
		unknown     *peering.UnknownNetworkError
		unavailable *peering.DataSourceUnavailableError
	)
	switch {
	case errors.As(err, &invalid):
		h.writeError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)
	case errors.As(err, &unknown):
		missing := make([]string, 0, len(unknown.IDs))
		for _, id := range unknown.IDs {
			missing = append(missing, strconv.FormatUint(uint64(id), 10))
		}
		h.writeError(w, http.StatusNotFound, "unknown_network", err.Error(), map[string]any{"asns": missing})
	case errors.As(err, &unavailable):
		h.log.Error().Err(err).Str("source", unavailable.Source).Msg("registry lookup failed")
		h.writeError(w, http.StatusBadGateway, "registry_unavailable", "registry lookup failed", map[string]any{"source": unavailable.Source})
	default:
		h.log.Error().Err(err).Msg("overlap run failed")
		h.writeError(w, http.StatusInternalServerError, "internal_error", "overlap run failed", nil)
	}
}
