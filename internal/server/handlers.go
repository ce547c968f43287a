package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/failsift/failsift/internal/core/ports"
	"github.com/failsift/failsift/internal/domain"
)

const (
	defaultWindowDays = 7
	defaultListLimit  = 50
	maxListLimit      = 200
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type ingestBatch struct {
	Failures []map[string]any `json:"failures"`
}

type ingestResponse struct {
	Ingested int      `json:"ingested"`
	IDs      []string `json:"ids"`
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if s.runtime == nil {
		writeError(w, http.StatusServiceUnavailable, "detection runtime not configured")
		return
	}

	sourceType := chi.URLParam(r, "source")

	body, err := io.ReadAll(r.Body)
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadRequest, "read request body")
		return
	}

	payloads, err := decodePayloads(body)
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}

	ids, err := s.runtime.Ingest(r.Context(), sourceType, payloads)
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadGateway, "failure store unavailable")
		return
	}

	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusAccepted, ingestResponse{Ingested: len(ids), IDs: ids})
}

// decodePayloads accepts either a single payload object or a batch wrapped
// in {"failures": [...]}. Malformed entries inside a batch are kept; the
// normalizer defaults their fields rather than rejecting them.
func decodePayloads(body []byte) ([]map[string]any, error) {
	var batch ingestBatch
	if err := json.Unmarshal(body, &batch); err == nil && batch.Failures != nil {
		return batch.Failures, nil
	}

	var single map[string]any
	if err := json.Unmarshal(body, &single); err != nil {
		return nil, err
	}
	return []map[string]any{single}, nil
}

func (s *Server) handleDetectRun(w http.ResponseWriter, r *http.Request) {
	if s.runtime == nil {
		writeError(w, http.StatusServiceUnavailable, "detection runtime not configured")
		return
	}

	report, err := s.runtime.Run(r.Context())
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type patternItem struct {
	domain.Pattern
	DetectedAt time.Time `json:"detected_at"`
}

type patternList struct {
	Patterns []patternItem `json:"patterns"`
	Count    int           `json:"count"`
}

func (s *Server) handleListPatterns(w http.ResponseWriter, r *http.Request) {
	if s.actions == nil {
		writeError(w, http.StatusServiceUnavailable, "action storage not configured")
		return
	}

	days, limit := windowParams(r)

	acts, err := s.actions.QueryActions(r.Context(), ports.ActionFilter{
		Since:      time.Now().Add(-time.Duration(days) * 24 * time.Hour),
		AgentType:  domain.AgentTypePatternDetection,
		ActionType: domain.ActionTypeAlert,
		Limit:      limit,
	})
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadGateway, "action store unavailable")
		return
	}

	items := make([]patternItem, 0, len(acts))
	for _, a := range acts {
		p, err := a.PatternDetails()
		if err != nil {
			s.logger.Warn("action has unreadable pattern details",
				"action_id", a.ActionID, "error", err)
			continue
		}
		items = append(items, patternItem{Pattern: p, DetectedAt: a.Timestamp})
	}

	writeJSON(w, http.StatusOK, patternList{Patterns: items, Count: len(items)})
}

func (s *Server) handlePatternDetail(w http.ResponseWriter, r *http.Request) {
	if s.actions == nil {
		writeError(w, http.StatusServiceUnavailable, "action storage not configured")
		return
	}

	id := chi.URLParam(r, "id")

	acts, err := s.actions.QueryActions(r.Context(), ports.ActionFilter{PatternID: id, Limit: 1})
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadGateway, "action store unavailable")
		return
	}
	if len(acts) == 0 {
		writeError(w, http.StatusNotFound, "pattern not found")
		return
	}

	p, err := acts[0].PatternDetails()
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusInternalServerError, "pattern details unreadable")
		return
	}

	writeJSON(w, http.StatusOK, patternItem{Pattern: p, DetectedAt: acts[0].Timestamp})
}

type actionList struct {
	Actions []domain.Action `json:"actions"`
	Count   int             `json:"count"`
}

func (s *Server) handleListActions(w http.ResponseWriter, r *http.Request) {
	if s.actions == nil {
		writeError(w, http.StatusServiceUnavailable, "action storage not configured")
		return
	}

	days, limit := windowParams(r)

	filter := ports.ActionFilter{
		Since: time.Now().Add(-time.Duration(days) * 24 * time.Hour),
		Limit: limit,
	}
	if v := r.URL.Query().Get("agent_type"); v != "" {
		filter.AgentType = v
	}

	acts, err := s.actions.QueryActions(r.Context(), filter)
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadGateway, "action store unavailable")
		return
	}

	if acts == nil {
		acts = []domain.Action{}
	}
	writeJSON(w, http.StatusOK, actionList{Actions: acts, Count: len(acts)})
}

type statsResponse struct {
	WindowDays    int        `json:"window_days"`
	Failures      int        `json:"failures"`
	Patterns      int        `json:"patterns"`
	Actions       int        `json:"actions"`
	Services      int        `json:"services"`
	LastDetection *time.Time `json:"last_detection,omitempty"`
	DetectorState string     `json:"detector_state,omitempty"`
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.failures == nil || s.actions == nil {
		writeError(w, http.StatusServiceUnavailable, "storage not configured")
		return
	}

	days := defaultWindowDays
	if q := r.URL.Query().Get("days"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 {
			days = v
		}
	}
	since := time.Now().Add(-time.Duration(days) * 24 * time.Hour)

	failureCount, err := s.failures.CountSince(r.Context(), since)
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadGateway, "failure store unavailable")
		return
	}

	alerts, err := s.actions.QueryActions(r.Context(), ports.ActionFilter{
		Since:      since,
		AgentType:  domain.AgentTypePatternDetection,
		ActionType: domain.ActionTypeAlert,
		Limit:      maxListLimit,
	})
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadGateway, "action store unavailable")
		return
	}

	all, err := s.actions.QueryActions(r.Context(), ports.ActionFilter{Since: since, Limit: maxListLimit})
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadGateway, "action store unavailable")
		return
	}

	services := make(map[string]struct{})
	for _, a := range alerts {
		p, err := a.PatternDetails()
		if err != nil {
			continue
		}
		for _, svc := range p.AffectedServices {
			services[svc] = struct{}{}
		}
	}

	stats := statsResponse{
		WindowDays: days,
		Failures:   failureCount,
		Patterns:   len(alerts),
		Actions:    len(all),
		Services:   len(services),
	}
	if s.runtime != nil {
		stats.DetectorState = s.runtime.State()
		if rep, ok := s.runtime.LastRun(); ok {
			t := rep.StartedAt
			stats.LastDetection = &t
		}
	}
	if stats.LastDetection == nil && len(alerts) > 0 {
		t := alerts[0].Timestamp
		stats.LastDetection = &t
	}

	writeJSON(w, http.StatusOK, stats)
}

// handleCluster serves the clustering contract over HTTP: a failure batch
// in, index groups out. A failsift instance configured with
// clustering.endpoint can point at another instance's /cluster route.
func (s *Server) handleCluster(w http.ResponseWriter, r *http.Request) {
	if s.extractor == nil || s.clusterer == nil {
		writeError(w, http.StatusServiceUnavailable, "local clustering not configured")
		return
	}

	var req ports.ClusterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}

	resp := ports.ClusterResponse{Clusters: []ports.ClusterGroup{}}
	if len(req.Failures) == 0 {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	m, err := s.extractor.Extract(req.Failures)
	if err != nil {
		AddError(r.Context(), err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if m.TextWidth == 0 {
		writeError(w, http.StatusUnprocessableEntity, "batch yields no text features")
		return
	}

	for _, group := range s.clusterer.Cluster(m.Rows) {
		resp.Clusters = append(resp.Clusters, ports.ClusterGroup{Indices: group})
	}
	writeJSON(w, http.StatusOK, resp)
}

func windowParams(r *http.Request) (days, limit int) {
	days = defaultWindowDays
	limit = defaultListLimit

	if q := r.URL.Query().Get("days"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 {
			days = v
		}
	}
	if q := r.URL.Query().Get("limit"); q != "" {
		if v, err := strconv.Atoi(q); err == nil && v > 0 && v <= maxListLimit {
			limit = v
		}
	}
	return days, limit
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
