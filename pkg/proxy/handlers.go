package proxy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/aionlabs/aion/pkg/httpclient"
)

// handleHealth is the proxy's own liveness probe. It never checks backends.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

// handleAgentsHealth probes every backend concurrently and aggregates.
func (s *Server) handleAgentsHealth(w http.ResponseWriter, r *http.Request) {
	var (
		mu     sync.Mutex
		agents = make(map[string]AgentHealthInfo, len(s.agentURLs))
	)

	g, ctx := errgroup.WithContext(r.Context())
	for id, baseURL := range s.agentURLs {
		g.Go(func() error {
			info := s.probeAgent(ctx, baseURL)
			mu.Lock()
			agents[id] = info
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	overall := "healthy"
	for _, info := range agents {
		if info.Status != AgentHealthy {
			overall = "degraded"
			break
		}
	}

	writeJSON(w, http.StatusOK, SystemHealthResponse{
		ProxyStatus:         "healthy",
		OverallAgentsStatus: overall,
		Agents:              agents,
	})
}

func (s *Server) probeAgent(ctx context.Context, baseURL string) AgentHealthInfo {
	info := AgentHealthInfo{URL: baseURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health/", nil)
	if err != nil {
		info.Status = AgentError
		info.Error = err.Error()
		return info
	}

	resp, err := s.health.Do(req)
	if err != nil {
		switch {
		case httpclient.IsTimeout(err):
			info.Status = AgentTimeout
		case httpclient.IsConnectError(err):
			info.Status = AgentUnavailable
		default:
			info.Status = AgentError
			info.Error = err.Error()
		}
		return info
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	info.StatusCode = resp.StatusCode
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		info.Status = AgentHealthy
	} else {
		info.Status = AgentUnhealthy
	}
	return info
}

// handleForward relays one inbound request to the backend agent named by the
// first path segment.
func (s *Server) handleForward(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agent")
	baseURL, ok := s.agentURLs[agentID]
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error:           fmt.Sprintf("Agent '%s' not found", agentID),
			AvailableAgents: s.AgentIDs(),
		})
		return
	}

	rest := chi.URLParam(r, "*")
	target := baseURL + "/" + rest
	if r.URL.RawQuery != "" {
		target += "?" + r.URL.RawQuery
	}

	req, err := http.NewRequestWithContext(r.Context(), r.Method, target, r.Body)
	if err != nil {
		s.logger.Error("Failed to build forwarded request", "agent", agentID, "error", err)
		writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "Failed to forward request"})
		return
	}

	// The Host header is dropped so the backend sees its own address; virtual
	// hosting and request signing would otherwise break.
	for name, values := range r.Header {
		if strings.EqualFold(name, "Host") {
			continue
		}
		req.Header[name] = values
	}

	resp, err := s.forward.Do(req)
	if err != nil {
		switch {
		case httpclient.IsTimeout(err):
			writeJSON(w, http.StatusGatewayTimeout, ErrorResponse{
				Error: fmt.Sprintf("Request to agent '%s' timed out", agentID),
			})
		case httpclient.IsConnectError(err):
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{
				Error: fmt.Sprintf("Agent '%s' is unavailable", agentID),
			})
		default:
			s.logger.Error("Forwarding failed", "agent", agentID, "target", target, "error", err)
			writeJSON(w, http.StatusBadGateway, ErrorResponse{Error: "Failed to forward request"})
		}
		return
	}
	defer resp.Body.Close()

	// The client already delivers a decoded body, so encoding headers from
	// the backend must not be re-asserted.
	for name, values := range resp.Header {
		if strings.EqualFold(name, "Content-Encoding") || strings.EqualFold(name, "Transfer-Encoding") {
			continue
		}
		for _, v := range values {
			w.Header().Add(name, v)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Warn("Relay interrupted", "agent", agentID, "error", err)
	}
}

// handleMetrics serves the Prometheus registry.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := s.obs.Metrics()
	if metrics == nil {
		http.NotFound(w, r)
		return
	}
	metrics.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
