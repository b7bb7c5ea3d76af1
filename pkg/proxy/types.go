package proxy

// HealthResponse is the body of the proxy's own liveness probe.
type HealthResponse struct {
	Status string `json:"status"`
}

// AgentHealthStatus classifies one backend probe outcome.
type AgentHealthStatus string

const (
	AgentHealthy     AgentHealthStatus = "healthy"
	AgentUnhealthy   AgentHealthStatus = "unhealthy"
	AgentUnavailable AgentHealthStatus = "unavailable"
	AgentTimeout     AgentHealthStatus = "timeout"
	AgentError       AgentHealthStatus = "error"
)

// AgentHealthInfo is one backend's probe result.
type AgentHealthInfo struct {
	Status     AgentHealthStatus `json:"status"`
	URL        string            `json:"url"`
	StatusCode int               `json:"status_code,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// SystemHealthResponse aggregates probe results across all agents.
type SystemHealthResponse struct {
	ProxyStatus         string                     `json:"proxy_status"`
	OverallAgentsStatus string                     `json:"overall_agents_status"`
	Agents              map[string]AgentHealthInfo `json:"agents"`
}

// ErrorResponse is the body of proxy-generated error answers.
type ErrorResponse struct {
	Error           string   `json:"error"`
	AvailableAgents []string `json:"available_agents,omitempty"`
}
