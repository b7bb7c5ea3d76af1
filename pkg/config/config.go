// Package config defines the AION configuration model and its loading
// pipeline: read from a provider, expand environment variables, decode,
// apply defaults, validate.
package config

import (
	"fmt"
	"sort"
	"time"
)

const (
	// DefaultAgentPortMin / Max bound the range agents without an explicit
	// port are allocated from.
	DefaultAgentPortMin = 8000
	DefaultAgentPortMax = 9000

	// DefaultProxyPortMin / Max bound the proxy's auto-allocation range.
	DefaultProxyPortMin = 8000
	DefaultProxyPortMax = 8100

	DefaultMonitorInterval = 10 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultForwardTimeout  = 30 * time.Second
	DefaultHealthTimeout   = 5 * time.Second
)

// Config is the root AION configuration.
type Config struct {
	// Agents maps agent id to its runtime configuration. At least one agent
	// is required to serve.
	Agents map[string]*AgentConfig `yaml:"agents"`

	// Proxy enables the reverse proxy when present.
	Proxy *ProxyConfig `yaml:"proxy,omitempty"`

	// Supervisor tunes port ranges and the monitor loop.
	Supervisor SupervisorConfig `yaml:"supervisor,omitempty"`

	// Logger configures process-wide logging.
	Logger *LoggerConfig `yaml:"logger,omitempty"`
}

// AgentConfig is the runtime configuration of one agent process.
type AgentConfig struct {
	// Name is the display name; defaults to the map key.
	Name        string `yaml:"name,omitempty"`
	Description string `yaml:"description,omitempty"`

	// Port pins the agent to an explicit port. 0 allocates from the
	// supervisor's agent port range.
	Port int `yaml:"port,omitempty"`

	// Runner selects a registered agent runner. Defaults to "echo".
	Runner string `yaml:"runner,omitempty"`

	// Version is reported on the agent card.
	Version string `yaml:"version,omitempty"`
}

// ProxyConfig configures the reverse proxy process.
type ProxyConfig struct {
	// Port pins the proxy to an explicit port. 0 allocates from the
	// supervisor's proxy port range.
	Port int `yaml:"port,omitempty"`

	// ForwardTimeout bounds one forwarded request to a backend agent.
	ForwardTimeout time.Duration `yaml:"forward_timeout,omitempty"`

	// HealthTimeout bounds one health probe to a backend agent.
	HealthTimeout time.Duration `yaml:"health_timeout,omitempty"`

	// Observability enables metrics/tracing middleware on the proxy.
	Observability ObservabilityConfig `yaml:"observability,omitempty"`
}

// ObservabilityConfig enables metrics and tracing.
type ObservabilityConfig struct {
	// MetricsEnabled exposes Prometheus metrics on /metrics.
	MetricsEnabled bool `yaml:"metrics_enabled,omitempty"`

	// TracingEnabled turns on OpenTelemetry tracing.
	TracingEnabled bool `yaml:"tracing_enabled,omitempty"`

	// TracingExporter selects the exporter: "stdout" (default) or "otlp".
	TracingExporter string `yaml:"tracing_exporter,omitempty"`

	// TracingEndpoint is the OTLP collector endpoint.
	TracingEndpoint string `yaml:"tracing_endpoint,omitempty"`

	// ServiceName identifies this service in traces.
	ServiceName string `yaml:"service_name,omitempty"`
}

// SupervisorConfig tunes the supervisor runtime.
type SupervisorConfig struct {
	AgentPortMin int `yaml:"agent_port_min,omitempty"`
	AgentPortMax int `yaml:"agent_port_max,omitempty"`
	ProxyPortMin int `yaml:"proxy_port_min,omitempty"`
	ProxyPortMax int `yaml:"proxy_port_max,omitempty"`

	// MonitorInterval is the liveness poll period.
	MonitorInterval time.Duration `yaml:"monitor_interval,omitempty"`

	// ShutdownTimeout bounds per-process graceful termination at shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout,omitempty"`
}

// LoggerConfig configures logging.
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty"`
	File   string `yaml:"file,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// SetDefaults fills zero values with defaults.
func (c *Config) SetDefaults() {
	if c.Agents == nil {
		c.Agents = make(map[string]*AgentConfig)
	}
	for id, agent := range c.Agents {
		if agent == nil {
			agent = &AgentConfig{}
			c.Agents[id] = agent
		}
		if agent.Name == "" {
			agent.Name = id
		}
		if agent.Runner == "" {
			agent.Runner = "echo"
		}
		if agent.Version == "" {
			agent.Version = "1.0.0"
		}
	}

	if c.Proxy != nil {
		if c.Proxy.ForwardTimeout == 0 {
			c.Proxy.ForwardTimeout = DefaultForwardTimeout
		}
		if c.Proxy.HealthTimeout == 0 {
			c.Proxy.HealthTimeout = DefaultHealthTimeout
		}
		if c.Proxy.Observability.TracingExporter == "" {
			c.Proxy.Observability.TracingExporter = "stdout"
		}
		if c.Proxy.Observability.ServiceName == "" {
			c.Proxy.Observability.ServiceName = "aion-proxy"
		}
	}

	s := &c.Supervisor
	if s.AgentPortMin == 0 {
		s.AgentPortMin = DefaultAgentPortMin
	}
	if s.AgentPortMax == 0 {
		s.AgentPortMax = DefaultAgentPortMax
	}
	if s.ProxyPortMin == 0 {
		s.ProxyPortMin = DefaultProxyPortMin
	}
	if s.ProxyPortMax == 0 {
		s.ProxyPortMax = DefaultProxyPortMax
	}
	if s.MonitorInterval == 0 {
		s.MonitorInterval = DefaultMonitorInterval
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
}

// Validate checks the configuration for inconsistencies.
func (c *Config) Validate() error {
	seen := make(map[int]string)
	for _, id := range c.AgentIDs() {
		agent := c.Agents[id]
		if agent.Port != 0 {
			if agent.Port < 1 || agent.Port > 65535 {
				return fmt.Errorf("agent %q: port %d out of range", id, agent.Port)
			}
			if prev, dup := seen[agent.Port]; dup {
				return fmt.Errorf("agent %q: port %d already used by agent %q", id, agent.Port, prev)
			}
			seen[agent.Port] = id
		}
	}

	if c.Proxy != nil && c.Proxy.Port != 0 {
		if c.Proxy.Port < 1 || c.Proxy.Port > 65535 {
			return fmt.Errorf("proxy: port %d out of range", c.Proxy.Port)
		}
		if prev, dup := seen[c.Proxy.Port]; dup {
			return fmt.Errorf("proxy: port %d already used by agent %q", c.Proxy.Port, prev)
		}
	}

	s := c.Supervisor
	if s.AgentPortMin > s.AgentPortMax {
		return fmt.Errorf("supervisor: agent_port_min (%d) > agent_port_max (%d)", s.AgentPortMin, s.AgentPortMax)
	}
	if s.ProxyPortMin > s.ProxyPortMax {
		return fmt.Errorf("supervisor: proxy_port_min (%d) > proxy_port_max (%d)", s.ProxyPortMin, s.ProxyPortMax)
	}

	return nil
}

// AgentIDs returns agent ids in sorted order. Startup iterates agents in
// this order so port allocation from ranges is deterministic.
func (c *Config) AgentIDs() []string {
	ids := make([]string, 0, len(c.Agents))
	for id := range c.Agents {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
