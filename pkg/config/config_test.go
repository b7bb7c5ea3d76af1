package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_FullConfig(t *testing.T) {
	data := []byte(`
agents:
  assistant:
    port: 9001
    description: General assistant
  researcher:
    name: Research Agent
proxy:
  port: 8080
  forward_timeout: 15s
supervisor:
  monitor_interval: 5s
`)

	cfg, err := Parse(data)
	require.NoError(t, err)

	require.Len(t, cfg.Agents, 2)
	assert.Equal(t, 9001, cfg.Agents["assistant"].Port)
	assert.Equal(t, "assistant", cfg.Agents["assistant"].Name, "display name defaults to map key")
	assert.Equal(t, "echo", cfg.Agents["assistant"].Runner)
	assert.Equal(t, "Research Agent", cfg.Agents["researcher"].Name)
	assert.Equal(t, 0, cfg.Agents["researcher"].Port, "unpinned agent allocates from range")

	require.NotNil(t, cfg.Proxy)
	assert.Equal(t, 8080, cfg.Proxy.Port)
	assert.Equal(t, 15*time.Second, cfg.Proxy.ForwardTimeout)
	assert.Equal(t, DefaultHealthTimeout, cfg.Proxy.HealthTimeout)

	assert.Equal(t, 5*time.Second, cfg.Supervisor.MonitorInterval)
	assert.Equal(t, DefaultShutdownTimeout, cfg.Supervisor.ShutdownTimeout)
	assert.Equal(t, DefaultAgentPortMin, cfg.Supervisor.AgentPortMin)
}

func TestParse_NoProxy(t *testing.T) {
	cfg, err := Parse([]byte("agents:\n  a: {}\n"))
	require.NoError(t, err)
	assert.Nil(t, cfg.Proxy)
}

func TestParse_EnvExpansion(t *testing.T) {
	t.Setenv("AION_TEST_PORT", "9100")

	cfg, err := Parse([]byte(`
agents:
  a:
    port: ${AION_TEST_PORT}
    description: ${AION_TEST_MISSING:-fallback}
`))
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Agents["a"].Port)
	assert.Equal(t, "fallback", cfg.Agents["a"].Description)
}

func TestValidate_DuplicatePorts(t *testing.T) {
	_, err := Parse([]byte(`
agents:
  a:
    port: 9001
  b:
    port: 9001
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already used")
}

func TestValidate_ProxyPortCollision(t *testing.T) {
	_, err := Parse([]byte(`
agents:
  a:
    port: 8080
proxy:
  port: 8080
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "proxy")
}

func TestValidate_PortOutOfRange(t *testing.T) {
	_, err := Parse([]byte("agents:\n  a:\n    port: 70000\n"))
	require.Error(t, err)
}

func TestValidate_InvertedRange(t *testing.T) {
	_, err := Parse([]byte(`
agents:
  a: {}
supervisor:
  agent_port_min: 9000
  agent_port_max: 8000
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent_port_min")
}

func TestAgentIDs_Sorted(t *testing.T) {
	cfg, err := Parse([]byte("agents:\n  zeta: {}\n  alpha: {}\n  mid: {}\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, cfg.AgentIDs())
}

func TestParse_JSONFallback(t *testing.T) {
	cfg, err := Parse([]byte(`{"agents": {"a": {"port": 9001}}}`))
	require.NoError(t, err)
	assert.Equal(t, 9001, cfg.Agents["a"].Port)
}

func TestParse_Garbage(t *testing.T) {
	_, err := Parse([]byte("agents: ["))
	require.Error(t, err)
}
