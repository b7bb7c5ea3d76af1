package process

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sleepSpec() Spec {
	return Spec{Name: "sleeper", Command: "sleep", Args: []string{"60"}}
}

func shortSpec() Spec {
	return Spec{Name: "short", Command: "true"}
}

func waitDead(t *testing.T, m *Manager, key string) {
	t.Helper()
	require.Eventually(t, func() bool {
		info := m.Info(key)
		return info != nil && !info.Alive()
	}, 5*time.Second, 10*time.Millisecond)
}

func TestCreate_DuplicateKey(t *testing.T) {
	m := NewManager()
	defer m.ShutdownAll(time.Second)

	require.True(t, m.Create("a", sleepSpec()))
	firstPID := m.Info("a").PID

	assert.False(t, m.Create("a", sleepSpec()), "duplicate key must be refused")
	assert.Equal(t, firstPID, m.Info("a").PID, "registry keeps the first process")
}

func TestCreate_BadExecutable(t *testing.T) {
	m := NewManager()
	assert.False(t, m.Create("nope", Spec{Command: "/nonexistent/binary"}))
	assert.Nil(t, m.Info("nope"))
}

func TestTerminate_Graceful(t *testing.T) {
	m := NewManager()
	defer m.ShutdownAll(time.Second)

	require.True(t, m.Create("a", sleepSpec()))
	assert.True(t, m.Terminate("a", 2*time.Second))
	assert.Equal(t, StatusTerminated, m.Info("a").Status)
	assert.False(t, m.Info("a").Alive())
}

func TestTerminate_AlreadyDead(t *testing.T) {
	m := NewManager()
	defer m.ShutdownAll(time.Second)

	require.True(t, m.Create("short", shortSpec()))
	waitDead(t, m, "short")

	assert.True(t, m.Terminate("short", time.Second), "terminating a dead process is success")
	assert.Equal(t, StatusStopped, m.Info("short").Status)
}

func TestTerminate_UnknownKey(t *testing.T) {
	m := NewManager()
	assert.False(t, m.Terminate("ghost", time.Second))
}

func TestTerminate_EscalatesToKill(t *testing.T) {
	m := NewManager()
	defer m.ShutdownAll(time.Second)

	// sh ignoring TERM only dies on KILL.
	spec := Spec{
		Name:    "stubborn",
		Command: "sh",
		Args:    []string{"-c", "trap '' TERM; sleep 60"},
	}
	require.True(t, m.Create("stubborn", spec))

	// Give the shell a moment to install the trap.
	time.Sleep(200 * time.Millisecond)

	assert.True(t, m.Terminate("stubborn", 300*time.Millisecond))
	assert.False(t, m.Info("stubborn").Alive())
}

func TestList_RecomputesStatus(t *testing.T) {
	m := NewManager()
	defer m.ShutdownAll(time.Second)

	require.True(t, m.Create("alive", sleepSpec()))
	require.True(t, m.Create("dead", shortSpec()))
	waitDead(t, m, "dead")

	entries := m.List()
	require.Len(t, entries, 2)

	assert.Equal(t, StatusRunning, entries["alive"].Status)
	assert.True(t, entries["alive"].Alive)
	assert.Equal(t, "sleeper", entries["alive"].Target)

	assert.Equal(t, StatusStopped, entries["dead"].Status, "dead running process reports stopped, not error")
	assert.False(t, entries["dead"].Alive)
}

func TestCleanupDead_RemovesOnlyDead(t *testing.T) {
	m := NewManager()
	defer m.ShutdownAll(time.Second)

	require.True(t, m.Create("a", sleepSpec()))
	require.True(t, m.Create("b", sleepSpec()))
	require.True(t, m.Create("c", shortSpec()))
	waitDead(t, m, "c")

	assert.Equal(t, 1, m.CleanupDead())
	assert.Nil(t, m.Info("c"))
	assert.NotNil(t, m.Info("a"))
	assert.NotNil(t, m.Info("b"))

	assert.Equal(t, 0, m.CleanupDead())
}

func TestRemove_TerminatesRunning(t *testing.T) {
	m := NewManager()
	defer m.ShutdownAll(time.Second)

	require.True(t, m.Create("a", sleepSpec()))
	assert.True(t, m.Remove("a"))
	assert.Nil(t, m.Info("a"))

	assert.False(t, m.Remove("a"), "removing an unknown key fails")
}

func TestShutdownAll(t *testing.T) {
	m := NewManager()

	require.True(t, m.Create("a", sleepSpec()))
	require.True(t, m.Create("b", sleepSpec()))

	assert.True(t, m.ShutdownAll(2*time.Second))
	assert.Len(t, m.List(), 0)
}

func TestRestart_KeepsSpec(t *testing.T) {
	m := NewManager()
	defer m.ShutdownAll(time.Second)

	require.True(t, m.Create("a", sleepSpec()))
	oldPID := m.Info("a").PID

	require.True(t, m.Restart("a", 2*time.Second))

	info := m.Info("a")
	require.NotNil(t, info)
	assert.True(t, info.Alive())
	assert.NotEqual(t, oldPID, info.PID)
	assert.Equal(t, "sleeper", info.Spec.Name)
	assert.Equal(t, []string{"60"}, info.Spec.Args)
}

func TestRestart_UnknownKey(t *testing.T) {
	m := NewManager()
	assert.False(t, m.Restart("ghost", time.Second))
}

func TestRestart_RefusesInheritedDescriptors(t *testing.T) {
	m := NewManager()
	defer m.ShutdownAll(time.Second)

	f, err := os.Open(os.DevNull)
	require.NoError(t, err)

	spec := sleepSpec()
	spec.Files = []*os.File{f}
	require.True(t, m.Create("a", spec))

	// The spawner closes its handle right after Create, so the descriptor
	// recorded in the spec is dead for any later spawn.
	f.Close()

	assert.False(t, m.Restart("a", time.Second))
	info := m.Info("a")
	require.NotNil(t, info)
	assert.True(t, info.Alive(), "the refused restart leaves the process untouched")
}
