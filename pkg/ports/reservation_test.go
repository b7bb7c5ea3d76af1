package ports

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// freeWindow finds a run of consecutive free ports for deterministic
// range-scan assertions.
func freeWindow(t *testing.T, size int) int {
	t.Helper()
	for base := 42000; base < 60000; base += size {
		ok := true
		for p := base; p < base+size; p++ {
			if !IsAvailable(p) {
				ok = false
				break
			}
		}
		if ok {
			return base
		}
	}
	t.Fatal("no free port window found")
	return 0
}

func TestReserve_NoDoubleBind(t *testing.T) {
	m := NewReservationManager()
	defer m.ReleaseAll()

	base := freeWindow(t, 1)

	require.True(t, m.Reserve("a", base))
	assert.False(t, m.Reserve("b", base), "second reservation of the same port must fail")

	other := NewReservationManager()
	defer other.ReleaseAll()
	assert.False(t, other.Reserve("c", base), "the OS must refuse a second bind")

	require.True(t, m.Release("a"))
	assert.True(t, m.Reserve("b", base), "port is reservable again after release")
}

func TestReserve_DuplicateKey(t *testing.T) {
	m := NewReservationManager()
	defer m.ReleaseAll()

	base := freeWindow(t, 2)

	require.True(t, m.Reserve("svc", base))
	assert.False(t, m.Reserve("svc", base+1), "key can hold at most one reservation")

	port, ok := m.Get("svc")
	require.True(t, ok)
	assert.Equal(t, base, port)
}

func TestReserveFromRange_Deterministic(t *testing.T) {
	base := freeWindow(t, 4)

	m := NewReservationManager()
	defer m.ReleaseAll()

	port, ok := m.ReserveFromRange("first", base, base+3)
	require.True(t, ok)
	assert.Equal(t, base, port, "a fully free range yields its lowest port")

	port, ok = m.ReserveFromRange("second", base, base+3)
	require.True(t, ok)
	assert.Equal(t, base+1, port, "the scan skips the occupied low port")
}

func TestReserveFromRange_SkipsExternallyBoundPort(t *testing.T) {
	base := freeWindow(t, 3)

	occupied, err := net.Listen("tcp", listenAddr(base))
	require.NoError(t, err)
	defer occupied.Close()

	m := NewReservationManager()
	defer m.ReleaseAll()

	port, ok := m.ReserveFromRange("svc", base, base+2)
	require.True(t, ok)
	assert.Equal(t, base+1, port)
}

func TestReserveFromRange_Exhausted(t *testing.T) {
	base := freeWindow(t, 2)

	m := NewReservationManager()
	defer m.ReleaseAll()

	_, ok := m.ReserveFromRange("a", base, base+1)
	require.True(t, ok)
	_, ok = m.ReserveFromRange("b", base, base+1)
	require.True(t, ok)

	_, ok = m.ReserveFromRange("c", base, base+1)
	assert.False(t, ok, "exhausted range reports failure, not panic")
}

func TestReleaseForBinding_PreservesAllocation(t *testing.T) {
	m := NewReservationManager()
	defer m.ReleaseAll()

	base := freeWindow(t, 1)
	require.True(t, m.Reserve("agent", base))

	port, ok := m.ReleaseForBinding("agent")
	require.True(t, ok)
	assert.Equal(t, base, port)

	// The supervisor's socket is gone but the allocation survives: the key
	// still answers with its port and the port number stays claimed.
	assert.False(t, m.HasReservation("agent"))
	got, ok := m.Get("agent")
	require.True(t, ok, "allocation must survive the socket hand-off")
	assert.Equal(t, base, got)
	assert.Equal(t, map[string]int{"agent": base}, m.All())

	assert.True(t, m.IsPortLocked(base))
	assert.False(t, m.Reserve("other", base), "released-for-binding port must not be re-issued")
	assert.False(t, m.Reserve("agent", base), "key keeps its allocation until released")
}

func TestReleaseLock_ForgetsHandedOffAllocation(t *testing.T) {
	m := NewReservationManager()
	defer m.ReleaseAll()

	base := freeWindow(t, 1)
	require.True(t, m.Reserve("proxy", base))

	assert.False(t, m.ReleaseLock(base), "an open reservation must not be unlockable")

	_, ok := m.ReleaseForBinding("proxy")
	require.True(t, ok)

	require.True(t, m.ReleaseLock(base))
	_, ok = m.Get("proxy")
	assert.False(t, ok, "unlocking drops the allocation")

	// The restart path: the same key reserves the same port again.
	assert.True(t, m.Reserve("proxy", base))
}

func TestSocketFile_SurvivesReleaseForBinding(t *testing.T) {
	m := NewReservationManager()

	base := freeWindow(t, 1)
	require.True(t, m.Reserve("agent", base))

	f, err := m.SocketFile("agent")
	require.NoError(t, err)
	defer f.Close()

	_, ok := m.ReleaseForBinding("agent")
	require.True(t, ok)

	// The duplicated descriptor still holds the socket: rebuilding a
	// listener from it works, and the port is still bound.
	ln, err := net.FileListener(f)
	require.NoError(t, err)
	defer ln.Close()

	assert.Equal(t, base, ln.Addr().(*net.TCPAddr).Port)
	assert.False(t, IsAvailable(base))
}

func TestReleaseAll(t *testing.T) {
	m := NewReservationManager()

	base := freeWindow(t, 2)
	require.True(t, m.Reserve("a", base))
	require.True(t, m.Reserve("b", base+1))
	assert.Equal(t, 2, m.Count())
	assert.Equal(t, map[string]int{"a": base, "b": base + 1}, m.All())

	m.ReleaseAll()
	assert.Equal(t, 0, m.Count())
	assert.True(t, IsAvailable(base))
	assert.True(t, IsAvailable(base+1))
}
