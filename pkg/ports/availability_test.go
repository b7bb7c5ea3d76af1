package ports

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listenAddr(port int) string {
	return fmt.Sprintf(":%d", port)
}

func TestReservePort_Ephemeral(t *testing.T) {
	port, ln, err := ReservePort(0)
	require.NoError(t, err)
	defer ln.Close()

	assert.Greater(t, port, 0)
	assert.False(t, IsAvailable(port), "reserved port must not look available")
}

func TestFindFreePortReserved_InvalidRange(t *testing.T) {
	_, _, ok := FindFreePortReserved(9000, 8000, nil)
	assert.False(t, ok)

	_, _, ok = FindFreePortReserved(0, 8000, nil)
	assert.False(t, ok)
}

func TestFindFreePortReserved_Excluded(t *testing.T) {
	base := freeWindow(t, 2)

	excluded := map[int]struct{}{base: {}}
	port, ln, ok := FindFreePortReserved(base, base+1, excluded)
	require.True(t, ok)
	defer ln.Close()

	assert.Equal(t, base+1, port)
}

func TestFindFreePort_DoesNotHold(t *testing.T) {
	base := freeWindow(t, 1)

	port, ok := FindFreePort(base, base, nil)
	require.True(t, ok)
	assert.Equal(t, base, port)
	assert.True(t, IsAvailable(port))
}
