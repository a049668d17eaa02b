package netmon

import (
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeDialer flips between reachable and unreachable.
type fakeDialer struct {
	mu        sync.Mutex
	reachable bool
	dials     int
}

func (d *fakeDialer) dial(network, addr string, timeout time.Duration) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if !d.reachable {
		return nil, errors.New("network is unreachable")
	}
	client, server := net.Pipe()
	server.Close()
	return client, nil
}

func (d *fakeDialer) setReachable(ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reachable = ok
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func newTestMonitor(t *testing.T, reachable bool) (*Monitor, *fakeDialer) {
	t.Helper()
	d := &fakeDialer{reachable: reachable}
	m := NewMonitor("203.0.113.1:53")
	m.dial = d.dial
	m.retryDelay = 10 * time.Millisecond
	t.Cleanup(m.Stop)
	return m, d
}

func TestStartProbesSynchronously(t *testing.T) {
	m, d := newTestMonitor(t, true)

	assert.False(t, m.IsOnline())
	m.Start()
	assert.True(t, m.IsOnline())
	assert.GreaterOrEqual(t, d.dialCount(), 1)
}

func TestOnChangeFiresOnTransitionsOnly(t *testing.T) {
	m, d := newTestMonitor(t, true)

	var transitions int64
	var lastState atomic.Bool
	m.SetOnChange(func(online bool) {
		atomic.AddInt64(&transitions, 1)
		lastState.Store(online)
	})

	m.Start()
	require.Equal(t, int64(1), atomic.LoadInt64(&transitions))
	assert.True(t, lastState.Load())

	// Repeated successes are not transitions.
	m.AttemptConnection()
	assert.Eventually(t, func() bool { return d.dialCount() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), atomic.LoadInt64(&transitions))

	d.setReachable(false)
	m.AttemptConnection()
	assert.Eventually(t, func() bool {
		return atomic.LoadInt64(&transitions) == 2 && !lastState.Load()
	}, time.Second, 5*time.Millisecond)
}

func TestFailedProbeSchedulesFlatRetry(t *testing.T) {
	m, d := newTestMonitor(t, false)

	m.Start()
	assert.False(t, m.IsOnline())

	// The retry loop keeps probing at the flat delay while unreachable,
	// then flips online as soon as the network returns.
	assert.Eventually(t, func() bool { return d.dialCount() >= 3 }, time.Second, 5*time.Millisecond)
	assert.False(t, m.IsOnline())

	d.setReachable(true)
	assert.Eventually(t, m.IsOnline, time.Second, 5*time.Millisecond)
}

func TestAttemptConnectionLaterCoalesces(t *testing.T) {
	m, d := newTestMonitor(t, false)
	m.retryDelay = 50 * time.Millisecond

	m.AttemptConnectionLater()
	m.AttemptConnectionLater()
	m.AttemptConnectionLater()

	// Only one pending retry may exist; well before the delay elapses
	// nothing has been dialed.
	assert.Equal(t, 0, d.dialCount())
	assert.Eventually(t, func() bool { return d.dialCount() >= 1 }, time.Second, 5*time.Millisecond)
}

func TestStopCancelsRetries(t *testing.T) {
	d := &fakeDialer{}
	m := NewMonitor("203.0.113.1:53")
	m.dial = d.dial
	m.retryDelay = 10 * time.Millisecond

	m.AttemptConnectionLater()
	m.Stop()

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, d.dialCount())
}

func TestDefaultProbeAddress(t *testing.T) {
	m := NewMonitor("")
	assert.Equal(t, "1.1.1.1:53", m.probeAddr)
	assert.Equal(t, RetryDelay, m.retryDelay)
}
