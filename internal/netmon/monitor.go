package netmon

import (
	"net"
	"sync"
	"time"

	"github.com/chatter-irc/chatter/internal/logger"
)

const (
	// RetryDelay is the flat delay between reconnection attempts while
	// offline. Not exponential; connectivity absence is a steady state.
	RetryDelay = 5 * time.Second

	defaultProbeTimeout = 3 * time.Second
	defaultWatchPeriod  = 30 * time.Second
)

// Monitor tracks host connectivity by probing a well-known address.
// It is best-effort and never fails fatally: being offline is a state,
// not an error. Probe failures schedule another attempt after a flat
// delay, indefinitely, until the host is online again.
type Monitor struct {
	probeAddr   string
	timeout     time.Duration
	watchPeriod time.Duration
	retryDelay  time.Duration

	// dial is swappable for tests.
	dial func(network, addr string, timeout time.Duration) (net.Conn, error)

	mu           sync.Mutex
	online       bool
	onChange     func(online bool)
	retryPending bool
	stopCh       chan struct{}
	started      bool
}

// NewMonitor creates a monitor probing the given host:port address.
func NewMonitor(probeAddr string) *Monitor {
	if probeAddr == "" {
		probeAddr = "1.1.1.1:53"
	}
	return &Monitor{
		probeAddr:   probeAddr,
		timeout:     defaultProbeTimeout,
		watchPeriod: defaultWatchPeriod,
		retryDelay:  RetryDelay,
		dial:        net.DialTimeout,
		stopCh:      make(chan struct{}),
	}
}

// SetOnChange registers the callback invoked on every online/offline
// transition. Must be called before Start.
func (m *Monitor) SetOnChange(fn func(online bool)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = fn
}

// IsOnline returns the last observed connectivity state.
func (m *Monitor) IsOnline() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.online
}

// Start probes once synchronously, then begins passive watching.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.mu.Unlock()

	m.probe()
	go m.watch()
}

// Stop ends passive watching. Pending retry timers fire but do nothing
// once stopped.
func (m *Monitor) Stop() {
	close(m.stopCh)
}

func (m *Monitor) stopped() bool {
	select {
	case <-m.stopCh:
		return true
	default:
		return false
	}
}

// AttemptConnection triggers an asynchronous connectivity probe. Safe to
// call at any time, in any state.
func (m *Monitor) AttemptConnection() {
	go m.probe()
}

// AttemptConnectionLater schedules a probe after the flat retry delay.
// Only one retry is kept pending at a time.
func (m *Monitor) AttemptConnectionLater() {
	m.mu.Lock()
	if m.retryPending {
		m.mu.Unlock()
		return
	}
	m.retryPending = true
	m.mu.Unlock()

	logger.Log.Debug().Dur("delay", m.retryDelay).Msg("attempting automatic reconnection later")
	time.AfterFunc(m.retryDelay, func() {
		m.mu.Lock()
		m.retryPending = false
		m.mu.Unlock()
		if !m.stopped() {
			m.probe()
		}
	})
}

func (m *Monitor) watch() {
	ticker := time.NewTicker(m.watchPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.probe()
		case <-m.stopCh:
			return
		}
	}
}

func (m *Monitor) probe() {
	conn, err := m.dial("tcp", m.probeAddr, m.timeout)
	if err != nil {
		m.setOnline(false)
		m.AttemptConnectionLater()
		return
	}
	conn.Close()
	m.setOnline(true)
}

func (m *Monitor) setOnline(online bool) {
	m.mu.Lock()
	changed := m.online != online
	m.online = online
	fn := m.onChange
	m.mu.Unlock()

	if changed {
		logger.Log.Info().Bool("online", online).Msg("connectivity state changed")
		if fn != nil {
			fn(online)
		}
	}
}
