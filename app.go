package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chatter-irc/chatter/internal/config"
	"github.com/chatter-irc/chatter/internal/events"
	"github.com/chatter-irc/chatter/internal/irc"
	"github.com/chatter-irc/chatter/internal/logger"
	"github.com/chatter-irc/chatter/internal/netmon"
	"github.com/chatter-irc/chatter/internal/security"
	"github.com/chatter-irc/chatter/internal/session"
	"github.com/chatter-irc/chatter/internal/storage"
)

// App wires the session core to its collaborators: storage, the event
// bus, the availability monitor and the OS keychain. The UI layer talks
// to Manager and subscribes to Bus.
type App struct {
	config   *config.Config
	storage  *storage.Storage
	bus      *events.EventBus
	monitor  *netmon.Monitor
	manager  *session.ConnectionManager
	keychain *security.Keychain
	archiver *storage.Archiver
}

// NewApp builds the application from its configuration.
func NewApp(cfg *config.Config) (*App, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	stor, err := storage.NewStorage(cfg.DatabasePath, 100, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	bus := events.NewEventBus()

	archiver := storage.NewArchiver(stor)
	archiver.Attach(bus)

	monitor := netmon.NewMonitor(cfg.ProbeAddress)

	manager := session.NewConnectionManager(bus, monitor, func(tc irc.TransportConfig) irc.Transport {
		return irc.NewErgoTransport(tc)
	})
	monitor.SetOnChange(manager.OnAvailabilityChanged)

	return &App{
		config:   cfg,
		storage:  stor,
		bus:      bus,
		monitor:  monitor,
		manager:  manager,
		keychain: security.NewKeychain(),
		archiver: archiver,
	}, nil
}

// Bus returns the event bus observers subscribe to.
func (a *App) Bus() *events.EventBus { return a.bus }

// Manager returns the connection manager driving all server sessions.
func (a *App) Manager() *session.ConnectionManager { return a.manager }

// Startup starts connectivity watching and connects every network
// flagged auto-connect. Requests made while offline are queued by the
// manager and drained when connectivity arrives.
func (a *App) Startup() error {
	a.monitor.Start()

	account, err := a.storage.GetAccount()
	if err != nil {
		return fmt.Errorf("failed to load account settings: %w", err)
	}

	networks, err := a.storage.GetNetworks()
	if err != nil {
		return fmt.Errorf("failed to load networks: %w", err)
	}

	for i := range networks {
		network := networks[i]
		if !network.AutoConnect {
			continue
		}
		if network.Password == "" {
			password, err := a.keychain.GetPassword(network.URL)
			if err != nil {
				logger.Log.Warn().Err(err).Str("server", network.URL).Msg("keychain lookup failed")
			}
			network.Password = password
		}
		a.manager.Connect(&network, account)
	}
	return nil
}

// Shutdown tears everything down: sessions quit, the monitor stops,
// buffered messages are flushed.
func (a *App) Shutdown() {
	a.manager.Close()
	a.monitor.Stop()
	if err := a.storage.Close(); err != nil {
		logger.Log.Error().Err(err).Msg("failed to close storage")
	}
}
