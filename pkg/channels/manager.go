package channels

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dmpilot-bot/dmpilot/pkg/bus"
	"github.com/dmpilot-bot/dmpilot/pkg/config"
)

// OutcomeFunc receives one delivery outcome per dispatched reply: the
// catalog row that produced it and whether delivery succeeded.
type OutcomeFunc func(responseID int64, delivered bool)

// Manager owns the configured channels and pumps outbound replies from the
// bus into them. Channels whose config is absent are simply not created.
type Manager struct {
	channels     map[string]Channel
	bus          *bus.MessageBus
	config       *config.Config
	log          *slog.Logger
	onOutcome    OutcomeFunc
	dispatchTask *asyncTask
	mu           sync.RWMutex
}

type asyncTask struct {
	cancel context.CancelFunc
}

func NewManager(cfg *config.Config, messageBus *bus.MessageBus) (*Manager, error) {
	m := &Manager{
		channels: make(map[string]Channel),
		bus:      messageBus,
		config:   cfg,
		log:      slog.Default().With("component", "channels"),
	}

	if err := m.initChannels(); err != nil {
		return nil, err
	}

	return m, nil
}

// SetOutcomeFunc installs the delivery-outcome callback. Must be called
// before StartAll.
func (m *Manager) SetOutcomeFunc(fn OutcomeFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOutcome = fn
}

func (m *Manager) initChannels() error {
	if strings.TrimSpace(m.config.Channels.Discord.Token) != "" {
		discord, err := NewDiscordChannel(m.config.Channels.Discord, m.bus)
		if err != nil {
			return fmt.Errorf("initialize discord channel: %w", err)
		}
		m.channels["discord"] = discord
		m.log.Info("discord channel initialized")
	}

	m.log.Info("channel initialization completed", "enabled_channels", len(m.channels))
	return nil
}

func (m *Manager) StartAll(ctx context.Context) error {
	m.mu.RLock()
	if len(m.channels) == 0 {
		m.mu.RUnlock()
		m.log.Warn("no channels enabled")
		return nil
	}
	channelsCopy := make(map[string]Channel, len(m.channels))
	for name, channel := range m.channels {
		channelsCopy[name] = channel
	}
	m.mu.RUnlock()

	var started []string
	var startErrors []string
	for name, channel := range channelsCopy {
		m.log.Info("starting channel", "channel", name)
		if err := channel.Start(ctx); err != nil {
			m.log.Error("failed to start channel", "channel", name, "error", err)
			startErrors = append(startErrors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		started = append(started, name)
	}

	if len(startErrors) > 0 {
		for _, name := range started {
			if err := channelsCopy[name].Stop(ctx); err != nil {
				m.log.Warn("failed to stop partially-started channel", "channel", name, "error", err)
			}
		}
		return fmt.Errorf("start channels: %s", strings.Join(startErrors, "; "))
	}

	dispatchCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.dispatchTask != nil {
		m.dispatchTask.cancel()
	}
	m.dispatchTask = &asyncTask{cancel: cancel}
	m.mu.Unlock()

	go m.dispatchOutbound(dispatchCtx)

	m.log.Info("all channels started", "count", len(started))
	return nil
}

func (m *Manager) StopAll(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.dispatchTask != nil {
		m.dispatchTask.cancel()
		m.dispatchTask = nil
	}

	for name, channel := range m.channels {
		if err := channel.Stop(ctx); err != nil {
			m.log.Error("error stopping channel", "channel", name, "error", err)
		}
	}

	m.log.Info("all channels stopped")
	return nil
}

// dispatchOutbound delivers queued replies and reports each delivery
// outcome, which feeds the catalog's success statistics.
func (m *Manager) dispatchOutbound(ctx context.Context) {
	m.log.Info("outbound dispatcher started")

	for {
		select {
		case <-ctx.Done():
			m.log.Info("outbound dispatcher stopped")
			return
		default:
			msg, ok := m.bus.SubscribeOutbound(ctx)
			if !ok {
				continue
			}

			m.mu.RLock()
			channel, exists := m.channels[msg.Channel]
			onOutcome := m.onOutcome
			m.mu.RUnlock()

			if !exists {
				m.log.Warn("unknown channel for outbound message", "channel", msg.Channel)
				continue
			}

			err := channel.Send(ctx, msg)
			if err != nil {
				m.log.Error("error sending message to channel", "channel", msg.Channel, "error", err)
			}
			if onOutcome != nil {
				onOutcome(msg.ResponseID, err == nil)
			}
		}
	}
}

func (m *Manager) GetChannel(name string) (Channel, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	channel, ok := m.channels[name]
	return channel, ok
}

func (m *Manager) GetEnabledChannels() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.channels))
	for name := range m.channels {
		names = append(names, name)
	}
	return names
}

func (m *Manager) RegisterChannel(name string, channel Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[name] = channel
}
