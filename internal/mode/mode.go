// Package mode owns the dashboard's data mode: MOCK serves local
// fixtures with zero network traffic, LIVE polls the backend. A single
// Manager instance is created at startup and handed to everything that
// needs gating; only explicit user or config action changes it.
package mode

import (
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

type Mode string

const (
	Mock Mode = "MOCK"
	Live Mode = "LIVE"
)

// FromString normalizes a configured mode value, defaulting to Mock
// for anything unrecognized.
func FromString(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(Live)) {
		return Live
	}
	return Mock
}

type Manager struct {
	mu      sync.RWMutex
	current Mode
	subs    []func(Mode)
}

func NewManager(initial Mode) *Manager {
	return &Manager{current: initial}
}

func (m *Manager) Current() Mode {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

func (m *Manager) IsLive() bool {
	return m.Current() == Live
}

// Set switches the mode and notifies subscribers. Switching to the
// current mode is a no-op so subscribers never see spurious
// transitions. Callbacks run outside the lock.
func (m *Manager) Set(mode Mode) {
	m.mu.Lock()
	if m.current == mode {
		m.mu.Unlock()
		return
	}
	m.current = mode
	subs := make([]func(Mode), len(m.subs))
	copy(subs, m.subs)
	m.mu.Unlock()

	log.Info().Str("mode", string(mode)).Msg("data mode changed")
	for _, fn := range subs {
		fn(mode)
	}
}

// OnChange registers fn to run on every mode transition.
func (m *Manager) OnChange(fn func(Mode)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subs = append(m.subs, fn)
}
