package session

import (
	"context"
	"sync"
)

// Manager owns the configured channels and the optional credential backup loop.
type Manager struct {
	order    []string
	channels map[string]*Channel
	backup   *CredentialBackup

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewManager keeps channels in the given order; backup may be nil.
func NewManager(backup *CredentialBackup, channels ...*Channel) *Manager {
	m := &Manager{channels: make(map[string]*Channel, len(channels)), backup: backup}
	for _, ch := range channels {
		m.order = append(m.order, ch.Name())
		m.channels[ch.Name()] = ch
	}
	return m
}

func (m *Manager) Channel(name string) (*Channel, bool) {
	ch, ok := m.channels[name]
	return ch, ok
}

func (m *Manager) Names() []string {
	return append([]string(nil), m.order...)
}

func (m *Manager) Snapshots() []Snapshot {
	out := make([]Snapshot, 0, len(m.order))
	for _, name := range m.order {
		out = append(out, m.channels[name].Snapshot())
	}
	return out
}

// Start restores backed-up credentials, starts every channel and launches the
// periodic backup. Channel start failures are retried by the channel itself.
func (m *Manager) Start(ctx context.Context) {
	ctx, m.cancel = context.WithCancel(ctx)
	if m.backup != nil {
		for _, name := range m.order {
			m.backup.Restore(ctx, name)
		}
	}
	for _, name := range m.order {
		m.channels[name].Start(ctx)
	}
	if m.backup != nil {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.backup.Run(ctx, m.order)
		}()
	}
}

// Stop disconnects every channel, then waits for the final credential upload.
func (m *Manager) Stop() {
	for _, name := range m.order {
		m.channels[name].Stop()
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
}
