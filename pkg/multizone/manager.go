package multizone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/castbridge/castbridge-go/pkg/castv2"
)

// Manager errors.
var (
	ErrNoClientFactory = errors.New("multizone: no group client factory configured")
)

// Listener is implemented by device sessions that want a group's media
// status pushed to them.
type Listener interface {
	// MultizoneNewMediaStatus delivers a group-level media status.
	MultizoneNewMediaStatus(groupUUID uuid.UUID, status *castv2.MediaStatus)
}

// ClientFactory dials the shared client for a group device.
type ClientFactory func(groupUUID uuid.UUID) (castv2.Client, error)

// groupEntry is the shared state for one group: the shared client and
// the set of subscribed member sessions.
type groupEntry struct {
	client  castv2.Client
	members map[Listener]struct{}
}

// Manager maps group UUIDs to their subscriber sets. All mutation goes
// through the Manager's own methods; sessions never reach into the map.
type Manager struct {
	mu sync.Mutex

	factory ClientFactory
	logger  *slog.Logger

	groups map[uuid.UUID]*groupEntry
}

// NewManager creates a manager dialing group connections via factory.
func NewManager(factory ClientFactory) *Manager {
	return &Manager{
		factory: factory,
		groups:  make(map[uuid.UUID]*groupEntry),
	}
}

// SetLogger sets the diagnostic logger.
func (m *Manager) SetLogger(logger *slog.Logger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logger = logger
}

// AddMultizoneStatusListener registers a session under a group. The
// first registration for a group dials and connects the shared group
// client; later registrations share it.
func (m *Manager) AddMultizoneStatusListener(groupUUID uuid.UUID, member Listener) error {
	m.mu.Lock()
	entry, ok := m.groups[groupUUID]
	if ok {
		entry.members[member] = struct{}{}
		m.mu.Unlock()
		return nil
	}
	factory := m.factory
	m.mu.Unlock()

	if factory == nil {
		return ErrNoClientFactory
	}

	client, err := factory(groupUUID)
	if err != nil {
		return fmt.Errorf("multizone: dial group %s: %w", groupUUID, err)
	}
	client.RegisterStatusListener(&groupStatusRelay{manager: m, groupUUID: groupUUID})
	if err := client.Connect(context.Background()); err != nil {
		_ = client.Disconnect()
		return fmt.Errorf("multizone: connect group %s: %w", groupUUID, err)
	}

	m.mu.Lock()
	// A concurrent registration may have raced us here; fold into it.
	if existing, ok := m.groups[groupUUID]; ok {
		existing.members[member] = struct{}{}
		m.mu.Unlock()
		_ = client.Disconnect()
		return nil
	}
	m.groups[groupUUID] = &groupEntry{
		client:  client,
		members: map[Listener]struct{}{member: {}},
	}
	m.mu.Unlock()
	return nil
}

// RemoveMultizoneStatusListener deregisters a session. When a group's
// subscriber set becomes empty the shared client is released and the
// entry deleted. Safe to call for sessions that never subscribed.
func (m *Manager) RemoveMultizoneStatusListener(groupUUID uuid.UUID, member Listener) {
	m.mu.Lock()
	entry, ok := m.groups[groupUUID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(entry.members, member)
	var client castv2.Client
	if len(entry.members) == 0 {
		client = entry.client
		delete(m.groups, groupUUID)
	}
	m.mu.Unlock()

	if client != nil {
		_ = client.Disconnect()
	}
}

// GetMultizoneMediaController returns the shared media controller for a
// group, used for control calls routed to the group.
func (m *Manager) GetMultizoneMediaController(groupUUID uuid.UUID) (castv2.MediaController, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.groups[groupUUID]
	if !ok {
		return nil, false
	}
	return entry.client.MediaController(), true
}

// GroupCount returns the number of groups with at least one subscriber.
func (m *Manager) GroupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.groups)
}

// MemberCount returns the number of sessions subscribed to a group.
func (m *Manager) MemberCount(groupUUID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.groups[groupUUID]
	if !ok {
		return 0
	}
	return len(entry.members)
}

// Close releases every shared group client.
func (m *Manager) Close() {
	m.mu.Lock()
	clients := make([]castv2.Client, 0, len(m.groups))
	for id, entry := range m.groups {
		clients = append(clients, entry.client)
		delete(m.groups, id)
	}
	m.mu.Unlock()

	for _, client := range clients {
		_ = client.Disconnect()
	}
}

// dispatch fans a group media status out to a snapshot of the group's
// current members.
func (m *Manager) dispatch(groupUUID uuid.UUID, status *castv2.MediaStatus) {
	m.mu.Lock()
	entry, ok := m.groups[groupUUID]
	if !ok {
		m.mu.Unlock()
		return
	}
	members := make([]Listener, 0, len(entry.members))
	for member := range entry.members {
		members = append(members, member)
	}
	logger := m.logger
	m.mu.Unlock()

	if logger != nil {
		logger.Debug("fanning out group media status",
			"groupUUID", groupUUID,
			"members", len(members))
	}
	for _, member := range members {
		member.MultizoneNewMediaStatus(groupUUID, status)
	}
}

// groupStatusRelay adapts a group client's status callbacks into
// manager fan-out. Connection and cast status of the group device are
// not relayed to members; only media status matters to them.
type groupStatusRelay struct {
	manager   *Manager
	groupUUID uuid.UUID
}

func (r *groupStatusRelay) NewCastStatus(castv2.CastStatus) {}

func (r *groupStatusRelay) NewConnectionStatus(castv2.ConnectionStatus) {}

func (r *groupStatusRelay) NewMediaStatus(status *castv2.MediaStatus) {
	r.manager.dispatch(r.groupUUID, status)
}

// Ensure the relay satisfies the client listener contract.
var _ castv2.StatusListener = (*groupStatusRelay)(nil)
