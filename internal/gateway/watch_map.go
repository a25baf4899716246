package gateway

import "sync"

// WatchMap tracks which connections are currently viewing which
// conversation. Typing, presence and read-receipt events only matter
// to someone looking at the conversation, so they fan out to watchers
// instead of every connection of the participants.
type WatchMap struct {
	mu       sync.RWMutex
	watchers map[string]map[string]*Client // conversationId -> connId -> client
}

// NewWatchMap creates a new WatchMap
func NewWatchMap() *WatchMap {
	return &WatchMap{
		watchers: make(map[string]map[string]*Client),
	}
}

// Watch adds a client to a conversation's watcher set
func (m *WatchMap) Watch(conversationId string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, exists := m.watchers[conversationId]
	if !exists {
		conns = make(map[string]*Client, 2)
		m.watchers[conversationId] = conns
	}
	conns[client.ConnId] = client
}

// Unwatch removes a client from a conversation's watcher set
func (m *WatchMap) Unwatch(conversationId string, client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conns, exists := m.watchers[conversationId]
	if !exists {
		return
	}
	delete(conns, client.ConnId)
	if len(conns) == 0 {
		delete(m.watchers, conversationId)
	}
}

// UnwatchAll removes a client from every given conversation. Used on
// disconnect with the client's own watched set.
func (m *WatchMap) UnwatchAll(conversationIds []string, client *Client) {
	for _, convId := range conversationIds {
		m.Unwatch(convId, client)
	}
}

// GetWatchers returns a copy of the clients watching a conversation
func (m *WatchMap) GetWatchers(conversationId string) []*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conns, exists := m.watchers[conversationId]
	if !exists {
		return nil
	}

	clients := make([]*Client, 0, len(conns))
	for _, c := range conns {
		clients = append(clients, c)
	}
	return clients
}

// WatcherCount returns how many connections watch a conversation
func (m *WatchMap) WatcherCount(conversationId string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.watchers[conversationId])
}
