package gateway

import (
	"sync"
	"time"
)

// UserMap tracks the live connections of each user. A user may hold
// several connections at once (phone plus web); pushes fan out to all
// of them. Liveness toward counterparts is owned by the presence
// tracker, not by this map, so it stays purely in-memory.
type UserMap struct {
	mu    sync.RWMutex
	users map[string]*UserConns // userId -> UserConns
}

// UserConns holds all connections for a user
type UserConns struct {
	Clients []*Client
	Time    time.Time
}

// NewUserMap creates a new UserMap
func NewUserMap() *UserMap {
	return &UserMap{
		users: make(map[string]*UserConns),
	}
}

// Register registers a client
func (m *UserMap) Register(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	userConns, exists := m.users[client.UserId]
	if !exists {
		userConns = &UserConns{
			Clients: make([]*Client, 0, 4),
		}
		m.users[client.UserId] = userConns
	}

	userConns.Clients = append(userConns.Clients, client)
	userConns.Time = time.Now()
}

// Unregister unregisters a client. Returns true when the user has no
// connections left.
func (m *UserMap) Unregister(client *Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	userConns, exists := m.users[client.UserId]
	if !exists {
		return false
	}

	newClients := make([]*Client, 0, len(userConns.Clients))
	for _, c := range userConns.Clients {
		if c.ConnId != client.ConnId {
			newClients = append(newClients, c)
		}
	}
	userConns.Clients = newClients

	if len(userConns.Clients) == 0 {
		delete(m.users, client.UserId)
		return true
	}

	return false
}

// GetAll gets all clients for a user
func (m *UserMap) GetAll(userId string) ([]*Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userConns, exists := m.users[userId]
	if !exists {
		return nil, false
	}

	// Return a copy to avoid race conditions
	clients := make([]*Client, len(userConns.Clients))
	copy(clients, userConns.Clients)
	return clients, true
}

// HasConnection checks if user has any connection
func (m *UserMap) HasConnection(userId string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userConns, exists := m.users[userId]
	return exists && len(userConns.Clients) > 0
}

// GetOnlineUserCount returns the number of connected users
func (m *UserMap) GetOnlineUserCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.users)
}

// GetOnlineConnCount returns the total number of connections
func (m *UserMap) GetOnlineConnCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, uc := range m.users {
		count += len(uc.Clients)
	}
	return count
}

// GetAllUserIds returns all connected user Ids
func (m *UserMap) GetAllUserIds() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	userIds := make([]string, 0, len(m.users))
	for userId := range m.users {
		userIds = append(userIds, userId)
	}
	return userIds
}
