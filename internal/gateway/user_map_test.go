package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(userId, connId string) *Client {
	return &Client{UserId: userId, ConnId: connId, watched: make(map[string]struct{})}
}

func TestUserMapRegisterUnregister(t *testing.T) {
	m := NewUserMap()

	c1 := newTestClient("m___12", "conn-1")
	c2 := newTestClient("m___12", "conn-2")

	m.Register(c1)
	m.Register(c2)

	clients, ok := m.GetAll("m___12")
	require.True(t, ok)
	assert.Len(t, clients, 2)
	assert.Equal(t, 1, m.GetOnlineUserCount())
	assert.Equal(t, 2, m.GetOnlineConnCount())

	// Dropping one connection keeps the user online
	offline := m.Unregister(c1)
	assert.False(t, offline)
	assert.True(t, m.HasConnection("m___12"))

	// Dropping the last one takes the user offline
	offline = m.Unregister(c2)
	assert.True(t, offline)
	assert.False(t, m.HasConnection("m___12"))

	_, ok = m.GetAll("m___12")
	assert.False(t, ok)
}

func TestUserMapUnregisterUnknown(t *testing.T) {
	m := NewUserMap()
	assert.False(t, m.Unregister(newTestClient("ghost", "conn-x")))
}

func TestUserMapGetAllReturnsCopy(t *testing.T) {
	m := NewUserMap()
	m.Register(newTestClient("m___7", "conn-1"))

	clients, ok := m.GetAll("m___7")
	require.True(t, ok)
	clients[0] = nil

	again, ok := m.GetAll("m___7")
	require.True(t, ok)
	assert.NotNil(t, again[0])
}
