package entity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIsOnline(t *testing.T) {
	window := 2 * time.Minute
	now := int64(1700000000000)

	// Heartbeat just now
	assert.True(t, IsOnline(now, now, window))

	// Inside the window
	assert.True(t, IsOnline(now, now-window.Milliseconds()+1, window))

	// Exactly at the window boundary is offline
	assert.False(t, IsOnline(now, now-window.Milliseconds(), window))

	// Well past the window
	assert.False(t, IsOnline(now, now-10*window.Milliseconds(), window))
}

func TestIsOnlineSentinels(t *testing.T) {
	window := 2 * time.Minute
	now := int64(1700000000000)

	// Never seen
	assert.False(t, IsOnline(now, 0, window))

	// Explicit offline mark
	assert.False(t, IsOnline(now, -1, window))
}

func TestIsOnlineDerivedNotStored(t *testing.T) {
	// The same last-seen value flips to offline purely by time passing
	window := 2 * time.Minute
	lastSeen := int64(1700000000000)

	assert.True(t, IsOnline(lastSeen+1000, lastSeen, window))
	assert.False(t, IsOnline(lastSeen+window.Milliseconds()+1, lastSeen, window))
}
