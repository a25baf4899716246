package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenConversationId(t *testing.T) {
	// Same id regardless of who starts the conversation
	id1 := GenConversationId("m___12", "m___7", "lst_9001")
	id2 := GenConversationId("m___7", "m___12", "lst_9001")
	assert.Equal(t, id1, id2)
	assert.Equal(t, "cv_m___12:m___7:lst_9001", id1)

	// A different listing between the same pair is a different conversation
	id3 := GenConversationId("m___7", "m___12", "lst_9002")
	assert.NotEqual(t, id1, id3)
}

func TestParseConversationId(t *testing.T) {
	userA, userB, listingId, ok := ParseConversationId("cv_m___12:m___7:lst_9001")
	require.True(t, ok)
	assert.Equal(t, "m___12", userA)
	assert.Equal(t, "m___7", userB)
	assert.Equal(t, "lst_9001", listingId)

	// Round trip
	assert.Equal(t, "cv_m___12:m___7:lst_9001", GenConversationId(userA, userB, listingId))
}

func TestParseConversationIdMalformed(t *testing.T) {
	cases := []string{
		"",
		"cv_",
		"m___12:m___7:lst_9001", // missing prefix
		"cv_m___12:lst_9001",    // missing participant
		"cv_m___12:m___7",       // missing listing segment
		"cv_:m___7:lst_9001",    // empty participant
		"cv_m___7:m___7:lst_1",  // same user twice
		"cv_a:b:c:d",            // too many segments
	}
	for _, id := range cases {
		_, _, _, ok := ParseConversationId(id)
		assert.False(t, ok, "expected malformed: %q", id)
	}
}

func TestHasParticipant(t *testing.T) {
	id := GenConversationId("st__3", "m___44", "lst_1")

	assert.True(t, HasParticipant(id, "st__3"))
	assert.True(t, HasParticipant(id, "m___44"))
	assert.False(t, HasParticipant(id, "m___45"))
	assert.False(t, HasParticipant("not-a-conversation", "st__3"))
}
