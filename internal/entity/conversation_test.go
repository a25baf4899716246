package entity

import (
	"testing"

	"github.com/mbeoliero/vorbi/pkg/errcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoParticipants() []*Participant {
	return []*Participant{
		{ConversationId: "cv_a:b:l", UserId: "a", PeerUserId: "b", DisplayName: "Ana", AvatarUrl: "https://cdn/a.png"},
		{ConversationId: "cv_a:b:l", UserId: "b", PeerUserId: "a", DisplayName: "Bogdan"},
	}
}

func TestCounterpart(t *testing.T) {
	cp, err := Counterpart(twoParticipants(), "a")
	require.NoError(t, err)
	assert.Equal(t, "b", cp.UserId)
	assert.Equal(t, "Bogdan", cp.DisplayName)

	// Symmetric from the other side
	cp, err = Counterpart(twoParticipants(), "b")
	require.NoError(t, err)
	assert.Equal(t, "a", cp.UserId)
	assert.Equal(t, "Ana", cp.DisplayName)
	assert.Equal(t, "https://cdn/a.png", cp.AvatarUrl)
}

func TestCounterpartViewerNotParticipant(t *testing.T) {
	_, err := Counterpart(twoParticipants(), "c")
	assert.Equal(t, errcode.ErrMalformedConversation, err)
}

func TestCounterpartWrongCardinality(t *testing.T) {
	_, err := Counterpart(twoParticipants()[:1], "a")
	assert.Equal(t, errcode.ErrMalformedConversation, err)

	_, err = Counterpart(nil, "a")
	assert.Equal(t, errcode.ErrMalformedConversation, err)
}

func TestConversationWithStateToInfo(t *testing.T) {
	row := &ConversationWithState{
		Conversation: Conversation{
			ConversationId: "cv_a:b:lst_1",
			ListingId:      "lst_1",
			ListingTitle:   "Bicicletă de oraș",
			ListingPrice:   "450 RON",
			LastMessage:    "Bună! Mai este disponibil?",
			LastMessageAt:  1700000000123,
			UpdatedAt:      1700000000123,
		},
		UserId:          "a",
		PeerUserId:      "b",
		UnreadCount:     3,
		PeerDisplayName: "Bogdan",
	}

	info := row.ToInfo()
	assert.Equal(t, "cv_a:b:lst_1", info.ConversationId)
	require.NotNil(t, info.Counterpart)
	assert.Equal(t, "b", info.Counterpart.UserId)
	require.NotNil(t, info.Listing)
	assert.Equal(t, "Bicicletă de oraș", info.Listing.Title)
	assert.Equal(t, "Bună! Mai este disponibil?", info.LastMessage)
	assert.EqualValues(t, 3, info.UnreadCount)
}

func TestConversationWithStateToInfoNoListing(t *testing.T) {
	row := &ConversationWithState{
		Conversation: Conversation{ConversationId: "cv_a:b:l"},
		PeerUserId:   "b",
	}
	assert.Nil(t, row.ToInfo().Listing)
}
