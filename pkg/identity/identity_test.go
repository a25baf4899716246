package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToChatUserId(t *testing.T) {
	member := Actor{Id: 42, Role: RoleMember}
	id, err := member.ToChatUserId()
	require.NoError(t, err)
	assert.Equal(t, "m___42", id)

	staff := Actor{Id: 7, Role: RoleStaff}
	id, err = staff.ToChatUserId()
	require.NoError(t, err)
	assert.Equal(t, "st__7", id)

	unknown := Actor{Id: 1, Role: "bot"}
	_, err = unknown.ToChatUserId()
	assert.Error(t, err)
}

func TestFromChatUserId(t *testing.T) {
	var a Actor
	require.NoError(t, a.FromChatUserId("m___42"))
	assert.Equal(t, Actor{Id: 42, Role: RoleMember}, a)

	require.NoError(t, a.FromChatUserId("st__7"))
	assert.Equal(t, Actor{Id: 7, Role: RoleStaff}, a)
}

func TestFromChatUserIdInvalid(t *testing.T) {
	cases := []string{"", "m___", "x___42", "m___abc", "42"}
	for _, id := range cases {
		var a Actor
		assert.Error(t, a.FromChatUserId(id), "expected error for %q", id)
	}
}

func TestRoundTrip(t *testing.T) {
	original := Actor{Id: 123456789, Role: RoleMember}
	id, err := original.ToChatUserId()
	require.NoError(t, err)

	var parsed Actor
	require.NoError(t, parsed.FromChatUserId(id))
	assert.Equal(t, original, parsed)
}
