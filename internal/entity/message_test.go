package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToMessageInfo(t *testing.T) {
	readAt := int64(1700000001000)
	msg := &Message{
		Id:             "msg_1",
		ConversationId: "cv_a:b:lst_1",
		Seq:            7,
		ClientMsgId:    "cli_1",
		SenderId:       "a",
		Text:           "Bună! Mai este disponibil?",
		CreatedAt:      1700000000123,
		Read:           true,
		ReadAt:         &readAt,
	}

	info := msg.ToMessageInfo()
	assert.Equal(t, msg.Id, info.Id)
	assert.Equal(t, msg.Seq, info.Seq)
	assert.Equal(t, msg.Text, info.Text)
	assert.Equal(t, msg.CreatedAt, info.CreatedAt)
	require.NotNil(t, info.ReadAt)
	assert.Equal(t, readAt, *info.ReadAt)
}

func TestMessageInfoTextSurvivesJSON(t *testing.T) {
	// Diacritics must survive serialization byte for byte
	original := &Message{Id: "msg_1", SenderId: "a", Text: "Bună! Mai este disponibil?"}

	data, err := json.Marshal(original.ToMessageInfo())
	require.NoError(t, err)

	var decoded MessageInfo
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "Bună! Mai este disponibil?", decoded.Text)
}

func TestMessageInfoUnreadOmitsReadAt(t *testing.T) {
	data, err := json.Marshal((&Message{Id: "m", Text: "hi"}).ToMessageInfo())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "read_at")
}
