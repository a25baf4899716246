package gateway

import (
	"encoding/json"
	"testing"

	"github.com/mbeoliero/vorbi/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestEnvelopeRoundTrip(t *testing.T) {
	payload, err := Encode(&SendMsgReq{
		ClientMsgId: "cli_1",
		PeerUserId:  "m___7",
		Listing:     &entity.ListingRef{Id: "lst_9001", Title: "Bicicletă de oraș"},
		Text:        "Bună! Mai este disponibil?",
	})
	require.NoError(t, err)

	req := WSRequest{
		ReqIdentifier: WSSendMsg,
		MsgIncr:       "1",
		SendId:        "m___12",
		Data:          payload,
	}

	wire, err := json.Marshal(req)
	require.NoError(t, err)

	var decoded WSRequest
	require.NoError(t, json.Unmarshal(wire, &decoded))
	assert.EqualValues(t, WSSendMsg, decoded.ReqIdentifier)
	assert.Equal(t, "m___12", decoded.SendId)

	var sendReq SendMsgReq
	require.NoError(t, Decode(decoded.Data, &sendReq))
	assert.Equal(t, "Bună! Mai este disponibil?", sendReq.Text)
	assert.Equal(t, "lst_9001", sendReq.Listing.Id)
}

func TestResponseEnvelopeError(t *testing.T) {
	resp := WSResponse{
		ReqIdentifier: WSSendMsg,
		MsgIncr:       "1",
		ErrCode:       4002,
		ErrMsg:        "message text is empty",
	}

	wire, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded WSResponse
	require.NoError(t, json.Unmarshal(wire, &decoded))
	assert.Equal(t, 4002, decoded.ErrCode)
	assert.Empty(t, decoded.Data)
}

func TestPushPayloads(t *testing.T) {
	msg := &entity.Message{
		Id:             "msg_1",
		ConversationId: "cv_m___12:m___7:lst_9001",
		Seq:            1,
		SenderId:       "m___12",
		Text:           "Bună! Mai este disponibil?",
		CreatedAt:      1700000000123,
	}

	data, err := Encode(&PushMsgData{Msg: msg.ToMessageInfo()})
	require.NoError(t, err)

	var push PushMsgData
	require.NoError(t, Decode(data, &push))
	require.NotNil(t, push.Msg)
	assert.Equal(t, msg.Text, push.Msg.Text)
	assert.EqualValues(t, 1, push.Msg.Seq)

	typingData, err := Encode(&PushTypingData{ConversationId: msg.ConversationId, UserId: "m___7", Typing: true})
	require.NoError(t, err)
	var typing PushTypingData
	require.NoError(t, Decode(typingData, &typing))
	assert.True(t, typing.Typing)
}
