package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/mbeoliero/vorbi/internal/entity"
	"github.com/mbeoliero/vorbi/pkg/errcode"
)

// fakeState is the storage snapshot the fake transaction can roll back
// to.
type fakeState struct {
	conv         *entity.Conversation
	participants map[string]*entity.Participant
	messages     []*entity.Message
}

func (s *fakeState) clone() *fakeState {
	c := &fakeState{participants: make(map[string]*entity.Participant)}
	if s.conv != nil {
		conv := *s.conv
		c.conv = &conv
	}
	for k, v := range s.participants {
		p := *v
		c.participants[k] = &p
	}
	for _, m := range s.messages {
		mm := *m
		if m.ReadAt != nil {
			ra := *m.ReadAt
			mm.ReadAt = &ra
		}
		c.messages = append(c.messages, &mm)
	}
	return c
}

type typingCall struct {
	conversationId string
	userId         string
	typing         bool
}

// fakeStores implements the message service's store interfaces in
// memory. seq lives outside the snapshot: like the real allocator it is
// not part of the transaction, so a rollback leaks the seq.
type fakeStores struct {
	state *fakeState
	seq   int64

	typingCalls []typingCall

	// fastPathBlind makes the non-transactional duplicate lookup miss,
	// simulating a retry racing ahead of the fast-path check.
	fastPathBlind  bool
	failIncrUnread error
}

func newFakeStores() *fakeStores {
	return &fakeStores{state: &fakeState{participants: make(map[string]*entity.Participant)}}
}

func (f *fakeStores) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	snap := f.state.clone()
	if err := fn(nil); err != nil {
		f.state = snap
		return err
	}
	return nil
}

func (f *fakeStores) Create(ctx context.Context, tx *gorm.DB, msg *entity.Message) error {
	f.state.messages = append(f.state.messages, msg)
	return nil
}

func (f *fakeStores) findByClientMsgId(senderId, clientMsgId string) *entity.Message {
	for _, m := range f.state.messages {
		if m.SenderId == senderId && m.ClientMsgId == clientMsgId {
			return m
		}
	}
	return nil
}

func (f *fakeStores) GetByClientMsgId(ctx context.Context, senderId, clientMsgId string) (*entity.Message, error) {
	if f.fastPathBlind {
		return nil, nil
	}
	return f.findByClientMsgId(senderId, clientMsgId), nil
}

func (f *fakeStores) GetByClientMsgIdTx(ctx context.Context, tx *gorm.DB, senderId, clientMsgId string) (*entity.Message, error) {
	return f.findByClientMsgId(senderId, clientMsgId), nil
}

func (f *fakeStores) Pull(ctx context.Context, conversationId string, beginSeq, endSeq int64, limit int) ([]*entity.Message, error) {
	var out []*entity.Message
	for _, m := range f.state.messages {
		if m.ConversationId == conversationId && m.Seq >= beginSeq && m.Seq <= endSeq {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStores) Latest(ctx context.Context, conversationId string, limit int) ([]*entity.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []*entity.Message
	for _, m := range f.state.messages {
		if m.ConversationId == conversationId {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (f *fakeStores) MarkConversationRead(ctx context.Context, tx *gorm.DB, conversationId, readerId string, readAt int64) (int64, error) {
	var flipped int64
	for _, m := range f.state.messages {
		if m.ConversationId == conversationId && m.SenderId != readerId && !m.Read {
			m.Read = true
			ra := readAt
			m.ReadAt = &ra
			flipped++
		}
	}
	return flipped, nil
}

func (f *fakeStores) AllocSeq(ctx context.Context, conversationId string) (int64, error) {
	f.seq++
	return f.seq, nil
}

func (f *fakeStores) GetMaxSeq(ctx context.Context, conversationId string) (int64, error) {
	return f.seq, nil
}

func (f *fakeStores) SyncSeqToMySQLWithTx(ctx context.Context, tx *gorm.DB, conversationId string, maxSeq int64) error {
	return nil
}

func (f *fakeStores) GetForUpdate(ctx context.Context, tx *gorm.DB, conversationId string) (*entity.Conversation, error) {
	if f.state.conv == nil || f.state.conv.ConversationId != conversationId {
		return nil, nil
	}
	return f.state.conv, nil
}

func (f *fakeStores) CreateWithParticipants(ctx context.Context, tx *gorm.DB, conv *entity.Conversation, participants []*entity.Participant) error {
	f.state.conv = conv
	for _, p := range participants {
		f.state.participants[p.UserId] = p
	}
	return nil
}

func (f *fakeStores) UpdatePreview(ctx context.Context, tx *gorm.DB, conversationId, lastMessage string, lastMessageAt int64) error {
	f.state.conv.LastMessage = lastMessage
	f.state.conv.LastMessageAt = lastMessageAt
	return nil
}

func (f *fakeStores) IncrUnread(ctx context.Context, tx *gorm.DB, conversationId, userId string) error {
	if f.failIncrUnread != nil {
		return f.failIncrUnread
	}
	f.state.participants[userId].UnreadCount++
	return nil
}

func (f *fakeStores) ResetUnread(ctx context.Context, tx *gorm.DB, conversationId, userId string) error {
	if p, ok := f.state.participants[userId]; ok {
		p.UnreadCount = 0
	}
	return nil
}

func (f *fakeStores) GetParticipant(ctx context.Context, conversationId, userId string) (*entity.Participant, error) {
	return f.state.participants[userId], nil
}

func (f *fakeStores) GetWithState(ctx context.Context, userId, conversationId string) (*entity.ConversationWithState, error) {
	p, ok := f.state.participants[userId]
	if !ok || f.state.conv == nil {
		return nil, nil
	}
	peer := f.state.participants[p.PeerUserId]
	row := &entity.ConversationWithState{
		Conversation: *f.state.conv,
		UserId:       userId,
		PeerUserId:   p.PeerUserId,
		UnreadCount:  p.UnreadCount,
	}
	if peer != nil {
		row.PeerDisplayName = peer.DisplayName
		row.PeerAvatarUrl = peer.AvatarUrl
	}
	return row, nil
}

func (f *fakeStores) SetTyping(ctx context.Context, conversationId, userId string, isTyping bool) error {
	f.typingCalls = append(f.typingCalls, typingCall{conversationId, userId, isTyping})
	return nil
}

func (f *fakeStores) unread(userId string) int64 {
	if p, ok := f.state.participants[userId]; ok {
		return p.UnreadCount
	}
	return 0
}

type fakePusher struct {
	messages      []*entity.Message
	reads         []string // reader ids
	conversations []string // target user ids
}

func (p *fakePusher) AsyncPushMessage(msg *entity.Message, userIds []string, excludeConnId string) {
	p.messages = append(p.messages, msg)
}

func (p *fakePusher) AsyncPushRead(conversationId, readerId string, readAt int64, userIds []string) {
	p.reads = append(p.reads, readerId)
}

func (p *fakePusher) AsyncPushConversation(userId string, info *entity.ConversationInfo) {
	p.conversations = append(p.conversations, userId)
}

func newTestMessageService() (*MessageService, *fakeStores, *fakePusher) {
	f := newFakeStores()
	p := &fakePusher{}
	svc := &MessageService{
		msgRepo:  f,
		seqRepo:  f,
		convRepo: f,
		repos:    f,
		presence: f,
		pusher:   p,
	}
	return svc, f, p
}

const testListingId = "listing-7"

func firstSendReq(text string) *SendMessageRequest {
	return &SendMessageRequest{
		PeerUserId: "m___2",
		Listing:    &entity.ListingRef{Id: testListingId, Title: "Bicicletă de oraș"},
		Text:       text,
	}
}

func TestSendIncrementsUnreadExactlyOnce(t *testing.T) {
	svc, f, _ := newTestMessageService()
	ctx := context.Background()

	msg, err := svc.Send(ctx, "m___1", firstSendReq("Bună! Mai este disponibil?"))
	require.NoError(t, err)
	convId := msg.ConversationId

	texts := []string{"second", "third"}
	for _, text := range texts {
		_, err := svc.Send(ctx, "m___1", &SendMessageRequest{ConversationId: convId, Text: text})
		require.NoError(t, err)
	}

	// One increment per send, only on the recipient's row.
	assert.Equal(t, int64(3), f.unread("m___2"))
	assert.Equal(t, int64(0), f.unread("m___1"))

	require.Len(t, f.state.messages, 3)
	for i, m := range f.state.messages {
		assert.Equal(t, int64(i+1), m.Seq)
		if i > 0 {
			assert.Greater(t, m.CreatedAt, f.state.messages[i-1].CreatedAt)
		}
	}
	assert.Equal(t, "third", f.state.conv.LastMessage)
}

func TestSendRejectsEmptyText(t *testing.T) {
	svc, f, p := newTestMessageService()

	_, err := svc.Send(context.Background(), "m___1", firstSendReq("   "))
	assert.Equal(t, errcode.ErrEmptyMessage, err)
	assert.Empty(t, f.state.messages)
	assert.Empty(t, p.messages)
}

func TestSendFailureLeavesStateUnchanged(t *testing.T) {
	svc, f, p := newTestMessageService()
	ctx := context.Background()

	msg, err := svc.Send(ctx, "m___1", firstSendReq("first"))
	require.NoError(t, err)

	f.failIncrUnread = errors.New("connection reset")
	_, err = svc.Send(ctx, "m___1", &SendMessageRequest{ConversationId: msg.ConversationId, Text: "second"})
	assert.Equal(t, errcode.ErrDeliveryFailure, err)

	// All-or-nothing: the append, preview and counter all rolled back.
	require.Len(t, f.state.messages, 1)
	assert.Equal(t, int64(1), f.unread("m___2"))
	assert.Equal(t, "first", f.state.conv.LastMessage)
	assert.Len(t, p.messages, 1)

	// The failed send must not clear the composer's typing flag either.
	assert.Len(t, f.typingCalls, 1)
}

func TestSendClearsSenderTyping(t *testing.T) {
	svc, f, _ := newTestMessageService()

	msg, err := svc.Send(context.Background(), "m___1", firstSendReq("hello"))
	require.NoError(t, err)

	require.Len(t, f.typingCalls, 1)
	assert.Equal(t, typingCall{msg.ConversationId, "m___1", false}, f.typingCalls[0])
}

func TestSendDuplicateClientMsgIdFastPath(t *testing.T) {
	svc, f, p := newTestMessageService()
	ctx := context.Background()

	req := firstSendReq("hello")
	req.ClientMsgId = "c-1"
	first, err := svc.Send(ctx, "m___1", req)
	require.NoError(t, err)

	again, err := svc.Send(ctx, "m___1", req)
	require.NoError(t, err)
	assert.Equal(t, first.Id, again.Id)
	assert.Equal(t, first.Seq, again.Seq)

	assert.Len(t, f.state.messages, 1)
	assert.Equal(t, int64(1), f.unread("m___2"))
	assert.Len(t, p.messages, 1)
}

func TestSendDuplicateClientMsgIdUnderLock(t *testing.T) {
	svc, f, p := newTestMessageService()
	ctx := context.Background()

	// The fast-path lookup misses, as it does when the first retry
	// commits after the second one has already passed it. The in-tx
	// re-check under the conversation lock must still catch the dup.
	f.fastPathBlind = true

	req := firstSendReq("hello")
	req.ClientMsgId = "c-1"
	first, err := svc.Send(ctx, "m___1", req)
	require.NoError(t, err)

	again, err := svc.Send(ctx, "m___1", req)
	require.NoError(t, err)
	assert.Equal(t, first.Id, again.Id)

	assert.Len(t, f.state.messages, 1)
	assert.Equal(t, int64(1), f.unread("m___2"))
	assert.Len(t, p.messages, 1)
}

func TestMarkReadIdempotent(t *testing.T) {
	svc, f, p := newTestMessageService()
	ctx := context.Background()

	msg, err := svc.Send(ctx, "m___1", firstSendReq("one"))
	require.NoError(t, err)
	convId := msg.ConversationId
	_, err = svc.Send(ctx, "m___1", &SendMessageRequest{ConversationId: convId, Text: "two"})
	require.NoError(t, err)

	require.NoError(t, svc.MarkRead(ctx, "m___2", convId))

	assert.Equal(t, int64(0), f.unread("m___2"))
	var readAts []int64
	for _, m := range f.state.messages {
		assert.True(t, m.Read)
		require.NotNil(t, m.ReadAt)
		readAts = append(readAts, *m.ReadAt)
	}
	require.Len(t, p.reads, 1)
	assert.Equal(t, "m___2", p.reads[0])

	// Marking again with nothing new flips nothing: read_at keeps its
	// original value and the peer gets no second receipt.
	require.NoError(t, svc.MarkRead(ctx, "m___2", convId))
	for i, m := range f.state.messages {
		assert.Equal(t, readAts[i], *m.ReadAt)
	}
	assert.Len(t, p.reads, 1)
}

func TestMarkReadNeverFlipsOwnMessages(t *testing.T) {
	svc, f, p := newTestMessageService()
	ctx := context.Background()

	msg, err := svc.Send(ctx, "m___1", firstSendReq("one"))
	require.NoError(t, err)

	// The sender marking read is a no-op on its own messages.
	require.NoError(t, svc.MarkRead(ctx, "m___1", msg.ConversationId))

	assert.False(t, f.state.messages[0].Read)
	assert.Nil(t, f.state.messages[0].ReadAt)
	assert.Empty(t, p.reads)
	// The recipient's unread badge is untouched.
	assert.Equal(t, int64(1), f.unread("m___2"))
}

func TestMarkReadRejectsOutsider(t *testing.T) {
	svc, _, _ := newTestMessageService()
	ctx := context.Background()

	msg, err := svc.Send(ctx, "m___1", firstSendReq("one"))
	require.NoError(t, err)

	err = svc.MarkRead(ctx, "m___9", msg.ConversationId)
	assert.Equal(t, errcode.ErrInvalidParticipant, err)
}

func TestSendRejectsSelfConversation(t *testing.T) {
	svc, _, _ := newTestMessageService()

	_, err := svc.Send(context.Background(), "m___1", &SendMessageRequest{
		PeerUserId: "m___1",
		Text:       "hello me",
	})
	assert.Equal(t, errcode.ErrSelfConversation, err)
}

func TestPullMessagesDefaultsToLatestPage(t *testing.T) {
	svc, _, _ := newTestMessageService()
	ctx := context.Background()

	msg, err := svc.Send(ctx, "m___1", firstSendReq("one"))
	require.NoError(t, err)
	convId := msg.ConversationId
	_, err = svc.Send(ctx, "m___1", &SendMessageRequest{ConversationId: convId, Text: "two"})
	require.NoError(t, err)

	messages, maxSeq, err := svc.PullMessages(ctx, "m___2", &PullMessagesRequest{ConversationId: convId})
	require.NoError(t, err)
	assert.Equal(t, int64(2), maxSeq)
	require.Len(t, messages, 2)
	assert.Equal(t, "one", messages[0].Text)
	assert.Equal(t, "two", messages[1].Text)
}
