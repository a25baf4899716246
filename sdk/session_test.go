package sdk

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConn records session operations without a live socket
type fakeConn struct {
	mu sync.Mutex

	watchResult *WatchConvResult
	sendErr     error

	watched    []string
	unwatched  []string
	heartbeats int
	typing     []bool
	leaves     int
	markReads  int
	sent       []*SendMessageRequest
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		watchResult: &WatchConvResult{
			ConversationId: "cv_a:b:lst_1",
			Counterpart:    &PresenceInfo{UserId: "b", Online: true, LastSeen: 1700000000000},
			MaxSeq:         5,
		},
	}
}

func (f *fakeConn) WatchConversation(ctx context.Context, conversationId string) (*WatchConvResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.watched = append(f.watched, conversationId)
	return f.watchResult, nil
}

func (f *fakeConn) UnwatchConversation(ctx context.Context, conversationId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unwatched = append(f.unwatched, conversationId)
	return nil
}

func (f *fakeConn) Heartbeat(ctx context.Context, conversationId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.heartbeats++
	return nil
}

func (f *fakeConn) SetTyping(ctx context.Context, conversationId string, typing bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.typing = append(f.typing, typing)
	return nil
}

func (f *fakeConn) Leave(ctx context.Context, conversationId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves++
	return nil
}

func (f *fakeConn) MarkRead(ctx context.Context, conversationId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markReads++
	return nil
}

func (f *fakeConn) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMsgResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, req)
	return &SendMsgResult{
		ServerMsgId:    "msg_1",
		ConversationId: req.ConversationId,
		Seq:            int64(len(f.sent)) + 5,
		ClientMsgId:    req.ClientMsgId,
		CreatedAt:      time.Now().UnixMilli(),
	}, nil
}

func (f *fakeConn) PullMessages(ctx context.Context, conversationId string, beginSeq, endSeq int64, limit int) (*PullMessagesResponse, error) {
	return &PullMessagesResponse{MaxSeq: 5}, nil
}

func (f *fakeConn) snapshot() fakeConn {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fakeConn{
		watched:    append([]string(nil), f.watched...),
		unwatched:  append([]string(nil), f.unwatched...),
		heartbeats: f.heartbeats,
		typing:     append([]bool(nil), f.typing...),
		leaves:     f.leaves,
		markReads:  f.markReads,
		sent:       append([]*SendMessageRequest(nil), f.sent...),
	}
}

func openTestSession(t *testing.T, f *fakeConn, opts *SessionOptions) *Session {
	t.Helper()
	s := newSession(f, "a", "cv_a:b:lst_1", opts)
	require.NoError(t, s.open(context.Background()))
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSessionOpen(t *testing.T) {
	f := newFakeConn()
	s := openTestSession(t, f, nil)

	got := f.snapshot()
	// Opening watches, marks read and heartbeats in one pass
	assert.Equal(t, []string{"cv_a:b:lst_1"}, got.watched)
	assert.Equal(t, 1, got.markReads)
	assert.Equal(t, 1, got.heartbeats)

	assert.EqualValues(t, 5, s.MaxSeq())
	cp := s.Counterpart()
	require.NotNil(t, cp)
	assert.Equal(t, "b", cp.UserId)
	assert.True(t, cp.Online)
}

func TestSessionHeartbeatLoop(t *testing.T) {
	f := newFakeConn()
	openTestSession(t, f, &SessionOptions{HeartbeatInterval: 10 * time.Millisecond})

	assert.Eventually(t, func() bool {
		return f.snapshot().heartbeats >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestSessionSend(t *testing.T) {
	f := newFakeConn()
	s := openTestSession(t, f, nil)

	res, err := s.Send(context.Background(), "Bună! Mai este disponibil?")
	require.NoError(t, err)
	assert.NotEmpty(t, res.ClientMsgId)

	got := f.snapshot()
	require.Len(t, got.sent, 1)
	assert.Equal(t, "Bună! Mai este disponibil?", got.sent[0].Text)
	assert.Equal(t, "cv_a:b:lst_1", got.sent[0].ConversationId)
	assert.Greater(t, s.MaxSeq(), int64(5))
}

func TestSessionSendEmptyRejected(t *testing.T) {
	f := newFakeConn()
	s := openTestSession(t, f, nil)

	_, err := s.Send(context.Background(), "   ")
	assert.Equal(t, ErrEmptyMessage, err)
	assert.Empty(t, f.snapshot().sent)
}

func TestSessionSendFailureRestoresInput(t *testing.T) {
	f := newFakeConn()
	f.sendErr = ErrDeliveryFailure

	var restored string
	s := openTestSession(t, f, &SessionOptions{
		OnRestoreInput: func(text string) { restored = text },
	})

	_, err := s.Send(context.Background(), "mesaj important")
	require.Error(t, err)
	// The composer gets the exact text back to repopulate the input
	assert.Equal(t, "mesaj important", restored)
}

func TestSessionComposeSetsTypingOnce(t *testing.T) {
	f := newFakeConn()
	s := openTestSession(t, f, &SessionOptions{TypingIdleTimeout: time.Minute})

	require.NoError(t, s.Compose(context.Background()))
	require.NoError(t, s.Compose(context.Background()))
	require.NoError(t, s.Compose(context.Background()))

	// One keystroke burst is one flag set
	assert.Equal(t, []bool{true}, f.snapshot().typing)
}

func TestSessionComposeIdleClearsTyping(t *testing.T) {
	f := newFakeConn()
	s := openTestSession(t, f, &SessionOptions{TypingIdleTimeout: 20 * time.Millisecond})

	require.NoError(t, s.Compose(context.Background()))

	assert.Eventually(t, func() bool {
		typing := f.snapshot().typing
		return len(typing) == 2 && !typing[1]
	}, time.Second, 5*time.Millisecond)
}

func TestSessionSendStopsTypingLocally(t *testing.T) {
	f := newFakeConn()
	s := openTestSession(t, f, &SessionOptions{TypingIdleTimeout: 20 * time.Millisecond})

	require.NoError(t, s.Compose(context.Background()))
	_, err := s.Send(context.Background(), "gata")
	require.NoError(t, err)

	// The idle timer was cancelled by the send; no trailing
	// SetTyping(false) call arrives because the server clears the flag
	// as part of the send
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, []bool{true}, f.snapshot().typing)
}

func TestSessionIncomingMessageMarksRead(t *testing.T) {
	f := newFakeConn()
	s := openTestSession(t, f, nil)

	var received []*MessageInfo
	s.opts.OnMessage = func(m *MessageInfo) { received = append(received, m) }

	s.onMessage(&MessageInfo{ConversationId: "cv_a:b:lst_1", Seq: 6, SenderId: "b", Text: "salut"})

	assert.Eventually(t, func() bool {
		return f.snapshot().markReads >= 2 // open + incoming
	}, time.Second, 5*time.Millisecond)
	assert.Len(t, received, 1)
	assert.EqualValues(t, 6, s.MaxSeq())
}

func TestSessionOwnMessageDoesNotMarkRead(t *testing.T) {
	f := newFakeConn()
	s := openTestSession(t, f, nil)

	s.onMessage(&MessageInfo{ConversationId: "cv_a:b:lst_1", Seq: 6, SenderId: "a", Text: "al meu"})

	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 1, f.snapshot().markReads) // only the open
}

func TestSessionPresenceAndTypingEvents(t *testing.T) {
	f := newFakeConn()
	s := openTestSession(t, f, nil)

	s.onTyping(&TypingEvent{ConversationId: "cv_a:b:lst_1", UserId: "b", Typing: true})
	cp := s.Counterpart()
	require.NotNil(t, cp)
	assert.True(t, cp.Typing)

	// A presence refresh keeps the typing flag
	s.onPresence(&PresenceEvent{ConversationId: "cv_a:b:lst_1", UserId: "b", LastSeen: 1700000001000, Online: true})
	cp = s.Counterpart()
	assert.True(t, cp.Typing)
	assert.EqualValues(t, 1700000001000, cp.LastSeen)

	// Events about the session's own user are ignored
	s.onTyping(&TypingEvent{ConversationId: "cv_a:b:lst_1", UserId: "a", Typing: true})
	assert.Equal(t, "b", s.Counterpart().UserId)
}

func TestSessionClose(t *testing.T) {
	f := newFakeConn()
	s := openTestSession(t, f, nil)

	require.NoError(t, s.Close())
	assert.True(t, s.IsClosed())

	got := f.snapshot()
	assert.Equal(t, 1, got.leaves)
	assert.Equal(t, []string{"cv_a:b:lst_1"}, got.unwatched)

	// Closed sessions refuse further operations
	_, err := s.Send(context.Background(), "prea târziu")
	assert.Equal(t, ErrSessionClosed, err)
	assert.Equal(t, ErrSessionClosed, s.Compose(context.Background()))

	// Close is idempotent
	require.NoError(t, s.Close())
	assert.Equal(t, 1, f.snapshot().leaves)
}
