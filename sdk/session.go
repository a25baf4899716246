package sdk

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Presence timing defaults, matching the server
const (
	DefaultHeartbeatInterval = 30 * time.Second
	DefaultTypingIdleTimeout = 5 * time.Second
	sessionCallTimeout       = 10 * time.Second
)

// sessionConn is the operation surface a session needs from the
// connection.
type sessionConn interface {
	WatchConversation(ctx context.Context, conversationId string) (*WatchConvResult, error)
	UnwatchConversation(ctx context.Context, conversationId string) error
	Heartbeat(ctx context.Context, conversationId string) error
	SetTyping(ctx context.Context, conversationId string, typing bool) error
	Leave(ctx context.Context, conversationId string) error
	MarkRead(ctx context.Context, conversationId string) error
	SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMsgResult, error)
	PullMessages(ctx context.Context, conversationId string, beginSeq, endSeq int64, limit int) (*PullMessagesResponse, error)
}

// SessionOptions configures an open conversation session
type SessionOptions struct {
	// HeartbeatInterval overrides the presence heartbeat period
	HeartbeatInterval time.Duration
	// TypingIdleTimeout is how long after the last Compose call the
	// typing flag clears on its own
	TypingIdleTimeout time.Duration

	// OnMessage fires for every message appended while the session is
	// open, own messages included
	OnMessage func(*MessageInfo)
	// OnRead fires when the counterpart marks the conversation read
	OnRead func(*ReadReceipt)
	// OnTyping fires when a participant's typing flag changes
	OnTyping func(*TypingEvent)
	// OnPresence fires when a participant's last-seen refreshes
	OnPresence func(*PresenceEvent)
	// OnRestoreInput fires when an optimistic send fails, handing the
	// rejected text back so the composer can repopulate
	OnRestoreInput func(text string)
	// NewClientMsgId overrides client message id generation
	NewClientMsgId func() string
}

// Session is one participant's live view of one conversation. Opening
// it watches the conversation, marks it read and starts the heartbeat;
// while open it auto-acknowledges incoming messages and manages the
// typing flag; closing it leaves and stops everything it started.
type Session struct {
	conn           sessionConn
	owner          *Conn
	conversationId string
	userId         string
	opts           SessionOptions

	maxSeq atomic.Int64

	stateMu     sync.Mutex
	counterpart *PresenceInfo

	typingMu     sync.Mutex
	typingActive bool
	typingTimer  *time.Timer

	hbDone chan struct{}
	closed atomic.Bool
}

// ConversationId returns the conversation this session is bound to
func (s *Session) ConversationId() string {
	return s.conversationId
}

// OpenSession opens a live session on a conversation. One session per
// conversation per connection.
func (c *Conn) OpenSession(ctx context.Context, conversationId string, opts *SessionOptions) (*Session, error) {
	if c.closed.Load() {
		return nil, ErrConnClosed
	}

	s := newSession(c, c.userId, conversationId, opts)
	s.owner = c
	if err := c.bindSession(s); err != nil {
		return nil, err
	}

	if err := s.open(ctx); err != nil {
		c.unbindSession(s)
		return nil, err
	}
	return s, nil
}

// open runs the session-opening sequence: watch, mark read, heartbeat.
func (s *Session) open(ctx context.Context) error {
	res, err := s.conn.WatchConversation(ctx, s.conversationId)
	if err != nil {
		return err
	}
	s.maxSeq.Store(res.MaxSeq)
	s.setCounterpart(res.Counterpart)

	// Opening the conversation counts as reading it
	if err := s.conn.MarkRead(ctx, s.conversationId); err != nil {
		return err
	}

	// First heartbeat immediately, then on the interval
	if err := s.conn.Heartbeat(ctx, s.conversationId); err != nil {
		return err
	}
	go s.heartbeatLoop()

	return nil
}

func newSession(conn sessionConn, userId, conversationId string, opts *SessionOptions) *Session {
	s := &Session{
		conn:           conn,
		conversationId: conversationId,
		userId:         userId,
		hbDone:         make(chan struct{}),
	}
	if opts != nil {
		s.opts = *opts
	}
	if s.opts.HeartbeatInterval <= 0 {
		s.opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if s.opts.TypingIdleTimeout <= 0 {
		s.opts.TypingIdleTimeout = DefaultTypingIdleTimeout
	}
	if s.opts.NewClientMsgId == nil {
		s.opts.NewClientMsgId = uuid.NewString
	}
	return s
}

// heartbeatLoop refreshes last-seen until the session closes
func (s *Session) heartbeatLoop() {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.hbDone:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), sessionCallTimeout)
			s.conn.Heartbeat(ctx, s.conversationId)
			cancel()
		}
	}
}

// Send appends a message to the conversation. The composer clears its
// input before calling; on failure the text comes back through
// OnRestoreInput so nothing the user typed is lost.
func (s *Session) Send(ctx context.Context, text string) (*SendMsgResult, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	if strings.TrimSpace(text) == "" {
		// Rejected before the input was cleared, nothing to restore
		return nil, ErrEmptyMessage
	}

	// Sending is the end of composing. The server clears the typing
	// flag as part of the send, so only local state resets here.
	s.resetTypingLocal()

	req := &SendMessageRequest{
		ClientMsgId:    s.opts.NewClientMsgId(),
		ConversationId: s.conversationId,
		Text:           text,
	}

	res, err := s.conn.SendMessage(ctx, req)
	if err != nil {
		if s.opts.OnRestoreInput != nil {
			s.opts.OnRestoreInput(text)
		}
		return nil, err
	}

	s.advanceMaxSeq(res.Seq)
	return res, nil
}

// Compose signals that the user is typing. Call it on every keystroke;
// the flag sets once and clears by itself after the idle timeout, on
// send, or on close.
func (s *Session) Compose(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}

	s.typingMu.Lock()
	wasActive := s.typingActive
	s.typingActive = true
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(s.opts.TypingIdleTimeout, s.typingIdle)
	s.typingMu.Unlock()

	if wasActive {
		return nil
	}
	return s.conn.SetTyping(ctx, s.conversationId, true)
}

// typingIdle clears the typing flag after the idle timeout
func (s *Session) typingIdle() {
	s.typingMu.Lock()
	active := s.typingActive
	s.typingActive = false
	s.typingMu.Unlock()

	if !active || s.closed.Load() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sessionCallTimeout)
	defer cancel()
	s.conn.SetTyping(ctx, s.conversationId, false)
}

// resetTypingLocal drops local typing state without a wire call
func (s *Session) resetTypingLocal() {
	s.typingMu.Lock()
	defer s.typingMu.Unlock()
	s.typingActive = false
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
}

// History pulls a seq range of the conversation log
func (s *Session) History(ctx context.Context, beginSeq, endSeq int64, limit int) (*PullMessagesResponse, error) {
	if s.closed.Load() {
		return nil, ErrSessionClosed
	}
	return s.conn.PullMessages(ctx, s.conversationId, beginSeq, endSeq, limit)
}

// MarkRead explicitly acknowledges the conversation
func (s *Session) MarkRead(ctx context.Context) error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return s.conn.MarkRead(ctx, s.conversationId)
}

// Counterpart returns the latest known presence of the other
// participant.
func (s *Session) Counterpart() *PresenceInfo {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.counterpart == nil {
		return nil
	}
	cp := *s.counterpart
	return &cp
}

// MaxSeq returns the highest seq observed by this session
func (s *Session) MaxSeq() int64 {
	return s.maxSeq.Load()
}

// IsClosed reports whether the session is closed
func (s *Session) IsClosed() bool {
	return s.closed.Load()
}

// Close leaves the conversation and stops the heartbeat and typing
// timers. Leave and unwatch are best-effort; the online window covers
// a connection that dies before they land.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(s.hbDone)
	s.resetTypingLocal()

	ctx, cancel := context.WithTimeout(context.Background(), sessionCallTimeout)
	defer cancel()
	s.conn.Leave(ctx, s.conversationId)
	s.conn.UnwatchConversation(ctx, s.conversationId)

	if s.owner != nil {
		s.owner.unbindSession(s)
	}
	return nil
}

// onMessage handles a pushed message for this conversation. Incoming
// messages while the conversation is on screen are read immediately.
func (s *Session) onMessage(msg *MessageInfo) {
	s.advanceMaxSeq(msg.Seq)

	if msg.SenderId != s.userId && !s.closed.Load() {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), sessionCallTimeout)
			defer cancel()
			s.conn.MarkRead(ctx, s.conversationId)
		}()
	}

	if s.opts.OnMessage != nil {
		s.opts.OnMessage(msg)
	}
}

// onRead handles a pushed read receipt
func (s *Session) onRead(r *ReadReceipt) {
	if s.opts.OnRead != nil && r.ReaderId != s.userId {
		s.opts.OnRead(r)
	}
}

// onTyping handles a pushed typing change, tracking the counterpart
func (s *Session) onTyping(ev *TypingEvent) {
	if ev.UserId == s.userId {
		return
	}

	s.stateMu.Lock()
	if s.counterpart != nil && s.counterpart.UserId == ev.UserId {
		s.counterpart.Typing = ev.Typing
	}
	s.stateMu.Unlock()

	if s.opts.OnTyping != nil {
		s.opts.OnTyping(ev)
	}
}

// onPresence handles a pushed last-seen refresh
func (s *Session) onPresence(ev *PresenceEvent) {
	if ev.UserId == s.userId {
		return
	}

	s.stateMu.Lock()
	if s.counterpart == nil || s.counterpart.UserId == ev.UserId {
		s.counterpart = &PresenceInfo{
			UserId:   ev.UserId,
			Online:   ev.Online,
			LastSeen: ev.LastSeen,
			Typing:   s.typingOf(ev.UserId),
		}
	}
	s.stateMu.Unlock()

	if s.opts.OnPresence != nil {
		s.opts.OnPresence(ev)
	}
}

// typingOf preserves the known typing flag across presence refreshes.
// Callers hold stateMu.
func (s *Session) typingOf(userId string) bool {
	if s.counterpart != nil && s.counterpart.UserId == userId {
		return s.counterpart.Typing
	}
	return false
}

func (s *Session) setCounterpart(p *PresenceInfo) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.counterpart = p
}

func (s *Session) advanceMaxSeq(seq int64) {
	for {
		cur := s.maxSeq.Load()
		if seq <= cur || s.maxSeq.CompareAndSwap(cur, seq) {
			return
		}
	}
}
