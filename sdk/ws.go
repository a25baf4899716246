package sdk

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
)

// WebSocket protocol request identifiers, mirrored from the gateway
const (
	WSSendMsg      = 1001
	WSPullMsg      = 1002
	WSMarkRead     = 1003
	WSConvList     = 1004
	WSWatchConv    = 1005
	WSUnwatchConv  = 1006
	WSHeartbeat    = 1007
	WSSetTyping    = 1008
	WSGetNewestSeq = 1009
	WSLeave        = 1010

	WSPushMsg      = 2001
	WSPushRead     = 2002
	WSPushTyping   = 2003
	WSPushPresence = 2004
	WSPushConv     = 2005
	WSKickOnline   = 2101
)

// WSRequest is the request envelope on the wire
type WSRequest struct {
	ReqIdentifier int32  `json:"req_identifier"`
	MsgIncr       string `json:"msg_incr"`
	OperationId   string `json:"operation_id"`
	Token         string `json:"token"`
	SendId        string `json:"send_id"`
	Data          []byte `json:"data"`
}

// WSResponse is the response envelope on the wire
type WSResponse struct {
	ReqIdentifier int32  `json:"req_identifier"`
	MsgIncr       string `json:"msg_incr"`
	OperationId   string `json:"operation_id"`
	ErrCode       int    `json:"err_code"`
	ErrMsg        string `json:"err_msg"`
	Data          []byte `json:"data"`
}

// SendMsgResult is the acknowledgement for a sent message
type SendMsgResult struct {
	ServerMsgId    string `json:"server_msg_id"`
	ConversationId string `json:"conversation_id"`
	Seq            int64  `json:"seq"`
	ClientMsgId    string `json:"client_msg_id"`
	CreatedAt      int64  `json:"created_at"`
}

// ReadReceipt is a pushed read event
type ReadReceipt struct {
	ConversationId string `json:"conversation_id"`
	ReaderId       string `json:"reader_id"`
	ReadAt         int64  `json:"read_at"`
}

// TypingEvent is a pushed typing flag change
type TypingEvent struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	Typing         bool   `json:"typing"`
}

// PresenceEvent is a pushed last-seen refresh
type PresenceEvent struct {
	ConversationId string `json:"conversation_id"`
	UserId         string `json:"user_id"`
	LastSeen       int64  `json:"last_seen"`
	Online         bool   `json:"online"`
}

// WatchConvResult is the acknowledgement for a watch request
type WatchConvResult struct {
	ConversationId string        `json:"conversation_id"`
	Counterpart    *PresenceInfo `json:"counterpart,omitempty"`
	MaxSeq         int64         `json:"max_seq"`
}

// EventHandler receives server-pushed events. Nil callbacks are
// skipped. Callbacks run on the read goroutine; do not block in them.
type EventHandler struct {
	OnMessage      func(*MessageInfo)
	OnRead         func(*ReadReceipt)
	OnTyping       func(*TypingEvent)
	OnPresence     func(*PresenceEvent)
	OnConversation func(*ConversationInfo)
	OnKick         func()
	OnClose        func(error)
}

// Conn is a live WebSocket connection to the gateway
type Conn struct {
	conn    *websocket.Conn
	userId  string
	handler *EventHandler

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *WSResponse
	incr      atomic.Int64

	sessionsMu sync.Mutex
	sessions   map[string]*Session // conversationId -> open session

	closed    atomic.Bool
	closeChan chan struct{}
	closeErr  error
}

// Dial opens a WebSocket connection to the gateway. wsURL is the
// ws:// or wss:// endpoint, e.g. "ws://localhost:8080/ws".
func (c *Client) Dial(ctx context.Context, wsURL string, handler *EventHandler) (*Conn, error) {
	if c.userId == "" {
		return nil, fmt.Errorf("dial requires a user id, use WithUserId")
	}

	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ws url: %w", err)
	}
	q := u.Query()
	q.Set("token", c.token)
	q.Set("send_id", c.userId)
	q.Set("sdk_type", "go")
	u.RawQuery = q.Encode()

	wsConn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial websocket: %w", err)
	}

	if handler == nil {
		handler = &EventHandler{}
	}

	conn := &Conn{
		conn:      wsConn,
		userId:    c.userId,
		handler:   handler,
		pending:   make(map[string]chan *WSResponse),
		sessions:  make(map[string]*Session),
		closeChan: make(chan struct{}),
	}

	go conn.readLoop()

	return conn, nil
}

// readLoop reads frames and routes them: replies to pending calls by
// msg_incr, pushes to the event handler.
func (c *Conn) readLoop() {
	defer func() {
		c.closeWithErr(c.closeErr)
		if c.handler.OnClose != nil {
			c.handler.OnClose(c.closeErr)
		}
	}()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			c.closeErr = err
			return
		}

		var resp WSResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			continue
		}

		if resp.MsgIncr != "" {
			c.pendingMu.Lock()
			ch, ok := c.pending[resp.MsgIncr]
			if ok {
				delete(c.pending, resp.MsgIncr)
			}
			c.pendingMu.Unlock()
			if ok {
				ch <- &resp
			}
			continue
		}

		c.dispatchPush(&resp)
	}
}

// dispatchPush routes a server-initiated event to the connection-level
// handler and to the open session for that conversation, if any.
func (c *Conn) dispatchPush(resp *WSResponse) {
	switch resp.ReqIdentifier {
	case WSPushMsg:
		var data struct {
			Msg *MessageInfo `json:"msg"`
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil || data.Msg == nil {
			return
		}
		if c.handler.OnMessage != nil {
			c.handler.OnMessage(data.Msg)
		}
		if sess := c.sessionFor(data.Msg.ConversationId); sess != nil {
			sess.onMessage(data.Msg)
		}
	case WSPushRead:
		var data ReadReceipt
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return
		}
		if c.handler.OnRead != nil {
			c.handler.OnRead(&data)
		}
		if sess := c.sessionFor(data.ConversationId); sess != nil {
			sess.onRead(&data)
		}
	case WSPushTyping:
		var data TypingEvent
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return
		}
		if c.handler.OnTyping != nil {
			c.handler.OnTyping(&data)
		}
		if sess := c.sessionFor(data.ConversationId); sess != nil {
			sess.onTyping(&data)
		}
	case WSPushPresence:
		var data PresenceEvent
		if err := json.Unmarshal(resp.Data, &data); err != nil {
			return
		}
		if c.handler.OnPresence != nil {
			c.handler.OnPresence(&data)
		}
		if sess := c.sessionFor(data.ConversationId); sess != nil {
			sess.onPresence(&data)
		}
	case WSPushConv:
		var data struct {
			Conversation *ConversationInfo `json:"conversation"`
		}
		if err := json.Unmarshal(resp.Data, &data); err != nil || data.Conversation == nil {
			return
		}
		if c.handler.OnConversation != nil {
			c.handler.OnConversation(data.Conversation)
		}
	case WSKickOnline:
		if c.handler.OnKick != nil {
			c.handler.OnKick()
		}
		c.Close()
	}
}

// sessionFor returns the open session for a conversation, or nil
func (c *Conn) sessionFor(conversationId string) *Session {
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	return c.sessions[conversationId]
}

// bindSession registers an open session for push routing
func (c *Conn) bindSession(s *Session) error {
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	if _, exists := c.sessions[s.conversationId]; exists {
		return ErrAlreadyOpened
	}
	c.sessions[s.conversationId] = s
	return nil
}

// unbindSession drops a session from push routing
func (c *Conn) unbindSession(s *Session) {
	c.sessionsMu.Lock()
	defer c.sessionsMu.Unlock()
	if c.sessions[s.conversationId] == s {
		delete(c.sessions, s.conversationId)
	}
}

// Call sends a request and waits for the matching reply
func (c *Conn) Call(ctx context.Context, reqIdentifier int32, payload interface{}, result interface{}) error {
	if c.closed.Load() {
		return ErrConnClosed
	}

	var data []byte
	var err error
	if payload != nil {
		data, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	msgIncr := strconv.FormatInt(c.incr.Add(1), 10)
	req := WSRequest{
		ReqIdentifier: reqIdentifier,
		MsgIncr:       msgIncr,
		SendId:        c.userId,
		Data:          data,
	}

	ch := make(chan *WSResponse, 1)
	c.pendingMu.Lock()
	c.pending[msgIncr] = ch
	c.pendingMu.Unlock()

	if err := c.writeJSON(&req); err != nil {
		c.pendingMu.Lock()
		delete(c.pending, msgIncr)
		c.pendingMu.Unlock()
		return err
	}

	select {
	case <-ctx.Done():
		c.pendingMu.Lock()
		delete(c.pending, msgIncr)
		c.pendingMu.Unlock()
		return ctx.Err()
	case <-c.closeChan:
		return ErrConnClosed
	case resp := <-ch:
		if resp.ErrCode != 0 {
			return &Error{Code: resp.ErrCode, Msg: resp.ErrMsg}
		}
		if result != nil && len(resp.Data) > 0 {
			if err := json.Unmarshal(resp.Data, result); err != nil {
				return fmt.Errorf("failed to decode reply: %w", err)
			}
		}
		return nil
	}
}

// writeJSON serializes and writes a frame under the write lock
func (c *Conn) writeJSON(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.closed.Load() {
		return ErrConnClosed
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// SendMessage sends a message over the socket
func (c *Conn) SendMessage(ctx context.Context, req *SendMessageRequest) (*SendMsgResult, error) {
	var result SendMsgResult
	if err := c.Call(ctx, WSSendMsg, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// PullMessages pulls a seq range of the conversation log
func (c *Conn) PullMessages(ctx context.Context, conversationId string, beginSeq, endSeq int64, limit int) (*PullMessagesResponse, error) {
	req := map[string]interface{}{
		"conversation_id": conversationId,
		"begin_seq":       beginSeq,
		"end_seq":         endSeq,
		"limit":           limit,
	}
	var result PullMessagesResponse
	if err := c.Call(ctx, WSPullMsg, req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// MarkRead marks a conversation read
func (c *Conn) MarkRead(ctx context.Context, conversationId string) error {
	return c.Call(ctx, WSMarkRead, map[string]string{"conversation_id": conversationId}, nil)
}

// ConversationList fetches the directory snapshot
func (c *Conn) ConversationList(ctx context.Context) ([]*ConversationInfo, error) {
	var result ConversationListResponse
	if err := c.Call(ctx, WSConvList, nil, &result); err != nil {
		return nil, err
	}
	return result.Conversations, nil
}

// WatchConversation starts the live event feed for a conversation
func (c *Conn) WatchConversation(ctx context.Context, conversationId string) (*WatchConvResult, error) {
	var result WatchConvResult
	if err := c.Call(ctx, WSWatchConv, map[string]string{"conversation_id": conversationId}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UnwatchConversation stops the live event feed for a conversation
func (c *Conn) UnwatchConversation(ctx context.Context, conversationId string) error {
	return c.Call(ctx, WSUnwatchConv, map[string]string{"conversation_id": conversationId}, nil)
}

// Heartbeat refreshes the caller's last-seen in a conversation
func (c *Conn) Heartbeat(ctx context.Context, conversationId string) error {
	return c.Call(ctx, WSHeartbeat, map[string]string{"conversation_id": conversationId}, nil)
}

// Leave best-effort marks the caller offline in a conversation
func (c *Conn) Leave(ctx context.Context, conversationId string) error {
	return c.Call(ctx, WSLeave, map[string]string{"conversation_id": conversationId}, nil)
}

// SetTyping sets or clears the caller's typing flag
func (c *Conn) SetTyping(ctx context.Context, conversationId string, typing bool) error {
	req := map[string]interface{}{
		"conversation_id": conversationId,
		"typing":          typing,
	}
	return c.Call(ctx, WSSetTyping, req, nil)
}

// GetNewestSeq fetches max seqs for the given conversations
func (c *Conn) GetNewestSeq(ctx context.Context, conversationIds []string) (map[string]int64, error) {
	req := map[string]interface{}{"conversation_ids": conversationIds}
	var result struct {
		Seqs map[string]int64 `json:"seqs"`
	}
	if err := c.Call(ctx, WSGetNewestSeq, req, &result); err != nil {
		return nil, err
	}
	return result.Seqs, nil
}

// Close closes the connection
func (c *Conn) Close() error {
	return c.closeWithErr(nil)
}

func (c *Conn) closeWithErr(err error) error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	if err != nil {
		c.closeErr = err
	}
	close(c.closeChan)
	return c.conn.Close()
}

// IsClosed reports whether the connection is closed
func (c *Conn) IsClosed() bool {
	return c.closed.Load()
}
