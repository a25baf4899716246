package gateway

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/vorbi/pkg/errcode"
)

// Client represents a connected WebSocket client
type Client struct {
	mu         sync.Mutex
	conn       ClientConn
	UserId     string
	PlatformId int
	SDKType    string
	Token      string
	ConnId     string
	server     *WsServer
	closed     atomic.Bool
	closedErr  error
	ctx        context.Context
	cancel     context.CancelFunc

	watchMu sync.Mutex
	watched map[string]struct{} // conversations this connection is viewing
}

// NewClient creates a new client
func NewClient(conn ClientConn, userId string, platformId int, sdkType, token, connId string, server *WsServer) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:       conn,
		UserId:     userId,
		PlatformId: platformId,
		SDKType:    sdkType,
		Token:      token,
		ConnId:     connId,
		server:     server,
		ctx:        ctx,
		cancel:     cancel,
		watched:    make(map[string]struct{}),
	}
}

// Start starts the client message handling
func (c *Client) Start() {
	go c.readLoop()
}

// readLoop continuously reads messages from the connection
func (c *Client) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			c.closedErr = ErrPanic
			log.CtxError(c.ctx, "client read loop panic: user_id=%s, error=%v", c.UserId, r)
		}
		c.close()
	}()

	for {
		message, err := c.conn.ReadMessage()
		if err != nil {
			log.CtxDebug(c.ctx, "read message error: user_id=%s, error=%v", c.UserId, err)
			c.closedErr = err
			return
		}

		if c.closed.Load() {
			c.closedErr = ErrConnClosed
			return
		}

		if err := c.handleMessage(message); err != nil {
			log.CtxWarn(c.ctx, "handle message error: user_id=%s, error=%v", c.UserId, err)
			c.closedErr = err
			return
		}
	}
}

// handleMessage handles a single incoming message
func (c *Client) handleMessage(message []byte) error {
	var req WSRequest
	if err := json.Unmarshal(message, &req); err != nil {
		return c.replyError(&req, ErrInvalidProtocol)
	}

	// Validate sender Id matches authenticated user
	if req.SendId != "" && req.SendId != c.UserId {
		return c.replyError(&req, ErrUserIdMismatch)
	}

	log.CtxDebug(c.ctx, "received message: req_identifier=%d, user_id=%s", req.ReqIdentifier, c.UserId)

	var resp []byte
	var err error

	switch req.ReqIdentifier {
	case WSSendMsg:
		resp, err = c.server.HandleSendMsg(c.ctx, c, &req)
	case WSPullMsg:
		resp, err = c.server.HandlePullMsg(c.ctx, c, &req)
	case WSMarkRead:
		resp, err = c.server.HandleMarkRead(c.ctx, c, &req)
	case WSConvList:
		resp, err = c.server.HandleConvList(c.ctx, c, &req)
	case WSWatchConv:
		resp, err = c.server.HandleWatchConv(c.ctx, c, &req)
	case WSUnwatchConv:
		resp, err = c.server.HandleUnwatchConv(c.ctx, c, &req)
	case WSHeartbeat:
		resp, err = c.server.HandleHeartbeat(c.ctx, c, &req)
	case WSSetTyping:
		resp, err = c.server.HandleSetTyping(c.ctx, c, &req)
	case WSGetNewestSeq:
		resp, err = c.server.HandleGetNewestSeq(c.ctx, c, &req)
	case WSLeave:
		resp, err = c.server.HandleLeave(c.ctx, c, &req)
	default:
		return c.replyError(&req, ErrInvalidProtocol)
	}

	return c.reply(&req, err, resp)
}

// reply sends a response to the client
func (c *Client) reply(req *WSRequest, err error, data []byte) error {
	resp := WSResponse{
		ReqIdentifier: req.ReqIdentifier,
		MsgIncr:       req.MsgIncr,
		OperationId:   req.OperationId,
		Data:          data,
	}

	if err != nil {
		if e, ok := err.(*errcode.Error); ok {
			resp.ErrCode = e.Code
			resp.ErrMsg = e.Msg
		} else {
			resp.ErrCode = 1
			resp.ErrMsg = err.Error()
		}
	}

	return c.writeResponse(resp)
}

// replyError sends an error response
func (c *Client) replyError(req *WSRequest, err error) error {
	return c.reply(req, err, nil)
}

// writeResponse writes a response to the connection
func (c *Client) writeResponse(resp WSResponse) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	return c.conn.WriteMessage(data)
}

// PushEvent pushes a server-initiated event to the client
func (c *Client) PushEvent(reqIdentifier int32, payload interface{}) error {
	if c.closed.Load() {
		return ErrConnClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	resp := WSResponse{
		ReqIdentifier: reqIdentifier,
		Data:          data,
	}

	return c.writeResponse(resp)
}

// AddWatch records that this connection is viewing a conversation
func (c *Client) AddWatch(conversationId string) {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	c.watched[conversationId] = struct{}{}
}

// RemoveWatch forgets a watched conversation
func (c *Client) RemoveWatch(conversationId string) {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	delete(c.watched, conversationId)
}

// IsWatching reports whether this connection views a conversation
func (c *Client) IsWatching(conversationId string) bool {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()
	_, ok := c.watched[conversationId]
	return ok
}

// WatchedConversations returns a copy of the watched set
func (c *Client) WatchedConversations() []string {
	c.watchMu.Lock()
	defer c.watchMu.Unlock()

	convIds := make([]string, 0, len(c.watched))
	for convId := range c.watched {
		convIds = append(convIds, convId)
	}
	return convIds
}

// KickOnline sends kick message and closes connection
func (c *Client) KickOnline() error {
	resp := WSResponse{
		ReqIdentifier: WSKickOnline,
	}
	c.writeResponse(resp)
	return c.Close()
}

// Close closes the client connection
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return nil
	}

	c.closed.Store(true)
	c.cancel()
	return c.conn.Close()
}

// close handles cleanup when connection is closed
func (c *Client) close() {
	c.Close()
	c.server.UnregisterClient(c)
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
