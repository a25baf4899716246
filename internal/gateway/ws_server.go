package gateway

import (
	"context"
	"encoding/json"
	"sync/atomic"

	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/vorbi/internal/config"
	"github.com/mbeoliero/vorbi/internal/entity"
	"github.com/mbeoliero/vorbi/internal/service"
	"github.com/mbeoliero/vorbi/pkg/errcode"
)

// WsServer is the WebSocket server. It keeps the register/unregister
// event loop and a pool of push workers; it is the live half of the
// conversation subsystem and implements the services' pusher
// interfaces.
type WsServer struct {
	cfg             *config.Config
	userMap         *UserMap
	watchMap        *WatchMap
	registerChan    chan *Client
	unregisterChan  chan *Client
	pushChan        chan *PushTask
	msgService      *service.MessageService
	convService     *service.ConversationService
	presenceService *service.PresenceService
	onlineUserNum   atomic.Int64
	onlineConnNum   atomic.Int64
	maxConnNum      int64
}

// PushTask represents an event push task. Targets are either explicit
// user ids (fan out to every connection of each user) or the watcher
// set of a conversation, or both; duplicates are collapsed by conn id.
type PushTask struct {
	ReqIdentifier int32
	Payload       interface{}
	TargetUserIds []string
	WatchConvId   string
	ExcludeConnId string
}

// NewWsServer creates a new WebSocket server
func NewWsServer(cfg *config.Config, msgService *service.MessageService, convService *service.ConversationService, presenceService *service.PresenceService) *WsServer {
	return &WsServer{
		cfg:             cfg,
		userMap:         NewUserMap(),
		watchMap:        NewWatchMap(),
		registerChan:    make(chan *Client, 1000),
		unregisterChan:  make(chan *Client, 1000),
		pushChan:        make(chan *PushTask, cfg.WebSocket.PushChannelSize),
		msgService:      msgService,
		convService:     convService,
		presenceService: presenceService,
		maxConnNum:      cfg.WebSocket.MaxConnNum,
	}
}

// Run starts the WebSocket server
func (s *WsServer) Run(ctx context.Context) {
	go s.eventLoop(ctx)

	workerNum := s.cfg.WebSocket.PushWorkerNum
	if workerNum <= 0 {
		workerNum = 10
	}
	for i := 0; i < workerNum; i++ {
		go s.pushLoop(ctx)
	}
	log.Info("started %d push workers", workerNum)
}

// eventLoop handles client registration and unregistration
func (s *WsServer) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-s.registerChan:
			s.registerClient(ctx, client)
		case client := <-s.unregisterChan:
			s.unregisterClient(ctx, client)
		}
	}
}

// pushLoop handles async event pushing
func (s *WsServer) pushLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case task := <-s.pushChan:
			s.processPushTask(ctx, task)
		}
	}
}

// processPushTask processes a single push task
func (s *WsServer) processPushTask(ctx context.Context, task *PushTask) {
	data, err := json.Marshal(task.Payload)
	if err != nil {
		log.CtxError(ctx, "marshal push payload failed: req_identifier=%d, error=%v", task.ReqIdentifier, err)
		return
	}

	targets := make(map[string]*Client)
	for _, userId := range task.TargetUserIds {
		clients, ok := s.userMap.GetAll(userId)
		if !ok {
			continue
		}
		for _, client := range clients {
			targets[client.ConnId] = client
		}
	}
	if task.WatchConvId != "" {
		for _, client := range s.watchMap.GetWatchers(task.WatchConvId) {
			targets[client.ConnId] = client
		}
	}

	resp := WSResponse{
		ReqIdentifier: task.ReqIdentifier,
		Data:          data,
	}

	for connId, client := range targets {
		if task.ExcludeConnId != "" && connId == task.ExcludeConnId {
			continue
		}
		if err := client.writeResponse(resp); err != nil {
			log.CtxDebug(ctx, "push to client failed: user_id=%s, conn_id=%s, error=%v", client.UserId, connId, err)
		}
	}
}

// registerClient registers a client
func (s *WsServer) registerClient(ctx context.Context, client *Client) {
	existingClients, exists := s.userMap.GetAll(client.UserId)
	if !exists {
		s.onlineUserNum.Add(1)
	}

	s.userMap.Register(client)
	s.onlineConnNum.Add(1)

	log.CtxInfo(ctx, "client registered: user_id=%s, platform_id=%d, conn_id=%s, existing_conns=%d, online_users=%d, online_conns=%d",
		client.UserId, client.PlatformId, client.ConnId, len(existingClients), s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// unregisterClient unregisters a client
func (s *WsServer) unregisterClient(ctx context.Context, client *Client) {
	watched := client.WatchedConversations()
	s.watchMap.UnwatchAll(watched, client)

	isUserOffline := s.userMap.Unregister(client)
	s.onlineConnNum.Add(-1)

	if isUserOffline {
		s.onlineUserNum.Add(-1)
	}

	log.CtxInfo(ctx, "client unregistered: user_id=%s, platform_id=%d, conn_id=%s, watched=%d, user_offline=%v, online_users=%d, online_conns=%d",
		client.UserId, client.PlatformId, client.ConnId, len(watched), isUserOffline, s.onlineUserNum.Load(), s.onlineConnNum.Load())
}

// UnregisterClient queues client for unregistration
func (s *WsServer) UnregisterClient(client *Client) {
	select {
	case s.unregisterChan <- client:
	default:
		log.Warn("unregister channel full: user_id=%s", client.UserId)
	}
}

// enqueuePush queues a push task, dropping it when the channel is full
func (s *WsServer) enqueuePush(task *PushTask) {
	select {
	case s.pushChan <- task:
	default:
		log.Warn("push channel full, event dropped: req_identifier=%d", task.ReqIdentifier)
	}
}

// AsyncPushMessage pushes an appended message to every connection of
// the given users. Implements service.MessagePusher.
func (s *WsServer) AsyncPushMessage(msg *entity.Message, userIds []string, excludeConnId string) {
	s.enqueuePush(&PushTask{
		ReqIdentifier: WSPushMsg,
		Payload:       &PushMsgData{Msg: msg.ToMessageInfo()},
		TargetUserIds: userIds,
		ExcludeConnId: excludeConnId,
	})
}

// AsyncPushRead pushes a read receipt to the given users and to the
// conversation's watchers.
func (s *WsServer) AsyncPushRead(conversationId, readerId string, readAt int64, userIds []string) {
	s.enqueuePush(&PushTask{
		ReqIdentifier: WSPushRead,
		Payload: &PushReadData{
			ConversationId: conversationId,
			ReaderId:       readerId,
			ReadAt:         readAt,
		},
		TargetUserIds: userIds,
		WatchConvId:   conversationId,
	})
}

// AsyncPushConversation pushes a directory entry update to one user
func (s *WsServer) AsyncPushConversation(userId string, info *entity.ConversationInfo) {
	s.enqueuePush(&PushTask{
		ReqIdentifier: WSPushConv,
		Payload:       &PushConvData{Conversation: info},
		TargetUserIds: []string{userId},
	})
}

// AsyncPushTyping pushes a typing flag change to the conversation's
// watchers and to both participants, so inbox-only connections see the
// indicator too. Implements service.PresencePusher.
func (s *WsServer) AsyncPushTyping(conversationId, userId string, isTyping bool) {
	s.enqueuePush(&PushTask{
		ReqIdentifier: WSPushTyping,
		Payload: &PushTypingData{
			ConversationId: conversationId,
			UserId:         userId,
			Typing:         isTyping,
		},
		TargetUserIds: participantIds(conversationId),
		WatchConvId:   conversationId,
	})
}

// AsyncPushPresence pushes a last-seen refresh to the conversation's
// watchers and to both participants. A connection holding only the
// directory view has no watch registered; without the participant
// fan-out its online dots would stay frozen until the next send.
func (s *WsServer) AsyncPushPresence(conversationId, userId string, lastSeen int64) {
	s.enqueuePush(&PushTask{
		ReqIdentifier: WSPushPresence,
		Payload: &PushPresenceData{
			ConversationId: conversationId,
			UserId:         userId,
			LastSeen:       lastSeen,
			Online:         entity.IsOnline(entity.NowUnixMilli(), lastSeen, s.cfg.Presence.OnlineWindow),
		},
		TargetUserIds: participantIds(conversationId),
		WatchConvId:   conversationId,
	})
}

// participantIds extracts both participants from a conversation id
func participantIds(conversationId string) []string {
	userA, userB, _, ok := entity.ParseConversationId(conversationId)
	if !ok {
		return nil
	}
	return []string{userA, userB}
}

// GetOnlineUserCount returns online user count
func (s *WsServer) GetOnlineUserCount() int64 {
	return s.onlineUserNum.Load()
}

// GetOnlineConnCount returns online connection count
func (s *WsServer) GetOnlineConnCount() int64 {
	return s.onlineConnNum.Load()
}

// ========== Message Handlers ==========

// HandleSendMsg handles send message request
func (s *WsServer) HandleSendMsg(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var sendReq SendMsgReq
	if err := json.Unmarshal(req.Data, &sendReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	svcReq := &service.SendMessageRequest{
		ClientMsgId:    sendReq.ClientMsgId,
		ConversationId: sendReq.ConversationId,
		PeerUserId:     sendReq.PeerUserId,
		Listing:        sendReq.Listing,
		Text:           sendReq.Text,
	}
	if sendReq.SenderName != "" || sendReq.SenderAvatar != "" {
		svcReq.SenderProfile = &service.ParticipantProfile{
			DisplayName: sendReq.SenderName,
			AvatarUrl:   sendReq.SenderAvatar,
		}
	}
	if sendReq.PeerName != "" || sendReq.PeerAvatar != "" {
		svcReq.PeerProfile = &service.ParticipantProfile{
			DisplayName: sendReq.PeerName,
			AvatarUrl:   sendReq.PeerAvatar,
		}
	}

	msg, err := s.msgService.Send(ctx, client.UserId, svcReq)
	if err != nil {
		return nil, err
	}

	resp := SendMsgResp{
		ServerMsgId:    msg.Id,
		ConversationId: msg.ConversationId,
		Seq:            msg.Seq,
		ClientMsgId:    msg.ClientMsgId,
		CreatedAt:      msg.CreatedAt,
	}

	return json.Marshal(resp)
}

// HandlePullMsg handles pull messages request
func (s *WsServer) HandlePullMsg(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var pullReq PullMsgReq
	if err := json.Unmarshal(req.Data, &pullReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	svcReq := &service.PullMessagesRequest{
		ConversationId: pullReq.ConversationId,
		BeginSeq:       pullReq.BeginSeq,
		EndSeq:         pullReq.EndSeq,
		Limit:          pullReq.Limit,
	}

	messages, maxSeq, err := s.msgService.PullMessages(ctx, client.UserId, svcReq)
	if err != nil {
		return nil, err
	}

	infos := make([]*entity.MessageInfo, 0, len(messages))
	for _, msg := range messages {
		infos = append(infos, msg.ToMessageInfo())
	}

	resp := PullMsgResp{
		Messages: infos,
		MaxSeq:   maxSeq,
	}

	return json.Marshal(resp)
}

// HandleMarkRead handles mark conversation read request
func (s *WsServer) HandleMarkRead(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var markReq MarkReadReq
	if err := json.Unmarshal(req.Data, &markReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	if err := s.msgService.MarkRead(ctx, client.UserId, markReq.ConversationId); err != nil {
		return nil, err
	}
	return nil, nil
}

// HandleConvList handles directory snapshot request
func (s *WsServer) HandleConvList(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	conversations, err := s.convService.ListConversations(ctx, client.UserId)
	if err != nil {
		return nil, err
	}

	resp := ConvListResp{Conversations: conversations}
	return json.Marshal(resp)
}

// HandleWatchConv handles watch conversation request. Watching starts
// the live feed of typing, presence and read events for the view and
// returns the current counterpart presence plus max seq for an
// immediate render.
func (s *WsServer) HandleWatchConv(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var watchReq WatchConvReq
	if err := json.Unmarshal(req.Data, &watchReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	if !entity.HasParticipant(watchReq.ConversationId, client.UserId) {
		return nil, errcode.ErrInvalidParticipant
	}

	s.watchMap.Watch(watchReq.ConversationId, client)
	client.AddWatch(watchReq.ConversationId)

	counterpart, err := s.presenceService.CounterpartSnapshot(ctx, watchReq.ConversationId, client.UserId)
	if err != nil {
		counterpart = nil
	}

	maxSeq, _, err := s.msgService.NewestSeq(ctx, client.UserId, watchReq.ConversationId)
	if err != nil {
		maxSeq = 0
	}

	resp := WatchConvResp{
		ConversationId: watchReq.ConversationId,
		Counterpart:    counterpart,
		MaxSeq:         maxSeq,
	}
	return json.Marshal(resp)
}

// HandleUnwatchConv handles unwatch conversation request
func (s *WsServer) HandleUnwatchConv(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var watchReq WatchConvReq
	if err := json.Unmarshal(req.Data, &watchReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	s.watchMap.Unwatch(watchReq.ConversationId, client)
	client.RemoveWatch(watchReq.ConversationId)
	return nil, nil
}

// HandleHeartbeat handles presence heartbeat request
func (s *WsServer) HandleHeartbeat(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var hbReq HeartbeatReq
	if err := json.Unmarshal(req.Data, &hbReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	if err := s.presenceService.Heartbeat(ctx, hbReq.ConversationId, client.UserId); err != nil {
		return nil, err
	}
	return nil, nil
}

// HandleSetTyping handles set typing flag request
func (s *WsServer) HandleSetTyping(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var typingReq SetTypingReq
	if err := json.Unmarshal(req.Data, &typingReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	if err := s.presenceService.SetTyping(ctx, typingReq.ConversationId, client.UserId, typingReq.Typing); err != nil {
		return nil, err
	}
	return nil, nil
}

// HandleLeave handles the best-effort offline mark. The online window
// covers the case where it never arrives.
func (s *WsServer) HandleLeave(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var leaveReq HeartbeatReq
	if err := json.Unmarshal(req.Data, &leaveReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	if err := s.presenceService.Leave(ctx, leaveReq.ConversationId, client.UserId); err != nil {
		return nil, err
	}
	return nil, nil
}

// HandleGetNewestSeq handles get newest seq request
func (s *WsServer) HandleGetNewestSeq(ctx context.Context, client *Client, req *WSRequest) ([]byte, error) {
	var getSeqReq GetNewestSeqReq
	if err := json.Unmarshal(req.Data, &getSeqReq); err != nil {
		return nil, errcode.ErrInvalidParam
	}

	seqs := make(map[string]int64)
	for _, convId := range getSeqReq.ConversationIds {
		maxSeq, _, err := s.msgService.NewestSeq(ctx, client.UserId, convId)
		if err != nil {
			continue
		}
		seqs[convId] = maxSeq
	}

	resp := GetNewestSeqResp{Seqs: seqs}
	return json.Marshal(resp)
}
