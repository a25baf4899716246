package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/vorbi/internal/middleware"
	"github.com/mbeoliero/vorbi/internal/service"
	"github.com/mbeoliero/vorbi/pkg/errcode"
	"github.com/mbeoliero/vorbi/pkg/response"
)

// PresenceHandler handles presence tracker requests. These exist as an
// HTTP fallback for clients without a socket; connected sessions issue
// the same operations over the gateway.
type PresenceHandler struct {
	presenceService *service.PresenceService
}

// NewPresenceHandler creates a new PresenceHandler
func NewPresenceHandler(presenceService *service.PresenceService) *PresenceHandler {
	return &PresenceHandler{presenceService: presenceService}
}

// PresenceRequest represents a heartbeat or leave request
type PresenceRequest struct {
	ConversationId string `json:"conversation_id"`
}

// Heartbeat handles presence heartbeat request
func (h *PresenceHandler) Heartbeat(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req PresenceRequest
	if err := c.BindAndValidate(&req); err != nil || req.ConversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.presenceService.Heartbeat(ctx, req.ConversationId, userId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// SetTypingRequest represents a typing flag request
type SetTypingRequest struct {
	ConversationId string `json:"conversation_id"`
	Typing         bool   `json:"typing"`
}

// SetTyping handles set typing flag request
func (h *PresenceHandler) SetTyping(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req SetTypingRequest
	if err := c.BindAndValidate(&req); err != nil || req.ConversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.presenceService.SetTyping(ctx, req.ConversationId, userId, req.Typing); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// Leave handles the best-effort offline mark
func (h *PresenceHandler) Leave(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req PresenceRequest
	if err := c.BindAndValidate(&req); err != nil || req.ConversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.presenceService.Leave(ctx, req.ConversationId, userId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}

// GetPresence handles the counterpart presence snapshot request
func (h *PresenceHandler) GetPresence(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	conversationId := c.Query("conversation_id")
	if conversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	info, err := h.presenceService.CounterpartSnapshot(ctx, conversationId, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, info)
}
