package handler

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/mbeoliero/vorbi/internal/middleware"
	"github.com/mbeoliero/vorbi/internal/service"
	"github.com/mbeoliero/vorbi/pkg/errcode"
	"github.com/mbeoliero/vorbi/pkg/response"
)

// ConversationHandler handles conversation directory requests
type ConversationHandler struct {
	convService *service.ConversationService
	msgService  *service.MessageService
}

// NewConversationHandler creates a new ConversationHandler
func NewConversationHandler(convService *service.ConversationService, msgService *service.MessageService) *ConversationHandler {
	return &ConversationHandler{convService: convService, msgService: msgService}
}

// ListConversations handles the inbox listing request. Entries come
// back newest-activity first with the viewer's unread counts and the
// counterpart's presence attached.
func (h *ConversationHandler) ListConversations(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	conversations, err := h.convService.ListConversations(ctx, userId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, map[string]interface{}{
		"conversations": conversations,
	})
}

// GetConversation handles a single directory entry request
func (h *ConversationHandler) GetConversation(ctx context.Context, c *app.RequestContext) {
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

	info, err := h.convService.GetConversation(ctx, userId, conversationId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, info)
}

// GetCounterpart handles the counterpart lookup request
func (h *ConversationHandler) GetCounterpart(ctx context.Context, c *app.RequestContext) {
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

	counterpart, err := h.convService.GetCounterpart(ctx, userId, conversationId)
	if err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, counterpart)
}

// MarkReadRequest represents mark read request
type MarkReadRequest struct {
	ConversationId string `json:"conversation_id"`
}

// MarkRead handles mark conversation read request
func (h *ConversationHandler) MarkRead(ctx context.Context, c *app.RequestContext) {
	userId := middleware.GetUserId(c)
	if userId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrUnauthorized)
		return
	}

	var req MarkReadRequest
	if err := c.BindAndValidate(&req); err != nil || req.ConversationId == "" {
		response.ErrorWithCode(ctx, c, errcode.ErrInvalidParam)
		return
	}

	if err := h.msgService.MarkRead(ctx, userId, req.ConversationId); err != nil {
		response.Error(ctx, c, err)
		return
	}

	response.Success(ctx, c, nil)
}
