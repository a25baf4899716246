package sdk

import (
	"errors"
	"fmt"
)

// Error represents an API error
type Error struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("code: %d, msg: %s", e.Code, e.Msg)
}

// NewError creates a new error
func NewError(code int, msg string) *Error {
	return &Error{Code: code, Msg: msg}
}

// IsSuccess checks if the error code indicates success
func (e *Error) IsSuccess() bool {
	return e.Code == 0
}

// Common error codes
const (
	// Success
	CodeSuccess = 0

	// Common errors (1xxx)
	CodeInvalidParam    = 1001
	CodeInternalServer  = 1002
	CodeUnauthorized    = 1003
	CodeForbidden       = 1004
	CodeNotFound        = 1005
	CodeTooManyRequests = 1006

	// Auth errors (2xxx)
	CodeTokenInvalid  = 2001
	CodeTokenExpired  = 2002
	CodeTokenMissing  = 2003
	CodeTokenMismatch = 2004

	// Conversation errors (3xxx)
	CodeConvNotFound          = 3001
	CodeInvalidParticipant    = 3002
	CodeMalformedConversation = 3003
	CodeSelfConversation      = 3004

	// Message errors (4xxx)
	CodeMessageNotFound  = 4001
	CodeEmptyMessage     = 4002
	CodeSeqAllocFailed   = 4003
	CodeDeliveryFailure  = 4004
	CodePullFailed       = 4005

	// WebSocket errors (5xxx)
	CodeConnOverLimit   = 5001
	CodeConnClosed      = 5002
	CodeInvalidProtocol = 5003
	CodePushFailed      = 5004
)

// Predefined errors
var (
	ErrInvalidParam    = NewError(CodeInvalidParam, "invalid parameter")
	ErrInternalServer  = NewError(CodeInternalServer, "internal server error")
	ErrUnauthorized    = NewError(CodeUnauthorized, "unauthorized")
	ErrForbidden       = NewError(CodeForbidden, "forbidden")
	ErrNotFound        = NewError(CodeNotFound, "not found")
	ErrTooManyRequests = NewError(CodeTooManyRequests, "too many requests")

	ErrTokenInvalid = NewError(CodeTokenInvalid, "token invalid")
	ErrTokenExpired = NewError(CodeTokenExpired, "token expired")
	ErrTokenMissing = NewError(CodeTokenMissing, "token missing")

	ErrConvNotFound          = NewError(CodeConvNotFound, "conversation not found")
	ErrInvalidParticipant    = NewError(CodeInvalidParticipant, "not a conversation participant")
	ErrMalformedConversation = NewError(CodeMalformedConversation, "malformed conversation")
	ErrSelfConversation      = NewError(CodeSelfConversation, "cannot start a conversation with yourself")

	ErrEmptyMessage    = NewError(CodeEmptyMessage, "message text is empty")
	ErrDeliveryFailure = NewError(CodeDeliveryFailure, "message delivery failed")
)

// Session state errors
var (
	ErrSessionClosed  = errors.New("session is closed")
	ErrConnClosed     = errors.New("connection is closed")
	ErrCallTimeout    = errors.New("call timed out")
	ErrNotConnected   = errors.New("not connected")
	ErrAlreadyOpened  = errors.New("session already opened")
)

// CodeOf extracts the API error code from an error, or -1
func CodeOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return -1
}
