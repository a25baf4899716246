package gateway

import "errors"

var (
	ErrConnClosed                = errors.New("conn has closed")
	ErrNotSupportMessageProtocol = errors.New("not support message protocol")
	ErrClientClosed              = errors.New("client actively close the connection")
	ErrPanic                     = errors.New("panic error")
	ErrTokenInvalid              = errors.New("token validate error")
	ErrConnOverMaxNumLimit       = errors.New("over max conn num limit")
	ErrInvalidProtocol           = errors.New("invalid message protocol")
	ErrUserIdMismatch            = errors.New("send_id does not match authenticated user")
	ErrWriteChannelFull          = errors.New("write channel full")
)
