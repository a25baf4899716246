package gateway

import "time"

// WebSocket protocol request identifiers
const (
	WSSendMsg      = 1001 // Append a message to a conversation log
	WSPullMsg      = 1002 // Pull message history by seq range
	WSMarkRead     = 1003 // Mark a conversation read
	WSConvList     = 1004 // Directory snapshot for the connected user
	WSWatchConv    = 1005 // Start watching a conversation (live log + presence)
	WSUnwatchConv  = 1006 // Stop watching a conversation
	WSHeartbeat    = 1007 // Refresh last-seen for a watched conversation
	WSSetTyping    = 1008 // Set/clear the typing flag
	WSGetNewestSeq = 1009 // Max seq per conversation, for resync
	WSLeave        = 1010 // Best-effort offline mark on navigation away

	// Server push identifiers
	WSPushMsg      = 2001 // New message appended
	WSPushRead     = 2002 // Read receipt: peer marked the conversation read
	WSPushTyping   = 2003 // Typing flag changed
	WSPushPresence = 2004 // Last-seen refreshed (or offline sentinel)
	WSPushConv     = 2005 // Directory entry changed
	WSKickOnline   = 2101 // Kick user offline
)

// Timeout constants
const (
	// WriteWait is time allowed to write a message to the peer
	WriteWait = 10 * time.Second

	// PongWait is time allowed to read the next pong message from the peer
	PongWait = 30 * time.Second

	// PingPeriod is period between pings. Must be less than PongWait
	PingPeriod = (PongWait * 9) / 10

	// MaxMessageSize is maximum message size allowed from peer
	MaxMessageSize = 51200
)

// Query parameter keys
const (
	QueryToken      = "token"
	QuerySendId     = "send_id"
	QueryPlatformId = "platform_id"
	QuerySDKType    = "sdk_type"
)

// SDK types
const (
	SDKTypeGo = "go"
	SDKTypeJS = "js"
)
