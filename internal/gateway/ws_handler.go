package gateway

import (
	"context"
	"strconv"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/google/uuid"
	"github.com/hertz-contrib/websocket"
	"github.com/mbeoliero/kit/log"
	"github.com/mbeoliero/vorbi/pkg/jwt"
)

// HandleHertzConnection handles a WebSocket connection from Hertz using hertz-contrib/websocket
func (s *WsServer) HandleHertzConnection(ctx context.Context, c *app.RequestContext, upgrader *websocket.HertzUpgrader) {
	if s.onlineConnNum.Load() >= s.maxConnNum {
		c.String(503, "connection limit exceeded")
		return
	}

	token := string(c.Query(QueryToken))
	sendId := string(c.Query(QuerySendId))
	platformIdStr := string(c.Query(QueryPlatformId))
	sdkType := string(c.Query(QuerySDKType))

	if token == "" || sendId == "" {
		c.String(400, "missing required parameters")
		return
	}

	platformId := 0
	if platformIdStr != "" {
		platformId, _ = strconv.Atoi(platformIdStr)
	}

	claims, err := s.validateToken(token, sendId, platformId)
	if err != nil {
		log.CtxDebug(ctx, "token validation failed: send_id=%s, error=%v", sendId, err)
		c.String(401, "unauthorized")
		return
	}

	err = upgrader.Upgrade(c, func(conn *websocket.Conn) {
		connId := uuid.New().String()
		wsConn := NewHertzWebSocketClientConn(conn, s.cfg.WebSocket.MaxMessageSize, PongWait, PingPeriod, s.cfg.WebSocket.WriteChannelSize)
		client := NewClient(wsConn, claims.UserId, claims.PlatformId, sdkType, token, connId, s)

		s.registerChan <- client

		// Blocking message loop; returns when the conn dies
		client.readLoop()
	})

	if err != nil {
		log.CtxWarn(ctx, "websocket upgrade failed: %v", err)
		return
	}
}

// validateToken accepts the subsystem's own tokens and, when enabled,
// tokens minted by the marketplace identity provider.
func (s *WsServer) validateToken(token, sendId string, platformId int) (*jwt.Claims, error) {
	claims, err := jwt.ValidateToken(token, s.cfg.JWT.Secret, sendId, platformId)
	if err == nil {
		return claims, nil
	}

	ext := s.cfg.ExternalJWT
	if !ext.Enabled {
		return nil, err
	}

	extClaims, extErr := jwt.ParseExternalToken(token, ext.Secret, ext.DefaultRole, ext.DefaultPlatformId)
	if extErr != nil {
		return nil, err
	}
	if extClaims.UserId != sendId {
		return nil, ErrTokenInvalid
	}
	return extClaims, nil
}
