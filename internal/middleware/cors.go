package middleware

import (
	"context"

	"github.com/cloudwego/hertz/pkg/app"

	"github.com/mbeoliero/vorbi/internal/config"
)

// CORS is the CORS middleware. With configured allowed origins only
// those origins are echoed back; otherwise any origin is accepted.
func CORS() app.HandlerFunc {
	return func(ctx context.Context, c *app.RequestContext) {
		origin := string(c.GetHeader("Origin"))
		allowed := "*"
		if cfg := config.GlobalConfig; cfg != nil && len(cfg.Server.AllowedOrigins) > 0 {
			allowed = ""
			for _, o := range cfg.Server.AllowedOrigins {
				if o == origin || o == "*" {
					allowed = origin
					break
				}
			}
		}
		if allowed != "" {
			c.Header("Access-Control-Allow-Origin", allowed)
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization")
		c.Header("Access-Control-Expose-Headers", "Content-Length, Access-Control-Allow-Origin, Access-Control-Allow-Headers")
		c.Header("Access-Control-Allow-Credentials", "true")

		if string(c.Method()) == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next(ctx)
	}
}
