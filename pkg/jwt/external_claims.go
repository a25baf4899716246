package jwt

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/mbeoliero/vorbi/pkg/errcode"
	"github.com/mbeoliero/vorbi/pkg/identity"
)

// ExternalClaims represents claims issued by the marketplace identity
// provider. The external token carries the numeric account id which is
// converted to the chat string user_id via identity.Actor.
type ExternalClaims struct {
	AccountId int64  `json:"account_id"`
	Role      string `json:"role,omitempty"` // "member", "staff"; falls back to configured default
	jwt.RegisteredClaims
}

// ParseExternalToken parses a marketplace JWT and converts it to the
// chat subsystem's Claims using Actor-based id mapping.
func ParseExternalToken(tokenString, secret, defaultRole string, defaultPlatformId int) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &ExternalClaims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, errcode.ErrTokenInvalid.Wrap(err)
	}

	extClaims, ok := token.Claims.(*ExternalClaims)
	if !ok || !token.Valid {
		return nil, errcode.ErrTokenInvalid
	}

	role := identity.RoleType(extClaims.Role)
	if extClaims.Role == "" {
		role = identity.RoleType(defaultRole)
	}

	actor := identity.Actor{Id: extClaims.AccountId, Role: role}
	chatUserId, err := actor.ToChatUserId()
	if err != nil {
		return nil, errcode.ErrTokenInvalid.Wrap(err)
	}

	return &Claims{
		UserId:           chatUserId,
		PlatformId:       defaultPlatformId,
		RegisteredClaims: extClaims.RegisteredClaims,
	}, nil
}
