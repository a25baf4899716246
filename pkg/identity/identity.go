package identity

import (
	"fmt"
	"strconv"
)

const prefixLength = 4

// RoleType is the kind of marketplace account behind a chat user id.
type RoleType string

const (
	RoleMember RoleType = "member" // ordinary buyer/seller account
	RoleStaff  RoleType = "staff"  // marketplace support staff
)

// Actor is an external marketplace identity. The conversation subsystem
// treats user ids as opaque strings; Actor is the one place the numeric
// account id of the identity provider is translated to and from them.
type Actor struct {
	Id   int64
	Role RoleType
}

// ToChatUserId converts an Actor to the chat subsystem's string user id.
//
//	Actor{Id: 42, Role: RoleMember}.ToChatUserId() => "m___42"
//	Actor{Id: 7, Role: RoleStaff}.ToChatUserId()   => "st__7"
func (a *Actor) ToChatUserId() (string, error) {
	switch a.Role {
	case RoleMember:
		return fmt.Sprintf("m___%d", a.Id), nil
	case RoleStaff:
		return fmt.Sprintf("st__%d", a.Id), nil
	default:
		return "", fmt.Errorf("failed to build chat user id, role: %s", a.Role)
	}
}

// FromChatUserId parses a chat user id string back into an Actor.
// Returns an error if the format is unrecognised.
func (a *Actor) FromChatUserId(userId string) error {
	if a == nil {
		return fmt.Errorf("actor is nil")
	}
	if len(userId) < prefixLength+1 {
		return fmt.Errorf("invalid userId: %q", userId)
	}
	prefix := userId[:prefixLength]
	idStr := userId[prefixLength:]
	switch prefix {
	case "m___":
		a.Role = RoleMember
	case "st__":
		a.Role = RoleStaff
	default:
		return fmt.Errorf("unknown user id prefix: %q", prefix)
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid userId %q: %w", userId, err)
	}
	a.Id = id
	return nil
}
