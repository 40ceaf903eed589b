package auth

import (
	"github.com/golang-jwt/jwt/v5"

	"github.com/blockmart/blockmart-backend/pkg/enums"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID string
	Role   enums.ActorRole
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients. UserID
// is the caller's chat-platform ID.
type AccessTokenClaims struct {
	UserID string          `json:"user_id"`
	Role   enums.ActorRole `json:"role"`
	jwt.RegisteredClaims
}
