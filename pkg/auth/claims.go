package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/skshopping/shop-backend/pkg/enums"
	"github.com/skshopping/shop-backend/pkg/outbox"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Role   enums.Role
	// ShopID scopes a shop_manager token to the shop they run.
	ShopID *uuid.UUID
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Role   enums.Role `json:"role"`
	ShopID *uuid.UUID `json:"shop_id,omitempty"`
	jwt.RegisteredClaims
}

// CanManageShop reports whether the token may act on orders of shopID.
func (c *AccessTokenClaims) CanManageShop(shopID uuid.UUID) bool {
	if c == nil {
		return false
	}
	switch c.Role {
	case enums.RoleAdmin:
		return true
	case enums.RoleShopManager:
		return c.ShopID != nil && *c.ShopID == shopID
	default:
		return false
	}
}

// ActorRef identifies the token holder on outbox events.
func (c *AccessTokenClaims) ActorRef() *outbox.ActorRef {
	if c == nil {
		return nil
	}
	userID := c.UserID
	return &outbox.ActorRef{UserID: &userID, ShopID: c.ShopID, Role: c.Role.String()}
}
