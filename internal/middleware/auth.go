package middleware

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/v1mal/open-scene-engine-sub000/internal/config"
	"github.com/v1mal/open-scene-engine-sub000/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Fiber locals written by the auth middleware.
const (
	LocalUserID = "userID"
	LocalRole   = "role"
)

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

// Claims is the bearer token shape. Tokens are minted by the identity
// provider; this service only verifies them.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// Identity is the verified content of a token.
type Identity struct {
	UserID uint
	Role   models.Role
}

// ParseToken verifies an HS256 token against secret and, when set, the
// expected issuer and audience.
func ParseToken(raw string, secret []byte, issuer, audience string) (Identity, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	if audience != "" {
		opts = append(opts, jwt.WithAudience(audience))
	}

	var claims Claims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return Identity{}, models.NewUnauthorizedError("Invalid or expired token")
	}

	userID, err := strconv.ParseUint(claims.Subject, 10, 32)
	if err != nil || userID == 0 {
		return Identity{}, models.NewUnauthorizedError("Invalid user ID in token")
	}

	role := models.Role(strings.ToLower(claims.Role))
	switch role {
	case "":
		role = models.RoleMember
	case models.RoleMember, models.RoleModerator, models.RoleAdmin:
	default:
		return Identity{}, models.NewUnauthorizedError("Invalid role claim")
	}
	return Identity{UserID: uint(userID), Role: role}, nil
}

func bearerToken(c *fiber.Ctx) (string, bool, error) {
	header := c.Get(fiber.HeaderAuthorization)
	if header == "" {
		return "", false, nil
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", true, models.NewUnauthorizedError("Invalid authorization header format")
	}
	return parts[1], true, nil
}

func authenticate(c *fiber.Ctx) (bool, error) {
	raw, present, err := bearerToken(c)
	if !present || err != nil {
		return present, err
	}
	if cfg == nil {
		return true, models.NewInternalError(errors.New("auth middleware not initialized"))
	}
	id, err := ParseToken(raw, []byte(cfg.JWTSecret), cfg.JWTIssuer, cfg.JWTAudience)
	if err != nil {
		return true, err
	}

	c.Locals(LocalUserID, id.UserID)
	c.Locals(LocalRole, id.Role)
	c.SetUserContext(context.WithValue(c.UserContext(), UserIDKey, id.UserID))
	return true, nil
}

func authStatus(err error) int {
	if models.IsCode(err, models.CodeInternal) {
		return fiber.StatusInternalServerError
	}
	return fiber.StatusUnauthorized
}

// AuthRequired rejects requests without a valid bearer token.
func AuthRequired(c *fiber.Ctx) error {
	present, err := authenticate(c)
	if err != nil {
		return models.RespondWithError(c, authStatus(err), err)
	}
	if !present {
		return models.RespondWithError(c, fiber.StatusUnauthorized,
			models.NewUnauthorizedError("Authorization header required"))
	}
	return c.Next()
}

// AuthOptional lets anonymous requests through. A token that is present
// but invalid is still rejected.
func AuthOptional(c *fiber.Ctx) error {
	if _, err := authenticate(c); err != nil {
		return models.RespondWithError(c, authStatus(err), err)
	}
	return c.Next()
}

// ActorFrom builds the caller identity from the auth locals.
func ActorFrom(c *fiber.Ctx) models.Actor {
	actor := models.Actor{ClientAddr: c.IP()}
	if uid, ok := c.Locals(LocalUserID).(uint); ok {
		actor.UserID = uid
	}
	if role, ok := c.Locals(LocalRole).(models.Role); ok {
		actor.Role = role
	}
	return actor
}
