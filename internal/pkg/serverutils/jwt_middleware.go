package serverutils

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

const UserIDLocal = "user_id"

// OptionalJwtMiddleware stores the user_id claim of a valid bearer token in
// locals. Requests without a valid token pass through anonymously.
func OptionalJwtMiddleware(secret string) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		if secret == "" {
			return ctx.Next()
		}
		authHeader := ctx.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return ctx.Next()
		}

		token, err := jwt.Parse(authHeader[7:], func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fiber.ErrUnauthorized
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			return ctx.Next()
		}

		if claims, ok := token.Claims.(jwt.MapClaims); ok {
			if userID, ok := claims["user_id"].(string); ok {
				ctx.Locals(UserIDLocal, userID)
			}
		}
		return ctx.Next()
	}
}

// UserID returns the identity set by OptionalJwtMiddleware, or "".
func UserID(ctx *fiber.Ctx) string {
	id, _ := ctx.Locals(UserIDLocal).(string)
	return id
}
