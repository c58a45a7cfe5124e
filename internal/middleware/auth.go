package middleware

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/Abdulkalam0018/roadresq/internal/auth"
)

// LocalsUserID is the fiber locals key the authenticated identity is stored
// under for downstream handlers.
const LocalsUserID = "userID"

// JWTAuth resolves the request credential (bearer header or accessToken
// cookie) to a user identity before any chat handler runs.
func JWTAuth(verifier *auth.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := ""
		if header := c.Get("Authorization"); header != "" {
			t, err := auth.FromBearer(header)
			if err != nil {
				return unauthorized(c, "invalid authorization header")
			}
			token = t
		} else {
			token = c.Cookies("accessToken")
		}
		claims, err := verifier.Verify(token)
		if err != nil {
			return unauthorized(c, "authentication required")
		}
		c.Locals(LocalsUserID, claims.UserID)
		return c.Next()
	}
}

// UserID reads the authenticated identity set by JWTAuth.
func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalsUserID).(string)
	return id
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(http.StatusUnauthorized).JSON(fiber.Map{
		"success": false,
		"message": msg,
	})
}
