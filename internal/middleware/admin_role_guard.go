package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AuthJWTが積んだroleを見てADMIN以外を落とす。
// roleが無い＝AuthJWTを通っていないので401、USERは403
func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			rawRole := c.Get(CtxUserRoleKey)
			role, ok := rawRole.(string)
			if !ok || role == "" {
				return writeProblem(c, http.StatusUnauthorized, "unauthorized")
			}

			if role != "ADMIN" {
				return writeProblem(c, http.StatusForbidden, "admin only")
			}

			return next(c)
		}
	}
}
