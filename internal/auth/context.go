package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// ContextKey is where the access guard middleware stores the parsed token.
const ContextKey = "user"

// CurrentUser returns the claims the access guard attached to the request.
func CurrentUser(c echo.Context) (*Claims, error) {
	token, ok := c.Get(ContextKey).(*jwt.Token)
	if !ok {
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
