package api

import (
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"

	"github.com/golang-jwt/jwt/v5"

	"shop-service/internal/entity"
)

const sessionKeyHeader = "X-Session-Key"

type JwtCustomClaims struct {
	Name string `json:"name"`
	jwt.RegisteredClaims
}

// JWTMiddleware parses a bearer token when one is present. Requests without
// an Authorization header pass through as anonymous; they identify
// themselves with the X-Session-Key header instead.
func JWTMiddleware(secret string) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		SigningKey: []byte(secret),
		NewClaimsFunc: func(c echo.Context) jwt.Claims {
			return new(JwtCustomClaims)
		},
		Skipper: func(c echo.Context) bool {
			return c.Request().Header.Get(echo.HeaderAuthorization) == ""
		},
	})
}

// principalFrom resolves the request's principal: JWT subject when
// authenticated, session key header otherwise.
func principalFrom(c echo.Context) entity.Principal {
	if token, ok := c.Get("user").(*jwt.Token); ok {
		if claims, ok := token.Claims.(*JwtCustomClaims); ok && claims.Subject != "" {
			return entity.Principal{UserID: claims.Subject}
		}
	}
	return entity.Principal{SessionKey: c.Request().Header.Get(sessionKeyHeader)}
}
