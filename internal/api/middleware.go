package api

import (
	"net/http"
	"strings"

	"github.com/annel0/coin-collector/internal/auth"
	"github.com/gin-gonic/gin"
)

// claimsKey - ключ gin.Context, под которым лежат проверенные claims
const claimsKey = "auth_claims"

// bearerToken достаёт токен из "Authorization: Bearer <token>"
func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// claimsFrom возвращает claims запроса, прошедшего jwtMiddleware
func claimsFrom(c *gin.Context) (*auth.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// jwtMiddleware пропускает только запросы с действующим токеном
func (rs *RestServer) jwtMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			fail(c, http.StatusUnauthorized, "Отсутствует токен авторизации")
			c.Abort()
			return
		}
		token, ok := bearerToken(header)
		if !ok {
			fail(c, http.StatusUnauthorized, "Неверный формат токена")
			c.Abort()
			return
		}
		claims, err := rs.issuer.Validate(token)
		if err != nil {
			rs.logger.Debug("[API] отклонён токен от %s: %v", c.ClientIP(), err)
			fail(c, http.StatusUnauthorized, "Недействительный токен")
			c.Abort()
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// adminMiddleware закрывает админские маршруты для обычных пользователей
func (rs *RestServer) adminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok || !claims.IsAdmin {
			user := ""
			if ok {
				user = claims.Username
			}
			rs.logger.Warn("[API] %q без прав администратора: %s %s", user, c.Request.Method, c.FullPath())
			fail(c, http.StatusForbidden, "Недостаточно прав доступа")
			c.Abort()
			return
		}
		c.Next()
	}
}
