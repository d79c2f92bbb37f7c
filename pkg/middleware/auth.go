package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gurbanow/traffic-map/pkg/common"
)

// SessionClaims represents viewer session claims minted by the launcher
type SessionClaims struct {
	SessionID string `json:"session_id"`
	SceneID   string `json:"scene_id,omitempty"`
	jwt.RegisteredClaims
}

// NewSessionToken mints a signed HS256 session token for a scene viewer.
func NewSessionToken(secret, sceneID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &SessionClaims{
		SessionID: uuid.New().String(),
		SceneID:   sceneID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseSessionToken validates a session token and returns its claims.
func ParseSessionToken(secret, tokenString string) (*SessionClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// SessionAuth validates viewer session tokens. Tokens are accepted from the
// Authorization header or, for WebSocket connections, the token query param.
func SessionAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" {
				common.ErrorResponse(c, http.StatusUnauthorized, "invalid authorization header format")
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else if t := c.Query("token"); t != "" {
			tokenString = t
		} else {
			common.ErrorResponse(c, http.StatusUnauthorized, "authorization required")
			c.Abort()
			return
		}

		claims, err := ParseSessionToken(secret, tokenString)
		if err != nil {
			common.ErrorResponse(c, http.StatusUnauthorized, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set("session_id", claims.SessionID)
		if claims.SceneID != "" {
			c.Set("scene_id", claims.SceneID)
		}

		c.Next()
	}
}

// GetSessionID extracts the viewer session ID from context
func GetSessionID(c *gin.Context) (string, error) {
	sessionID, exists := c.Get("session_id")
	if !exists {
		return "", common.ErrUnauthorized
	}
	return sessionID.(string), nil
}
