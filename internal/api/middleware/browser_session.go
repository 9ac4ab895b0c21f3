package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	// SessionCookie carries the signed browser session identity.
	SessionCookie = "vg_session"

	sessionTTL = 24 * time.Hour
)

type sessionClaims struct {
	SessionID string `json:"sid"`
	ClientID  string `json:"cid"`
	jwt.RegisteredClaims
}

// BrowserSession identifies the browser across requests with a signed cookie.
// Each browser session gets a stable session id (keying its conversation) and
// a default avatar client id; a missing or invalid cookie mints a fresh pair.
func BrowserSession(secret string) gin.HandlerFunc {
	key := []byte(secret)

	return func(c *gin.Context) {
		sid, cid := readSession(c, key)
		if sid == "" || cid == "" {
			sid = uuid.NewString()
			cid = "client_" + uuid.NewString()
			if tok, err := mintSession(key, sid, cid); err == nil {
				c.SetCookie(SessionCookie, tok, 0, "/", "", false, true)
			}
		}

		c.Set("browser_session_id", sid)
		c.Set("client_id", cid)
		c.Next()
	}
}

func readSession(c *gin.Context, key []byte) (sid, cid string) {
	raw, err := c.Cookie(SessionCookie)
	if err != nil || raw == "" {
		return "", ""
	}

	claims := &sessionClaims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))

	if err != nil || tok == nil || !tok.Valid {
		return "", ""
	}
	return claims.SessionID, claims.ClientID
}

func mintSession(key []byte, sid, cid string) (string, error) {
	now := time.Now()
	claims := sessionClaims{
		SessionID: sid,
		ClientID:  cid,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(sessionTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}
