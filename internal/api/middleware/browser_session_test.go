package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

type capture struct {
	sid string
	cid string
}

func sessionRouter(secret string, got *capture) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(BrowserSession(secret))
	r.GET("/probe", func(c *gin.Context) {
		got.sid = c.GetString("browser_session_id")
		got.cid = c.GetString("client_id")
		c.Status(http.StatusNoContent)
	})
	return r
}

func sessionCookie(t *testing.T, w *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	res := w.Result()
	defer res.Body.Close()
	for _, ck := range res.Cookies() {
		if ck.Name == SessionCookie {
			return ck
		}
	}
	return nil
}

func TestBrowserSessionMintsIdentityForNewBrowser(t *testing.T) {
	var got capture
	r := sessionRouter(testSecret, &got)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))

	require.NotEmpty(t, got.sid)
	require.NotEmpty(t, got.cid)
	require.Contains(t, got.cid, "client_")

	ck := sessionCookie(t, w)
	require.NotNil(t, ck)
	require.True(t, ck.HttpOnly)
	require.NotEmpty(t, ck.Value)
}

func TestBrowserSessionIsStableAcrossRequests(t *testing.T) {
	var first capture
	r := sessionRouter(testSecret, &first)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	ck := sessionCookie(t, w)
	require.NotNil(t, ck)

	var second capture
	r2 := sessionRouter(testSecret, &second)
	w2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.AddCookie(ck)
	r2.ServeHTTP(w2, req)

	require.Equal(t, first.sid, second.sid)
	require.Equal(t, first.cid, second.cid)
	// an accepted cookie is not re-minted
	require.Nil(t, sessionCookie(t, w2))
}

func TestBrowserSessionRejectsTamperedCookie(t *testing.T) {
	var first capture
	r := sessionRouter(testSecret, &first)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/probe", nil))
	ck := sessionCookie(t, w)
	require.NotNil(t, ck)

	var second capture
	r2 := sessionRouter("a-different-secret", &second)
	w2 := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.AddCookie(ck)
	r2.ServeHTTP(w2, req)

	require.NotEmpty(t, second.sid)
	require.NotEqual(t, first.sid, second.sid)
	require.NotNil(t, sessionCookie(t, w2))
}

func TestBrowserSessionRejectsUnsignedToken(t *testing.T) {
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, sessionClaims{
		SessionID: "forged-sid",
		ClientID:  "forged-cid",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	var got capture
	r := sessionRouter(testSecret, &got)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: unsigned})
	r.ServeHTTP(w, req)

	require.NotEqual(t, "forged-sid", got.sid)
	require.NotEqual(t, "forged-cid", got.cid)
	require.NotNil(t, sessionCookie(t, w))
}
