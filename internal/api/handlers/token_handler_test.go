package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/voxgate/voxgate/internal/models"
	"github.com/voxgate/voxgate/internal/utils"
)

type fakeCredReader struct {
	speechToken string
	relayCred   *models.RelayCredential
}

func (f *fakeCredReader) CurrentSpeechToken() (string, bool) {
	return f.speechToken, f.speechToken != ""
}

func (f *fakeCredReader) CurrentRelayCredential() (*models.RelayCredential, bool) {
	return f.relayCred, f.relayCred != nil
}

func (f *fakeCredReader) AwaitRelayCredential(context.Context) (*models.RelayCredential, error) {
	if f.relayCred == nil {
		return nil, utils.E(utils.CodeUnavailable, "fakeCredReader.AwaitRelayCredential", "relay credential not available", nil)
	}
	return f.relayCred, nil
}

func tokenRouter(creds *fakeCredReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewTokenHandler(creds, "westus2")
	r.GET("/api/getSpeechToken", h.GetSpeechToken)
	r.GET("/api/getIceToken", h.GetIceToken)
	return r
}

func TestGetSpeechTokenReturnsTokenAndRegion(t *testing.T) {
	r := tokenRouter(&fakeCredReader{speechToken: "speech-tok"})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/getSpeechToken", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "speech-tok", w.Body.String())
	require.Equal(t, "westus2", w.Header().Get("SpeechRegion"))
}

func TestGetSpeechTokenUnavailableBeforeFirstRefresh(t *testing.T) {
	r := tokenRouter(&fakeCredReader{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/getSpeechToken", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestGetIceTokenReturnsCredentialJSON(t *testing.T) {
	r := tokenRouter(&fakeCredReader{relayCred: &models.RelayCredential{
		URLs:     []string{"turn:relay.example:3478"},
		Username: "u1",
		Password: "p1",
	}})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/getIceToken", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"Urls":["turn:relay.example:3478"],"Username":"u1","Password":"p1"}`, w.Body.String())
}

func TestGetIceTokenUnavailableWhenRelayAbsent(t *testing.T) {
	r := tokenRouter(&fakeCredReader{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/getIceToken", nil))

	require.Equal(t, http.StatusServiceUnavailable, w.Code)
}
