package speech

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// AzureSynthesizer dials the Azure TTS websocket endpoint with the talking
// avatar extension enabled.
type AzureSynthesizer struct {
	Region string
	Key    string
	Dialer *websocket.Dialer
}

func (a *AzureSynthesizer) Connect(ctx context.Context, cfg SessionConfig) (Session, error) {
	url := fmt.Sprintf("wss://%s.tts.speech.microsoft.com/cognitiveservices/websocket/v1?enableTalkingAvatar=true", a.Region)

	header := http.Header{}
	header.Set("Ocp-Apim-Subscription-Key", a.Key)

	dialer := a.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("speech: dial synthesis endpoint: %w", err)
	}

	s := &azureSession{conn: conn, voice: cfg.Voice}
	if err := s.sendSpeechConfig(cfg); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

type azureSession struct {
	conn  *websocket.Conn
	mu    sync.Mutex // serializes writes, as concurrent Stop must not corrupt frames
	voice string

	turnStart string
}

// sendSpeechConfig pushes the avatar synthesis context for the whole session.
func (s *azureSession) sendSpeechConfig(cfg SessionConfig) error {
	avatarContext := map[string]any{
		"synthesis": map[string]any{
			"video": map[string]any{
				"protocol": map[string]any{
					"name": "WebRTC",
					"webrtcConfig": map[string]any{
						"clientDescription": cfg.LocalSDP,
						"iceServers": []map[string]any{{
							"urls":       []string{cfg.Relay.URLs[0]},
							"username":   cfg.Relay.Username,
							"credential": cfg.Relay.Password,
						}},
					},
				},
				"format": map[string]any{
					"bitrate": 1000000,
				},
				"talkingAvatar": map[string]any{
					"customized": cfg.Customized,
					"character":  cfg.Character,
					"style":      cfg.Style,
					"background": map[string]any{
						"color": "#FFFFFFFF",
					},
				},
			},
		},
	}

	body, err := json.Marshal(map[string]any{"context": avatarContext})
	if err != nil {
		return err
	}
	return s.writeTextFrame("speech.config", "application/json", newRequestID(), string(body))
}

func (s *azureSession) Speak(ctx context.Context, ssml string) (SpeakResult, error) {
	if strings.TrimSpace(ssml) == "" {
		// priming utterance
		ssml = fmt.Sprintf(`<speak version='1.0' xmlns='http://www.w3.org/2001/10/synthesis' xml:lang='en-US'><voice name='%s'></voice></speak>`, s.voice)
	}

	requestID := newRequestID()
	if err := s.writeTextFrame("ssml", "application/ssml+xml", requestID, ssml); err != nil {
		return SpeakResult{}, err
	}

	deadline := time.Now().Add(60 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	for {
		_ = s.conn.SetReadDeadline(deadline)
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if closeErr, ok := err.(*websocket.CloseError); ok {
				return SpeakResult{Canceled: true, Detail: closeErr.Text}, nil
			}
			return SpeakResult{}, err
		}
		if msgType != websocket.TextMessage {
			// audio frames are not consumed here; video and audio travel
			// over the negotiated WebRTC session
			continue
		}

		path, body := parseTextFrame(data)
		switch path {
		case "turn.start":
			if s.turnStart == "" {
				s.turnStart = body
			}
		case "turn.end":
			return SpeakResult{ResultID: requestID}, nil
		}
	}
}

func (s *azureSession) Stop(ctx context.Context) error {
	return s.writeTextFrame("synthesis.control", "application/json", newRequestID(), `{"action":"stop"}`)
}

func (s *azureSession) TurnStart() string { return s.turnStart }

func (s *azureSession) Close() error { return s.conn.Close() }

func (s *azureSession) writeTextFrame(path, contentType, requestID, body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	frame := "Path: " + path + "\r\n" +
		"X-RequestId: " + requestID + "\r\n" +
		"X-Timestamp: " + time.Now().UTC().Format("2006-01-02T15:04:05.000Z") + "\r\n" +
		"Content-Type: " + contentType + "\r\n\r\n" +
		body

	_ = s.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return s.conn.WriteMessage(websocket.TextMessage, []byte(frame))
}

// parseTextFrame splits a "Header: value" prefixed service frame into its
// Path header and body.
func parseTextFrame(data []byte) (path, body string) {
	raw := string(data)
	head := raw
	if i := strings.Index(raw, "\r\n\r\n"); i >= 0 {
		head = raw[:i]
		body = raw[i+4:]
	}
	for _, line := range strings.Split(head, "\r\n") {
		if v, ok := strings.CutPrefix(line, "Path:"); ok {
			path = strings.TrimSpace(v)
		}
	}
	return path, body
}

func newRequestID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}
