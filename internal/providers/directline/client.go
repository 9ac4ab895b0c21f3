package directline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/voxgate/voxgate/internal/models"
)

const DefaultBaseURL = "https://directline.botframework.com/v3/directline"

// Client talks to the DirectLine REST API.
type Client struct {
	baseURL string
	secret  string
	http    *http.Client
}

func NewClient(secret string) *Client {
	return &Client{
		baseURL: DefaultBaseURL,
		secret:  secret,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithBaseURL is used by tests and non-default deployments.
func NewClientWithBaseURL(secret, baseURL string) *Client {
	c := NewClient(secret)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type tokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

func (c *Client) GenerateToken(ctx context.Context) (string, error) {
	var out tokenResponse
	if err := c.do(ctx, http.MethodPost, "/tokens/generate", c.secret, nil, &out); err != nil {
		return "", err
	}
	if out.Token == "" {
		return "", errors.New("directline: no token in response")
	}
	return out.Token, nil
}

type conversationResponse struct {
	ConversationID string `json:"conversationId"`
}

func (c *Client) StartConversation(ctx context.Context, token string) (string, error) {
	var out conversationResponse
	if err := c.do(ctx, http.MethodPost, "/conversations", token, nil, &out); err != nil {
		return "", err
	}
	if out.ConversationID == "" {
		return "", errors.New("directline: no conversation id in response")
	}
	return out.ConversationID, nil
}

type activityResponse struct {
	ID string `json:"id"`
}

func (c *Client) PostActivity(ctx context.Context, conversationID, token string, act models.Activity) (string, error) {
	var out activityResponse
	path := "/conversations/" + conversationID + "/activities"
	if err := c.do(ctx, http.MethodPost, path, token, act, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("directline: no activity id in response")
	}
	return out.ID, nil
}

type activitiesResponse struct {
	Activities []models.Activity `json:"activities"`
	Watermark  string            `json:"watermark"`
}

func (c *Client) ListActivities(ctx context.Context, conversationID, token string) ([]models.Activity, error) {
	var out activitiesResponse
	path := "/conversations/" + conversationID + "/activities"
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Activities, nil
}

func (c *Client) do(ctx context.Context, method, path, bearer string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("directline: %s %s: status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
