package speech

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TokenSource issues the short-lived speech bearer token and the long-lived
// relay credential.
type TokenSource interface {
	IssueSpeechToken(ctx context.Context) (string, error)
	// IssueRelayCredential returns the raw JSON credential payload; validation
	// is the caller's job.
	IssueRelayCredential(ctx context.Context) (string, error)
}

// AzureTokenSource issues tokens from the Azure Cognitive Services endpoints
// for the configured region.
type AzureTokenSource struct {
	Region string
	Key    string
	HTTP   *http.Client
}

func (a *AzureTokenSource) IssueSpeechToken(ctx context.Context) (string, error) {
	url := fmt.Sprintf("https://%s.api.cognitive.microsoft.com/sts/v1.0/issueToken", a.Region)
	return a.fetch(ctx, http.MethodPost, url)
}

func (a *AzureTokenSource) IssueRelayCredential(ctx context.Context) (string, error) {
	url := fmt.Sprintf("https://%s.tts.speech.microsoft.com/cognitiveservices/avatar/relay/token/v1", a.Region)
	return a.fetch(ctx, http.MethodGet, url)
}

func (a *AzureTokenSource) fetch(ctx context.Context, method, url string) (string, error) {
	if a.Region == "" || a.Key == "" {
		return "", fmt.Errorf("speech: region or key not configured")
	}

	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", a.Key)

	client := a.HTTP
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("speech: %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}
