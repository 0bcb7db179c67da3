package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/asymptotic-code/telegram-bot/internal/apperr"
)

// DirectBackend calls the agent's JSON HTTP API.
type DirectBackend struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

type sessionRequest struct {
	Session string `json:"session"`
}

type agentRequest struct {
	Question string `json:"question"`
	Session  string `json:"session"`
}

type agentResponse struct {
	Answer *string `json:"answer"`
}

type existsResponse struct {
	Exists *bool `json:"exists"`
}

func NewDirect(baseURL, apiKey string, timeout time.Duration) *DirectBackend {
	return &DirectBackend{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (d *DirectBackend) SessionExists(ctx context.Context, key string) (bool, error) {
	body, err := d.post(ctx, "/session/exists", sessionRequest{Session: key})
	if err != nil {
		return false, err
	}
	var out existsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return false, &apperr.ProtocolError{Op: "session_exists", Detail: fmt.Sprintf("decode: %v", err)}
	}
	if out.Exists == nil {
		return false, &apperr.ProtocolError{Op: "session_exists", Detail: "missing exists field"}
	}
	return *out.Exists, nil
}

func (d *DirectBackend) CreateSession(ctx context.Context, key string) error {
	_, err := d.post(ctx, "/session/create", sessionRequest{Session: key})
	return err
}

func (d *DirectBackend) ClearSession(ctx context.Context, key string) error {
	_, err := d.post(ctx, "/session/clear", sessionRequest{Session: key})
	return err
}

func (d *DirectBackend) Converse(ctx context.Context, message, key string) (string, error) {
	body, err := d.post(ctx, "/agent", agentRequest{Question: message, Session: key})
	if err != nil {
		return "", err
	}
	var out agentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &apperr.ProtocolError{Op: "agent", Detail: fmt.Sprintf("decode: %v", err)}
	}
	if out.Answer == nil {
		return "", &apperr.ProtocolError{Op: "agent", Detail: "missing answer field"}
	}
	answer := strings.TrimSpace(*out.Answer)
	if answer == "" {
		return "", &apperr.ProtocolError{Op: "agent", Detail: "empty answer"}
	}
	return answer, nil
}

func (d *DirectBackend) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	op := strings.TrimPrefix(endpoint, "/")
	reqBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, apperr.Remote(op, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if d.apiKey != "" {
		req.Header.Set("X-API-KEY", d.apiKey)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, apperr.Remote(op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.Remote(op, fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode >= 400 {
		return nil, apperr.Remote(op, fmt.Errorf("agent API error %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody))))
	}
	return respBody, nil
}
