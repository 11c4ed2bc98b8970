package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"valikoo/internal/session"
	"valikoo/pkg/config"
	"valikoo/pkg/errors"
	"valikoo/pkg/logger"
)

const loginPath = "/api/auth/login"

// Client is the typed API client. It owns token attachment (every request
// except login, mirroring the web client's interceptor) and hands every body
// to the normalization adapter before callers see it.
type Client struct {
	baseURL string
	http    *http.Client
	store   *session.Store
}

func NewClient(cfg *config.Config, store *session.Store) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.APIBase, "/"),
		http:    &http.Client{Timeout: time.Duration(cfg.HTTPTimeout) * time.Second},
		store:   store,
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body interface{}) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, errors.Internal("failed to encode request body", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, errors.Internal("failed to build request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.attachToken(req, path)

	return c.execute(req)
}

func (c *Client) doForm(ctx context.Context, path string, form url.Values) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errors.Internal("failed to build request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	c.attachToken(req, path)

	return c.execute(req)
}

func (c *Client) attachToken(req *http.Request, path string) {
	if strings.Contains(path, loginPath) {
		return
	}
	if token := c.store.Session().AccessToken; token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

func (c *Client) execute(req *http.Request) (json.RawMessage, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Network("request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Network("failed to read response body", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		message := serverErrorMessage(raw)
		logger.Debug("api error: %s %s -> %d %s", req.Method, req.URL.Path, resp.StatusCode, message)
		return nil, errors.FromStatus(resp.StatusCode, message)
	}
	return raw, nil
}

// serverErrorMessage probes the error shapes the backend emits: FastAPI's
// {"detail": "..."} and the envelope {"error": {"message": "..."}}.
func serverErrorMessage(raw []byte) string {
	var probe struct {
		Detail string `json:"detail"`
		Error  *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil {
		if probe.Detail != "" {
			return probe.Detail
		}
		if probe.Error != nil && probe.Error.Message != "" {
			return probe.Error.Message
		}
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return "request rejected"
}
