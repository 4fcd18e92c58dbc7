package voiceai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type httpClient struct {
	baseURL string
	apiKey  string
	hc      *http.Client
}

// NewHTTPClient builds the production client. cfg.Timeout is applied to the
// underlying http.Client, so every call is bounded even when the caller's
// context has no deadline of its own.
func NewHTTPClient(cfg Config) Client {
	return &httpClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		hc:      &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *httpClient) StartSession(ctx context.Context, req StartSessionRequest) (StartSessionResponse, error) {
	var out StartSessionResponse
	if err := c.do(ctx, http.MethodPost, "/call", req, &out); err != nil {
		return StartSessionResponse{}, err
	}
	if out.SessionID == "" {
		return StartSessionResponse{}, &VendorError{Kind: ErrKindDecode, Op: "start_session", Message: "response missing session id"}
	}
	return out, nil
}

func (c *httpClient) GetAssistant(ctx context.Context, assistantID string) (Assistant, error) {
	var out Assistant
	if err := c.do(ctx, http.MethodGet, "/assistant/"+assistantID, nil, &out); err != nil {
		return Assistant{}, err
	}
	return out, nil
}

func (c *httpClient) UpdateAssistant(ctx context.Context, assistantID string, req UpdateAssistantRequest) (Assistant, error) {
	var out Assistant
	if err := c.do(ctx, http.MethodPatch, "/assistant/"+assistantID, req, &out); err != nil {
		return Assistant{}, err
	}
	return out, nil
}

func (c *httpClient) do(ctx context.Context, method, path string, in, out any) error {
	op := method + " " + path

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("voiceai: encode %s: %w", op, err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("voiceai: build %s: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		kind := ErrKindUnavailable
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			kind = ErrKindTimeout
		}
		return &VendorError{Kind: kind, Op: op, Message: err.Error(), cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		kind := ErrKindRejected
		if resp.StatusCode >= 500 {
			kind = ErrKindUnavailable
		}
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &VendorError{Kind: kind, StatusCode: resp.StatusCode, Op: op, Message: string(msg)}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &VendorError{Kind: ErrKindDecode, StatusCode: resp.StatusCode, Op: op, Message: err.Error(), cause: err}
		}
	}
	return nil
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
