package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	// DefaultBaseURL is the Anthropic messages endpoint.
	DefaultBaseURL    = "https://api.anthropic.com/v1/messages"
	defaultAPIVersion = "2023-06-01"
)

// Message is one turn in a messages request. The system prompt is not a
// message; it travels in the top-level System field of the Request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request represents the messages request payload.
type Request struct {
	Model       string    `json:"model"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature *float32  `json:"temperature,omitempty"`
	TopP        *float32  `json:"top_p,omitempty"`
	Stream      bool      `json:"stream"`
}

// ContentBlock is one block of a successful response's content array.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// SuccessfulResponse represents the API's successful response.
type SuccessfulResponse struct {
	Content    []ContentBlock `json:"content"`
	StopReason string         `json:"stop_reason"`
	Model      string         `json:"model"`
}

// ErrorResponse represents the API's error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// APIError is returned when the backend answers with a structured error body
// (or any non-success status).
type APIError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// DecodeError is returned when a success payload does not match the expected
// shape.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return "failed to decode response: " + e.Reason
}

// Client is a minimal Anthropic messages API client. Authentication uses the
// x-api-key header rather than a bearer token.
type Client struct {
	httpClient *http.Client
	apiKey     string
	APIVersion string
	BaseURL    string
}

// NewClient initializes and returns a new API client.
func NewClient(apiKey string, baseURL string, apiVersion ...string) *Client {
	version := defaultAPIVersion
	if len(apiVersion) > 0 {
		version = apiVersion[0]
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{},
		apiKey:     apiKey,
		BaseURL:    baseURL,
		APIVersion: version,
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", c.APIVersion)
	req.Header.Set("Content-Type", "application/json")
}

// Complete sends a messages request and returns the response. Transport
// failures come back unwrapped; backend error bodies come back as *APIError;
// undecodable success payloads come back as *DecodeError.
func (c *Client) Complete(ctx context.Context, req *Request) (*SuccessfulResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	req_, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req_)

	resp, err := c.httpClient.Do(req_)
	if err != nil {
		return nil, err
	}
	defer func(body io.ReadCloser) {
		_ = body.Close()
	}(resp.Body)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		var errorResp ErrorResponse
		if err := json.Unmarshal(respBody, &errorResp); err != nil || errorResp.Error.Message == "" {
			return nil, &APIError{StatusCode: resp.StatusCode, Message: string(respBody)}
		}
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Type:       errorResp.Error.Type,
			Message:    errorResp.Error.Message,
		}
	}

	var successResp SuccessfulResponse
	if err := json.Unmarshal(respBody, &successResp); err != nil {
		return nil, &DecodeError{Reason: err.Error()}
	}
	return &successResp, nil
}
