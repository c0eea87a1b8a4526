// Package client is the caller-side counterpart of the bridge: it issues
// tool calls, relays streamed progress notifications, and resolves each
// call to exactly one final result or error.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"github.com/turbobackend/mcpbridge/protocol"
	"github.com/turbobackend/mcpbridge/tooling/catalog"
)

// ErrNoResult reports a stream that ended without a terminal frame.
var ErrNoResult = errors.New("stream ended without final result")

// CallError is a protocol-level error envelope surfaced to the caller.
type CallError struct {
	Code    int
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("call failed: %s (code %d)", e.Message, e.Code)
}

// ProgressFunc receives streamed progress notifications as they arrive.
type ProgressFunc func(message string, progress float64)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func New(baseURL, apiKey string, httpClient *http.Client) (*Client, error) {
	trimmedBaseURL := strings.TrimSpace(baseURL)
	if trimmedBaseURL == "" {
		return nil, fmt.Errorf("new client: base URL is required")
	}

	parsed, err := url.Parse(trimmedBaseURL)
	if err != nil {
		return nil, fmt.Errorf("new client: parse base URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("new client: base URL must include scheme and host")
	}

	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &Client{
		baseURL:    strings.TrimRight(trimmedBaseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: httpClient,
	}, nil
}

// incomingResponse defers result decoding so callers can pick the shape.
type incomingResponse struct {
	Version string                `json:"jsonrpc"`
	ID      json.RawMessage       `json:"id"`
	Result  json.RawMessage       `json:"result"`
	Error   *protocol.ErrorObject `json:"error"`
}

// ListTools fetches the advertised tool catalog.
func (c *Client) ListTools(ctx context.Context) ([]catalog.Tool, error) {
	envelope := protocol.Request{
		Version: protocol.Version,
		Method:  protocol.MethodToolsList,
		ID:      jsonID(uuid.NewString()),
	}

	response, err := c.post(ctx, envelope)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	incoming, err := decodeEnvelopeResponse(response)
	if err != nil {
		return nil, err
	}

	var result struct {
		Tools []catalog.Tool `json:"tools"`
	}
	if err := json.Unmarshal(incoming.Result, &result); err != nil {
		return nil, fmt.Errorf("decode tool catalog: %w", err)
	}
	return result.Tools, nil
}

// CallTool invokes one long-running tool. Progress notifications are
// forwarded to onProgress as they arrive (nil to ignore); the call resolves
// exactly once, with the terminal result or an error.
func (c *Client) CallTool(ctx context.Context, name string, arguments map[string]any, onProgress ProgressFunc) (protocol.ToolResult, error) {
	if strings.TrimSpace(name) == "" {
		return protocol.ToolResult{}, fmt.Errorf("call tool: tool name is required")
	}
	if arguments == nil {
		arguments = map[string]any{}
	}

	// Known catalog tools get their arguments checked against the
	// advertised schema before the call leaves the process. Unknown names
	// pass through; existence is the backend's concern.
	if tool, ok := catalog.Lookup(name); ok {
		if err := validateArguments(tool, arguments); err != nil {
			return protocol.ToolResult{}, err
		}
	}

	envelope := protocol.Request{
		Version: protocol.Version,
		Method:  protocol.MethodToolsCall,
		Params: &protocol.CallParams{
			Name:      name,
			Arguments: arguments,
		},
		ID: jsonID(uuid.NewString()),
	}

	response, err := c.post(ctx, envelope)
	if err != nil {
		return protocol.ToolResult{}, err
	}
	defer response.Body.Close()

	if strings.Contains(response.Header.Get("Content-Type"), "text/event-stream") {
		return consumeStream(response.Body, onProgress)
	}

	incoming, err := decodeEnvelopeResponse(response)
	if err != nil {
		return protocol.ToolResult{}, err
	}

	var result protocol.ToolResult
	if err := json.Unmarshal(incoming.Result, &result); err != nil {
		return protocol.ToolResult{}, fmt.Errorf("decode tool result: %w", err)
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, envelope protocol.Request) (*http.Response, error) {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("encode request envelope: %w", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/mcp", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	request.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}

	if response.StatusCode != http.StatusOK {
		defer response.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(response.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d: %s", response.StatusCode, strings.TrimSpace(string(body)))
	}
	return response, nil
}

func decodeEnvelopeResponse(response *http.Response) (incomingResponse, error) {
	var incoming incomingResponse
	if err := json.NewDecoder(response.Body).Decode(&incoming); err != nil {
		return incomingResponse{}, fmt.Errorf("decode response envelope: %w", err)
	}
	if incoming.Error != nil {
		return incomingResponse{}, &CallError{
			Code:    incoming.Error.Code,
			Message: incoming.Error.Message,
		}
	}
	return incoming, nil
}

func validateArguments(tool catalog.Tool, arguments map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewGoLoader(tool.InputSchema),
		gojsonschema.NewGoLoader(arguments),
	)
	if err != nil {
		return fmt.Errorf("validate arguments for %s: %w", tool.Name, err)
	}
	if result.Valid() {
		return nil
	}

	details := make([]string, 0, len(result.Errors()))
	for _, issue := range result.Errors() {
		details = append(details, issue.String())
	}
	return fmt.Errorf("invalid arguments for %s: %s", tool.Name, strings.Join(details, "; "))
}

func jsonID(id string) json.RawMessage {
	encoded, _ := json.Marshal(id)
	return encoded
}
