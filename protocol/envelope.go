// Package protocol defines the JSON-RPC 2.0 envelope types and error codes
// exchanged with MCP callers, plus the streamed notification shapes.
package protocol

import "encoding/json"

const Version = "2.0"

const (
	MethodToolsList = "tools/list"
	MethodToolsCall = "tools/call"
	MethodProgress  = "notifications/progress"
)

const (
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
)

// Request is one inbound call envelope. The ID is kept opaque: it is echoed
// back verbatim in responses and never interpreted.
type Request struct {
	Version string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  *CallParams     `json:"params,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
}

// CallParams carries the tool name and arguments of a tools/call request.
type CallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// Response is one outbound envelope. Exactly one of Result or Error is set.
// A nil ID marshals as the JSON null id required for unidentifiable requests.
type Response struct {
	Version string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *ErrorObject    `json:"error,omitempty"`
}

type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// ToolResult is the result payload of a completed tool call. IsError marks a
// tool-level failure, distinct from a protocol-level error envelope.
type ToolResult struct {
	Content any  `json:"content"`
	IsError bool `json:"isError"`
}

// ProgressNotification is the streamed progress shape relayed to callers
// while a tool call is in flight.
type ProgressNotification struct {
	Version string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	Params  ProgressParams `json:"params"`
}

type ProgressParams struct {
	Progress float64 `json:"progress"`
	Message  string  `json:"message"`
}
