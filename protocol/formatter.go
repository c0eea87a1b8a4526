package protocol

import "encoding/json"

// NewResult wraps a result value in a success envelope addressed to id.
func NewResult(id json.RawMessage, result any) Response {
	return Response{
		Version: Version,
		ID:      id,
		Result:  result,
	}
}

// NewError builds a protocol-level error envelope. Pass a nil id when the
// request carried none; it marshals as null.
func NewError(id json.RawMessage, code int, message string) Response {
	return Response{
		Version: Version,
		ID:      id,
		Error: &ErrorObject{
			Code:    code,
			Message: message,
		},
	}
}

// NewToolResult wraps tool output as a result-level payload. isError signals
// a failed tool execution without making the envelope itself an error.
func NewToolResult(content any, isError bool) ToolResult {
	return ToolResult{
		Content: content,
		IsError: isError,
	}
}

// NewProgress builds one progress notification frame payload.
func NewProgress(message string, progress float64) ProgressNotification {
	return ProgressNotification{
		Version: Version,
		Method:  MethodProgress,
		Params: ProgressParams{
			Progress: progress,
			Message:  message,
		},
	}
}
