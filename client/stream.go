package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/turbobackend/mcpbridge/protocol"
	"github.com/turbobackend/mcpbridge/ssestream"
)

// streamPayload covers every frame shape the bridge emits: progress
// notifications, wrapped results, plain completion objects, and error
// envelopes.
type streamPayload struct {
	Method   string                   `json:"method"`
	Params   *protocol.ProgressParams `json:"params"`
	Result   json.RawMessage          `json:"result"`
	Error    *protocol.ErrorObject    `json:"error"`
	Complete *bool                    `json:"complete"`
	IsError  bool                     `json:"isError"`
	Content  json.RawMessage          `json:"content"`
}

// consumeStream drains one framed event stream. Progress is forwarded
// immediately; the terminal result is surfaced once the stream ends. A
// recorded error envelope wins over any result; a stream that ends with
// neither fails with ErrNoResult.
func consumeStream(source io.Reader, onProgress ProgressFunc) (protocol.ToolResult, error) {
	decoder := ssestream.NewDecoder(source)

	var (
		final     *protocol.ToolResult
		streamErr error
	)

	for {
		frame, err := decoder.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return protocol.ToolResult{}, fmt.Errorf("read stream: %w", err)
		}
		if frame.Data == "" {
			// Liveness frame.
			continue
		}

		var payload streamPayload
		if err := json.Unmarshal([]byte(frame.Data), &payload); err != nil {
			return protocol.ToolResult{}, fmt.Errorf("decode stream frame %d: %w", frame.ID, err)
		}

		switch {
		case payload.Method == protocol.MethodProgress && payload.Params != nil:
			// No progress after a terminal error envelope.
			if streamErr == nil && onProgress != nil {
				onProgress(payload.Params.Message, payload.Params.Progress)
			}

		case payload.Result != nil:
			var result protocol.ToolResult
			if err := json.Unmarshal(payload.Result, &result); err != nil {
				return protocol.ToolResult{}, fmt.Errorf("decode terminal result: %w", err)
			}
			final = &result

		case payload.Complete != nil:
			result := protocol.ToolResult{IsError: payload.IsError}
			if payload.Content != nil {
				if err := json.Unmarshal(payload.Content, &result.Content); err != nil {
					return protocol.ToolResult{}, fmt.Errorf("decode terminal content: %w", err)
				}
			}
			final = &result

		case payload.Error != nil:
			streamErr = &CallError{
				Code:    payload.Error.Code,
				Message: payload.Error.Message,
			}
		}
	}

	if streamErr != nil {
		return protocol.ToolResult{}, streamErr
	}
	if final == nil {
		return protocol.ToolResult{}, ErrNoResult
	}
	return *final, nil
}
