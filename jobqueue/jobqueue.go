// Package jobqueue defines the contract for handing tool invocations to the
// asynchronous execution substrate. Dispatch failure is always recoverable
// at the call level: the front end surfaces it as a terminal error outcome
// and never retries.
package jobqueue

import (
	"context"
	"errors"
	"strings"
	"unicode"
)

var ErrQueueUnavailable = errors.New("job queue is unavailable")

// Message is the unit of work handed to the substrate. Immutable once
// dispatched; the request id ties it back to the ledger row and the stream
// id names the broadcast channel workers report on.
type Message struct {
	ProjectID string         `json:"projectId"`
	UserID    string         `json:"userId"`
	RequestID string         `json:"correlationId"`
	ToolName  string         `json:"toolName"`
	Params    map[string]any `json:"params"`
	StreamID  string         `json:"streamId"`
}

// Dispatcher enqueues one job on a named queue.
type Dispatcher interface {
	Enqueue(ctx context.Context, queueName string, message Message, streamID string) error
}

// queueOverrides pins the production tools to their worker queues. Tools not
// listed fall back to the naming convention below.
var queueOverrides = map[string]string{
	"spin_up_new_backend_project": "spin-up-project",
	"modifyProject":               "modify-code",
}

// QueueForTool maps a tool name to its worker queue: explicit override when
// one exists, otherwise the kebab-case form of the tool name.
func QueueForTool(toolName string) string {
	if queue, ok := queueOverrides[toolName]; ok {
		return queue
	}
	return kebabCase(toolName)
}

func kebabCase(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)

	previousDash := true
	for _, r := range name {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r):
			if !previousDash {
				b.WriteByte('-')
				previousDash = true
			}
		case unicode.IsUpper(r):
			if !previousDash {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			previousDash = false
		default:
			b.WriteRune(r)
			previousDash = false
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
