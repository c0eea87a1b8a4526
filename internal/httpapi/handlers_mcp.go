package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/turbobackend/mcpbridge/internal/keyauth"
	"github.com/turbobackend/mcpbridge/internal/relay"
	"github.com/turbobackend/mcpbridge/jobqueue"
	"github.com/turbobackend/mcpbridge/ledger"
	"github.com/turbobackend/mcpbridge/protocol"
	"github.com/turbobackend/mcpbridge/ssestream"
	"github.com/turbobackend/mcpbridge/tooling/catalog"
)

type toolListResult struct {
	Tools []catalog.Tool `json:"tools"`
}

// handleMCP is the protocol front end: it validates the envelope, answers
// tools/list synchronously, and turns tools/call into a ledger row, a job
// dispatch, and a relayed stream session.
func (h *handlers) handleMCP(w http.ResponseWriter, r *http.Request) {
	if !h.ensureRuntime(w) {
		return
	}
	logger := h.runtime.Logger

	var (
		request   protocol.Request
		streaming bool
	)
	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("mcp handler panic", slog.Any("panic", recovered))
			if !streaming {
				writeEnvelope(w, protocol.NewError(request.ID, protocol.CodeInternalError, "Internal error"))
			}
		}
	}()

	if err := decodeEnvelope(r, &request); err != nil {
		writeEnvelope(w, protocol.NewError(nil, protocol.CodeInvalidRequest, err.Error()))
		return
	}

	if request.Version != protocol.Version {
		writeEnvelope(w, protocol.NewError(request.ID, protocol.CodeInvalidRequest, "Invalid JSON-RPC version"))
		return
	}
	if request.Method == "" {
		writeEnvelope(w, protocol.NewError(request.ID, protocol.CodeInvalidRequest, "Missing method"))
		return
	}

	switch request.Method {
	case protocol.MethodToolsList:
		writeEnvelope(w, protocol.NewResult(request.ID, toolListResult{Tools: catalog.Tools()}))

	case protocol.MethodToolsCall:
		h.handleToolCall(w, r, request, &streaming)

	default:
		writeEnvelope(w, protocol.NewError(request.ID, protocol.CodeMethodNotFound, "Method not found: "+request.Method))
	}
}

// handleToolCall runs the call method end to end. Once the stream session is
// open, outcomes travel as frames; no envelope is written on this response
// afterwards.
func (h *handlers) handleToolCall(w http.ResponseWriter, r *http.Request, request protocol.Request, streaming *bool) {
	logger := h.runtime.Logger

	if request.Params == nil || request.Params.Name == "" {
		writeEnvelope(w, protocol.NewError(request.ID, protocol.CodeInvalidParams, "Missing tool name"))
		return
	}

	toolName := request.Params.Name
	arguments := request.Params.Arguments
	if arguments == nil {
		arguments = map[string]any{}
	}
	identity, _ := keyauth.FromContext(r.Context())

	requestID := uuid.NewString()
	streamID := uuid.NewString()
	logger = logger.With(
		slog.String("request_id", requestID),
		slog.String("tool", toolName),
	)

	serializedArgs, err := json.Marshal(arguments)
	if err != nil {
		logger.Error("serialize tool arguments", slog.Any("error", err))
		writeEnvelope(w, protocol.NewError(request.ID, protocol.CodeInternalError, "Internal error"))
		return
	}

	record := ledger.Record{
		RequestID: requestID,
		KeyID:     identity.KeyID,
		ToolName:  toolName,
		Params:    string(serializedArgs),
		Status:    ledger.StatusPending,
		CreatedAt: time.Now().Unix(),
	}
	if err := h.runtime.Ledger.Insert(r.Context(), record); err != nil {
		logger.Error("insert request record", slog.Any("error", err))
		writeEnvelope(w, protocol.NewError(request.ID, protocol.CodeInternalError, "Internal error: Failed to create request record"))
		return
	}

	emitter := ssestream.NewEmitter(w)
	if err := emitter.Open(); err != nil {
		logger.Error("open stream session", slog.Any("error", err))
		h.markFailed(r, logger, requestID)
		writeEnvelope(w, protocol.NewError(request.ID, protocol.CodeInternalError, "Internal error"))
		return
	}
	*streaming = true

	if err := emitter.SendLiveness(); err != nil {
		logger.Error("emit liveness frame", slog.Any("error", err))
		h.markFailed(r, logger, requestID)
		emitter.Close()
		return
	}

	message := jobqueue.Message{
		ProjectID: identity.ProjectID,
		UserID:    identity.UserID,
		RequestID: requestID,
		ToolName:  toolName,
		Params:    arguments,
		StreamID:  streamID,
	}
	queueName := jobqueue.QueueForTool(toolName)

	if err := h.runtime.Dispatcher.Enqueue(r.Context(), queueName, message, streamID); err != nil {
		logger.Error("enqueue job", slog.Any("error", err), slog.String("queue", queueName))
		h.failDispatched(r, logger, emitter, request.ID, requestID, "Failed to queue job")
		return
	}

	subscription, err := h.runtime.Broker.Subscribe(r.Context(), streamID)
	if err != nil {
		logger.Error("subscribe stream channel", slog.Any("error", err))
		h.failDispatched(r, logger, emitter, request.ID, requestID, "Failed to subscribe to job updates")
		return
	}

	h.runtime.Relay.Run(r.Context(), subscription, relay.Session{
		RequestID: requestID,
		CallID:    request.ID,
		Emitter:   emitter,
	})
}

// markFailed moves an inserted ledger row to error so a call that never
// produced a stream outcome is not left pending.
func (h *handlers) markFailed(r *http.Request, logger *slog.Logger, requestID string) {
	if err := h.runtime.Ledger.UpdateStatus(r.Context(), requestID, ledger.StatusError); err != nil {
		logger.Error("update request status", slog.Any("error", err))
	}
}

// failDispatched finishes a call whose stream is already open: the ledger
// row moves to error and the only further frame is one terminal error
// result.
func (h *handlers) failDispatched(r *http.Request, logger *slog.Logger, emitter *ssestream.Emitter, callID json.RawMessage, requestID, reason string) {
	h.markFailed(r, logger, requestID)

	response := protocol.NewResult(callID, protocol.NewToolResult(reason, true))
	if err := emitter.SendTerminal(response); err != nil {
		logger.Error("emit terminal frame", slog.Any("error", err))
	}
	emitter.Close()
}

func (h *handlers) ensureRuntime(w http.ResponseWriter) bool {
	if h.runtime == nil || h.runtime.Ledger == nil || h.runtime.Dispatcher == nil || h.runtime.Broker == nil || h.runtime.Relay == nil || h.runtime.Logger == nil {
		writeEnvelope(w, protocol.NewError(nil, protocol.CodeInternalError, "Internal error: runtime dependencies are not initialized"))
		return false
	}
	return true
}
