package httpapi_test

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/turbobackend/mcpbridge/internal/httpapi"
	"github.com/turbobackend/mcpbridge/internal/relay"
	"github.com/turbobackend/mcpbridge/internal/runtimewire"
	"github.com/turbobackend/mcpbridge/jobqueue"
	jobinmem "github.com/turbobackend/mcpbridge/jobqueue/inmem"
	"github.com/turbobackend/mcpbridge/ledger"
	"github.com/turbobackend/mcpbridge/protocol"
	pubsubinmem "github.com/turbobackend/mcpbridge/pubsub/inmem"
)

type memoryLedger struct {
	mu         sync.Mutex
	records    map[string]ledger.Record
	insertErr  error
	inserted   []string
	lastStatus map[string]ledger.Status
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		records:    map[string]ledger.Record{},
		lastStatus: map[string]ledger.Status{},
	}
}

func (m *memoryLedger) Insert(_ context.Context, record ledger.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.insertErr != nil {
		return m.insertErr
	}
	if _, exists := m.records[record.RequestID]; exists {
		return ledger.ErrDuplicateRequest
	}
	m.records[record.RequestID] = record
	m.inserted = append(m.inserted, record.RequestID)
	m.lastStatus[record.RequestID] = record.Status
	return nil
}

func (m *memoryLedger) UpdateStatus(_ context.Context, requestID string, status ledger.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, exists := m.lastStatus[requestID]
	if !exists {
		return ledger.ErrRequestNotFound
	}
	if current.Terminal() {
		return ledger.ErrStatusFinal
	}
	m.lastStatus[requestID] = status
	return nil
}

func (m *memoryLedger) rowCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *memoryLedger) onlyStatus(t *testing.T) (string, ledger.Status) {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.inserted) != 1 {
		t.Fatalf("ledger row count mismatch: got=%d want=1", len(m.inserted))
	}
	requestID := m.inserted[0]
	return requestID, m.lastStatus[requestID]
}

type failingDispatcher struct{}

func (failingDispatcher) Enqueue(context.Context, string, jobqueue.Message, string) error {
	return errors.New("queue backend unreachable")
}

type testHarness struct {
	server     *httptest.Server
	handler    http.Handler
	ledger     *memoryLedger
	queue      *jobinmem.Queue
	broker     *pubsubinmem.Broker
	dispatcher jobqueue.Dispatcher
}

func newHarness(t *testing.T, dispatcher jobqueue.Dispatcher) *testHarness {
	t.Helper()

	memLedger := newMemoryLedger()
	queue := jobinmem.New()
	broker := pubsubinmem.New()
	if dispatcher == nil {
		dispatcher = queue
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	runtime := &runtimewire.Runtime{
		Ledger:     memLedger,
		Dispatcher: dispatcher,
		Broker:     broker,
		Relay:      relay.New(memLedger, logger, 0),
		Logger:     logger,
	}

	handler := httpapi.NewRouter(runtime)
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return &testHarness{
		server:     server,
		handler:    handler,
		ledger:     memLedger,
		queue:      queue,
		broker:     broker,
		dispatcher: dispatcher,
	}
}

func (h *testHarness) postEnvelope(t *testing.T, body string) protocol.Response {
	t.Helper()

	response, err := h.server.Client().Post(h.server.URL+"/mcp", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post envelope: %v", err)
	}
	defer response.Body.Close()

	if got := response.Header.Get("Content-Type"); !strings.Contains(got, "application/json") {
		t.Fatalf("content type mismatch: got=%q want JSON", got)
	}

	var decoded protocol.Response
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	return decoded
}

func TestEnvelopeMissingVersion(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	decoded := h.postEnvelope(t, `{"method":"tools/list","id":"call-1"}`)

	if decoded.Error == nil || decoded.Error.Code != protocol.CodeInvalidRequest {
		t.Fatalf("error mismatch: got=%+v want code %d", decoded.Error, protocol.CodeInvalidRequest)
	}
	if h.ledger.rowCount() != 0 {
		t.Fatalf("ledger row created for invalid envelope")
	}
}

func TestEnvelopeMissingMethod(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	decoded := h.postEnvelope(t, `{"jsonrpc":"2.0","id":"call-1"}`)

	if decoded.Error == nil || decoded.Error.Code != protocol.CodeInvalidRequest {
		t.Fatalf("error mismatch: got=%+v want code %d", decoded.Error, protocol.CodeInvalidRequest)
	}
}

func TestMethodNotFound(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	decoded := h.postEnvelope(t, `{"jsonrpc":"2.0","method":"tools/destroy","id":"call-1"}`)

	if decoded.Error == nil || decoded.Error.Code != protocol.CodeMethodNotFound {
		t.Fatalf("error mismatch: got=%+v want code %d", decoded.Error, protocol.CodeMethodNotFound)
	}
}

func TestCallMissingToolName(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	decoded := h.postEnvelope(t, `{"jsonrpc":"2.0","method":"tools/call","params":{},"id":"call-1"}`)

	if decoded.Error == nil || decoded.Error.Code != protocol.CodeInvalidParams {
		t.Fatalf("error mismatch: got=%+v want code %d", decoded.Error, protocol.CodeInvalidParams)
	}
	if h.ledger.rowCount() != 0 {
		t.Fatalf("ledger row created for invalid params")
	}
}

func TestToolsListCatalogRoundTrip(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	decoded := h.postEnvelope(t, `{"jsonrpc":"2.0","method":"tools/list","id":"call-1"}`)

	if decoded.Error != nil {
		t.Fatalf("unexpected error: %+v", decoded.Error)
	}

	raw, err := json.Marshal(decoded.Result)
	if err != nil {
		t.Fatalf("marshal result: %v", err)
	}
	var result struct {
		Tools []struct {
			Name string `json:"name"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("unmarshal tools: %v", err)
	}
	if len(result.Tools) != 2 {
		t.Fatalf("tool count mismatch: got=%d want=2", len(result.Tools))
	}
	if result.Tools[0].Name != "spin_up_new_backend_project" || result.Tools[1].Name != "modifyProject" {
		t.Fatalf("tool names mismatch: got=%+v", result.Tools)
	}
}

func TestLedgerInsertFailureAbortsBeforeDispatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)
	h.ledger.insertErr = errors.New("disk full")

	decoded := h.postEnvelope(t, `{"jsonrpc":"2.0","method":"tools/call","params":{"name":"modifyProject","arguments":{"modificationRequest":"x"}},"id":"call-1"}`)

	if decoded.Error == nil || decoded.Error.Code != protocol.CodeInternalError {
		t.Fatalf("error mismatch: got=%+v want code %d", decoded.Error, protocol.CodeInternalError)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := h.queue.Dequeue(ctx, "modify-code"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("job enqueued despite insert failure: %v", err)
	}
}

// Dispatch failure: the stream is already open, so the outcome arrives as a
// terminal error frame and the ledger row ends in error.
func TestDispatchFailureStreamsTerminalError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, failingDispatcher{})

	response, err := h.server.Client().Post(
		h.server.URL+"/mcp",
		"application/json",
		strings.NewReader(`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"modifyProject","arguments":{"modificationRequest":"x"}},"id":"call-9"}`),
	)
	if err != nil {
		t.Fatalf("post envelope: %v", err)
	}
	defer response.Body.Close()

	if got := response.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type mismatch: got=%q want=text/event-stream", got)
	}

	frames := readFrames(t, response.Body, 2)
	if frames[0].id != 1 || frames[0].data != "" {
		t.Fatalf("liveness frame mismatch: got=%+v", frames[0])
	}
	if frames[1].id != 2 {
		t.Fatalf("terminal frame id mismatch: got=%d want=2", frames[1].id)
	}
	if !strings.Contains(frames[1].data, `"isError":true`) || !strings.Contains(frames[1].data, "Failed to queue job") {
		t.Fatalf("terminal frame mismatch: %q", frames[1].data)
	}
	if !strings.Contains(frames[1].data, `"id":"call-9"`) {
		t.Fatalf("terminal frame not addressed to caller id: %q", frames[1].data)
	}

	if _, err := readOneFrame(bufio.NewReader(response.Body)); !errors.Is(err, io.EOF) {
		t.Fatalf("stream continued after terminal frame: %v", err)
	}

	_, status := h.ledger.onlyStatus(t)
	if status != ledger.StatusError {
		t.Fatalf("ledger status mismatch: got=%s want=%s", status, ledger.StatusError)
	}
}

// nonFlushingWriter hides the recorder's Flush so the stream session cannot
// open.
type nonFlushingWriter struct {
	recorder *httptest.ResponseRecorder
}

func (w *nonFlushingWriter) Header() http.Header         { return w.recorder.Header() }
func (w *nonFlushingWriter) Write(p []byte) (int, error) { return w.recorder.Write(p) }
func (w *nonFlushingWriter) WriteHeader(code int)        { w.recorder.WriteHeader(code) }

func TestStreamOpenFailureMarksLedgerError(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	request := httptest.NewRequest(
		http.MethodPost,
		"/mcp",
		strings.NewReader(`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"modifyProject","arguments":{"modificationRequest":"x"}},"id":"call-4"}`),
	)
	recorder := httptest.NewRecorder()
	h.handler.ServeHTTP(&nonFlushingWriter{recorder: recorder}, request)

	var decoded protocol.Response
	if err := json.NewDecoder(recorder.Body).Decode(&decoded); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if decoded.Error == nil || decoded.Error.Code != protocol.CodeInternalError {
		t.Fatalf("error mismatch: got=%+v want code %d", decoded.Error, protocol.CodeInternalError)
	}

	_, status := h.ledger.onlyStatus(t)
	if status != ledger.StatusError {
		t.Fatalf("ledger status mismatch: got=%s want=%s", status, ledger.StatusError)
	}
}

// Unknown tool names proceed: presence is validated, existence is the
// worker fleet's concern.
func TestUnknownToolProceedsToDispatch(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	request, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		h.server.URL+"/mcp",
		strings.NewReader(`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"unknown_tool"},"id":"call-2"}`),
	)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := h.server.Client().Do(request)
	if err != nil {
		t.Fatalf("post envelope: %v", err)
	}
	defer response.Body.Close()

	if got := response.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content type mismatch: got=%q want=text/event-stream", got)
	}

	frames := readFrames(t, response.Body, 1)
	if frames[0].data != "" {
		t.Fatalf("liveness frame mismatch: got=%+v", frames[0])
	}

	dequeueCtx, dequeueCancel := context.WithTimeout(context.Background(), time.Second)
	defer dequeueCancel()
	job, err := h.queue.Dequeue(dequeueCtx, "unknown-tool")
	if err != nil {
		t.Fatalf("Dequeue() failed: %v", err)
	}
	if job.Message.ToolName != "unknown_tool" {
		t.Fatalf("job tool mismatch: got=%q", job.Message.ToolName)
	}

	_, status := h.ledger.onlyStatus(t)
	if status != ledger.StatusPending {
		t.Fatalf("ledger status mismatch: got=%s want=%s", status, ledger.StatusPending)
	}
}

// Full success flow: a worker consumes the dispatched job and publishes one
// progress message and a terminal message on the stream channel.
func TestCallToolSuccessFlow(t *testing.T) {
	t.Parallel()

	h := newHarness(t, nil)

	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()
	go func() {
		job, err := h.queue.Dequeue(workerCtx, "spin-up-project")
		if err != nil {
			return
		}
		// The relay subscribes after dispatch; wait for it to attach.
		for h.broker.SubscriberCount(job.StreamID) == 0 {
			select {
			case <-workerCtx.Done():
				return
			case <-time.After(5 * time.Millisecond):
			}
		}
		_ = h.broker.Publish(workerCtx, job.StreamID, []byte(`{"message":"Creating project","progress":10}`))
		_ = h.broker.Publish(workerCtx, job.StreamID, []byte(`{"complete":true,"isError":false,"content":"done"}`))
	}()

	response, err := h.server.Client().Post(
		h.server.URL+"/mcp",
		"application/json",
		strings.NewReader(`{"jsonrpc":"2.0","method":"tools/call","params":{"name":"spin_up_new_backend_project","arguments":{"projectName":"demo"}},"id":"call-3"}`),
	)
	if err != nil {
		t.Fatalf("post envelope: %v", err)
	}
	defer response.Body.Close()

	frames := readFrames(t, response.Body, 3)
	if frames[0].data != "" {
		t.Fatalf("liveness frame mismatch: got=%+v", frames[0])
	}
	if !strings.Contains(frames[1].data, `"progress":10`) || !strings.Contains(frames[1].data, "Creating project") {
		t.Fatalf("progress frame mismatch: %q", frames[1].data)
	}
	if !strings.Contains(frames[2].data, `"content":"done"`) || !strings.Contains(frames[2].data, `"id":"call-3"`) {
		t.Fatalf("terminal frame mismatch: %q", frames[2].data)
	}
	for i := range frames {
		if frames[i].id != int64(i+1) {
			t.Fatalf("frame id mismatch at %d: got=%d want=%d", i, frames[i].id, i+1)
		}
	}

	waitForStatus(t, h.ledger, ledger.StatusSuccess)
}

func waitForStatus(t *testing.T, memLedger *memoryLedger, want ledger.Status) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, status := peekOnlyStatus(memLedger); status == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	_, status := peekOnlyStatus(memLedger)
	t.Fatalf("ledger status mismatch: got=%s want=%s", status, want)
}

func peekOnlyStatus(memLedger *memoryLedger) (string, ledger.Status) {
	memLedger.mu.Lock()
	defer memLedger.mu.Unlock()
	if len(memLedger.inserted) != 1 {
		return "", ""
	}
	requestID := memLedger.inserted[0]
	return requestID, memLedger.lastStatus[requestID]
}

type sseFrame struct {
	id   int64
	data string
}

func readFrames(t *testing.T, body io.Reader, count int) []sseFrame {
	t.Helper()

	reader := bufio.NewReader(body)
	frames := make([]sseFrame, 0, count)
	for len(frames) < count {
		frame, err := readOneFrame(reader)
		if err != nil {
			t.Fatalf("read frame %d: %v", len(frames), err)
		}
		frames = append(frames, frame)
	}
	return frames
}

func readOneFrame(reader *bufio.Reader) (sseFrame, error) {
	var (
		frame     sseFrame
		seenField bool
	)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return sseFrame{}, err
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if seenField {
				return frame, nil
			}
			continue
		}
		if value, ok := strings.CutPrefix(line, "id: "); ok {
			id, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return sseFrame{}, err
			}
			frame.id = id
			seenField = true
			continue
		}
		if value, ok := strings.CutPrefix(line, "data: "); ok {
			frame.data = value
			seenField = true
			continue
		}
		if line == "data:" {
			frame.data = ""
			seenField = true
		}
	}
}
