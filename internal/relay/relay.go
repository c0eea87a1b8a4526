// Package relay drains the broadcast channel of one tool invocation and
// drives its stream session: progress messages become progress frames, the
// terminal message finalizes the ledger row and ends the stream.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/turbobackend/mcpbridge/ledger"
	"github.com/turbobackend/mcpbridge/protocol"
	"github.com/turbobackend/mcpbridge/pubsub"
	"github.com/turbobackend/mcpbridge/ssestream"
)

// Session binds one correlation id and the caller's envelope id to an open
// stream emitter. Owned by a single call for its whole duration.
type Session struct {
	RequestID string
	CallID    json.RawMessage
	Emitter   *ssestream.Emitter
}

// workerMessage is the published-message schema on the broadcast channel:
// either a progress shape or, when Complete is set, the terminal shape.
type workerMessage struct {
	Message  string   `json:"message"`
	Progress *float64 `json:"progress,omitempty"`
	Complete bool     `json:"complete"`
	IsError  bool     `json:"isError"`
	Content  any      `json:"content"`
}

// releaseTimeout bounds the unsubscribe call during session release.
const releaseTimeout = 5 * time.Second

type Relay struct {
	ledger      ledger.Ledger
	logger      *slog.Logger
	idleTimeout time.Duration
}

// New builds a relay. idleTimeout bounds how long a session waits between
// published messages; zero disables the bound and the session lives until a
// terminal message arrives or the peer disconnects.
func New(requestLedger ledger.Ledger, logger *slog.Logger, idleTimeout time.Duration) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	return &Relay{
		ledger:      requestLedger,
		logger:      logger,
		idleTimeout: idleTimeout,
	}
}

// Run consumes sub until a terminal message, peer disconnect, or idle
// timeout, then releases the session. At most one terminal frame is emitted
// and no frame follows it; undecodable messages are discarded without
// ending the session.
func (r *Relay) Run(ctx context.Context, sub pubsub.Subscription, session Session) {
	logger := r.logger.With(slog.String("request_id", session.RequestID))

	defer func() {
		// Release must succeed on the disconnect path too, where ctx is
		// already canceled.
		releaseCtx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		if err := sub.Unsubscribe(releaseCtx); err != nil && !errors.Is(err, pubsub.ErrUnsubscribed) {
			logger.Error("unsubscribe stream channel", slog.Any("error", err))
		}
		session.Emitter.Close()
	}()

	var (
		idleTimer *time.Timer
		idleCh    <-chan time.Time
	)
	if r.idleTimeout > 0 {
		idleTimer = time.NewTimer(r.idleTimeout)
		defer idleTimer.Stop()
		idleCh = idleTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("stream closed by peer")
			return

		case <-idleCh:
			logger.Warn("stream idle timeout", slog.Duration("idle_timeout", r.idleTimeout))
			r.finalize(ctx, logger, session, "Timed out waiting for tool completion", true)
			return

		case payload, ok := <-sub.Messages():
			if !ok {
				logger.Info("stream channel closed by broker")
				return
			}

			var message workerMessage
			if err := json.Unmarshal(payload, &message); err != nil {
				logger.Error("discard undecodable stream message", slog.Any("error", err))
				continue
			}

			if message.Complete {
				r.finalize(ctx, logger, session, message.Content, message.IsError)
				return
			}

			progress := 0.0
			if message.Progress != nil {
				progress = *message.Progress
			}
			if err := session.Emitter.SendProgress(message.Message, progress); err != nil {
				logger.Error("emit progress frame", slog.Any("error", err))
				return
			}

			if idleTimer != nil {
				if !idleTimer.Stop() {
					select {
					case <-idleTimer.C:
					default:
					}
				}
				idleTimer.Reset(r.idleTimeout)
			}
		}
	}
}

// finalize advances the ledger row and emits the single terminal frame. A
// ledger failure is logged but does not withhold the terminal frame from
// the caller.
func (r *Relay) finalize(ctx context.Context, logger *slog.Logger, session Session, content any, isError bool) {
	status := ledger.StatusSuccess
	if isError {
		status = ledger.StatusError
	}
	if err := r.ledger.UpdateStatus(ctx, session.RequestID, status); err != nil {
		logger.Error("update request status", slog.Any("error", err), slog.String("status", string(status)))
	}

	response := protocol.NewResult(session.CallID, protocol.NewToolResult(content, isError))
	if err := session.Emitter.SendTerminal(response); err != nil {
		logger.Error("emit terminal frame", slog.Any("error", err))
	}
}
