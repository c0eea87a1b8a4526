package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/turbobackend/mcpbridge/protocol"
)

const maxRequestBodyBytes = 1 << 20

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiErrorResponse struct {
	Error apiError `json:"error"`
}

// writeEnvelope writes one JSON-RPC response. Protocol-level errors still
// travel on HTTP 200; the envelope carries the outcome.
func writeEnvelope(w http.ResponseWriter, response protocol.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// RejectUnauthorized writes the pre-protocol 401 used by the key middleware.
func RejectUnauthorized(w http.ResponseWriter, _ *http.Request, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(apiErrorResponse{
		Error: apiError{
			Code:    "unauthorized",
			Message: err.Error(),
		},
	})
}

func decodeEnvelope(r *http.Request, dst *protocol.Request) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}

	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBodyBytes))
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}
