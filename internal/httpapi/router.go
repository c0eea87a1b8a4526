package httpapi

import (
	"net/http"

	"github.com/turbobackend/mcpbridge/internal/runtimewire"
)

type handlers struct {
	runtime *runtimewire.Runtime
}

func NewRouter(runtime *runtimewire.Runtime) http.Handler {
	h := &handlers{runtime: runtime}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /mcp", h.handleMCP)
	return mux
}
