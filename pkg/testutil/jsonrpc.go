package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// RPCHandlerFunc answers a single JSON-RPC method call
type RPCHandlerFunc func(params []json.RawMessage) (interface{}, error)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// JSONRPCServer is an in-process JSON-RPC 2.0 endpoint with pluggable methods
type JSONRPCServer struct {
	*httptest.Server

	mu       sync.Mutex
	handlers map[string]RPCHandlerFunc
	calls    map[string]int
}

func NewJSONRPCServer(t *testing.T) *JSONRPCServer {
	s := &JSONRPCServer{
		handlers: make(map[string]RPCHandlerFunc),
		calls:    make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serveHTTP))
	t.Cleanup(s.Close)
	return s
}

func (s *JSONRPCServer) Handle(method string, fn RPCHandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[method] = fn
}

// Calls returns how many times method was invoked
func (s *JSONRPCServer) Calls(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[method]
}

func (s *JSONRPCServer) serveHTTP(w http.ResponseWriter, r *http.Request) {
	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	handler, ok := s.handlers[req.Method]
	s.calls[req.Method]++
	s.mu.Unlock()

	resp := rpcResponse{JSONRPC: "2.0", ID: req.ID}
	if !ok {
		resp.Error = &rpcError{Code: -32601, Message: fmt.Sprintf("method %s not found", req.Method)}
	} else if result, err := handler(req.Params); err != nil {
		resp.Error = &rpcError{Code: -32000, Message: err.Error()}
	} else {
		resp.Result = result
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
