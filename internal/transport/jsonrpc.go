package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// JSON-RPC 2.0 error codes.
const (
	ErrParseCode      = -32700
	ErrInvalidReq     = -32600
	ErrMethodNotFound = -32601
	ErrInvalidParams  = -32602
	ErrInternal       = -32603

	// ErrDomain carries ledger rule violations; the error data holds the
	// stable code.
	ErrDomain = -32000
)

// MaxRequestBytes bounds a single JSON-RPC request body.
const MaxRequestBytes = 1 << 20

var (
	errParse          = errors.New("parse error")
	errInvalidRequest = errors.New("invalid request")
)

// Request represents a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      any             `json:"id,omitempty"`
}

// Response represents a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
	ID      any    `json:"id"`
}

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// ParseRequest decodes one request. Decode failures wrap errParse; well-formed
// JSON that is not a valid request wraps errInvalidRequest and still returns
// the decoded request so its id can be echoed.
func ParseRequest(body io.Reader) (Request, error) {
	var req Request
	if err := json.NewDecoder(io.LimitReader(body, MaxRequestBytes)).Decode(&req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", errParse, err)
	}
	switch {
	case req.JSONRPC != "2.0":
		return req, fmt.Errorf("%w: jsonrpc must be \"2.0\"", errInvalidRequest)
	case req.Method == "":
		return req, fmt.Errorf("%w: missing method", errInvalidRequest)
	case !validID(req.ID):
		return Request{}, fmt.Errorf("%w: id must be a string, number or null", errInvalidRequest)
	}
	return req, nil
}

func validID(id any) bool {
	switch id.(type) {
	case nil, string, float64:
		return true
	default:
		return false
	}
}

// WriteResult writes a JSON-RPC success response.
func WriteResult(w http.ResponseWriter, id any, result any) {
	writeJSON(w, Response{JSONRPC: "2.0", Result: result, ID: id})
}

// WriteError writes a JSON-RPC error response. Errors still travel with 200 OK.
func WriteError(w http.ResponseWriter, id any, code int, message string, data any) {
	writeJSON(w, Response{
		JSONRPC: "2.0",
		Error:   &Error{Code: code, Message: message, Data: data},
		ID:      id,
	})
}

func writeJSON(w http.ResponseWriter, payload Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(payload)
}
