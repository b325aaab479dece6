package jsonrpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

const Version = "2.0"

// Standard and widely used server error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeServerError    = -32000
	CodeLimitExceeded  = -32005
)

var (
	ErrParse      = errors.New("parse error")
	ErrEmptyBatch = errors.New("empty batch")
)

// InternalErrorResponse is written when a response cannot be encoded.
const InternalErrorResponse = `{"jsonrpc":"2.0","id":null,"error":{"code":-32603,"message":"internal error"}}`

type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Traced reports whether the request submits a transaction or executes a call.
func (r *Request) Traced() bool {
	return r.Method == "eth_sendTransaction" || r.Method == "eth_call"
}

// ParamsArray decodes positional params. Missing params decode to an empty slice.
func (r *Request) ParamsArray() ([]json.RawMessage, error) {
	if len(bytes.TrimSpace(r.Params)) == 0 || bytes.Equal(bytes.TrimSpace(r.Params), []byte("null")) {
		return []json.RawMessage{}, nil
	}
	var params []json.RawMessage
	if err := json.Unmarshal(r.Params, &params); err != nil {
		return nil, fmt.Errorf("params must be an array: %w", err)
	}
	return params, nil
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

func (r *Response) MarshalJSON() ([]byte, error) {
	type alias Response
	out := alias(*r)
	if len(out.ID) == 0 {
		out.ID = json.RawMessage("null")
	}
	if out.JSONRPC == "" {
		out.JSONRPC = Version
	}
	return json.Marshal(out)
}

func NewResult(id json.RawMessage, result any) (*Response, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result: %w", err)
	}
	return &Response{JSONRPC: Version, ID: id, Result: data}, nil
}

func NewError(id json.RawMessage, code int, message string) *Response {
	return &Response{
		JSONRPC: Version,
		ID:      id,
		Error:   &Error{Code: code, Message: message},
	}
}

// DecodeRequest decodes a single request object. Anything that is not valid
// JSON yields ErrParse.
func DecodeRequest(data []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("invalid request: %w", err)
		}
		return nil, fmt.Errorf("%w: %w", ErrParse, err)
	}
	return &req, nil
}

// PeekID extracts the id of a request that failed to decode, if any.
func PeekID(data []byte) json.RawMessage {
	var envelope struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil
	}
	return envelope.ID
}

// IsBatch reports whether the trimmed payload is a JSON array.
func IsBatch(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) > 0 && trimmed[0] == '['
}
