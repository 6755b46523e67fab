package bridge

import "encoding/json"

// JSONRPCVersion is the JSON-RPC version spoken over the bridge.
const JSONRPCVersion = "2.0"

// Bridge RPC methods.
const (
	MethodInvoke   = "invoke"
	MethodFieldGet = "field.get"
	MethodFieldSet = "field.set"
	MethodRelease  = "release"
	MethodShutdown = "shutdown"
)

// Request is a JSON-RPC request frame.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// Response is a JSON-RPC response frame.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *ResponseError  `json:"error,omitempty"`
}

// ResponseError is the error member of a Response.
type ResponseError struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    *ErrorData `json:"data,omitempty"`
}

// ErrorData carries Java exception details.
type ErrorData struct {
	JavaClass string `json:"java_class,omitempty"`
}

// InvokeParams are the params of MethodInvoke.
type InvokeParams struct {
	Target Target      `json:"target"`
	Method string      `json:"method"`
	Args   []WireValue `json:"args"`
}

// FieldParams are the params of MethodFieldGet and MethodFieldSet.
type FieldParams struct {
	Target Target     `json:"target"`
	Name   string     `json:"name"`
	Value  *WireValue `json:"value,omitempty"`
}

// ReleaseParams are the params of MethodRelease.
type ReleaseParams struct {
	Ref string `json:"ref"`
}

// toRemoteError converts a wire error into a *RemoteError.
func (e *ResponseError) toRemoteError() *RemoteError {
	re := &RemoteError{Code: e.Code, Message: e.Message}
	if e.Data != nil {
		re.JavaClass = e.Data.JavaClass
	}
	return re
}
