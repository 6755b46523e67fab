package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/roach88/kiebridge/internal/bridge"
)

// BridgePath is the path the test bridge server listens on.
const BridgePath = "/bridge"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler serves the bridge protocol backed by jvm. Each connection is
// served by one goroutine; the shutdown method is answered and then
// triggers jvm.Shutdown.
func Handler(jvm *FakeJVM) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serveConn(r.Context(), conn, jvm)
	})
}

// NewBridgeServer starts an httptest server speaking the bridge protocol.
// The caller closes it.
func NewBridgeServer(jvm *FakeJVM) *httptest.Server {
	mux := http.NewServeMux()
	mux.Handle(BridgePath, Handler(jvm))
	return httptest.NewServer(mux)
}

// BridgeURL returns the WebSocket URL of a server started by NewBridgeServer.
func BridgeURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + BridgePath
}

func serveConn(ctx context.Context, conn *websocket.Conn, jvm *FakeJVM) {
	var writeMu sync.Mutex
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req bridge.Request
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}

		resp := dispatch(ctx, jvm, req)

		writeMu.Lock()
		err = conn.WriteJSON(resp)
		writeMu.Unlock()
		if err != nil {
			return
		}

		if req.Method == bridge.MethodShutdown {
			jvm.Shutdown()
			return
		}
	}
}

func dispatch(ctx context.Context, jvm *FakeJVM, req bridge.Request) bridge.Response {
	resp := bridge.Response{JSONRPC: bridge.JSONRPCVersion, ID: req.ID}

	result, err := handle(ctx, jvm, req)
	if err != nil {
		resp.Error = responseError(err)
		return resp
	}
	if result == nil {
		result = bridge.Null{}
	}
	w, err := bridge.Encode(result)
	if err != nil {
		resp.Error = responseError(err)
		return resp
	}
	raw, err := json.Marshal(w)
	if err != nil {
		resp.Error = responseError(err)
		return resp
	}
	resp.Result = raw
	return resp
}

func handle(ctx context.Context, jvm *FakeJVM, req bridge.Request) (bridge.Value, error) {
	switch req.Method {
	case bridge.MethodInvoke:
		var p bridge.InvokeParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, invalidParams(err)
		}
		args, err := bridge.DecodeAll(p.Args)
		if err != nil {
			return nil, invalidParams(err)
		}
		return jvm.Call(ctx, p.Target, p.Method, args...)
	case bridge.MethodFieldGet:
		var p bridge.FieldParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, invalidParams(err)
		}
		return jvm.Field(ctx, p.Target, p.Name)
	case bridge.MethodFieldSet:
		var p bridge.FieldParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, invalidParams(err)
		}
		if p.Value == nil {
			return nil, invalidParams(errors.New("missing value"))
		}
		v, err := bridge.Decode(*p.Value)
		if err != nil {
			return nil, invalidParams(err)
		}
		return nil, jvm.SetField(ctx, p.Target, p.Name, v)
	case bridge.MethodRelease:
		var p bridge.ReleaseParams
		if err := json.Unmarshal(req.Params, &p); err != nil {
			return nil, invalidParams(err)
		}
		return nil, jvm.Release(ctx, p.Ref)
	case bridge.MethodShutdown:
		return nil, nil
	}
	return nil, &bridge.RemoteError{Code: bridge.CodeMethodNotFound, Message: "method not found: " + req.Method}
}

func invalidParams(err error) error {
	return &bridge.RemoteError{Code: bridge.CodeInvalidParams, Message: err.Error()}
}

func responseError(err error) *bridge.ResponseError {
	var re *bridge.RemoteError
	if !errors.As(err, &re) {
		return &bridge.ResponseError{Code: bridge.CodeInternalError, Message: err.Error()}
	}
	out := &bridge.ResponseError{Code: re.Code, Message: re.Message}
	if re.JavaClass != "" {
		out.Data = &bridge.ErrorData{JavaClass: re.JavaClass}
	}
	return out
}
