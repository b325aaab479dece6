package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/zeuslawyer/remix-simulator/internal/jsonrpc"
	"github.com/zeuslawyer/remix-simulator/internal/metrics"
	"github.com/zeuslawyer/remix-simulator/internal/provider"
	"github.com/zeuslawyer/remix-simulator/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type Transport string

const (
	TransportHTTP      Transport = "http"
	TransportWebSocket Transport = "websocket"
)

// Relay forwards raw JSON-RPC payloads to a provider and encodes the outcome.
type Relay struct {
	provider provider.Provider
	metrics  *metrics.Metrics
	recorder telemetry.Recorder
	tracer   trace.Tracer
}

func New(provider provider.Provider, metrics *metrics.Metrics, recorder telemetry.Recorder) *Relay {
	if recorder == nil {
		recorder = telemetry.Nop()
	}
	return &Relay{
		provider: provider,
		metrics:  metrics,
		recorder: recorder,
		tracer:   otel.Tracer("github.com/zeuslawyer/remix-simulator/internal/relay"),
	}
}

// Handle decodes body, dispatches it and returns the encoded reply. It never
// fails: every problem is reported as a JSON-RPC error payload.
func (r *Relay) Handle(ctx context.Context, transport Transport, body []byte) []byte {
	body = bytes.TrimSpace(body)
	if jsonrpc.IsBatch(body) {
		return r.handleBatch(ctx, transport, body)
	}
	return encode(r.handleOne(ctx, transport, body))
}

func (r *Relay) handleBatch(ctx context.Context, transport Transport, body []byte) []byte {
	var elements []json.RawMessage
	if err := json.Unmarshal(body, &elements); err != nil {
		r.countError("parse")
		return encode(jsonrpc.NewError(nil, jsonrpc.CodeParseError, "parse error"))
	}
	if len(elements) == 0 {
		r.countError("invalid_request")
		return encode(jsonrpc.NewError(nil, jsonrpc.CodeInvalidRequest, jsonrpc.ErrEmptyBatch.Error()))
	}

	responses := make([]*jsonrpc.Response, len(elements))
	var wg sync.WaitGroup
	for i, element := range elements {
		wg.Add(1)
		go func() {
			defer wg.Done()
			responses[i] = r.handleOne(ctx, transport, element)
		}()
	}
	wg.Wait()
	return encode(responses)
}

func (r *Relay) handleOne(ctx context.Context, transport Transport, body []byte) *jsonrpc.Response {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		if !json.Valid(trimmed) {
			r.countError("parse")
			return jsonrpc.NewError(nil, jsonrpc.CodeParseError, "parse error")
		}
		r.countError("invalid_request")
		return jsonrpc.NewError(nil, jsonrpc.CodeInvalidRequest, "invalid request")
	}
	req, err := jsonrpc.DecodeRequest(trimmed)
	if err != nil {
		if errors.Is(err, jsonrpc.ErrParse) {
			r.countError("parse")
			return jsonrpc.NewError(nil, jsonrpc.CodeParseError, "parse error")
		}
		r.countError("invalid_request")
		return jsonrpc.NewError(jsonrpc.PeekID(trimmed), jsonrpc.CodeInvalidRequest, err.Error())
	}
	return r.dispatch(ctx, transport, req)
}

func (r *Relay) dispatch(ctx context.Context, transport Transport, req *jsonrpc.Request) *jsonrpc.Response {
	ctx, span := r.tracer.Start(ctx, "jsonrpc "+req.Method, trace.WithAttributes(
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", req.Method),
		attribute.String("rpc.transport", string(transport)),
	))
	defer span.End()

	if r.metrics != nil {
		r.metrics.IncrementRPCRequests(req.Method, string(transport))
	}
	r.recorder.RecordEvent("rpc", req.Method, string(transport))

	if req.Traced() {
		slog.Info("Receiving call/transaction", "method", req.Method, "params", string(req.Params))
	}

	// A request runs to completion even if its originating channel goes away.
	res, ok := <-r.provider.SendAsync(context.WithoutCancel(ctx), req)
	switch {
	case !ok:
		res = provider.Result{Err: provider.ErrNoResponse}
	case res.Err == nil && res.Response == nil:
		res.Err = provider.ErrNoResponse
	}
	if res.Err != nil {
		span.RecordError(res.Err)
		span.SetStatus(codes.Error, res.Err.Error())
		r.countError("dispatch")
		slog.Warn("Provider failed to handle request", "method", req.Method, "error", res.Err)
		return jsonrpc.NewError(req.ID, jsonrpc.CodeInternalError, res.Err.Error())
	}

	resp := res.Response
	if resp.Error != nil {
		span.SetStatus(codes.Error, resp.Error.Message)
		r.countError("rpc")
	}
	if req.Traced() {
		if resp.Error != nil {
			slog.Info("Call/transaction failed", "method", req.Method, "code", resp.Error.Code, "message", resp.Error.Message)
		} else {
			slog.Info("Call/transaction result", "method", req.Method, "result", string(resp.Result))
		}
	}
	return resp
}

// ReleaseChannel tells the provider that a client channel has closed.
func (r *Relay) ReleaseChannel(id string) {
	if releaser, ok := r.provider.(provider.ChannelReleaser); ok {
		releaser.ReleaseChannel(id)
	}
}

func (r *Relay) countError(reason string) {
	if r.metrics != nil {
		r.metrics.IncrementRPCErrors(reason)
	}
}

func encode(v any) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("Failed to encode JSON-RPC response", "error", err)
		return []byte(jsonrpc.InternalErrorResponse)
	}
	return data
}
