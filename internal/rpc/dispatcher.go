// Package rpc implements the plain JSON-RPC flavor served on /rpc: a named
// method, an object of parameters, and a uniform success/error envelope back.
package rpc

import (
	"context"
	"fmt"
	"time"

	"github.com/tidwall/gjson"

	"github.com/plusmaps/atlas/internal/app/metrics"
	apperrors "github.com/plusmaps/atlas/internal/errors"
	"github.com/plusmaps/atlas/pkg/logger"
)

// HandlerFunc is a registered RPC method. It returns the payload for the
// data field, or an error whose message lands in the error field.
type HandlerFunc func(ctx context.Context, params map[string]any) (any, error)

// Gate decides whether a user may proceed and records their activity.
// Implementations must be forgiving: none of these calls can fail.
type Gate interface {
	IsBlocked(ctx context.Context, userID string) bool
	RecordRequest(ctx context.Context, userID string)
	RecordResponse(ctx context.Context, userID string)
}

// Dispatcher routes request envelopes to registered methods. Registration
// happens once at startup; after that the method table is read-only and the
// dispatcher is safe for concurrent use.
type Dispatcher struct {
	methods map[string]HandlerFunc
	gate    Gate
	log     *logger.Logger
}

// NewDispatcher constructs a dispatcher. A nil gate disables user gating.
func NewDispatcher(gate Gate, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.NewDefault("rpc")
	}
	return &Dispatcher{
		methods: make(map[string]HandlerFunc),
		gate:    gate,
		log:     log,
	}
}

// Register adds a named method. Registering the same name twice is a
// programming error and aborts startup.
func (d *Dispatcher) Register(name string, handler HandlerFunc) error {
	if _, exists := d.methods[name]; exists {
		return apperrors.DuplicateMethod(name)
	}
	d.methods[name] = handler
	d.log.WithField("method", name).Debug("registered rpc method")
	return nil
}

// Dispatch runs one raw request body through the full pipeline. The returned
// error is non-nil only for outcomes that never reach a method handler: a
// malformed envelope or a blocked user. Everything downstream of the gate,
// including unknown methods and handler failures, lands inside the Response
// so the transport can serve it with status 200.
func (d *Dispatcher) Dispatch(ctx context.Context, raw []byte) (Response, error) {
	if !gjson.ValidBytes(raw) {
		return Response{}, apperrors.MalformedRequest("Invalid JSON body")
	}
	doc := gjson.ParseBytes(raw)

	// The gate keys off params.userid when the caller sends one. Extraction
	// is deliberately lax: a request that fails shape validation below is
	// still gated and recorded, exactly like any other traffic.
	var userID string
	if uid := doc.Get("params.userid"); uid.Type == gjson.String {
		userID = uid.Str
	}

	gated := userID != "" && d.gate != nil
	if gated {
		if d.gate.IsBlocked(ctx, userID) {
			d.log.WithField("user_id", userID).Warn("blocked user rejected")
			metrics.RecordRateLimited()
			return Response{}, apperrors.RateLimited()
		}
		d.gate.RecordRequest(ctx, userID)
	}

	resp, err := d.route(ctx, doc)

	if gated {
		d.gate.RecordResponse(ctx, userID)
	}
	return resp, err
}

func (d *Dispatcher) route(ctx context.Context, doc gjson.Result) (Response, error) {
	method := doc.Get("method")
	if method.Type != gjson.String {
		return Response{}, apperrors.MalformedRequest("Invalid or missing 'method'")
	}
	params := doc.Get("params")
	if !params.IsObject() {
		return Response{}, apperrors.MalformedRequest("Invalid or missing 'params'")
	}

	handler, ok := d.methods[method.Str]
	if !ok {
		d.log.WithField("method", method.Str).Warn("unknown rpc method")
		return Failure(apperrors.MethodNotFound(method.Str).Error()), nil
	}

	args, _ := params.Value().(map[string]any)
	start := time.Now()
	result, err := d.invoke(ctx, method.Str, handler, args)
	metrics.RecordRPCRequest(method.Str, time.Since(start), err == nil)
	if err != nil {
		d.log.WithField("method", method.Str).WithError(err).Debug("rpc method failed")
		return Failure(err.Error()), nil
	}
	return Result(result), nil
}

// invoke shields the pipeline from handler panics; a panicking method turns
// into an ordinary error envelope.
func (d *Dispatcher) invoke(ctx context.Context, method string, handler HandlerFunc, params map[string]any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.log.WithField("method", method).Errorf("rpc method panicked: %v", r)
			err = fmt.Errorf("method %s failed: %v", method, r)
		}
	}()
	return handler(ctx, params)
}
