package rpc

import (
	"context"
	"fmt"
	"strings"
	"testing"

	apperrors "github.com/plusmaps/atlas/internal/errors"
)

// fakeGate records gate traffic and blocks a configurable set of users.
type fakeGate struct {
	blocked   map[string]bool
	requests  []string
	responses []string
}

func newFakeGate(blocked ...string) *fakeGate {
	g := &fakeGate{blocked: make(map[string]bool)}
	for _, uid := range blocked {
		g.blocked[uid] = true
	}
	return g
}

func (g *fakeGate) IsBlocked(_ context.Context, userID string) bool { return g.blocked[userID] }

func (g *fakeGate) RecordRequest(_ context.Context, userID string) {
	g.requests = append(g.requests, userID)
}

func (g *fakeGate) RecordResponse(_ context.Context, userID string) {
	g.responses = append(g.responses, userID)
}

func echoHandler(_ context.Context, params map[string]any) (any, error) {
	return params, nil
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	d := NewDispatcher(nil, nil)

	if err := d.Register("getTopLocations", echoHandler); err != nil {
		t.Fatalf("first register: %v", err)
	}
	err := d.Register("getTopLocations", echoHandler)
	if !apperrors.IsDuplicateMethod(err) {
		t.Fatalf("expected DuplicateMethod, got %v", err)
	}
}

func TestDispatchSuccess(t *testing.T) {
	d := NewDispatcher(nil, nil)
	if err := d.Register("echo", echoHandler); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := d.Dispatch(context.Background(), []byte(`{"method":"echo","params":{"key":"value"}}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if !resp.Success || resp.Error != "" {
		t.Fatalf("expected success envelope: %+v", resp)
	}
	data, ok := resp.Data.(map[string]any)
	if !ok || data["key"] != "value" {
		t.Fatalf("params did not reach handler: %+v", resp.Data)
	}
}

func TestDispatchInvalidJSON(t *testing.T) {
	d := NewDispatcher(nil, nil)

	_, err := d.Dispatch(context.Background(), []byte(`{"method": "echo"`))
	if !apperrors.IsMalformedRequest(err) {
		t.Fatalf("expected MalformedRequest, got %v", err)
	}
	if err.Error() != "Invalid JSON body" {
		t.Fatalf("unexpected message: %q", err.Error())
	}
}

func TestDispatchShapeValidation(t *testing.T) {
	d := NewDispatcher(nil, nil)
	if err := d.Register("echo", echoHandler); err != nil {
		t.Fatalf("register: %v", err)
	}

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing method", `{"params":{}}`, "Invalid or missing 'method'"},
		{"non-string method", `{"method":7,"params":{}}`, "Invalid or missing 'method'"},
		{"array body", `[1,2,3]`, "Invalid or missing 'method'"},
		{"missing params", `{"method":"echo"}`, "Invalid or missing 'params'"},
		{"non-object params", `{"method":"echo","params":[1]}`, "Invalid or missing 'params'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := d.Dispatch(context.Background(), []byte(tc.body))
			if !apperrors.IsMalformedRequest(err) {
				t.Fatalf("expected MalformedRequest, got %v", err)
			}
			if err.Error() != tc.want {
				t.Fatalf("unexpected message: %q", err.Error())
			}
		})
	}
}

func TestDispatchMethodNotFound(t *testing.T) {
	d := NewDispatcher(nil, nil)

	resp, err := d.Dispatch(context.Background(), []byte(`{"method":"noSuchMethod","params":{}}`))
	if err != nil {
		t.Fatalf("unknown method must stay inside the envelope: %v", err)
	}
	if resp.Success {
		t.Fatalf("expected error envelope: %+v", resp)
	}
	if !strings.Contains(resp.Error, "not found") {
		t.Fatalf("unexpected message: %q", resp.Error)
	}
}

func TestDispatchHandlerError(t *testing.T) {
	d := NewDispatcher(nil, nil)
	if err := d.Register("boom", func(context.Context, map[string]any) (any, error) {
		return nil, apperrors.InvalidParams("Invalid or missing 'id'")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := d.Dispatch(context.Background(), []byte(`{"method":"boom","params":{}}`))
	if err != nil {
		t.Fatalf("handler error must stay inside the envelope: %v", err)
	}
	if resp.Success || resp.Error != "Invalid or missing 'id'" {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
}

func TestDispatchHandlerPanic(t *testing.T) {
	d := NewDispatcher(nil, nil)
	if err := d.Register("panicky", func(context.Context, map[string]any) (any, error) {
		panic("nope")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := d.Dispatch(context.Background(), []byte(`{"method":"panicky","params":{}}`))
	if err != nil {
		t.Fatalf("panic must stay inside the envelope: %v", err)
	}
	if resp.Success || !strings.Contains(resp.Error, "panicky") {
		t.Fatalf("unexpected envelope: %+v", resp)
	}
}

func TestDispatchBlockedUserNeverReachesHandler(t *testing.T) {
	gate := newFakeGate("u-blocked")
	d := NewDispatcher(gate, nil)

	invoked := false
	if err := d.Register("echo", func(_ context.Context, params map[string]any) (any, error) {
		invoked = true
		return params, nil
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err := d.Dispatch(context.Background(), []byte(`{"method":"echo","params":{"userid":"u-blocked"}}`))
	if !apperrors.IsRateLimited(err) {
		t.Fatalf("expected RateLimited, got %v", err)
	}
	if invoked {
		t.Fatalf("blocked user reached the handler")
	}
	if len(gate.requests) != 0 || len(gate.responses) != 0 {
		t.Fatalf("blocked user must not be recorded: %+v", gate)
	}
}

func TestDispatchRecordsActivityAroundHandler(t *testing.T) {
	gate := newFakeGate()
	d := NewDispatcher(gate, nil)
	if err := d.Register("echo", echoHandler); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := d.Dispatch(context.Background(), []byte(`{"method":"echo","params":{"userid":"u-1"}}`))
	if err != nil || !resp.Success {
		t.Fatalf("dispatch: %v %+v", err, resp)
	}
	if len(gate.requests) != 1 || gate.requests[0] != "u-1" {
		t.Fatalf("request not recorded: %v", gate.requests)
	}
	if len(gate.responses) != 1 || gate.responses[0] != "u-1" {
		t.Fatalf("response not recorded: %v", gate.responses)
	}
}

func TestDispatchRecordsResponseOnFailures(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"unknown method", `{"method":"noSuchMethod","params":{"userid":"u-1"}}`},
		{"malformed shape", `{"params":{"userid":"u-1"}}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate := newFakeGate()
			d := NewDispatcher(gate, nil)

			_, _ = d.Dispatch(context.Background(), []byte(tc.body))
			if len(gate.requests) != 1 || len(gate.responses) != 1 {
				t.Fatalf("activity must be recorded regardless of outcome: %+v", gate)
			}
		})
	}
}

func TestDispatchIgnoresAnonymousTraffic(t *testing.T) {
	gate := newFakeGate()
	d := NewDispatcher(gate, nil)
	if err := d.Register("echo", echoHandler); err != nil {
		t.Fatalf("register: %v", err)
	}

	bodies := []string{
		`{"method":"echo","params":{}}`,
		`{"method":"echo","params":{"userid":""}}`,
		`{"method":"echo","params":{"userid":42}}`,
	}
	for _, body := range bodies {
		if _, err := d.Dispatch(context.Background(), []byte(body)); err != nil {
			t.Fatalf("dispatch %s: %v", body, err)
		}
	}
	if len(gate.requests) != 0 || len(gate.responses) != 0 {
		t.Fatalf("anonymous traffic must not be recorded: %+v", gate)
	}
}

func TestDispatchHandlerFailureStillRecordsResponse(t *testing.T) {
	gate := newFakeGate()
	d := NewDispatcher(gate, nil)
	if err := d.Register("boom", func(context.Context, map[string]any) (any, error) {
		return nil, fmt.Errorf("store exploded")
	}); err != nil {
		t.Fatalf("register: %v", err)
	}

	resp, err := d.Dispatch(context.Background(), []byte(`{"method":"boom","params":{"userid":"u-1"}}`))
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if resp.Success {
		t.Fatalf("expected error envelope: %+v", resp)
	}
	if len(gate.responses) != 1 {
		t.Fatalf("response must be recorded after a failed handler: %v", gate.responses)
	}
}
