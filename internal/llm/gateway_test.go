package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/sahmacademy/sahmbot/internal/config"
)

// fakeClient scripts responses per call
type fakeClient struct {
	calls     []Request
	responses []*Response
	errs      []error
}

func (f *fakeClient) Chat(ctx context.Context, req Request) (*Response, error) {
	i := len(f.calls)
	f.calls = append(f.calls, req)
	var resp *Response
	var err error
	if i < len(f.responses) {
		resp = f.responses[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return resp, err
}

func testCfg() config.LLMConfig {
	return config.LLMConfig{
		Model:              "big-model",
		FallbackModel:      "small-model",
		Temperature:        0.4,
		NumCtx:             8192,
		NumPredict:         1024,
		FallbackNumCtx:     4096,
		FallbackNumPredict: 512,
	}
}

func TestGateway_PrimarySuccess(t *testing.T) {
	fc := &fakeClient{responses: []*Response{{Content: "hello"}}, errs: []error{nil}}
	g := NewGateway(fc, testCfg())

	resp, err := g.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("content = %q", resp.Content)
	}
	if len(fc.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(fc.calls))
	}
	if fc.calls[0].Model != "big-model" {
		t.Errorf("model = %q", fc.calls[0].Model)
	}
	if fc.calls[0].Options.NumPredict != 1024 {
		t.Errorf("numPredict = %d", fc.calls[0].Options.NumPredict)
	}
}

func TestGateway_TransientRetriesOnceWithReducedOptions(t *testing.T) {
	tests := []string{
		"chat completion: error, status code: 500, message: overloaded",
		"model process terminated unexpectedly",
		"llama runner was killed",
		"CUDA out of memory",
	}
	for _, msg := range tests {
		fc := &fakeClient{
			responses: []*Response{nil, {Content: "fallback says hi"}},
			errs:      []error{errors.New(msg), nil},
		}
		g := NewGateway(fc, testCfg())

		resp, err := g.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}}, nil)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", msg, err)
		}
		if resp.Content != "fallback says hi" {
			t.Errorf("%q: content = %q", msg, resp.Content)
		}
		if len(fc.calls) != 2 {
			t.Fatalf("%q: calls = %d, want 2", msg, len(fc.calls))
		}
		second := fc.calls[1]
		if second.Model != "small-model" {
			t.Errorf("%q: fallback model = %q", msg, second.Model)
		}
		if second.Options.NumCtx != 4096 || second.Options.NumPredict != 512 {
			t.Errorf("%q: fallback options not reduced: %+v", msg, second.Options)
		}
	}
}

func TestGateway_NonTransientPropagates(t *testing.T) {
	fc := &fakeClient{errs: []error{errors.New("401 invalid api key")}}
	g := NewGateway(fc, testCfg())

	_, err := g.Chat(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	if len(fc.calls) != 1 {
		t.Errorf("calls = %d, want 1 (no retry)", len(fc.calls))
	}
}

func TestGateway_FallbackFailurePropagates(t *testing.T) {
	fc := &fakeClient{errs: []error{
		errors.New("status code: 500"),
		errors.New("status code: 500 again"),
	}}
	g := NewGateway(fc, testCfg())

	_, err := g.Chat(context.Background(), nil, nil)
	if err == nil {
		t.Fatal("expected error after exhausted retry")
	}
	if len(fc.calls) != 2 {
		t.Errorf("calls = %d, want exactly 2 (single-shot retry)", len(fc.calls))
	}
}

func TestTransient(t *testing.T) {
	if transient(errors.New("context deadline exceeded")) {
		t.Error("timeout is not a fallback-worthy failure")
	}
	if !transient(errors.New("HTTP 500 Internal Server Error")) {
		t.Error("500 should be transient")
	}
}
