package llm

import (
	"context"
	"log"
	"strings"

	"github.com/sahmacademy/sahmbot/internal/config"
)

// transientFingerprints identify failures worth one retry on the fallback
// model: overloaded server or a local model process that died mid-request.
var transientFingerprints = []string{
	"500",
	"internal server error",
	"terminated",
	"killed",
	"out of memory",
	"oom",
}

func transient(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, fp := range transientFingerprints {
		if strings.Contains(msg, fp) {
			return true
		}
	}
	return false
}

// Gateway routes chat calls to the primary model and retries exactly once
// against the fallback model with reduced options when the failure matches
// a transient fingerprint. Any other failure propagates untouched.
type Gateway struct {
	client Client
	cfg    config.LLMConfig
}

func NewGateway(client Client, cfg config.LLMConfig) *Gateway {
	return &Gateway{client: client, cfg: cfg}
}

func (g *Gateway) Chat(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error) {
	resp, err := g.client.Chat(ctx, Request{
		Model:    g.cfg.Model,
		Messages: messages,
		Tools:    tools,
		Options: Options{
			Temperature: g.cfg.Temperature,
			NumCtx:      g.cfg.NumCtx,
			NumPredict:  g.cfg.NumPredict,
		},
	})
	if err == nil {
		return resp, nil
	}
	if !transient(err) {
		return nil, err
	}

	log.Printf("[llm] primary model %s failed (%v), retrying on %s", g.cfg.Model, err, g.cfg.FallbackModel)
	return g.client.Chat(ctx, Request{
		Model:    g.cfg.FallbackModel,
		Messages: messages,
		Tools:    tools,
		Options: Options{
			Temperature: g.cfg.Temperature,
			NumCtx:      g.cfg.FallbackNumCtx,
			NumPredict:  g.cfg.FallbackNumPredict,
		},
	})
}
