package orchestrator

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/sahmacademy/sahmbot/internal/llm"
)

// Models sometimes print the tool call as text instead of using the
// structured channel. ParseEmbeddedToolCalls recovers those so the rest of
// the pipeline never has to know where a call came from.

var (
	reFence    = regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
	reToolTag  = regexp.MustCompile(`(?s)<tool_call>(.*?)</tool_call>`)
	reCallJSON = regexp.MustCompile(`\{[^{}]*"name"\s*:\s*"[a-z_]+"[^{}]*(\{[^{}]*\})[^{}]*\}`)
)

type embeddedCall struct {
	Name       string          `json:"name"`
	Arguments  json.RawMessage `json:"arguments"`
	Parameters json.RawMessage `json:"parameters"`
}

func ParseEmbeddedToolCalls(content string) []llm.ToolCall {
	var calls []llm.ToolCall

	candidates := []string{}
	for _, m := range reToolTag.FindAllStringSubmatch(content, -1) {
		candidates = append(candidates, m[1])
	}
	for _, m := range reFence.FindAllStringSubmatch(content, -1) {
		candidates = append(candidates, m[1])
	}
	candidates = append(candidates, reCallJSON.FindAllString(content, -1)...)

	seen := map[string]bool{}
	for _, cand := range candidates {
		cand = strings.TrimSpace(cand)
		var ec embeddedCall
		if err := json.Unmarshal([]byte(cand), &ec); err != nil || ec.Name == "" {
			continue
		}
		args := ec.Arguments
		if len(args) == 0 {
			args = ec.Parameters
		}
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		key := ec.Name + string(args)
		if seen[key] {
			continue
		}
		seen[key] = true
		calls = append(calls, llm.ToolCall{
			ID:        uuid.NewString(),
			Name:      ec.Name,
			Arguments: string(args),
		})
	}
	return calls
}
