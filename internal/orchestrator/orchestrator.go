// Package orchestrator coordinates tool calls for informational turns.
// Accuracy-critical data (prices, analysis, the course catalog) is fetched
// through deterministic forced tool calls; the LLM only plans calls for
// everything else, and its output is sanitized before leaving the engine.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sahmacademy/sahmbot/internal/history"
	"github.com/sahmacademy/sahmbot/internal/i18n"
	"github.com/sahmacademy/sahmbot/internal/llm"
	"github.com/sahmacademy/sahmbot/internal/session"
	"github.com/sahmacademy/sahmbot/internal/tools"
)

const maxEducationalNotes = 2

// Purchase is one catalog purchase on record for the user. Only CONFIRMED
// purchases exclude a course from listings.
type Purchase struct {
	CourseID string
	Status   string
}

const PurchaseConfirmed = "CONFIRMED"

// Facts carries per-user business facts resolved by the caller.
type Facts struct {
	Purchases []Purchase
}

// Input is everything one informational turn needs. LastItem is the symbol
// of the previous market answer, used when neither the message nor recent
// history names an instrument.
type Input struct {
	Text     string
	Lang     string
	Role     string
	LastItem string
	History  []history.Message
	Profile  session.Profile
	Facts    Facts
	System   string
}

// LLM is the gateway surface the orchestrator needs.
type LLM interface {
	Chat(ctx context.Context, messages []llm.Message, tools []llm.ToolDef) (*llm.Response, error)
}

type Orchestrator struct {
	llm    LLM
	router *tools.Router
}

func New(gw LLM, router *tools.Router) *Orchestrator {
	return &Orchestrator{llm: gw, router: router}
}

// Output is the reply plus the messages to append to history (tool results
// and the assistant reply, in order). Item reports the symbol this turn was
// about, Failed that a tool call did not complete.
type Output struct {
	Reply    string
	Item     string
	Failed   bool
	Appended []history.Message
}

func (o *Orchestrator) Respond(ctx context.Context, in Input) (*Output, error) {
	trig := detectTriggers(in.Text)

	var calls []llm.ToolCall
	var item string

	switch {
	case trig.price || trig.chart || trig.analysis:
		symbol, market := resolveSymbol(in.Text)
		if symbol == "" {
			symbol, market = lastToolSymbol(in.History)
		}
		if symbol == "" && in.LastItem != "" {
			symbol = in.LastItem
		}
		if symbol != "" {
			item = symbol
			calls = forcedMarketCalls(symbol, market, trig)
		}
	case trig.courses:
		calls = []llm.ToolCall{forcedCall(tools.ToolGetCourses, map[string]any{
			"limit": tools.MaxCourseListing,
		})}
	}

	if len(calls) == 0 {
		var err error
		var content string
		calls, content, err = o.planWithLLM(ctx, in)
		if err != nil {
			return nil, err
		}
		if len(calls) == 0 {
			reply := Sanitize(content)
			if strings.TrimSpace(reply) == "" {
				reply = i18n.T(in.Lang, i18n.KeyChitchatFallback)
			}
			return &Output{
				Reply:    reply,
				Appended: []history.Message{{Role: history.RoleAssistant, Content: reply}},
			}, nil
		}
	}

	results, toolMsgs, failed := o.execute(ctx, calls)

	if failed {
		reply := i18n.T(in.Lang, i18n.KeyToolFailure)
		return &Output{
			Reply:    reply,
			Failed:   true,
			Appended: append(toolMsgs, history.Message{Role: history.RoleAssistant, Content: reply}),
		}, nil
	}

	if reply, ok := o.synthesize(in, trig, results); ok {
		return &Output{
			Reply:    reply,
			Item:     item,
			Appended: append(toolMsgs, history.Message{Role: history.RoleAssistant, Content: reply}),
		}, nil
	}

	// no deterministic shape: hand the results back to the model
	reply, err := o.summarizeWithLLM(ctx, in, calls, results)
	if err != nil {
		return nil, err
	}
	return &Output{
		Reply:    reply,
		Item:     item,
		Appended: append(toolMsgs, history.Message{Role: history.RoleAssistant, Content: reply}),
	}, nil
}

type execResult struct {
	call llm.ToolCall
	res  map[string]any
}

// execute runs the calls sequentially through the router. Any error or
// {ok:false} result flips the failure flag; partial data never leaves here.
func (o *Orchestrator) execute(ctx context.Context, calls []llm.ToolCall) ([]execResult, []history.Message, bool) {
	var results []execResult
	var msgs []history.Message
	failed := false

	for _, call := range calls {
		args := map[string]any{}
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
				log.Printf("[orchestrator] bad arguments for %s", call.Name)
				failed = true
				continue
			}
		}

		res, err := o.router.Execute(ctx, call.Name, args)
		if tools.Failed(res, err) {
			log.Printf("[orchestrator] tool %s failed", call.Name)
			failed = true
			msgs = append(msgs, history.Message{
				Role:     history.RoleTool,
				ToolName: call.Name,
				Content:  `{"ok":false,"error":"execution failed"}`,
			})
			continue
		}

		results = append(results, execResult{call: call, res: res})
		if data, err := json.Marshal(res); err == nil {
			msgs = append(msgs, history.Message{
				Role:     history.RoleTool,
				ToolName: call.Name,
				Content:  string(data),
			})
		}
	}
	return results, msgs, failed
}

func (o *Orchestrator) planWithLLM(ctx context.Context, in Input) ([]llm.ToolCall, string, error) {
	resp, err := o.llm.Chat(ctx, buildMessages(in, nil, nil), tools.Defs())
	if err != nil {
		return nil, "", fmt.Errorf("plan turn: %w", err)
	}
	if len(resp.ToolCalls) > 0 {
		return resp.ToolCalls, "", nil
	}
	// some models emit the call as plain text instead of structured output
	if calls := ParseEmbeddedToolCalls(resp.Content); len(calls) > 0 {
		return calls, "", nil
	}
	return nil, resp.Content, nil
}

func (o *Orchestrator) summarizeWithLLM(ctx context.Context, in Input, calls []llm.ToolCall, results []execResult) (string, error) {
	resp, err := o.llm.Chat(ctx, buildMessages(in, calls, results), nil)
	if err != nil {
		return "", fmt.Errorf("summarize results: %w", err)
	}
	reply := Sanitize(resp.Content)
	if strings.TrimSpace(reply) == "" {
		reply = i18n.T(in.Lang, i18n.KeyChitchatFallback)
	}
	return reply, nil
}

func buildMessages(in Input, calls []llm.ToolCall, results []execResult) []llm.Message {
	msgs := []llm.Message{{Role: llm.RoleSystem, Content: in.System}}
	for _, h := range in.History {
		msgs = append(msgs, llm.Message{Role: h.Role, Content: h.Content, Name: h.ToolName})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: in.Text})

	if len(results) > 0 {
		assistant := llm.Message{Role: llm.RoleAssistant}
		for _, c := range calls {
			assistant.ToolCalls = append(assistant.ToolCalls, c)
		}
		msgs = append(msgs, assistant)
		for _, r := range results {
			data, _ := json.Marshal(r.res)
			msgs = append(msgs, llm.Message{
				Role:       llm.RoleTool,
				Content:    string(data),
				ToolCallID: r.call.ID,
				Name:       r.call.Name,
			})
		}
	}
	return msgs
}

func forcedCall(name string, args map[string]any) llm.ToolCall {
	data, _ := json.Marshal(args)
	return llm.ToolCall{ID: uuid.NewString(), Name: name, Arguments: string(data)}
}

func forcedMarketCalls(symbol, market string, trig triggers) []llm.ToolCall {
	calls := []llm.ToolCall{forcedCall(tools.ToolGetPrice, map[string]any{
		"symbol": symbol,
		"market": market,
	})}
	if trig.chart || trig.analysis {
		calls = append(calls, forcedCall(tools.ToolGetMarketAnalysis, map[string]any{
			"symbol": symbol,
		}))
	}
	return calls
}

// synthesize renders the fixed reply shapes. It reports false when no shape
// matches the collected results.
func (o *Orchestrator) synthesize(in Input, trig triggers, results []execResult) (string, bool) {
	var price, analysis, courses map[string]any
	for _, r := range results {
		switch r.call.Name {
		case tools.ToolGetPrice:
			price = r.res
		case tools.ToolGetMarketAnalysis:
			analysis = r.res
		case tools.ToolGetCourses:
			courses = r.res
		}
	}

	switch {
	case price != nil && (trig.chart || trig.analysis):
		return o.renderChart(in.Lang, price, analysis), true
	case price != nil:
		return o.renderPrice(in.Lang, price), true
	case courses != nil:
		return o.renderCourses(in.Lang, courses, in.Facts), true
	}
	return "", false
}

func (o *Orchestrator) renderPrice(lang string, price map[string]any) string {
	line := i18n.T(lang, i18n.KeyPriceLine,
		strField(price, "source"), strField(price, "symbol"), numField(price, "price"))
	return line + "\n" + i18n.T(lang, i18n.KeyDisclaimer)
}

func (o *Orchestrator) renderChart(lang string, price, analysis map[string]any) string {
	symbol := strField(price, "symbol")
	var b strings.Builder
	b.WriteString(i18n.T(lang, i18n.KeyChartDirective, symbol))
	b.WriteString("\n")
	b.WriteString(i18n.T(lang, i18n.KeyPriceLine,
		strField(price, "source"), symbol, numField(price, "price")))

	if analysis != nil {
		if notes, ok := analysis["notes"].([]any); ok {
			for i, n := range notes {
				if i >= maxEducationalNotes {
					break
				}
				if s, ok := n.(string); ok && s != "" {
					b.WriteString("\n- ")
					b.WriteString(s)
				}
			}
		}
	}
	b.WriteString("\n")
	b.WriteString(i18n.T(lang, i18n.KeyDisclaimer))
	return b.String()
}

func (o *Orchestrator) renderCourses(lang string, res map[string]any, facts Facts) string {
	courses, ok := tools.DecodeCourses(res)
	if !ok {
		return i18n.T(lang, i18n.KeyToolFailure)
	}

	owned := make(map[string]bool)
	for _, p := range facts.Purchases {
		if p.Status == PurchaseConfirmed {
			owned[p.CourseID] = true
		}
	}

	filtered := courses[:0:0]
	for _, c := range courses {
		if !owned[c.ID] {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		return i18n.T(lang, i18n.KeyCoursesAllOwned)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return tools.LevelOrder(filtered[i].Level) < tools.LevelOrder(filtered[j].Level)
	})
	if len(filtered) > tools.MaxCourseListing {
		filtered = filtered[:tools.MaxCourseListing]
	}

	var b strings.Builder
	b.WriteString(i18n.T(lang, i18n.KeyCoursesHeader))
	for _, c := range filtered {
		b.WriteString(fmt.Sprintf("\n- %s (%s): %s", c.Title, c.Level, formatPrice(c.Price)))
	}
	return b.String()
}

func strField(m map[string]any, key string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return ""
}

func numField(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	case json.Number:
		return v.String()
	}
	return ""
}

func formatPrice(p float64) string {
	if p == 0 {
		return "free"
	}
	return strconv.FormatFloat(p, 'f', -1, 64) + " USD"
}
