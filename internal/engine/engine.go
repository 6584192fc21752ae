// Package engine is the conversational core. Every inbound message passes
// through one HandleText call: language detection, slash commands, intent
// resolution, then either the slot-filling machine or the tool orchestrator.
// All mutation happens under the session store's per-key lock, so turns for
// one user are serialized even when channels deliver concurrently.
package engine

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/sahmacademy/sahmbot/internal/bus"
	"github.com/sahmacademy/sahmbot/internal/config"
	"github.com/sahmacademy/sahmbot/internal/dialog"
	"github.com/sahmacademy/sahmbot/internal/history"
	"github.com/sahmacademy/sahmbot/internal/i18n"
	"github.com/sahmacademy/sahmbot/internal/intent"
	"github.com/sahmacademy/sahmbot/internal/orchestrator"
	"github.com/sahmacademy/sahmbot/internal/session"
)

// RoleStaff marks operators on the employee web surface; analytics are
// gated to it.
const RoleStaff = "staff"

const turnTimeout = 60 * time.Second

// FactsProvider resolves per-user business facts, such as purchases, that
// the orchestrator needs for course listings.
type FactsProvider interface {
	Purchases(ctx context.Context, channel, userID string) ([]orchestrator.Purchase, error)
}

type Reply struct {
	Text        string
	Suggestions []bus.Suggestion
}

type Engine struct {
	cfg      *config.Config
	sessions session.Store
	hist     history.Store
	machine  *dialog.Machine
	orch     *orchestrator.Orchestrator
	bus      *bus.MessageBus
	facts    FactsProvider
}

func New(cfg *config.Config, sessions session.Store, hist history.Store,
	machine *dialog.Machine, orch *orchestrator.Orchestrator,
	b *bus.MessageBus, facts FactsProvider) *Engine {
	return &Engine{
		cfg:      cfg,
		sessions: sessions,
		hist:     hist,
		machine:  machine,
		orch:     orch,
		bus:      b,
		facts:    facts,
	}
}

// HandleText processes one user turn and returns the localized reply.
func (e *Engine) HandleText(ctx context.Context, channel, userID, role, raw string) Reply {
	text := strings.TrimSpace(raw)
	var reply Reply

	e.sessions.Update(channel, userID, func(s *session.Session) {
		s.Lang = i18n.Detect(text, s.Lang)

		if r, handled := e.command(ctx, s, text); handled {
			reply = r
			return
		}

		it := intent.Resolve(intent.Intent(s.Intent), text, s.Escalated)

		if it == intent.AdminAnalytics {
			reply = e.analytics(s.Lang, role)
			e.append(channel, userID, history.Message{Role: history.RoleUser, Content: text})
			e.append(channel, userID, history.Message{Role: history.RoleAssistant, Content: reply.Text})
			return
		}

		if it.Transactional() {
			s.Intent = string(it)
			res := e.machine.Step(ctx, s, text)
			reply = Reply{Text: res.Text, Suggestions: res.Suggestions}
			e.append(channel, userID, history.Message{Role: history.RoleUser, Content: text})
			e.append(channel, userID, history.Message{Role: history.RoleAssistant, Content: res.Text})
			return
		}

		// slots only ever hold keys for the active intent; an abandoned
		// flow's progress is dropped with it
		if intent.Intent(s.Intent).Transactional() && it != intent.Intent(s.Intent) {
			s.PruneSlots(nil)
			s.AskCounts = make(map[string]int)
			s.LastAskedKey = ""
			s.DatePref = -1
		}
		s.Intent = string(it)
		reply = e.informational(ctx, s, channel, userID, role, text)
	})
	return reply
}

func (e *Engine) informational(ctx context.Context, s *session.Session, channel, userID, role, text string) Reply {
	recent, err := e.hist.Recent(channel, userID, e.cfg.History.ContextLimit)
	if err != nil {
		log.Printf("[engine] history read: %v", err)
	}
	e.append(channel, userID, history.Message{Role: history.RoleUser, Content: text})
	s.LastQuery = text

	out, err := e.orch.Respond(ctx, orchestrator.Input{
		Text:     text,
		Lang:     s.Lang,
		Role:     role,
		LastItem: s.LastItemID,
		History:  recent,
		Profile:  s.Profile,
		Facts:    e.factsFor(ctx, channel, userID),
		System:   systemPrompt(s.Lang),
	})
	if err != nil {
		log.Printf("[engine] orchestrator: %v", err)
		s.FallbackCount++
		return Reply{
			Text: i18n.T(s.Lang, i18n.KeyToolFailure),
			Suggestions: []bus.Suggestion{
				{Label: i18n.T(s.Lang, i18n.KeySuggestRetry), Text: s.LastQuery},
			},
		}
	}
	for _, m := range out.Appended {
		e.append(channel, userID, m)
	}
	if out.Item != "" {
		s.LastItemID = out.Item
	}
	if out.Failed {
		return Reply{
			Text: out.Reply,
			Suggestions: []bus.Suggestion{
				{Label: i18n.T(s.Lang, i18n.KeySuggestRetry), Text: s.LastQuery},
			},
		}
	}
	return Reply{Text: out.Reply}
}

func (e *Engine) factsFor(ctx context.Context, channel, userID string) orchestrator.Facts {
	if e.facts == nil {
		return orchestrator.Facts{}
	}
	purchases, err := e.facts.Purchases(ctx, channel, userID)
	if err != nil {
		log.Printf("[engine] facts lookup: %v", err)
		return orchestrator.Facts{}
	}
	return orchestrator.Facts{Purchases: purchases}
}

func (e *Engine) analytics(lang, role string) Reply {
	if role != RoleStaff {
		return Reply{Text: i18n.T(lang, i18n.KeyAnalyticsDenied)}
	}
	msgs, err := e.hist.Count()
	if err != nil {
		log.Printf("[engine] history count: %v", err)
	}
	return Reply{Text: i18n.T(lang, i18n.KeyAnalytics, e.sessions.Count(), msgs)}
}

func (e *Engine) append(channel, userID string, msg history.Message) {
	if err := e.hist.Append(channel, userID, msg); err != nil {
		log.Printf("[engine] history append: %v", err)
	}
}

// Run consumes the inbound bus until ctx is cancelled. Each message is
// handled on its own goroutine; the session store serializes per user.
func (e *Engine) Run(ctx context.Context) {
	go e.bus.DispatchOutbound(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-e.bus.Inbound:
			go e.process(ctx, msg)
		}
	}
}

func (e *Engine) process(ctx context.Context, msg bus.InboundMessage) {
	tctx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	role := ""
	if v, ok := msg.Metadata["role"].(string); ok {
		role = v
	}
	r := e.HandleText(tctx, msg.Channel, msg.SenderID, role, msg.Content)
	if r.Text == "" {
		return
	}
	e.bus.Outbound <- bus.OutboundMessage{
		Channel:     msg.Channel,
		ChatID:      msg.ChatID,
		Content:     r.Text,
		Suggestions: r.Suggestions,
	}
}

var profileFields = map[string]func(*session.Session) string{
	"phone": func(s *session.Session) string { return s.Profile.Phone },
	"email": func(s *session.Session) string { return s.Profile.Email },
	"name":  func(s *session.Session) string { return s.Profile.Name },
}

var fieldNames = map[string]map[string]string{
	i18n.LangEn: {"phone": "phone number", "email": "email", "name": "name"},
	i18n.LangAr: {"phone": "رقم الهاتف", "email": "البريد الإلكتروني", "name": "الاسم"},
	i18n.LangFr: {"phone": "numéro de téléphone", "email": "e-mail", "name": "nom"},
}

func fieldName(lang, key string) string {
	if names, ok := fieldNames[lang]; ok && names[key] != "" {
		return names[key]
	}
	return fieldNames[i18n.LangEn][key]
}

// command handles the slash commands; reported false means the text is an
// ordinary message.
func (e *Engine) command(ctx context.Context, s *session.Session, text string) (Reply, bool) {
	switch {
	case strings.HasPrefix(text, "/lang"):
		arg := strings.TrimSpace(strings.TrimPrefix(text, "/lang"))
		if !i18n.Supported(arg) {
			return Reply{}, false
		}
		s.Lang = arg
		out := i18n.T(arg, i18n.KeyLangSwitched)
		// repeat the pending question so the flow continues in the new
		// language
		if s.LastAskedKey != "" {
			out += "\n" + i18n.T(arg, s.LastAskedKey)
		}
		return Reply{Text: out}, true

	case text == "/use_phone", text == "/use_email", text == "/use_name":
		key := strings.TrimPrefix(text, "/use_")
		return e.copyProfileField(ctx, s, key), true

	case text == "/handoff":
		s.Escalated = true
		return Reply{Text: i18n.T(s.Lang, i18n.KeyHandoffAck)}, true
	}
	return Reply{}, false
}

// copyProfileField fills a flow slot from the saved profile. Repeating the
// command leaves the session unchanged.
func (e *Engine) copyProfileField(ctx context.Context, s *session.Session, key string) Reply {
	val := profileFields[key](s)
	if val == "" {
		return Reply{Text: i18n.T(s.Lang, i18n.KeyProfileMissing, fieldName(s.Lang, key))}
	}

	it := intent.Intent(s.Intent)
	ack := i18n.T(s.Lang, i18n.KeyProfileCopied, fieldName(s.Lang, key))

	if !it.Transactional() || !dialog.AllowedSlots(it)[key] {
		return Reply{Text: ack}
	}

	s.Slots[key] = val
	next := dialog.NextQuestion(it, s.Slots)
	if next == "" {
		res := e.machine.Step(ctx, s, "")
		return Reply{Text: fmt.Sprintf("%s\n%s", ack, res.Text), Suggestions: res.Suggestions}
	}
	s.LastAskedKey = next
	if s.AskCounts[next] == 0 {
		s.AskCounts[next] = 1
	}
	return Reply{Text: fmt.Sprintf("%s\n%s", ack, i18n.T(s.Lang, next))}
}
