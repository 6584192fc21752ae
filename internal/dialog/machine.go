package dialog

import (
	"context"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/sahmacademy/sahmbot/internal/bus"
	"github.com/sahmacademy/sahmbot/internal/i18n"
	"github.com/sahmacademy/sahmbot/internal/intent"
	"github.com/sahmacademy/sahmbot/internal/session"
)

const maxProposedSlots = 3

// BookingAPI is the collaborator backend behind the transactional flows.
// Implementations own their HTTP timeouts; the machine awaits them inline.
type BookingAPI interface {
	FetchAvailability(ctx context.Context, dateISO, location string) ([]string, error)
	CreateAppointment(ctx context.Context, name, contact, datetime, location, notes string) (string, error)
	CreateTicket(ctx context.Context, name, contact, subject, message string) (string, error)
}

type Machine struct {
	booking BookingAPI
}

func NewMachine(booking BookingAPI) *Machine {
	return &Machine{booking: booking}
}

// Result is the machine's verdict for one turn. Done reports that the flow
// finished (successfully or by consent refusal) and the session was reset.
type Result struct {
	Text        string
	Suggestions []bus.Suggestion
	Done        bool
}

// Step runs one slot-filling turn: extraction pass, loop guard, then either
// the next question or the terminal transition. The caller must hold the
// session's update lock.
func (m *Machine) Step(ctx context.Context, s *session.Session, text string) Result {
	it := intent.Intent(s.Intent)
	allowed := AllowedSlots(it)
	s.PruneSlots(allowed)

	found := Apply(s, text, allowed)
	if len(found) > 0 {
		s.Escalated = false
	}

	if s.Slots["consent"] == "no" {
		lang := s.Lang
		s.ResetFlow()
		return Result{Text: i18n.T(lang, i18n.KeyConsentDeclined), Done: true}
	}

	next := NextQuestion(it, s.Slots)
	if next == "" {
		return m.finish(ctx, s)
	}

	// loop guard: the same question asked twice with no answer in between
	// earns a one-time escalation offer, then the counter starts over
	if next == s.LastAskedKey && s.AskCounts[next] >= 1 {
		s.AskCounts[next] = 0
		s.LastAskedKey = ""
		s.Escalated = true
		return Result{
			Text: i18n.T(s.Lang, i18n.KeyEscalationOffer),
			Suggestions: []bus.Suggestion{
				{Label: i18n.T(s.Lang, i18n.KeySuggestHuman), Text: "/handoff"},
			},
		}
	}
	s.AskCounts[next]++
	s.LastAskedKey = next

	return Result{Text: i18n.T(s.Lang, next)}
}

func (m *Machine) finish(ctx context.Context, s *session.Session) Result {
	switch intent.Intent(s.Intent) {
	case intent.CreateAppointment:
		return m.finishAppointment(ctx, s)
	case intent.CreateTicket:
		return m.finishTicket(ctx, s)
	}
	return Result{Done: true}
}

func (m *Machine) contact(s *session.Session) string {
	if s.Slots["phone"] != "" {
		return s.Slots["phone"]
	}
	return s.Slots["email"]
}

func (m *Machine) finishAppointment(ctx context.Context, s *session.Session) Result {
	want := s.Slots["datetime"]
	date := want
	if i := strings.IndexByte(want, 'T'); i > 0 {
		date = want[:i]
	}

	avail, err := m.booking.FetchAvailability(ctx, date, s.Slots["location"])
	if err != nil {
		log.Printf("[dialog] availability fetch failed: %v", err)
		return Result{Text: i18n.T(s.Lang, i18n.KeyBookingFailed)}
	}

	exact := false
	for _, slot := range avail {
		if slot == want {
			exact = true
			break
		}
	}

	if !exact {
		if len(avail) == 0 {
			// keep slots intact so a new date can retry the whole check
			return Result{Text: i18n.T(s.Lang, i18n.KeyBookingNone)}
		}
		proposals := nearestSlots(want, avail, maxProposedSlots)
		return Result{
			Text:        i18n.T(s.Lang, i18n.KeyBookingNearby, strings.Join(proposals, ", ")),
			Suggestions: slotSuggestions(proposals),
		}
	}

	ref, err := m.booking.CreateAppointment(ctx, s.Slots["name"], m.contact(s), want, s.Slots["location"], s.Slots["notes"])
	if err != nil {
		log.Printf("[dialog] create appointment failed: %v", err)
		return Result{Text: i18n.T(s.Lang, i18n.KeyBookingFailed)}
	}

	lang := s.Lang
	s.ResetFlow()
	return Result{Text: i18n.T(lang, i18n.KeyBookingConfirmed, want, ref), Done: true}
}

func (m *Machine) finishTicket(ctx context.Context, s *session.Session) Result {
	ref, err := m.booking.CreateTicket(ctx, s.Slots["name"], m.contact(s), s.Slots["subject"], s.Slots["message"])
	if err != nil {
		log.Printf("[dialog] create ticket failed: %v", err)
		return Result{Text: i18n.T(s.Lang, i18n.KeyTicketFailed)}
	}

	lang := s.Lang
	s.ResetFlow()
	return Result{Text: i18n.T(lang, i18n.KeyTicketCreated, ref), Done: true}
}

// nearestSlots orders the available slots by distance from the requested
// time and returns up to n of them, formatted as HH:MM.
func nearestSlots(want string, avail []string, n int) []string {
	wantT, errWant := time.Parse("2006-01-02T15:04:05", want)

	sorted := make([]string, len(avail))
	copy(sorted, avail)
	if errWant == nil {
		sort.SliceStable(sorted, func(i, j int) bool {
			di, dj := slotDistance(wantT, sorted[i]), slotDistance(wantT, sorted[j])
			return di < dj
		})
	}

	if len(sorted) > n {
		sorted = sorted[:n]
	}
	out := make([]string, len(sorted))
	for i, s := range sorted {
		if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
			out[i] = t.Format("15:04")
		} else {
			out[i] = s
		}
	}
	return out
}

func slotDistance(want time.Time, slot string) time.Duration {
	t, err := time.Parse("2006-01-02T15:04:05", slot)
	if err != nil {
		return 1<<63 - 1
	}
	d := t.Sub(want)
	if d < 0 {
		d = -d
	}
	return d
}

func slotSuggestions(proposals []string) []bus.Suggestion {
	out := make([]bus.Suggestion, 0, len(proposals))
	for _, p := range proposals {
		out = append(out, bus.Suggestion{Label: p, Text: p})
	}
	return out
}
