package dialog

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sahmacademy/sahmbot/internal/i18n"
	"github.com/sahmacademy/sahmbot/internal/session"
)

// fakeBooking implements BookingAPI for tests
type fakeBooking struct {
	slots          []string
	availErr       error
	apptRef        string
	apptErr        error
	ticketRef      string
	ticketErr      error
	apptCalls      int
	ticketCalls    int
	lastAppt       []string
	lastTicket     []string
	availRequested []string
}

func (f *fakeBooking) FetchAvailability(ctx context.Context, dateISO, location string) ([]string, error) {
	f.availRequested = append(f.availRequested, dateISO+"@"+location)
	return f.slots, f.availErr
}

func (f *fakeBooking) CreateAppointment(ctx context.Context, name, contact, datetime, location, notes string) (string, error) {
	f.apptCalls++
	f.lastAppt = []string{name, contact, datetime, location, notes}
	return f.apptRef, f.apptErr
}

func (f *fakeBooking) CreateTicket(ctx context.Context, name, contact, subject, message string) (string, error) {
	f.ticketCalls++
	f.lastTicket = []string{name, contact, subject, message}
	return f.ticketRef, f.ticketErr
}

func newAppointmentSession() *session.Session {
	s := session.New("telegram", "u1", "en")
	s.Intent = "create_appointment"
	return s
}

func TestStep_AsksQuestionsInOrder(t *testing.T) {
	m := NewMachine(&fakeBooking{})
	s := newAppointmentSession()

	r := m.Step(context.Background(), s, "I want to book an appointment")
	if r.Text != i18n.T("en", i18n.KeyAskName) {
		t.Fatalf("first question = %q, want ask_name", r.Text)
	}

	r = m.Step(context.Background(), s, "Ahmed")
	if r.Text != i18n.T("en", i18n.KeyAskContact) {
		t.Fatalf("second question = %q, want ask_contact", r.Text)
	}
	if s.Slots["name"] != "Ahmed" {
		t.Errorf("name = %q", s.Slots["name"])
	}

	r = m.Step(context.Background(), s, "0551234567")
	if r.Text != i18n.T("en", i18n.KeyAskDatetime) {
		t.Fatalf("third question = %q, want ask_datetime", r.Text)
	}
}

func TestStep_LoopGuard(t *testing.T) {
	m := NewMachine(&fakeBooking{})
	s := newAppointmentSession()

	// first ask
	r := m.Step(context.Background(), s, "book appointment")
	if r.Text != i18n.T("en", i18n.KeyAskName) {
		t.Fatalf("want ask_name, got %q", r.Text)
	}

	// unanswered: same question would repeat, escalation fires instead
	r = m.Step(context.Background(), s, "????")
	if r.Text != i18n.T("en", i18n.KeyEscalationOffer) {
		t.Fatalf("want escalation offer, got %q", r.Text)
	}
	if len(r.Suggestions) == 0 || r.Suggestions[0].Text != "/handoff" {
		t.Error("escalation should suggest the human handoff")
	}
	if s.AskCounts[i18n.KeyAskName] != 0 || s.LastAskedKey != "" {
		t.Error("loop guard must reset counter and lastAskedKey")
	}
	if !s.Escalated {
		t.Error("session should be flagged stuck")
	}

	// counter genuinely cleared: the question comes back once more
	r = m.Step(context.Background(), s, "...")
	if r.Text != i18n.T("en", i18n.KeyAskName) {
		t.Fatalf("want ask_name again after reset, got %q", r.Text)
	}
}

func TestStep_ScenarioA_BookingSucceeds(t *testing.T) {
	fixedClock(t) // today = 2025-10-21
	fb := &fakeBooking{
		slots:   []string{"2025-10-22T14:00:00", "2025-10-22T15:00:00"},
		apptRef: "APT-1001",
	}
	m := NewMachine(fb)
	s := newAppointmentSession()

	m.Step(context.Background(), s, "I want to book an appointment")
	m.Step(context.Background(), s, "Ahmed")
	m.Step(context.Background(), s, "0551234567")
	r := m.Step(context.Background(), s, "tomorrow at 2:00")
	if r.Text != i18n.T("en", i18n.KeyAskLocation) {
		t.Fatalf("want ask_location, got %q", r.Text)
	}
	m.Step(context.Background(), s, "Riyadh")
	r = m.Step(context.Background(), s, "none")

	if !r.Done {
		t.Fatalf("flow should complete, got %q", r.Text)
	}
	if !strings.Contains(r.Text, "APT-1001") {
		t.Errorf("reply should carry the reference id: %q", r.Text)
	}
	if fb.apptCalls != 1 {
		t.Errorf("apptCalls = %d", fb.apptCalls)
	}
	if fb.lastAppt[2] != "2025-10-22T14:00:00" {
		t.Errorf("booked datetime = %q", fb.lastAppt[2])
	}
	if fb.availRequested[0] != "2025-10-22@riyadh" {
		t.Errorf("availability request = %q", fb.availRequested[0])
	}
	if s.Intent != "" || len(s.Slots) != 0 {
		t.Error("session flow state should reset after booking")
	}
	if s.Profile.Name != "Ahmed" || s.Profile.Phone != "0551234567" {
		t.Error("profile should survive the reset")
	}
}

func TestStep_UnavailableTimeProposesNearest(t *testing.T) {
	fixedClock(t)
	fb := &fakeBooking{slots: []string{
		"2025-10-22T10:00:00",
		"2025-10-22T15:00:00",
		"2025-10-22T16:00:00",
		"2025-10-22T18:00:00",
	}}
	m := NewMachine(fb)
	s := newAppointmentSession()
	s.Slots["name"] = "Ahmed"
	s.Slots["phone"] = "0551234567"
	s.Slots["datetime"] = "2025-10-22T14:00:00"
	s.Slots["location"] = "riyadh"
	s.Slots["notes"] = "-"

	r := m.Step(context.Background(), s, "ok")
	if r.Done {
		t.Fatal("flow must not complete on an unavailable time")
	}
	// 3 nearest to 14:00 are 15:00, 16:00, 10:00
	for _, want := range []string{"15:00", "16:00", "10:00"} {
		if !strings.Contains(r.Text, want) {
			t.Errorf("proposal missing %s: %q", want, r.Text)
		}
	}
	if strings.Contains(r.Text, "18:00") {
		t.Errorf("more than 3 proposals: %q", r.Text)
	}
	if fb.apptCalls != 0 {
		t.Error("no booking should be made")
	}

	// picking a proposal books on the negotiated date
	fb.apptRef = "APT-2"
	r = m.Step(context.Background(), s, "16:00")
	if !r.Done {
		t.Fatalf("picking a proposed slot should book, got %q", r.Text)
	}
	if fb.lastAppt[2] != "2025-10-22T16:00:00" {
		t.Errorf("booked datetime = %q", fb.lastAppt[2])
	}
}

func TestStep_NoSlotsKeepsState(t *testing.T) {
	fb := &fakeBooking{slots: nil}
	m := NewMachine(fb)
	s := newAppointmentSession()
	s.Slots["name"] = "Ahmed"
	s.Slots["phone"] = "0551234567"
	s.Slots["datetime"] = "2025-10-22T14:00:00"
	s.Slots["location"] = "riyadh"
	s.Slots["notes"] = "-"

	r := m.Step(context.Background(), s, "anything")
	if r.Text != i18n.T("en", i18n.KeyBookingNone) {
		t.Fatalf("got %q, want booking_none", r.Text)
	}
	if s.Slots["name"] != "Ahmed" || s.Slots["datetime"] == "" {
		t.Error("slots must stay intact for retry")
	}
}

func TestStep_AvailabilityErrorKeepsState(t *testing.T) {
	fb := &fakeBooking{availErr: errors.New("upstream 503: connection refused")}
	m := NewMachine(fb)
	s := newAppointmentSession()
	s.Slots["name"] = "Ahmed"
	s.Slots["phone"] = "0551234567"
	s.Slots["datetime"] = "2025-10-22T14:00:00"
	s.Slots["location"] = "riyadh"
	s.Slots["notes"] = "-"

	r := m.Step(context.Background(), s, "go")
	if r.Text != i18n.T("en", i18n.KeyBookingFailed) {
		t.Fatalf("got %q, want booking_failed", r.Text)
	}
	if strings.Contains(r.Text, "503") {
		t.Error("raw upstream error leaked to the user")
	}
	if s.Intent == "" {
		t.Error("state must be preserved for retry")
	}
}

func TestStep_TicketFlow(t *testing.T) {
	fb := &fakeBooking{ticketRef: "TKT-77"}
	m := NewMachine(fb)
	s := session.New("web", "u9", "en")
	s.Intent = "create_ticket"

	r := m.Step(context.Background(), s, "I have a complaint")
	if r.Text != i18n.T("en", i18n.KeyAskContact) {
		t.Fatalf("first ticket question = %q, want ask_contact", r.Text)
	}
	m.Step(context.Background(), s, "ahmed@example.com")
	m.Step(context.Background(), s, "Ahmed Ali")
	m.Step(context.Background(), s, "Withdrawal delay")
	m.Step(context.Background(), s, "My withdrawal from last week has not arrived yet.")
	r = m.Step(context.Background(), s, "yes")

	if !r.Done {
		t.Fatalf("ticket flow should complete, got %q", r.Text)
	}
	if !strings.Contains(r.Text, "TKT-77") {
		t.Errorf("reply should carry the ticket reference: %q", r.Text)
	}
	if fb.lastTicket[0] != "Ahmed Ali" || fb.lastTicket[1] != "ahmed@example.com" {
		t.Errorf("ticket payload = %v", fb.lastTicket)
	}
	if s.Intent != "" {
		t.Error("session should reset after ticket creation")
	}
}

func TestStep_TicketConsentDeclined(t *testing.T) {
	fb := &fakeBooking{}
	m := NewMachine(fb)
	s := session.New("web", "u9", "en")
	s.Intent = "create_ticket"
	s.Slots["email"] = "a@b.com"
	s.Slots["name"] = "Ahmed"
	s.Slots["subject"] = "subject here"
	s.Slots["message"] = "message body here"
	s.LastAskedKey = i18n.KeyAskConsent

	r := m.Step(context.Background(), s, "no")
	if !r.Done {
		t.Fatal("declined consent ends the flow")
	}
	if r.Text != i18n.T("en", i18n.KeyConsentDeclined) {
		t.Errorf("got %q", r.Text)
	}
	if fb.ticketCalls != 0 {
		t.Error("no ticket may be created without consent")
	}
}

func TestStep_TicketFailureKeepsState(t *testing.T) {
	fb := &fakeBooking{ticketErr: errors.New("pq: connection reset")}
	m := NewMachine(fb)
	s := session.New("web", "u9", "ar")
	s.Intent = "create_ticket"
	s.Slots["phone"] = "0551234567"
	s.Slots["name"] = "Ahmed"
	s.Slots["subject"] = "subject"
	s.Slots["message"] = "message body"
	s.Slots["consent"] = "yes"

	r := m.Step(context.Background(), s, "نعم")
	if r.Done {
		t.Fatal("failed submit must not complete the flow")
	}
	if r.Text != i18n.T("ar", i18n.KeyTicketFailed) {
		t.Errorf("got %q", r.Text)
	}
	if s.Slots["subject"] != "subject" {
		t.Error("slots must be preserved for retry")
	}
}

func TestStep_SlotsNeverOutsideIntent(t *testing.T) {
	m := NewMachine(&fakeBooking{slots: []string{"2025-10-22T14:00:00"}, apptRef: "A"})
	s := newAppointmentSession()
	s.Slots["subject"] = "stale ticket slot"

	m.Step(context.Background(), s, "hello")

	allowed := AllowedSlots("create_appointment")
	for k := range s.Slots {
		if !allowed[k] {
			t.Errorf("slot %q outside the appointment slot set", k)
		}
	}
}

func TestNearestSlots(t *testing.T) {
	avail := []string{
		"2025-10-22T09:00:00",
		"2025-10-22T13:30:00",
		"2025-10-22T14:30:00",
		"2025-10-22T19:00:00",
	}
	got := nearestSlots("2025-10-22T14:00:00", avail, 3)
	if len(got) != 3 {
		t.Fatalf("len = %d", len(got))
	}
	if got[0] != "13:30" && got[0] != "14:30" {
		t.Errorf("nearest first, got %v", got)
	}
	// 09:00 and 19:00 tie at 5h; stable sort keeps the earlier listing
	if got[2] != "09:00" {
		t.Errorf("got %v, want 09:00 third", got)
	}
}
