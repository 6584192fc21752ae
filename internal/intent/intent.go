// Package intent maps free text to one of the fixed conversational goals.
// The classifier is stateless; stickiness lives in Resolve so slot-filling
// flows survive noisy turns without flapping.
package intent

import (
	"regexp"
	"strings"

	"github.com/sahmacademy/sahmbot/internal/i18n"
)

type Intent string

const (
	CreateAppointment Intent = "create_appointment"
	CreateTicket      Intent = "create_ticket"
	FAQ               Intent = "faq"
	AdminAnalytics    Intent = "admin_analytics"
	QueryItem         Intent = "query_item"
	Chitchat          Intent = "chitchat"
)

func (i Intent) Transactional() bool {
	return i == CreateAppointment || i == CreateTicket
}

var (
	reAppointment = regexp.MustCompile(`(?i)\b(appointment|booking|book\b|rendez-vous|rdv)\b|موعد|احجز|حجز`)
	reTicket      = regexp.MustCompile(`(?i)\b(ticket|complaint|complain|support request|réclamation)\b|شكوى|تذكرة|مشكلة`)
	reAnalytics   = regexp.MustCompile(`(?i)^/stats\b|\banalytics\b|إحصائيات|تقرير الاستخدام`)
	reQueryItem   = regexp.MustCompile(`(?i)\b(price|chart|analysis|course|courses|cours|quote)\b|سعر|شارت|تحليل|دورة|دورات|كورس`)
	reFAQ         = regexp.MustCompile(`(?i)\b(what is|what are|how do|how can|faq|policy|refund|qu'est-ce|comment)\b|ما هو|ما هي|كيف|سياسة|استرجاع`)
)

// Classify returns the intent implied by text and whether the match is
// confident. Chitchat is the unconfident default.
func Classify(text string) (Intent, bool) {
	t := strings.ToLower(i18n.NormalizeDigits(text))

	switch {
	case reAnalytics.MatchString(t):
		return AdminAnalytics, true
	case reAppointment.MatchString(t):
		return CreateAppointment, true
	case reTicket.MatchString(t):
		return CreateTicket, true
	case reQueryItem.MatchString(t):
		return QueryItem, true
	case reFAQ.MatchString(t):
		return FAQ, true
	}
	return Chitchat, false
}

// Resolve applies the stickiness rule: an active intent survives unless the
// classifier confidently picks a different non-chitchat intent, or the
// session is stuck on a question (loop counter tripped), in which case any
// classification wins as an escape hatch.
func Resolve(current Intent, text string, stuck bool) Intent {
	candidate, confident := Classify(text)

	if current == "" {
		return candidate
	}
	if stuck {
		return candidate
	}
	if confident && candidate != Chitchat && candidate != current {
		return candidate
	}
	return current
}
