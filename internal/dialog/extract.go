package dialog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sahmacademy/sahmbot/internal/i18n"
	"github.com/sahmacademy/sahmbot/internal/session"
)

// overridable clock for relative-date resolution in tests
var timeNow = time.Now

// Extractor inspects one message and returns the slot values it recognises.
// Extractors are independent and applied in a fixed order every turn;
// within one pass the first extractor to produce a key wins.
type Extractor func(text string, s *session.Session) map[string]string

var extractors = []Extractor{
	extractPhone,
	extractEmail,
	extractRelativeDate,
	extractDatetime,
	extractTimeOfDay,
	extractConsent,
	extractLocation,
	extractPendingFreeText,
}

// Slot keys that an explicit new extraction may overwrite; everything else
// only fills an empty slot.
var overwritable = map[string]bool{
	"phone":    true,
	"email":    true,
	"datetime": true,
	"consent":  true,
}

// Apply runs the extraction pass over text, merges results into the
// session's slots (restricted to allowed keys), and mirrors contact fields
// into the durable profile.
func Apply(s *session.Session, text string, allowed map[string]bool) map[string]string {
	found := make(map[string]string)
	for _, ex := range extractors {
		for k, v := range ex(text, s) {
			if _, dup := found[k]; !dup {
				found[k] = v
			}
		}
	}

	for k, v := range found {
		switch k {
		case "name":
			s.Profile.Name = v
		case "phone":
			s.Profile.Phone = v
		case "email":
			s.Profile.Email = v
		}
		if allowed != nil && !allowed[k] {
			continue
		}
		if s.Slots[k] == "" || overwritable[k] {
			s.Slots[k] = v
		}
	}
	return found
}

var (
	rePhoneCandidate = regexp.MustCompile(`\+?\d[\d\s\-]{6,13}\d`)
	reDatePart       = regexp.MustCompile(`\d{4}-\d{2}-\d{2}([ T]\d{1,2}:\d{2})?`)
	reClockPart      = regexp.MustCompile(`\b\d{1,2}:\d{2}\b`)
	reNonDigit       = regexp.MustCompile(`\D`)
)

func extractPhone(text string, _ *session.Session) map[string]string {
	t := i18n.NormalizeDigits(text)
	// date and clock fragments look like phone candidates; mask them first
	t = reDatePart.ReplaceAllString(t, " ")
	t = reClockPart.ReplaceAllString(t, " ")

	for _, cand := range rePhoneCandidate.FindAllString(t, -1) {
		digits := reNonDigit.ReplaceAllString(cand, "")
		if len(digits) >= 8 && len(digits) <= 15 {
			if strings.HasPrefix(strings.TrimSpace(cand), "+") {
				return map[string]string{"phone": "+" + digits}
			}
			return map[string]string{"phone": digits}
		}
	}
	return nil
}

var reEmail = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

func extractEmail(text string, _ *session.Session) map[string]string {
	if m := reEmail.FindString(text); m != "" {
		return map[string]string{"email": strings.ToLower(m)}
	}
	return nil
}

var (
	reDayAfter = regexp.MustCompile(`(?i)\bday after tomorrow\b|بعد غد|بعد بكرة|après-demain`)
	reTomorrow = regexp.MustCompile(`(?i)\b(tomorrow|tmrw)\b|غدا|غداً|بكرة|بكره|demain`)
	reToday    = regexp.MustCompile(`(?i)\btoday\b|اليوم|aujourd'hui`)
)

// extractRelativeDate records the day preference on the session; it becomes
// a datetime only once a clock time is known.
func extractRelativeDate(text string, s *session.Session) map[string]string {
	switch {
	case reDayAfter.MatchString(text):
		s.DatePref = 2
	case reTomorrow.MatchString(text):
		s.DatePref = 1
	case reToday.MatchString(text):
		s.DatePref = 0
	}
	return nil
}

var (
	reExplicitDT = regexp.MustCompile(`(\d{4}-\d{2}-\d{2})[ T](\d{1,2}):(\d{2})`)
	reBareTime   = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	reMeridiem   = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm)\b`)
)

// ExplicitDatetime parses "YYYY-MM-DD HH:MM", "H pm", or a bare "HH:MM"
// resolved against the remembered relative-date preference (days from
// today; negative means unset and resolves to today). The canonical result
// is "2006-01-02T15:04:05".
func ExplicitDatetime(text string, datePref int) (string, bool) {
	t := i18n.NormalizeDigits(text)

	if m := reExplicitDT.FindStringSubmatch(t); m != nil {
		hh, _ := strconv.Atoi(m[2])
		mm, _ := strconv.Atoi(m[3])
		if hh > 23 || mm > 59 {
			return "", false
		}
		return fmt.Sprintf("%sT%02d:%02d:00", m[1], hh, mm), true
	}

	day := datePref
	if day < 0 {
		day = 0
	}
	date := timeNow().AddDate(0, 0, day).Format("2006-01-02")

	if m := reMeridiem.FindStringSubmatch(t); m != nil {
		hh, _ := strconv.Atoi(m[1])
		if hh >= 1 && hh <= 12 {
			if strings.EqualFold(m[2], "pm") && hh != 12 {
				hh += 12
			}
			if strings.EqualFold(m[2], "am") && hh == 12 {
				hh = 0
			}
			return fmt.Sprintf("%sT%02d:00:00", date, hh), true
		}
	}

	if m := reBareTime.FindStringSubmatch(t); m != nil {
		hh, _ := strconv.Atoi(m[1])
		mm, _ := strconv.Atoi(m[2])
		if hh > 23 || mm > 59 {
			return "", false
		}
		// bare small hours read as afternoon; nobody books a 2:00 AM lesson
		if hh >= 1 && hh <= 7 && !strings.Contains(strings.ToLower(t), "am") {
			hh += 12
		}
		return fmt.Sprintf("%sT%02d:%02d:00", date, hh, mm), true
	}

	return "", false
}

func extractDatetime(text string, s *session.Session) map[string]string {
	dt, ok := ExplicitDatetime(text, s.DatePref)
	if !ok {
		return nil
	}
	// a bare clock time answering a slot proposal keeps the date already
	// negotiated, unless this message names a day itself
	t := i18n.NormalizeDigits(text)
	namesDay := reExplicitDT.MatchString(t) ||
		reDayAfter.MatchString(text) || reTomorrow.MatchString(text) || reToday.MatchString(text)
	if !namesDay {
		if prev := s.Slots["datetime"]; len(prev) >= 10 {
			dt = prev[:10] + dt[10:]
		}
	}
	return map[string]string{"datetime": dt}
}

var timeOfDay = []struct {
	re    *regexp.Regexp
	clock string
}{
	{regexp.MustCompile(`(?i)\bmorning\b|الصباح|صباحا|صباحاً|matin`), "10:00"},
	{regexp.MustCompile(`(?i)\bnoon\b|الظهر|ظهرا|ظهراً|midi`), "12:00"},
	{regexp.MustCompile(`(?i)\bevening\b|المساء|مساء|مساءً|soir`), "17:00"},
	{regexp.MustCompile(`(?i)\bnight\b|الليل|ليلا|ليلاً|nuit`), "20:00"},
}

func extractTimeOfDay(text string, s *session.Session) map[string]string {
	for _, tod := range timeOfDay {
		if tod.re.MatchString(text) {
			day := s.DatePref
			if day < 0 {
				day = 0
			}
			date := timeNow().AddDate(0, 0, day).Format("2006-01-02")
			return map[string]string{"datetime": date + "T" + tod.clock + ":00"}
		}
	}
	return nil
}

var (
	reYes = regexp.MustCompile(`(?i)^\s*(yes|yeah|yep|sure|ok|okay|agreed|نعم|اي|ايوه|موافق|أوافق|oui|d'accord)[\s!.،]*$`)
	reNo  = regexp.MustCompile(`(?i)^\s*(no|nope|لا|ارفض|أرفض|غير موافق|non)[\s!.،]*$`)
)

func extractConsent(text string, _ *session.Session) map[string]string {
	switch {
	case reYes.MatchString(text):
		return map[string]string{"consent": "yes"}
	case reNo.MatchString(text):
		return map[string]string{"consent": "no"}
	}
	return nil
}

var branchAliases = []struct {
	re *regexp.Regexp
	id string
}{
	{regexp.MustCompile(`(?i)\briyadh?\b|الرياض`), "riyadh"},
	{regexp.MustCompile(`(?i)\bjedd?ah?\b|\bdjeddah\b|جدة|جده`), "jeddah"},
	{regexp.MustCompile(`(?i)\bonline\b|\ben ligne\b|اونلاين|أونلاين|اون لاين|عن بعد`), "online"},
}

func extractLocation(text string, _ *session.Session) map[string]string {
	for _, alias := range branchAliases {
		if alias.re.MatchString(text) {
			return map[string]string{"location": alias.id}
		}
	}
	return nil
}

var reName = regexp.MustCompile(`^[\p{L} ]{2,60}$`)

// LooksLikeName accepts letters and spaces only, 2-60 chars, no leading
// slash. Keeps commands and phone fragments out of the name slot.
func LooksLikeName(text string) bool {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "/") {
		return false
	}
	return reName.MatchString(t)
}

var reNone = regexp.MustCompile(`(?i)^\s*(none|no notes|nothing|لا|لا يوجد|بدون|aucune?|rien)[\s!.،]*$`)

// extractPendingFreeText accepts loosely-validated free text, but only for
// the question currently being asked.
func extractPendingFreeText(text string, s *session.Session) map[string]string {
	t := strings.TrimSpace(text)
	if t == "" {
		return nil
	}

	switch s.LastAskedKey {
	case i18n.KeyAskName:
		if LooksLikeName(t) {
			return map[string]string{"name": t}
		}
	case i18n.KeyAskSubject:
		if !strings.HasPrefix(t, "/") && len(t) >= 3 && len(t) <= 120 {
			return map[string]string{"subject": t}
		}
	case i18n.KeyAskMessage:
		if !strings.HasPrefix(t, "/") && len(t) >= 5 {
			return map[string]string{"message": t}
		}
	case i18n.KeyAskNotes:
		if reNone.MatchString(t) {
			return map[string]string{"notes": "-"}
		}
		if !strings.HasPrefix(t, "/") {
			return map[string]string{"notes": t}
		}
	}
	return nil
}
