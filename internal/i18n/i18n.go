package i18n

import (
	"fmt"
	"strings"
)

// Supported languages. English is the fallback for missing keys.
const (
	LangAr = "ar"
	LangEn = "en"
	LangFr = "fr"
)

func Supported(lang string) bool {
	switch lang {
	case LangAr, LangEn, LangFr:
		return true
	}
	return false
}

// T renders the message for key in lang, falling back to English when the
// language or key is missing. Unknown keys render as the key itself so a
// missing translation is visible instead of silent.
func T(lang, key string, args ...any) string {
	cat, ok := catalogs[lang]
	if !ok {
		cat = catalogs[LangEn]
	}
	msg, ok := cat[key]
	if !ok {
		msg, ok = catalogs[LangEn][key]
		if !ok {
			return key
		}
	}
	if len(args) == 0 {
		return msg
	}
	return fmt.Sprintf(msg, args...)
}

// Detect returns the language implied by the script of text. Arabic script
// wins over anything else; Latin script flips an Arabic session to English
// but leaves a French session alone (the heuristic cannot tell en from fr).
// At least two letters of the other script are required, so a single stray
// character never flips a conversation.
func Detect(text, current string) string {
	arabic, latin := 0, 0
	for _, r := range text {
		switch {
		case r >= 0x0600 && r <= 0x06FF:
			arabic++
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			latin++
		}
	}
	if arabic >= 2 && arabic >= latin {
		return LangAr
	}
	if latin >= 2 && current == LangAr {
		return LangEn
	}
	if current == "" {
		return LangAr
	}
	return current
}

// NormalizeDigits rewrites Arabic-Indic and Eastern Arabic-Indic digits to
// their ASCII equivalents so downstream regexes only deal with 0-9.
func NormalizeDigits(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		switch {
		case r >= 0x0660 && r <= 0x0669: // ٠-٩
			b.WriteRune('0' + (r - 0x0660))
		case r >= 0x06F0 && r <= 0x06F9: // ۰-۹
			b.WriteRune('0' + (r - 0x06F0))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
