package orchestrator

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sahmacademy/sahmbot/internal/history"
	"github.com/sahmacademy/sahmbot/internal/i18n"
	"github.com/sahmacademy/sahmbot/internal/tools"
)

type triggers struct {
	price    bool
	chart    bool
	analysis bool
	courses  bool
}

var (
	rePriceWord = regexp.MustCompile(`(?i)\b(price|quote|how much|prix|combien)\b|سعر|كم يساوي|بكم`)
	reChartWord = regexp.MustCompile(`(?i)\b(chart|graph|graphique)\b|شارت|رسم بياني`)
	reAnalWord  = regexp.MustCompile(`(?i)\b(analysis|analyse|trend|tendance)\b|تحليل|اتجاه`)
	reCourseWrd = regexp.MustCompile(`(?i)\b(courses?|cours|formations?|lessons?)\b|دورة|دورات|كورس|كورسات|دروس`)

	reTicker = regexp.MustCompile(`\$([A-Za-z]{2,10})\b|\b([A-Z]{3,6})\b`)
)

// arabicArticle is the definite-article prefix; "البيتكوين" and "بيتكوين"
// must resolve to the same instrument.
const arabicArticle = "ال"

// symbolAliases maps user spellings to a canonical symbol and market.
var symbolAliases = map[string][2]string{
	"btc": {"BTC", "crypto"}, "bitcoin": {"BTC", "crypto"}, "بيتكوين": {"BTC", "crypto"},
	"eth": {"ETH", "crypto"}, "ethereum": {"ETH", "crypto"}, "ايثيريوم": {"ETH", "crypto"}, "إيثيريوم": {"ETH", "crypto"},
	"gold": {"XAU", "metals"}, "xau": {"XAU", "metals"}, "ذهب": {"XAU", "metals"}, "or": {"XAU", "metals"},
	"silver": {"XAG", "metals"}, "xag": {"XAG", "metals"}, "فضة": {"XAG", "metals"},
	"eurusd": {"EURUSD", "forex"}, "gbpusd": {"GBPUSD", "forex"}, "usdjpy": {"USDJPY", "forex"},
	"tasi": {"TASI", "stocks"}, "تاسي": {"TASI", "stocks"},
	"aramco": {"2222.SR", "stocks"}, "ارامكو": {"2222.SR", "stocks"}, "أرامكو": {"2222.SR", "stocks"},
}

func detectTriggers(text string) triggers {
	norm := i18n.NormalizeDigits(text)
	symbol, _ := resolveSymbol(norm)
	return triggers{
		price:    symbol != "" && rePriceWord.MatchString(norm),
		chart:    reChartWord.MatchString(norm),
		analysis: reAnalWord.MatchString(norm),
		courses:  reCourseWrd.MatchString(norm),
	}
}

// resolveSymbol extracts the first recognizable instrument in the message.
// Aliases are looked up both as written and with the Arabic definite
// article stripped.
func resolveSymbol(text string) (symbol, market string) {
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return r == ' ' || r == '?' || r == '!' || r == ',' || r == '.' || r == '؟' || r == '\n'
	}) {
		if m, ok := symbolAliases[word]; ok {
			return m[0], m[1]
		}
		if bare, found := strings.CutPrefix(word, arabicArticle); found {
			if m, ok := symbolAliases[bare]; ok {
				return m[0], m[1]
			}
		}
	}
	if m := reTicker.FindStringSubmatch(text); m != nil {
		if t := m[1]; t != "" {
			if a, ok := symbolAliases[strings.ToLower(t)]; ok {
				return a[0], a[1]
			}
			// An unknown $-prefixed ticker passes through; the market is
			// left for the data service to infer.
			return strings.ToUpper(t), ""
		}
		// A bare all-caps word only counts when it is a known alias, so
		// ordinary shouting ("WHAT is the price") never becomes a symbol.
		if a, ok := symbolAliases[strings.ToLower(m[2])]; ok {
			return a[0], a[1]
		}
	}
	return "", ""
}

// lastToolSymbol scans history newest-first for the symbol of the most
// recent market tool result, so "and the chart?" keeps the same instrument.
func lastToolSymbol(msgs []history.Message) (symbol, market string) {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role != history.RoleTool {
			continue
		}
		if m.ToolName != tools.ToolGetPrice && m.ToolName != tools.ToolGetMarketAnalysis {
			continue
		}
		var res map[string]any
		if err := json.Unmarshal([]byte(m.Content), &res); err != nil {
			continue
		}
		if s, ok := res["symbol"].(string); ok && s != "" {
			mk, _ := res["market"].(string)
			return s, mk
		}
	}
	return "", ""
}
