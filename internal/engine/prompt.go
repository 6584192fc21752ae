package engine

import "github.com/sahmacademy/sahmbot/internal/i18n"

// systemPrompt frames the model for informational turns. Market data and the
// course catalog always arrive through tool results, so the prompt forbids
// inventing numbers.
func systemPrompt(lang string) string {
	base := `You are Sahm, the assistant of a trading education academy.
You answer questions about trading concepts, the academy's courses, and its services.
Rules:
- Never invent prices, market levels, or course details. Use tool results only.
- Never give investment advice or recommend buying or selling any asset.
- Keep answers short and friendly.
- Do not mention tools, functions, or your own limitations.`

	switch lang {
	case i18n.LangAr:
		return base + "\n- Reply in Arabic."
	case i18n.LangFr:
		return base + "\n- Reply in French."
	default:
		return base + "\n- Reply in English."
	}
}
