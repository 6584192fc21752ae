package orchestrator

import (
	"regexp"
	"strings"
)

// Sanitize strips artifacts the model must never show the user: leaked
// tool-call JSON, capability apologetics, and narration about tool usage.

var sanitizePatterns = []*regexp.Regexp{
	regexp.MustCompile("```(?:json)?\\s*\\{[\\s\\S]*?\"name\"[\\s\\S]*?\\}\\s*```"),
	regexp.MustCompile(`(?s)<tool_call>.*?</tool_call>`),
	regexp.MustCompile(`\{[^{}]*"name"\s*:\s*"[a-z_]+"[^{}]*\{[^{}]*\}[^{}]*\}`),
	regexp.MustCompile(`(?i)(as an ai( language model)?|i('m| am) (just )?an ai)[^.!?]*[.!?]?`),
	regexp.MustCompile(`(?i)i (do not|don't|cannot|can't) have (direct )?access to (real[- ]?time|live|current|external)[^.!?]*[.!?]?`),
	regexp.MustCompile(`(?i)i (do not|don't) have (any )?tools[^.!?]*[.!?]?`),
	regexp.MustCompile(`(?i)(let me|i('ll| will)|i am going to) (call|use|invoke|run) (the )?[a-z_]+ ?tool[^.!?]*[.!?]?`),
	regexp.MustCompile(`(?i)(calling|invoking|using) (the )?tool [a-z_]+[^.!?]*[.!?]?`),
}

var reBlankRuns = regexp.MustCompile(`\n{3,}`)

func Sanitize(text string) string {
	out := text
	for _, re := range sanitizePatterns {
		out = re.ReplaceAllString(out, "")
	}
	out = reBlankRuns.ReplaceAllString(out, "\n\n")
	lines := strings.Split(out, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
